package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"checkin/internal/admin"
	"checkin/internal/checkin/metrics"
	"checkin/internal/checkin/registry"
	"checkin/internal/checkin/store"
	"checkin/internal/connectivity"
	"checkin/internal/eligibility"
	"checkin/internal/identify"
	jwttoken "checkin/internal/jwt_token"
	"checkin/internal/offline"
	"checkin/internal/platform/config"
	"checkin/internal/platform/httpserver"
	"checkin/internal/platform/logger"
	platformmetrics "checkin/internal/platform/metrics"
	"checkin/internal/scanner"
	"checkin/internal/session"
	httptransport "checkin/internal/transport/http"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/audit/publisher"
	"checkin/pkg/platform/audit/publishers/compliance"
	"checkin/pkg/platform/circuit"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).With("terminal_id", cfg.Terminal.ID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("terminal stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("terminal stopped")
}

// run wires the terminal and blocks until ctx is done or a component fails.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	tracer := otel.Tracer("checkin")

	shared, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer shared.Close()

	if cfg.Terminal.SeedDemo {
		if err := store.SeedDemo(ctx, shared.store, cfg.Terminal.EventID); err != nil {
			return err
		}
		log.Info("demo event seeded", "event_id", cfg.Terminal.EventID)
	}

	queue, closeQueue, err := openQueue(ctx, cfg.Queue, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeQueue() }()

	sink, err := openAudit(ctx, cfg.Audit, shared, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	corrections := compliance.New(sink.store,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
	operations := publisher.NewPublisher(sink.store,
		publisher.WithAsyncBuffer(cfg.Audit.AsyncBuffer),
		publisher.WithLogger(log),
	)
	defer func() { _ = operations.Close() }()

	monitor := connectivity.NewMonitor(shared.store,
		connectivity.WithBreaker(circuit.New("shared-store",
			circuit.WithFailureThreshold(cfg.Connectivity.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.Connectivity.SuccessThreshold),
		)),
		connectivity.WithInterval(cfg.Connectivity.ProbeInterval),
		connectivity.WithProbeTimeout(cfg.Connectivity.ProbeTimeout),
		connectivity.WithLogger(log),
		connectivity.WithMetrics(m),
	)
	if err := monitor.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = monitor.Stop() }()

	registrySvc := registry.New(shared.store,
		registry.WithLogger(log),
		registry.WithMetrics(m),
		registry.WithTracer(tracer),
		registry.WithBindTimeout(cfg.Store.BindTimeout),
	)

	pattern, err := regexp.Compile(cfg.Identify.CodePattern)
	if err != nil {
		return fmt.Errorf("compile code pattern: %w", err)
	}
	resolver := identify.New(registrySvc,
		identify.WithLogger(log),
		identify.WithCodePattern(pattern),
		identify.WithMinFragmentLength(cfg.Identify.MinFragmentLen),
		identify.WithMaxCandidates(cfg.Identify.MaxCandidates),
	)
	validator := eligibility.New(eligibility.WithThreshold(cfg.Eligibility.MedicalCheckAge))

	adminOpts := []admin.Option{
		admin.WithLogger(log),
		admin.WithMetrics(m),
		admin.WithValidator(validator),
	}
	if shared.tx != nil {
		adminOpts = append(adminOpts, admin.WithTxRunner(shared.tx))
	}
	adminSvc := admin.New(registrySvc, queue, corrections, adminOpts...)

	reconciler := offline.NewReconciler(queue, registrySvc, monitor,
		offline.WithLogger(log),
		offline.WithMetrics(m),
		offline.WithAuditor(operations),
		offline.WithTracer(tracer),
	)

	terminalID := id.TerminalID(cfg.Terminal.ID)
	controller := session.New(terminalID, resolver, registrySvc, validator, queue, monitor,
		session.WithOverrider(adminSvc),
		session.WithAuditor(operations),
		session.WithHealthReporter(monitor),
		session.WithLogger(log),
		session.WithMetrics(m),
	)
	feed := scanner.NewFeed(cfg.Scanner.Buffer)
	defer feed.Stop()

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Terminal.ID)
	handler := httptransport.NewHandler(terminalID, controller, reconciler, queue, adminSvc, monitor, log)
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		Logger:         log,
		Metrics:        platformmetrics.New(reg),
		Gatherer:       reg,
		AdminValidator: jwtService,
		Signal:         monitor,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	g.Go(func() error { return ignoreCancel(reconciler.Run(gctx)) })
	g.Go(func() error { return ignoreCancel(controller.Listen(gctx, feed)) })
	if cfg.Scanner.Stdin {
		// Not part of the group: a blocked stdin read must not hold shutdown.
		go func() {
			if err := scanner.ReadLines(gctx, os.Stdin, feed, log); err != nil && gctx.Err() == nil {
				log.Warn("stdin scanner stopped", "error", err)
			}
		}()
	}
	if sink.relay != nil {
		g.Go(func() error { return ignoreCancel(sink.relay.Run(gctx)) })
	}

	log.Info("terminal started",
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Backend,
		"status", monitor.Status(),
	)
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
