package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"checkin/internal/checkin/metrics"
	"checkin/pkg/platform/circuit"
)

const (
	defaultProbeInterval = 5 * time.Second
	defaultProbeTimeout  = 2 * time.Second
)

// Prober checks the shared store.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor derives the status from periodic probes and live call outcomes fed
// through a circuit breaker: any failure run below the threshold is degraded,
// an open breaker is offline, and a closed breaker with no failures is online.
type Monitor struct {
	hub
	prober   Prober
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
	interval time.Duration
	timeout  time.Duration

	mu        sync.RWMutex
	status    Status
	forced    Status
	scheduler gocron.Scheduler
}

type MonitorOption func(*Monitor)

func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) MonitorOption {
	return func(m *Monitor) { m.metrics = mt }
}

func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithProbeTimeout(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) MonitorOption {
	return func(m *Monitor) {
		if b != nil {
			m.breaker = b
		}
	}
}

func WithClock(clock func() time.Time) MonitorOption {
	return func(m *Monitor) { m.clock = clock }
}

func NewMonitor(prober Prober, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		prober:   prober,
		breaker:  circuit.New("shared-store", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(2)),
		logger:   slog.Default(),
		clock:    time.Now,
		interval: defaultProbeInterval,
		timeout:  defaultProbeTimeout,
		status:   StatusOnline,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.metrics.SetConnectivity(string(m.status), statusLabels())
	return m
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.forced != "" {
		return m.forced
	}
	return m.status
}

func (m *Monitor) Subscribe() (<-chan Event, func()) {
	return m.subscribe()
}

// Start schedules the probe. It runs once immediately.
func (m *Monitor) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create probe scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() { m.Probe(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule connectivity probe: %w", err)
	}
	m.mu.Lock()
	m.scheduler = s
	m.mu.Unlock()
	s.Start()
	m.logger.InfoContext(ctx, "connectivity monitor started", "interval", m.interval)
	return nil
}

// Stop shuts the probe scheduler down.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	s := m.scheduler
	m.scheduler = nil
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Shutdown()
}

// Probe pings the store once and records the outcome.
func (m *Monitor) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.prober.Ping(probeCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.WarnContext(ctx, "shared store probe failed", "error", err)
		m.ReportFailure()
		return
	}
	m.ReportSuccess()
}

// ReportFailure records a failed call against the shared store.
func (m *Monitor) ReportFailure() {
	_, change := m.breaker.RecordFailure()
	if change.Opened {
		m.logger.Warn("shared store circuit opened", "breaker", m.breaker.Name())
	}
	m.recompute()
}

// ReportSuccess records a successful call against the shared store.
func (m *Monitor) ReportSuccess() {
	_, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.logger.Info("shared store circuit closed", "breaker", m.breaker.Name())
	}
	m.recompute()
}

// Force pins the status, e.g. an operator switching the terminal offline.
func (m *Monitor) Force(s Status) {
	m.transition(func() { m.forced = s })
}

// Release returns to the probed status.
func (m *Monitor) Release() {
	m.transition(func() { m.forced = "" })
}

func (m *Monitor) recompute() {
	var next Status
	switch {
	case m.breaker.IsOpen():
		next = StatusOffline
	case m.breaker.Failures() > 0:
		next = StatusDegraded
	default:
		next = StatusOnline
	}
	m.transition(func() { m.status = next })
}

func (m *Monitor) transition(apply func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.effective()
	apply()
	next := m.effective()
	if prev == next {
		return
	}
	m.metrics.SetConnectivity(string(next), statusLabels())
	m.logger.Info("connectivity changed", "from", prev, "to", next)
	m.publish(Event{From: prev, To: next, At: m.clock()})
}

func (m *Monitor) effective() Status {
	if m.forced != "" {
		return m.forced
	}
	return m.status
}

func statusLabels() []string {
	out := make([]string, len(All))
	for i, s := range All {
		out[i] = string(s)
	}
	return out
}
