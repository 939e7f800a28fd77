package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/twmb/franz-go/pkg/kgo"

	"checkin/internal/admin"
	"checkin/internal/checkin/registry"
	"checkin/internal/checkin/store"
	memorystore "checkin/internal/checkin/store/memory"
	postgresstore "checkin/internal/checkin/store/postgres"
	redisstore "checkin/internal/checkin/store/redis"
	"checkin/internal/offline"
	memoryqueue "checkin/internal/offline/store/memory"
	sqlitequeue "checkin/internal/offline/store/sqlite"
	"checkin/internal/platform/config"
	platformredis "checkin/internal/platform/redis"
	audit "checkin/pkg/platform/audit"
	auditkafka "checkin/pkg/platform/audit/store/kafka"
	auditmemory "checkin/pkg/platform/audit/store/memory"
	auditpostgres "checkin/pkg/platform/audit/store/postgres"
	"checkin/pkg/platform/audit/worker"
)

// sharedStore is what every backend offers the terminal.
type sharedStore interface {
	registry.Store
	store.Provisioner
	Ping(ctx context.Context) error
}

// backend is the shared store plus whatever the chosen backend opened.
type backend struct {
	store  sharedStore
	tx     admin.TxRunner
	db     *sql.DB
	redis  *platformredis.Client
	closed bool
}

func (b *backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.redis != nil {
		return b.redis.Close()
	}
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("pgx", cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		pg := postgresstore.New(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("shared store ready", "backend", cfg.Store.Backend)
		return &backend{store: pg, tx: newCorrectionTx(pg), db: db}, nil
	case config.BackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info("shared store ready", "backend", cfg.Store.Backend)
		return &backend{store: redisstore.New(client.Client), redis: client}, nil
	default:
		logger.Warn("using in-memory shared store; bindings do not survive a restart")
		return &backend{store: memorystore.New()}, nil
	}
}

// openQueue picks the durable SQLite queue when a path is configured.
func openQueue(ctx context.Context, cfg config.Queue, logger *slog.Logger) (offline.Queue, func() error, error) {
	if cfg.Path == "" {
		logger.Warn("offline queue is in memory; queued binds are lost on restart")
		return memoryqueue.New(), func() error { return nil }, nil
	}
	q, err := sqlitequeue.Open(ctx, cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("offline queue opened", "path", cfg.Path)
	return q, q.Close, nil
}

// auditSink is the audit store plus the outbox relay when one is needed.
type auditSink struct {
	store audit.Store
	relay *worker.Relay
	kafka *kgo.Client
}

func (a *auditSink) Close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
}

// openAudit writes into the shared Postgres database when there is one, so
// corrections and their audit rows commit together. Kafka, when configured,
// is fed from the outbox by the relay, or directly on other backends.
func openAudit(ctx context.Context, cfg config.Audit, b *backend, logger *slog.Logger) (*auditSink, error) {
	sink := &auditSink{}

	if len(cfg.KafkaBrokers) > 0 {
		client, err := auditkafka.NewClient(cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		if err := auditkafka.EnsureTopic(ctx, client, cfg.Topic, cfg.TopicPartitions, cfg.TopicReplication); err != nil {
			client.Close()
			return nil, err
		}
		sink.kafka = client
	}

	if b.db != nil {
		pg := auditpostgres.New(b.db)
		if err := pg.EnsureSchema(ctx); err != nil {
			sink.Close()
			return nil, err
		}
		sink.store = pg
		if sink.kafka != nil {
			kafkaStore := auditkafka.New(sink.kafka, cfg.Topic, auditkafka.WithLogger(logger))
			sink.relay = worker.NewRelay(pg, kafkaStore,
				worker.WithLogger(logger),
				worker.WithInterval(cfg.RelayInterval),
			)
		}
		return sink, nil
	}

	if sink.kafka != nil {
		sink.store = auditkafka.New(sink.kafka, cfg.Topic, auditkafka.WithLogger(logger))
		return sink, nil
	}
	logger.Warn("audit events are kept in memory only")
	sink.store = auditmemory.NewInMemoryStore()
	return sink, nil
}
