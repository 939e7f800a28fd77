// Package compliance provides a fail-closed audit publisher for corrections
// and overrides.
//
// Emit blocks until the event is persisted. If persistence fails the caller
// must fail its own operation: a forced bind or reset without its audit
// record is not allowed to stand.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "checkin/pkg/platform/audit"
)

// Publisher emits compliance events synchronously.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	clock   func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		p.clock = clock
	}
}

// New creates a compliance publisher. The store should be outbox-backed for
// guaranteed delivery downstream.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and persists event. A returned error means nothing was
// recorded.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	start := p.clock()

	if event.Action == "" {
		return errors.New("compliance event requires Action")
	}
	if event.Subject == "" {
		return errors.New("compliance event requires Subject")
	}
	event = audit.Normalize(event, start)

	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.IncPersistFailures()
		p.logger.ErrorContext(ctx, "compliance audit failed",
			"action", event.Action,
			"token_code", event.Subject,
			"actor_id", event.ActorID,
			"error", err,
		)
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	p.metrics.ObservePersistDuration(time.Since(start).Seconds())
	p.metrics.IncEventsEmitted(event.Action)
	return nil
}
