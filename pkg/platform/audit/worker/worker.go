// Package worker relays audit outbox rows to a downstream sink.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/audit/store/postgres"
)

// Source is the outbox side of the relay.
type Source interface {
	PendingOutbox(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, seqs []int64, at time.Time) error
}

// Sink receives pre-encoded audit payloads.
type Sink interface {
	Publish(ctx context.Context, subject, category, action string, payload []byte) error
}

// Relay moves outbox rows to the sink in insertion order. A row is marked
// published only after the sink accepted it, so delivery is at-least-once.
type Relay struct {
	source   Source
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	batch    int
	clock    func() time.Time
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func NewRelay(source Source, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		source:   source,
		sink:     sink,
		logger:   slog.Default(),
		interval: time.Second,
		batch:    100,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RelayOnce forwards one batch and returns how many rows were published. It
// stops at the first sink failure so later rows never overtake it.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.source.PendingOutbox(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("read outbox: %w", err)
	}

	var published []int64
	var sinkErr error
	for _, e := range entries {
		category := string(audit.AuditEvent(e.Action).Category())
		if err := r.sink.Publish(ctx, e.Subject, category, e.Action, e.Payload); err != nil {
			sinkErr = fmt.Errorf("publish outbox seq %d: %w", e.Seq, err)
			break
		}
		published = append(published, e.Seq)
	}

	if err := r.source.MarkPublished(ctx, published, r.clock()); err != nil {
		return 0, err
	}
	return len(published), sinkErr
}

// Run relays until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "audit relay batch failed", "published", n, "error", err)
		}
		if n == r.batch && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
