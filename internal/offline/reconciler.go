package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"checkin/internal/checkin/metrics"
	"checkin/internal/checkin/models"
	"checkin/internal/checkin/registry"
	"checkin/internal/connectivity"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
)

// Registry is the part of the token registry a replay needs.
type Registry interface {
	Bind(ctx context.Context, req registry.BindRequest) (*models.BindResult, error)
	AppliedOperation(ctx context.Context, opID id.OperationID) (*models.AppliedOperation, error)
	Token(ctx context.Context, code id.TokenCode) (*models.Token, error)
	Registrant(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error)
}

// Auditor records reconciliation events.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Outcome classifies one replayed operation.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeConflict       Outcome = "conflict"
)

// ItemResult is the outcome of one replay.
type ItemResult struct {
	OpID         id.OperationID
	TokenCode    id.TokenCode
	RegistrantID id.RegistrantID
	Outcome      Outcome
	Conflict     *models.SyncConflict
}

// Report summarises a drain. Remaining counts operations still pending when
// the drain ended; StopReason is set when it ended early.
type Report struct {
	Results    []ItemResult
	Remaining  int
	StopReason string
}

// Reconciler replays the queue against the shared store, one operation at a
// time, oldest first.
type Reconciler struct {
	queue    Queue
	registry Registry
	signal   connectivity.Signal
	auditor  Auditor
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	clock    func() time.Time

	mu sync.Mutex
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

func WithAuditor(a Auditor) Option {
	return func(r *Reconciler) { r.auditor = a }
}

func WithClock(clock func() time.Time) Option {
	return func(r *Reconciler) { r.clock = clock }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Reconciler) { r.tracer = tracer }
}

func NewReconciler(queue Queue, reg Registry, signal connectivity.Signal, opts ...Option) *Reconciler {
	r := &Reconciler{
		queue:    queue,
		registry: reg,
		signal:   signal,
		logger:   slog.Default(),
		tracer:   otel.Tracer("checkin/offline"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// errStop ends a drain without consuming the current operation.
type errStop struct{ err error }

func (e errStop) Error() string { return e.err.Error() }
func (e errStop) Unwrap() error { return e.err }

// Drain replays every pending operation in FIFO order. It stops, leaving the
// current operation at the head of the queue, when the store is unreachable
// or the signal goes offline. Concurrent calls are serialized.
func (r *Reconciler) Drain(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := r.tracer.Start(ctx, "offline.Drain")
	defer span.End()

	pending, err := r.queue.Pending(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load pending operations: %w", err)
	}
	span.SetAttributes(attribute.Int("pending", len(pending)))

	var report Report
	for i, op := range pending {
		if !r.signal.Status().Reachable() {
			report.StopReason = "connectivity offline"
			report.Remaining = len(pending) - i
			break
		}
		if err := ctx.Err(); err != nil {
			report.StopReason = "cancelled"
			report.Remaining = len(pending) - i
			break
		}

		result, err := r.replay(ctx, op)
		if err != nil {
			var stop errStop
			if errors.As(err, &stop) {
				r.logger.WarnContext(ctx, "reconciliation paused",
					"op_id", op.ID.String(),
					"token_code", op.Payload.TokenCode,
					"error", stop.err,
				)
				report.StopReason = "store unreachable"
				report.Remaining = len(pending) - i
				break
			}
			return report, err
		}
		report.Results = append(report.Results, result)
		r.metrics.IncReconcile(string(result.Outcome))
	}

	r.refreshGauges(ctx)
	return report, nil
}

func (r *Reconciler) replay(ctx context.Context, op *models.PendingOperation) (ItemResult, error) {
	result := ItemResult{
		OpID:         op.ID,
		TokenCode:    op.Payload.TokenCode,
		RegistrantID: op.Payload.RegistrantID,
	}

	applied, err := r.registry.AppliedOperation(ctx, op.ID)
	if err != nil {
		return result, errStop{err}
	}
	if applied != nil {
		result.Outcome = OutcomeAlreadyApplied
		return result, r.markApplied(ctx, op, applied.AppliedAt)
	}

	_, err = r.registry.Bind(ctx, registry.BindRequest{
		TokenCode:    op.Payload.TokenCode,
		RegistrantID: op.Payload.RegistrantID,
		TerminalID:   op.TerminalID,
		At:           op.Payload.CapturedAt,
		OpID:         op.ID,
	})
	if err == nil {
		result.Outcome = OutcomeApplied
		return result, r.markApplied(ctx, op, r.clock())
	}

	var conflict *models.SyncConflict
	switch dErrors.CodeOf(err) {
	case dErrors.CodeTokenUnavailable:
		conflict, err = r.classifyTokenRejection(ctx, op)
	case dErrors.CodeRegistrantAlreadyBound:
		conflict, err = r.classifyRegistrantRejection(ctx, op)
	case dErrors.CodeNotFound:
		conflict, err = r.classifyMissing(ctx, op)
	default:
		return result, errStop{err}
	}
	if err != nil {
		return result, errStop{err}
	}
	if conflict == nil {
		result.Outcome = OutcomeAlreadyApplied
		return result, r.markApplied(ctx, op, r.clock())
	}

	conflict.DetectedAt = r.clock()
	if err := r.queue.MarkConflict(ctx, op.ID, *conflict); err != nil {
		return result, fmt.Errorf("record conflict for %s: %w", op.ID, err)
	}
	r.logger.WarnContext(ctx, "sync conflict",
		"op_id", op.ID.String(),
		"token_code", op.Payload.TokenCode,
		"registrant_id", op.Payload.RegistrantID,
		"reason", conflict.Reason,
	)
	r.emit(ctx, audit.Event{
		Action:       string(audit.EventSyncConflictDetected),
		Subject:      op.Payload.TokenCode.String(),
		RegistrantID: op.Payload.RegistrantID.String(),
		TerminalID:   op.TerminalID.String(),
		OperationID:  op.ID.String(),
		Reason:       conflict.Message,
		Decision:     string(conflict.Reason),
	})
	result.Outcome = OutcomeConflict
	result.Conflict = conflict
	return result, nil
}

// classifyTokenRejection returns nil when the token is already bound to the
// queued registrant, which means an earlier partial sync applied it.
func (r *Reconciler) classifyTokenRejection(ctx context.Context, op *models.PendingOperation) (*models.SyncConflict, error) {
	token, err := r.registry.Token(ctx, op.Payload.TokenCode)
	if err != nil {
		return nil, err
	}
	if token.IsBoundTo(op.Payload.RegistrantID) {
		return nil, nil
	}
	if token.Status == models.TokenStatusDamaged {
		return &models.SyncConflict{
			Reason:            models.ConflictTokenDamaged,
			Message:           fmt.Sprintf("token %s was marked damaged", token.Code),
			ObservedTokenCode: token.Code,
		}, nil
	}
	return &models.SyncConflict{
		Reason:               models.ConflictTokenBoundElsewhere,
		Message:              fmt.Sprintf("token %s is bound to %s", token.Code, token.BoundRegistrantID),
		ObservedRegistrantID: token.BoundRegistrantID,
		ObservedTokenCode:    token.Code,
	}, nil
}

func (r *Reconciler) classifyRegistrantRejection(ctx context.Context, op *models.PendingOperation) (*models.SyncConflict, error) {
	registrant, err := r.registry.Registrant(ctx, op.Payload.RegistrantID)
	if err != nil {
		return nil, err
	}
	if registrant.BoundTokenCode == op.Payload.TokenCode {
		return nil, nil
	}
	return &models.SyncConflict{
		Reason:               models.ConflictRegistrantBoundElsewhere,
		Message:              fmt.Sprintf("registrant %s already holds token %s", registrant.ID, registrant.BoundTokenCode),
		ObservedRegistrantID: registrant.ID,
		ObservedTokenCode:    registrant.BoundTokenCode,
	}, nil
}

func (r *Reconciler) classifyMissing(ctx context.Context, op *models.PendingOperation) (*models.SyncConflict, error) {
	_, err := r.registry.Token(ctx, op.Payload.TokenCode)
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return &models.SyncConflict{
			Reason:  models.ConflictTokenMissing,
			Message: fmt.Sprintf("token %s does not exist", op.Payload.TokenCode),
		}, nil
	case err != nil:
		return nil, err
	}
	return &models.SyncConflict{
		Reason:  models.ConflictRegistrantMissing,
		Message: fmt.Sprintf("registrant %s does not exist", op.Payload.RegistrantID),
	}, nil
}

func (r *Reconciler) markApplied(ctx context.Context, op *models.PendingOperation, at time.Time) error {
	if err := r.queue.MarkApplied(ctx, op.ID, at); err != nil {
		return fmt.Errorf("mark %s applied: %w", op.ID, err)
	}
	r.logger.InfoContext(ctx, "queued bind replayed",
		"op_id", op.ID.String(),
		"token_code", op.Payload.TokenCode,
		"registrant_id", op.Payload.RegistrantID,
	)
	r.emit(ctx, audit.Event{
		Action:       string(audit.EventOperationReplayed),
		Subject:      op.Payload.TokenCode.String(),
		RegistrantID: op.Payload.RegistrantID.String(),
		TerminalID:   op.TerminalID.String(),
		OperationID:  op.ID.String(),
	})
	return nil
}

func (r *Reconciler) emit(ctx context.Context, event audit.Event) {
	if r.auditor == nil {
		return
	}
	if err := r.auditor.Emit(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func (r *Reconciler) refreshGauges(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	if pending, err := r.queue.Pending(ctx); err == nil {
		r.metrics.SetPending(len(pending))
	}
	if conflicts, err := r.queue.Conflicts(ctx); err == nil {
		r.metrics.SetOpenConflicts(len(conflicts))
	}
}

// Run drains once at start and again whenever the signal comes back from
// offline or settles to online. It returns when ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	events, cancel := r.signal.Subscribe()
	defer cancel()

	r.drainLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if shouldDrain(ev) {
				r.drainLogged(ctx)
			}
		}
	}
}

func shouldDrain(ev connectivity.Event) bool {
	if !ev.To.Reachable() {
		return false
	}
	return ev.From == connectivity.StatusOffline || ev.To == connectivity.StatusOnline
}

func (r *Reconciler) drainLogged(ctx context.Context) {
	if !r.signal.Status().Reachable() {
		return
	}
	report, err := r.Drain(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "reconciliation failed", "error", err)
		return
	}
	if len(report.Results) > 0 || report.Remaining > 0 {
		r.logger.InfoContext(ctx, "reconciliation finished",
			"replayed", len(report.Results),
			"remaining", report.Remaining,
			"stop_reason", report.StopReason,
		)
	}
}
