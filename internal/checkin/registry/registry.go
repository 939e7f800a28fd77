// Package registry is the only writer of token and registrant binding state.
//
// Every transition is a single conditional write in the shared store: the
// store applies it only if it still observes the expected status, so two
// terminals racing on one wristband cannot both win. The registry never reads
// first and writes second.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"checkin/internal/checkin/metrics"
	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/sentinel"
)

const defaultBindTimeout = 5 * time.Second

// Store is the shared registrant/token store. Conditional methods must be
// atomic across both records and return post-update copies.
type Store interface {
	FindToken(ctx context.Context, code id.TokenCode) (*models.Token, error)
	FindRegistrant(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error)
	ListRegistrants(ctx context.Context) ([]*models.Registrant, error)
	BindIfAvailable(ctx context.Context, binding models.Binding) (*models.BindResult, error)
	UnbindIfBound(ctx context.Context, code id.TokenCode, at time.Time) (*models.UnbindResult, error)
	MarkDamagedIfAvailable(ctx context.Context, code id.TokenCode, at time.Time) (*models.Token, error)
	FindAppliedOperation(ctx context.Context, opID id.OperationID) (*models.AppliedOperation, error)
	ListOverrides(ctx context.Context, code id.TokenCode) ([]*models.OverrideRecord, error)
}

// BindRequest asks for a token to be bound to a registrant.
type BindRequest struct {
	TokenCode    id.TokenCode
	RegistrantID id.RegistrantID
	TerminalID   id.TerminalID
	// At defaults to the registry clock. Replays pass the capture time.
	At   time.Time
	OpID id.OperationID

	Forced         bool
	OverrideIssues []string
	ActorID        string
	Reason         string
}

// Registry enforces the token state machine.
type Registry struct {
	store       Store
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	clock       func() time.Time
	bindTimeout time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) { r.tracer = tracer }
}

// WithBindTimeout bounds a live bind. A bind that does not resolve in time is
// reported as unreachable and never retried.
func WithBindTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.bindTimeout = d
		}
	}
}

func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:       store,
		logger:      slog.Default(),
		tracer:      otel.Tracer("checkin/registry"),
		clock:       time.Now,
		bindTimeout: defaultBindTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind moves a token from available to bound and checks the registrant in.
func (r *Registry) Bind(ctx context.Context, req BindRequest) (*models.BindResult, error) {
	if req.TokenCode == "" || req.RegistrantID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "token code and registrant id are required")
	}
	if req.Forced && req.ActorID == "" {
		return nil, dErrors.New(dErrors.CodeForbidden, "forced bind requires an administrator")
	}
	at := req.At
	if at.IsZero() {
		at = r.clock()
	}

	ctx, span := r.tracer.Start(ctx, "registry.Bind", trace.WithAttributes(
		attribute.String("token_code", req.TokenCode.String()),
		attribute.String("registrant_id", req.RegistrantID.String()),
		attribute.Bool("forced", req.Forced),
		attribute.Bool("replay", !req.OpID.IsNil()),
	))
	defer span.End()

	bindCtx, cancel := context.WithTimeout(ctx, r.bindTimeout)
	defer cancel()

	start := time.Now()
	result, err := r.store.BindIfAvailable(bindCtx, models.Binding{
		TokenCode:      req.TokenCode,
		RegistrantID:   req.RegistrantID,
		TerminalID:     req.TerminalID,
		At:             at,
		OpID:           req.OpID,
		Forced:         req.Forced,
		OverrideIssues: req.OverrideIssues,
		ActorID:        req.ActorID,
		Reason:         req.Reason,
	})
	if err != nil {
		derr := r.translateBindError(ctx, bindCtx, err, req)
		r.metrics.ObserveBind(string(dErrors.CodeOf(derr)), time.Since(start))
		span.RecordError(derr)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(derr)))
		return nil, derr
	}
	r.metrics.ObserveBind("bound", time.Since(start))

	r.logger.InfoContext(ctx, "token bound",
		"token_code", req.TokenCode,
		"registrant_id", req.RegistrantID,
		"terminal_id", req.TerminalID,
		"forced", req.Forced,
		"op_id", opIDAttr(req.OpID),
	)
	result.OpID = req.OpID
	result.Forced = req.Forced
	return result, nil
}

func (r *Registry) translateBindError(ctx, bindCtx context.Context, err error, req BindRequest) error {
	switch {
	case errors.Is(err, models.ErrTokenNotAvailable):
		r.logger.WarnContext(ctx, "bind rejected: token not available",
			"token_code", req.TokenCode,
			"registrant_id", req.RegistrantID,
		)
		return dErrors.Wrap(err, dErrors.CodeTokenUnavailable, fmt.Sprintf("token %s is already bound or damaged", req.TokenCode))
	case errors.Is(err, models.ErrRegistrantHasToken):
		r.logger.WarnContext(ctx, "bind rejected: registrant already holds a token",
			"token_code", req.TokenCode,
			"registrant_id", req.RegistrantID,
		)
		return dErrors.Wrap(err, dErrors.CodeRegistrantAlreadyBound, fmt.Sprintf("registrant %s is already checked in", req.RegistrantID))
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "bind target not found")
	case ctx.Err() != nil:
		return dErrors.Wrap(ctx.Err(), dErrors.CodeCancelled, "bind abandoned")
	case errors.Is(err, context.DeadlineExceeded) || bindCtx.Err() != nil:
		r.logger.ErrorContext(ctx, "bind inconclusive: store did not answer in time",
			"token_code", req.TokenCode,
			"registrant_id", req.RegistrantID,
			"timeout", r.bindTimeout,
		)
		return dErrors.Wrap(err, dErrors.CodeUnreachable, "bind outcome inconclusive")
	default:
		r.logger.ErrorContext(ctx, "bind failed",
			"token_code", req.TokenCode,
			"registrant_id", req.RegistrantID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnreachable, "shared store unreachable")
	}
}

// Unbind releases a bound token and resets the registrant's check-in. It is a
// correction path and is only exposed through the admin service.
func (r *Registry) Unbind(ctx context.Context, code id.TokenCode) (*models.UnbindResult, error) {
	ctx, span := r.tracer.Start(ctx, "registry.Unbind", trace.WithAttributes(
		attribute.String("token_code", code.String()),
	))
	defer span.End()

	result, err := r.store.UnbindIfBound(ctx, code, r.clock())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTokenNotBound):
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidState, fmt.Sprintf("token %s is not bound", code))
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("token %s not found", code))
		default:
			span.RecordError(err)
			return nil, dErrors.Wrap(err, dErrors.CodeUnreachable, "shared store unreachable")
		}
	}
	r.logger.InfoContext(ctx, "token unbound", "token_code", code)
	return result, nil
}

// MarkDamaged retires an available token.
func (r *Registry) MarkDamaged(ctx context.Context, code id.TokenCode) (*models.Token, error) {
	ctx, span := r.tracer.Start(ctx, "registry.MarkDamaged", trace.WithAttributes(
		attribute.String("token_code", code.String()),
	))
	defer span.End()

	token, err := r.store.MarkDamagedIfAvailable(ctx, code, r.clock())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTokenNotAvailable):
			return nil, dErrors.Wrap(err, dErrors.CodeTokenUnavailable, fmt.Sprintf("token %s is not available", code))
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("token %s not found", code))
		default:
			span.RecordError(err)
			return nil, dErrors.Wrap(err, dErrors.CodeUnreachable, "shared store unreachable")
		}
	}
	r.logger.InfoContext(ctx, "token marked damaged", "token_code", code)
	return token, nil
}

// Token reads a fresh copy of a token.
func (r *Registry) Token(ctx context.Context, code id.TokenCode) (*models.Token, error) {
	token, err := r.store.FindToken(ctx, code)
	if err != nil {
		return nil, translateRead(err, fmt.Sprintf("token %s not found", code))
	}
	return token, nil
}

// Registrant reads a fresh copy of a registrant.
func (r *Registry) Registrant(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error) {
	registrant, err := r.store.FindRegistrant(ctx, registrantID)
	if err != nil {
		return nil, translateRead(err, fmt.Sprintf("registrant %s not found", registrantID))
	}
	return registrant, nil
}

// Registrants loads the snapshot used for manual lookup.
func (r *Registry) Registrants(ctx context.Context) ([]*models.Registrant, error) {
	list, err := r.store.ListRegistrants(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnreachable, "load registrant snapshot")
	}
	return list, nil
}

// AppliedOperation returns the applied-operation record for opID, or nil if
// the operation never reached the store.
func (r *Registry) AppliedOperation(ctx context.Context, opID id.OperationID) (*models.AppliedOperation, error) {
	applied, err := r.store.FindAppliedOperation(ctx, opID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnreachable, "look up applied operation")
	}
	return applied, nil
}

// Overrides lists the administrative overrides recorded for a token.
func (r *Registry) Overrides(ctx context.Context, code id.TokenCode) ([]*models.OverrideRecord, error) {
	records, err := r.store.ListOverrides(ctx, code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnreachable, "list overrides")
	}
	return records, nil
}

func translateRead(err error, notFoundMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeUnreachable, "shared store unreachable")
}

func opIDAttr(op id.OperationID) string {
	if op.IsNil() {
		return ""
	}
	return op.String()
}
