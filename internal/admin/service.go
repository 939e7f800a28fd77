// Package admin holds the correction paths: forced binds over eligibility
// issues, unbinding, retiring damaged wristbands and resolving sync
// conflicts. Nothing in the identification flow reaches these operations.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"checkin/internal/checkin/metrics"
	"checkin/internal/checkin/models"
	"checkin/internal/checkin/registry"
	"checkin/internal/eligibility"
	"checkin/internal/offline"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/sentinel"
	platformstrings "checkin/pkg/platform/strings"
	"checkin/pkg/requestcontext"
)

// Registry is the token registry surface used by corrections.
type Registry interface {
	Bind(ctx context.Context, req registry.BindRequest) (*models.BindResult, error)
	Unbind(ctx context.Context, code id.TokenCode) (*models.UnbindResult, error)
	MarkDamaged(ctx context.Context, code id.TokenCode) (*models.Token, error)
	Registrant(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error)
	Overrides(ctx context.Context, code id.TokenCode) ([]*models.OverrideRecord, error)
}

// Auditor persists compliance events. It must fail closed.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner runs fn in one transaction. With a Postgres shared store and a
// Postgres audit store on the same database, a failed audit write rolls the
// correction back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noTx struct{}

func (noTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// ForceBindRequest binds over eligibility issues. When Issues is empty the
// service evaluates the registrant and records what it finds.
type ForceBindRequest struct {
	TokenCode    id.TokenCode
	RegistrantID id.RegistrantID
	TerminalID   id.TerminalID
	Issues       []string
	ActorID      string
	Reason       string
}

type Service struct {
	registry  Registry
	queue     offline.Queue
	auditor   Auditor
	validator *eligibility.Validator
	tx        TxRunner
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithValidator(v *eligibility.Validator) Option {
	return func(s *Service) { s.validator = v }
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(reg Registry, queue offline.Queue, auditor Auditor, opts ...Option) *Service {
	s := &Service{
		registry:  reg,
		queue:     queue,
		auditor:   auditor,
		validator: eligibility.New(),
		tx:        noTx{},
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireActor(actorID string) error {
	if actorID == "" {
		return dErrors.New(dErrors.CodeForbidden, "administrator identity required")
	}
	return nil
}

// ForceBind binds a token even though the registrant has eligibility issues.
// The issues are stored with the binding and audited.
func (s *Service) ForceBind(ctx context.Context, req ForceBindRequest) (*models.BindResult, error) {
	if err := requireActor(req.ActorID); err != nil {
		return nil, err
	}
	issues := platformstrings.DedupeAndTrim(req.Issues)
	if len(issues) == 0 {
		registrant, err := s.registry.Registrant(ctx, req.RegistrantID)
		if err != nil {
			return nil, err
		}
		issues = s.validator.Validate(registrant).Issues
	}

	var result *models.BindResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.registry.Bind(ctx, registry.BindRequest{
			TokenCode:      req.TokenCode,
			RegistrantID:   req.RegistrantID,
			TerminalID:     req.TerminalID,
			Forced:         true,
			OverrideIssues: issues,
			ActorID:        req.ActorID,
			Reason:         req.Reason,
		})
		if err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:       string(audit.EventBindingForced),
			Subject:      req.TokenCode.String(),
			RegistrantID: req.RegistrantID.String(),
			TerminalID:   req.TerminalID.String(),
			ActorID:      req.ActorID,
			Issues:       issues,
			Reason:       req.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncAdminAction("force_bind")
	s.logger.InfoContext(ctx, "forced bind",
		"token_code", req.TokenCode,
		"registrant_id", req.RegistrantID,
		"actor_id", req.ActorID,
		"issues", issues,
	)
	return result, nil
}

// Unbind releases a token and clears the holder's check-in.
func (s *Service) Unbind(ctx context.Context, code id.TokenCode, actorID, reason string) (*models.UnbindResult, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	var result *models.UnbindResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.registry.Unbind(ctx, code)
		if err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:       string(audit.EventBindingReset),
			Subject:      code.String(),
			RegistrantID: result.HolderID.String(),
			ActorID:      actorID,
			Reason:       reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncAdminAction("unbind")
	if result.Registrant == nil {
		s.logger.WarnContext(ctx, "unbound token's holder did not point back at it",
			"token_code", code,
			"registrant_id", result.HolderID,
		)
	}
	s.logger.InfoContext(ctx, "token unbound by administrator",
		"token_code", code,
		"registrant_id", result.HolderID,
		"actor_id", actorID,
	)
	return result, nil
}

// MarkDamaged retires an available wristband.
func (s *Service) MarkDamaged(ctx context.Context, code id.TokenCode, actorID, reason string) (*models.Token, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	var token *models.Token
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		token, err = s.registry.MarkDamaged(ctx, code)
		if err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:  string(audit.EventTokenDamaged),
			Subject: code.String(),
			ActorID: actorID,
			Reason:  reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncAdminAction("mark_damaged")
	return token, nil
}

// Conflicts lists unacknowledged sync conflicts on this terminal.
func (s *Service) Conflicts(ctx context.Context) ([]*models.PendingOperation, error) {
	ops, err := s.queue.Conflicts(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sync conflicts")
	}
	return ops, nil
}

// AcknowledgeConflict closes a conflict after manual resolution. The queued
// bind is not applied.
func (s *Service) AcknowledgeConflict(ctx context.Context, opID id.OperationID, actorID string) (*models.PendingOperation, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	op, err := s.queue.Acknowledge(ctx, opID, actorID, s.clock())
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("operation %s not found", opID))
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidState, fmt.Sprintf("operation %s is not in conflict", opID))
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, fmt.Sprintf("conflict %s already acknowledged", opID))
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "acknowledge conflict")
		}
	}

	if err := s.emit(ctx, audit.Event{
		Action:       string(audit.EventSyncConflictAcknowledged),
		Subject:      op.Payload.TokenCode.String(),
		RegistrantID: op.Payload.RegistrantID.String(),
		TerminalID:   op.TerminalID.String(),
		OperationID:  op.ID.String(),
		ActorID:      actorID,
		Decision:     string(op.Conflict.Reason),
	}); err != nil {
		return nil, err
	}
	s.metrics.IncAdminAction("acknowledge_conflict")
	if open, err := s.queue.Conflicts(ctx); err == nil {
		s.metrics.SetOpenConflicts(len(open))
	}
	return op, nil
}

// OverrideHistory lists forced binds recorded for a token, oldest first.
func (s *Service) OverrideHistory(ctx context.Context, code id.TokenCode) ([]*models.OverrideRecord, error) {
	return s.registry.Overrides(ctx, code)
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "compliance audit failed, correction rejected",
			"action", event.Action,
			"token_code", event.Subject,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit record could not be written")
	}
	return nil
}
