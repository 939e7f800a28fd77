// Package session drives one check-in attempt at a time on a terminal:
// identify a wristband and a registrant, validate eligibility, then bind live
// or queue the bind when the shared store is out of reach.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"checkin/internal/admin"
	"checkin/internal/checkin/metrics"
	"checkin/internal/checkin/models"
	"checkin/internal/checkin/registry"
	"checkin/internal/connectivity"
	"checkin/internal/identify"
	"checkin/internal/offline"
	"checkin/internal/scanner"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
)

// Controller is the per-terminal state machine. Every method is safe for
// concurrent use; calls that reach the shared store run without the lock.
type Controller struct {
	terminalID id.TerminalID
	resolver   Resolver
	registry   Registry
	validator  Validator
	queue      offline.Queue
	signal     connectivity.Signal

	overrider Overrider
	auditor   Auditor
	health    HealthReporter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time

	mu    sync.Mutex
	state State
	// generation counts abandoned attempts; lookups that return into a
	// later generation are discarded.
	generation uint64
	inFlight   map[id.TokenCode]struct{}
	snapshot   []*models.Registrant
	scanner    scanner.Scanner
}

type Option func(*Controller)

func WithOverrider(o Overrider) Option {
	return func(c *Controller) { c.overrider = o }
}

func WithAuditor(a Auditor) Option {
	return func(c *Controller) { c.auditor = a }
}

func WithHealthReporter(h HealthReporter) Option {
	return func(c *Controller) { c.health = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithScanner(s scanner.Scanner) Option {
	return func(c *Controller) { c.scanner = s }
}

func New(
	terminalID id.TerminalID,
	resolver Resolver,
	reg Registry,
	validator Validator,
	queue offline.Queue,
	signal connectivity.Signal,
	opts ...Option,
) *Controller {
	c := &Controller{
		terminalID: terminalID,
		resolver:   resolver,
		registry:   reg,
		validator:  validator,
		queue:      queue,
		signal:     signal,
		logger:     slog.Default(),
		clock:      time.Now,
		state:      Idle{},
		inFlight:   make(map[id.TokenCode]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState must be called with c.mu held.
func (c *Controller) setState(s State) {
	prev := c.state.Kind()
	c.state = s
	c.metrics.IncTransition(string(s.Kind()))
	if c.scanner != nil {
		if scanning(s.Kind()) {
			c.scanner.Resume()
		} else {
			c.scanner.Pause()
		}
	}
	if prev != s.Kind() {
		c.logger.Debug("session transition", "terminal_id", c.terminalID, "from", prev, "to", s.Kind())
	}
}

// identifying returns the current attempt when the controller accepts input
// for it, or an empty one from Idle.
func (c *Controller) identifying() (Identifying, error) {
	switch st := c.state.(type) {
	case Idle:
		return Identifying{}, nil
	case Identifying:
		return st, nil
	default:
		return Identifying{}, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("cannot identify while %s", st.Kind()))
	}
}

// Scan handles a decoded or typed wristband code.
func (c *Controller) Scan(ctx context.Context, raw string) (State, error) {
	c.mu.Lock()
	attempt, err := c.identifying()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	code, ok := c.resolver.ParseCode(raw)
	if !ok {
		attempt.TokenCode = ""
		attempt.Notice = &Notice{Code: dErrors.CodeNotFound, Message: "unrecognised wristband code"}
		c.setState(attempt)
		c.mu.Unlock()
		return attempt, nil
	}
	if _, busy := c.inFlight[code]; busy {
		c.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("code %s is already being processed", code))
	}
	c.inFlight[code] = struct{}{}
	gen := c.generation
	c.mu.Unlock()

	resolution, resolveErr := c.resolve(ctx, raw, code)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, code)
	attempt, err = c.resumeAttempt(gen)
	if err != nil {
		return nil, err
	}
	if resolveErr != nil {
		c.setState(Errored{Code: dErrors.CodeOf(resolveErr), Message: resolveErr.Error(), TokenCode: code})
		return c.state, nil
	}

	attempt.Notice = nil
	switch resolution.Kind {
	case identify.ResolutionReadyToBind:
		attempt.TokenCode = code
		if attempt.Registrant != nil {
			c.validate(attempt.TokenCode, attempt.Registrant)
			return c.state, nil
		}
	case identify.ResolutionAlreadyBound:
		attempt.TokenCode = ""
		attempt.Notice = &Notice{
			Code:    dErrors.CodeTokenUnavailable,
			Message: fmt.Sprintf("wristband %s is already bound to %s", code, resolution.RegistrantName),
		}
	case identify.ResolutionDamaged:
		attempt.TokenCode = ""
		attempt.Notice = &Notice{
			Code:    dErrors.CodeTokenUnavailable,
			Message: fmt.Sprintf("wristband %s is marked damaged", code),
		}
	default:
		attempt.TokenCode = ""
		attempt.Notice = &Notice{Code: dErrors.CodeNotFound, Message: fmt.Sprintf("wristband %s is not registered", code)}
	}
	c.setState(attempt)
	return c.state, nil
}

// resumeAttempt returns the attempt a finished lookup applies to. It fails
// when the attempt was abandoned or another lookup already moved it past
// identification. Must be called with c.mu held.
func (c *Controller) resumeAttempt(gen uint64) (Identifying, error) {
	if gen != c.generation {
		return Identifying{}, dErrors.New(dErrors.CodeCancelled, "attempt was cleared")
	}
	attempt, err := c.identifying()
	if err != nil {
		return Identifying{}, dErrors.New(dErrors.CodeCancelled,
			fmt.Sprintf("attempt moved on to %s", c.state.Kind()))
	}
	return attempt, nil
}

// resolve looks the code up when the store is reachable. Offline, a
// well-formed code is accepted provisionally; the reconciler catches codes
// that turn out to be unusable.
func (c *Controller) resolve(ctx context.Context, raw string, code id.TokenCode) (*identify.TokenResolution, error) {
	status := c.signal.Status()
	if !status.Reachable() {
		return &identify.TokenResolution{Kind: identify.ResolutionReadyToBind, Code: code}, nil
	}
	resolution, err := c.resolver.ResolveByTokenCode(ctx, raw)
	if err == nil {
		return resolution, nil
	}
	if dErrors.HasCode(err, dErrors.CodeUnreachable) {
		c.reportFailure()
		if status == connectivity.StatusDegraded {
			c.logger.WarnContext(ctx, "token lookup failed while degraded, accepting code provisionally",
				"token_code", code, "error", err)
			return &identify.TokenResolution{Kind: identify.ResolutionReadyToBind, Code: code}, nil
		}
	}
	return nil, err
}

// RefreshSnapshot reloads the registrant list used by Search.
func (c *Controller) RefreshSnapshot(ctx context.Context) (int, error) {
	list, err := c.registry.Registrants(ctx)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.snapshot = list
	c.mu.Unlock()
	return len(list), nil
}

// Search ranks snapshot registrants against a typed fragment.
func (c *Controller) Search(ctx context.Context, fragment string) (State, error) {
	c.mu.Lock()
	empty := len(c.snapshot) == 0
	c.mu.Unlock()
	if empty && c.signal.Status().Reachable() {
		if _, err := c.RefreshSnapshot(ctx); err != nil {
			c.logger.WarnContext(ctx, "registrant snapshot refresh failed", "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	attempt, err := c.identifying()
	if err != nil {
		return nil, err
	}
	attempt.Query = fragment
	attempt.Candidates = c.resolver.ResolveByIdentityFragment(fragment, c.snapshot)
	attempt.Notice = nil
	c.setState(attempt)
	return c.state, nil
}

// SelectRegistrant picks the registrant for the attempt. When the store is
// reachable the registrant is re-read so eligibility sees current data.
func (c *Controller) SelectRegistrant(ctx context.Context, registrantID id.RegistrantID) (State, error) {
	c.mu.Lock()
	if _, err := c.identifying(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	gen := c.generation
	cached := c.fromSnapshot(registrantID)
	c.mu.Unlock()

	registrant, err := c.loadRegistrant(ctx, registrantID, cached)
	var queuedHere bool
	if err == nil {
		queuedHere, err = c.registrantQueued(ctx, registrantID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	attempt, resumeErr := c.resumeAttempt(gen)
	if resumeErr != nil {
		return nil, resumeErr
	}
	attempt.Notice = nil
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		attempt.Notice = &Notice{Code: dErrors.CodeNotFound, Message: fmt.Sprintf("registrant %s not found", registrantID)}
	case err != nil:
		c.setState(Errored{Code: dErrors.CodeOf(err), Message: err.Error(), TokenCode: attempt.TokenCode})
		return c.state, nil
	case registrant.HasToken():
		attempt.Registrant = nil
		attempt.Notice = &Notice{
			Code:    dErrors.CodeRegistrantAlreadyBound,
			Message: fmt.Sprintf("%s is already checked in with wristband %s", registrant.DisplayName, registrant.BoundTokenCode),
		}
	case queuedHere:
		attempt.Registrant = nil
		attempt.Notice = &Notice{
			Code:    dErrors.CodeRegistrantAlreadyBound,
			Message: fmt.Sprintf("%s already has a bind waiting to sync on this terminal", registrant.DisplayName),
		}
	default:
		attempt.Registrant = registrant
		if attempt.TokenCode != "" {
			c.validate(attempt.TokenCode, registrant)
			return c.state, nil
		}
	}
	c.setState(attempt)
	return c.state, nil
}

func (c *Controller) fromSnapshot(registrantID id.RegistrantID) *models.Registrant {
	for _, r := range c.snapshot {
		if r.ID == registrantID {
			return r.Clone()
		}
	}
	return nil
}

func (c *Controller) loadRegistrant(ctx context.Context, registrantID id.RegistrantID, cached *models.Registrant) (*models.Registrant, error) {
	status := c.signal.Status()
	if !status.Reachable() {
		if cached == nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "registrant not in local snapshot")
		}
		return cached, nil
	}
	fresh, err := c.registry.Registrant(ctx, registrantID)
	if err == nil {
		return fresh, nil
	}
	if dErrors.HasCode(err, dErrors.CodeUnreachable) {
		c.reportFailure()
		if status == connectivity.StatusDegraded && cached != nil {
			return cached, nil
		}
	}
	return nil, err
}

func (c *Controller) registrantQueued(ctx context.Context, registrantID id.RegistrantID) (bool, error) {
	pending, err := c.queue.Pending(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "read offline queue")
	}
	for _, op := range pending {
		if op.Payload.RegistrantID == registrantID {
			return true, nil
		}
	}
	return false, nil
}

// validate must be called with c.mu held.
func (c *Controller) validate(code id.TokenCode, registrant *models.Registrant) {
	c.setState(Validating{TokenCode: code, Registrant: registrant})
	result := c.validator.Validate(registrant)
	if result.Eligible {
		c.setState(Confirming{TokenCode: code, Registrant: registrant})
		return
	}
	c.setState(Blocked{TokenCode: code, Registrant: registrant, Issues: result.Issues})
}

// Confirm binds the confirmed pair, live when the store is reachable and
// queued otherwise.
func (c *Controller) Confirm(ctx context.Context) (State, error) {
	c.mu.Lock()
	st, ok := c.state.(Confirming)
	if !ok {
		c.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("nothing to confirm while %s", c.state.Kind()))
	}
	if st.Binding {
		c.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("bind of %s already in progress", st.TokenCode))
	}
	st.Binding = true
	c.setState(st)
	c.mu.Unlock()

	next := c.bind(ctx, st.TokenCode, st.Registrant)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setState(next)
	return next, nil
}

func (c *Controller) bind(ctx context.Context, code id.TokenCode, registrant *models.Registrant) State {
	queued, err := c.queue.PendingForToken(ctx, code)
	if err != nil {
		return Errored{Code: dErrors.CodeInternal, Message: "read offline queue: " + err.Error(), TokenCode: code}
	}
	if len(queued) > 0 {
		return Identifying{
			Registrant: registrant,
			Notice: &Notice{
				Code:    dErrors.CodeTokenUnavailable,
				Message: fmt.Sprintf("wristband %s already has a bind waiting to sync on this terminal", code),
			},
		}
	}

	opID := id.NewOperationID()
	status := c.signal.Status()
	if !status.Reachable() {
		return c.enqueue(ctx, opID, code, registrant)
	}

	result, err := c.registry.Bind(ctx, registry.BindRequest{
		TokenCode:    code,
		RegistrantID: registrant.ID,
		TerminalID:   c.terminalID,
		OpID:         opID,
	})
	if err == nil {
		c.reportSuccess()
		c.emit(ctx, audit.Event{
			Action:       string(audit.EventBindingCreated),
			Subject:      code.String(),
			RegistrantID: registrant.ID.String(),
			TerminalID:   c.terminalID.String(),
			OperationID:  opID.String(),
		})
		return Success{TokenCode: code, Registrant: result.Registrant, OpID: opID}
	}
	return c.bindFailure(ctx, err, status, opID, code, registrant)
}

// bindFailure maps a failed live bind. Race losses go back to identifying;
// an unreachable store is queued only when connectivity was already in
// doubt, since an online failure needs a human to check the outcome.
func (c *Controller) bindFailure(ctx context.Context, err error, status connectivity.Status, opID id.OperationID, code id.TokenCode, registrant *models.Registrant) State {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeTokenUnavailable:
		c.reportSuccess()
		return Identifying{
			Registrant: registrant,
			Notice:     &Notice{Code: dErrors.CodeTokenUnavailable, Message: fmt.Sprintf("wristband %s was just taken, scan another", code)},
		}
	case dErrors.CodeRegistrantAlreadyBound:
		c.reportSuccess()
		return Identifying{
			TokenCode: code,
			Notice: &Notice{
				Code:    dErrors.CodeRegistrantAlreadyBound,
				Message: fmt.Sprintf("%s was just checked in elsewhere", registrant.DisplayName),
			},
		}
	case dErrors.CodeNotFound:
		return Identifying{Notice: &Notice{Code: dErrors.CodeNotFound, Message: err.Error()}}
	case dErrors.CodeUnreachable:
		c.reportFailure()
		if status == connectivity.StatusDegraded {
			c.logger.WarnContext(ctx, "live bind failed while degraded, queuing",
				"token_code", code, "registrant_id", registrant.ID, "op_id", opID.String(), "error", err)
			return c.enqueue(ctx, opID, code, registrant)
		}
		return Errored{
			Code:      dErrors.CodeUnreachable,
			Message:   fmt.Sprintf("bind of %s is inconclusive: check the wristband before retrying", code),
			TokenCode: code,
		}
	default:
		return Errored{Code: dErrors.CodeOf(err), Message: err.Error(), TokenCode: code}
	}
}

func (c *Controller) enqueue(ctx context.Context, opID id.OperationID, code id.TokenCode, registrant *models.Registrant) State {
	now := c.clock()
	op, err := c.queue.Append(ctx, &models.PendingOperation{
		ID:         opID,
		Kind:       models.OperationKindBind,
		TerminalID: c.terminalID,
		Payload: models.BindPayload{
			TokenCode:    code,
			RegistrantID: registrant.ID,
			CapturedAt:   now,
		},
		CreatedAt: now,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "could not queue bind", "token_code", code, "registrant_id", registrant.ID, "error", err)
		return Errored{Code: dErrors.CodeInternal, Message: "could not queue bind: " + err.Error(), TokenCode: code}
	}
	c.metrics.IncQueued()
	if pending, err := c.queue.Pending(ctx); err == nil {
		c.metrics.SetPending(len(pending))
	}
	c.logger.InfoContext(ctx, "bind queued",
		"token_code", code,
		"registrant_id", registrant.ID,
		"op_id", op.ID.String(),
		"seq", op.Seq,
	)
	c.emit(ctx, audit.Event{
		Action:       string(audit.EventOperationQueued),
		Subject:      code.String(),
		RegistrantID: registrant.ID.String(),
		TerminalID:   c.terminalID.String(),
		OperationID:  op.ID.String(),
	})
	return Success{TokenCode: code, Registrant: registrant, OpID: op.ID, Queued: true}
}

// Override force-binds a blocked attempt on an administrator's authority.
// Overrides are never queued: the store must be reachable.
func (c *Controller) Override(ctx context.Context, actorID, reason string) (State, error) {
	if c.overrider == nil {
		return nil, dErrors.New(dErrors.CodeForbidden, "administrative override is not available on this terminal")
	}
	if actorID == "" {
		return nil, dErrors.New(dErrors.CodeForbidden, "administrator identity required")
	}

	c.mu.Lock()
	st, ok := c.state.(Blocked)
	if !ok {
		c.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("nothing to override while %s", c.state.Kind()))
	}
	if !c.signal.Status().Reachable() {
		c.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeUnreachable, "overrides need the shared store")
	}
	if st.Overriding {
		c.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("override of %s already in progress", st.TokenCode))
	}
	st.Overriding = true
	c.setState(st)
	gen := c.generation
	c.mu.Unlock()

	result, err := c.overrider.ForceBind(ctx, admin.ForceBindRequest{
		TokenCode:    st.TokenCode,
		RegistrantID: st.Registrant.ID,
		TerminalID:   c.terminalID,
		Issues:       st.Issues,
		ActorID:      actorID,
		Reason:       reason,
	})

	var next State
	if err == nil {
		next = Success{TokenCode: st.TokenCode, Registrant: result.Registrant, Forced: true, Issues: st.Issues}
	} else {
		next = c.bindFailure(ctx, err, connectivity.StatusOnline, id.OperationID{}, st.TokenCode, st.Registrant)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.logger.WarnContext(ctx, "override finished after the attempt was abandoned",
			"token_code", st.TokenCode, "registrant_id", st.Registrant.ID, "result", next.Kind())
		return nil, dErrors.New(dErrors.CodeCancelled, "attempt was cleared")
	}
	c.setState(next)
	return next, nil
}

// Dismiss acknowledges a displayed result and returns to Idle.
func (c *Controller) Dismiss() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !displaysResult(c.state.Kind()) {
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("nothing to dismiss while %s", c.state.Kind()))
	}
	if err := c.writeInFlight(); err != nil {
		return nil, err
	}
	c.generation++
	c.setState(Idle{})
	return c.state, nil
}

// Clear abandons the current attempt. Results of lookups still in flight
// are discarded. A bind or override in flight cannot be abandoned.
func (c *Controller) Clear() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeInFlight(); err != nil {
		return nil, err
	}
	c.generation++
	c.setState(Idle{})
	return c.state, nil
}

// writeInFlight must be called with c.mu held.
func (c *Controller) writeInFlight() error {
	switch st := c.state.(type) {
	case Confirming:
		if st.Binding {
			return dErrors.New(dErrors.CodeInvalidState, "bind in progress")
		}
	case Blocked:
		if st.Overriding {
			return dErrors.New(dErrors.CodeInvalidState, "override in progress")
		}
	}
	return nil
}

// Listen feeds codes from sc into Scan until ctx is done or sc stops. The
// controller pauses sc while a result is on screen.
func (c *Controller) Listen(ctx context.Context, sc scanner.Scanner) error {
	c.mu.Lock()
	c.scanner = sc
	if scanning(c.state.Kind()) {
		sc.Resume()
	} else {
		sc.Pause()
	}
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-sc.Codes():
			if !ok {
				return nil
			}
			if _, err := c.Scan(ctx, raw); err != nil {
				c.logger.InfoContext(ctx, "scan ignored", "raw", raw, "error", err)
			}
		}
	}
}

func (c *Controller) emit(ctx context.Context, event audit.Event) {
	if c.auditor == nil {
		return
	}
	if err := c.auditor.Emit(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func (c *Controller) reportFailure() {
	if c.health != nil {
		c.health.ReportFailure()
	}
}

func (c *Controller) reportSuccess() {
	if c.health != nil {
		c.health.ReportSuccess()
	}
}
