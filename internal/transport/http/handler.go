// Package httptransport exposes the terminal to its operator screen and to
// administrators. Handlers translate JSON to controller and service calls and
// carry no check-in logic of their own.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"checkin/internal/admin"
	"checkin/internal/checkin/models"
	"checkin/internal/connectivity"
	"checkin/internal/offline"
	"checkin/internal/session"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/requestcontext"
)

// Session is the controller surface driven by the operator screen.
type Session interface {
	State() session.State
	Scan(ctx context.Context, raw string) (session.State, error)
	Search(ctx context.Context, fragment string) (session.State, error)
	RefreshSnapshot(ctx context.Context) (int, error)
	SelectRegistrant(ctx context.Context, registrantID id.RegistrantID) (session.State, error)
	Confirm(ctx context.Context) (session.State, error)
	Override(ctx context.Context, actorID, reason string) (session.State, error)
	Dismiss() (session.State, error)
	Clear() (session.State, error)
}

// Syncer drains the offline queue on demand.
type Syncer interface {
	Drain(ctx context.Context) (offline.Report, error)
}

// Admin is the correction service.
type Admin interface {
	ForceBind(ctx context.Context, req admin.ForceBindRequest) (*models.BindResult, error)
	Unbind(ctx context.Context, code id.TokenCode, actorID, reason string) (*models.UnbindResult, error)
	MarkDamaged(ctx context.Context, code id.TokenCode, actorID, reason string) (*models.Token, error)
	Conflicts(ctx context.Context) ([]*models.PendingOperation, error)
	AcknowledgeConflict(ctx context.Context, opID id.OperationID, actorID string) (*models.PendingOperation, error)
	OverrideHistory(ctx context.Context, code id.TokenCode) ([]*models.OverrideRecord, error)
}

type Handler struct {
	terminalID id.TerminalID
	session    Session
	syncer     Syncer
	queue      offline.Queue
	admin      Admin
	signal     connectivity.Controllable
	logger     *slog.Logger
}

func NewHandler(
	terminalID id.TerminalID,
	sess Session,
	syncer Syncer,
	queue offline.Queue,
	adminSvc Admin,
	signal connectivity.Controllable,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		terminalID: terminalID,
		session:    sess,
		syncer:     syncer,
		queue:      queue,
		admin:      adminSvc,
		signal:     signal,
		logger:     logger,
	}
}

// Register mounts operator routes directly and admin routes behind
// adminGuard.
func (h *Handler) Register(r chi.Router, adminGuard func(http.Handler) http.Handler) {
	r.Get("/session", h.handleGetSession)
	r.Post("/session/scan", h.handleScan)
	r.Get("/session/search", h.handleSearch)
	r.Post("/session/select", h.handleSelect)
	r.Post("/session/confirm", h.handleConfirm)
	r.Post("/session/dismiss", h.handleDismiss)
	r.Post("/session/clear", h.handleClear)
	r.Post("/session/snapshot", h.handleRefreshSnapshot)

	r.Get("/sync", h.handleGetSync)
	r.Post("/sync/drain", h.handleDrain)
	r.Put("/connectivity", h.handleSetConnectivity)

	r.Group(func(r chi.Router) {
		r.Use(adminGuard)
		r.Post("/session/override", h.handleOverride)
		r.Get("/admin/conflicts", h.handleListConflicts)
		r.Post("/admin/conflicts/{opID}/ack", h.handleAckConflict)
		r.Post("/admin/bind", h.handleForceBind)
		r.Post("/admin/tokens/{code}/unbind", h.handleUnbind)
		r.Post("/admin/tokens/{code}/damage", h.handleMarkDamaged)
		r.Get("/admin/tokens/{code}/overrides", h.handleOverrideHistory)
	})
}

func (h *Handler) writeState(w http.ResponseWriter, r *http.Request, st session.State, err error) {
	if err != nil {
		h.logger.InfoContext(r.Context(), "session request rejected",
			"path", r.URL.Path,
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(st))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(h.session.State()))
}

type scanRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "code is required"))
		return
	}
	st, err := h.session.Scan(r.Context(), req.Code)
	h.writeState(w, r, st, err)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Search(r.Context(), r.URL.Query().Get("q"))
	h.writeState(w, r, st, err)
}

type selectRequest struct {
	RegistrantID string `json:"registrant_id"`
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	rid, err := id.ParseRegistrantID(req.RegistrantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	st, err := h.session.SelectRegistrant(r.Context(), rid)
	h.writeState(w, r, st, err)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Confirm(r.Context())
	h.writeState(w, r, st, err)
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Dismiss()
	h.writeState(w, r, st, err)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Clear()
	h.writeState(w, r, st, err)
}

func (h *Handler) handleRefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	n, err := h.session.RefreshSnapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"registrants": n})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	st, err := h.session.Override(r.Context(), requestcontext.AdminID(r.Context()), req.Reason)
	h.writeState(w, r, st, err)
}

func (h *Handler) handleGetSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pending, err := h.queue.Pending(ctx)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "read offline queue"))
		return
	}
	conflicts, err := h.queue.Conflicts(ctx)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "read offline queue"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &SyncResponse{
		Connectivity:  h.signal.Status().String(),
		Pending:       toPending(pending),
		OpenConflicts: len(conflicts),
	})
}

func (h *Handler) handleDrain(w http.ResponseWriter, r *http.Request) {
	report, err := h.syncer.Drain(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDrainResponse(report))
}

type connectivityRequest struct {
	// Status is online, degraded, offline, or auto to hand control back to
	// the probe.
	Status string `json:"status"`
}

func (h *Handler) handleSetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if strings.EqualFold(req.Status, "auto") {
		h.signal.Release()
	} else {
		status, err := connectivity.ParseStatus(req.Status)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid status"))
			return
		}
		h.signal.Force(status)
	}
	h.logger.InfoContext(r.Context(), "connectivity set by operator",
		"requested", req.Status,
		"status", h.signal.Status(),
		"request_id", requestcontext.RequestID(r.Context()),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"connectivity": h.signal.Status().String()})
}

func (h *Handler) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := h.admin.Conflicts(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, admin.ToConflictsList(conflicts))
}

func (h *Handler) handleAckConflict(w http.ResponseWriter, r *http.Request) {
	opID, err := id.ParseOperationID(chi.URLParam(r, "opID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	op, err := h.admin.AcknowledgeConflict(r.Context(), opID, requestcontext.AdminID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, admin.ToConflictResponse(op))
}

type forceBindRequest struct {
	TokenCode    string   `json:"token_code"`
	RegistrantID string   `json:"registrant_id"`
	Issues       []string `json:"issues,omitempty"`
	Reason       string   `json:"reason"`
}

func (h *Handler) handleForceBind(w http.ResponseWriter, r *http.Request) {
	var req forceBindRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	code, err := id.ParseTokenCode(req.TokenCode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rid, err := id.ParseRegistrantID(req.RegistrantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.admin.ForceBind(r.Context(), admin.ForceBindRequest{
		TokenCode:    code,
		RegistrantID: rid,
		TerminalID:   h.terminalID,
		Issues:       req.Issues,
		ActorID:      requestcontext.AdminID(r.Context()),
		Reason:       req.Reason,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, &BindingResponse{
		Token:      toToken(result.Token),
		Registrant: toRegistrant(result.Registrant),
		Forced:     result.Forced,
	})
}

func (h *Handler) tokenParam(w http.ResponseWriter, r *http.Request) (id.TokenCode, bool) {
	code, err := id.ParseTokenCode(chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return code, true
}

func (h *Handler) handleUnbind(w http.ResponseWriter, r *http.Request) {
	code, ok := h.tokenParam(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.admin.Unbind(r.Context(), code, requestcontext.AdminID(r.Context()), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BindingResponse{
		Token:      toToken(result.Token),
		Registrant: toRegistrant(result.Registrant),
	})
}

func (h *Handler) handleMarkDamaged(w http.ResponseWriter, r *http.Request) {
	code, ok := h.tokenParam(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	token, err := h.admin.MarkDamaged(r.Context(), code, requestcontext.AdminID(r.Context()), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toToken(token))
}

func (h *Handler) handleOverrideHistory(w http.ResponseWriter, r *http.Request) {
	code, ok := h.tokenParam(w, r)
	if !ok {
		return
	}
	records, err := h.admin.OverrideHistory(r.Context(), code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, admin.ToOverrideResponses(records))
}
