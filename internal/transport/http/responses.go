package httptransport

import (
	"time"

	"checkin/internal/checkin/models"
	"checkin/internal/offline"
	"checkin/internal/session"
)

type registrantResponse struct {
	ID               string     `json:"id"`
	DisplayName      string     `json:"display_name"`
	Kind             string     `json:"kind"`
	CheckedIn        bool       `json:"checked_in"`
	CheckedInAt      *time.Time `json:"checked_in_at,omitempty"`
	BoundTokenCode   string     `json:"bound_token_code,omitempty"`
	ContractSigned   bool       `json:"contract_signed"`
	MedicalClearance string     `json:"medical_clearance,omitempty"`
}

type candidateResponse struct {
	Registrant *registrantResponse `json:"registrant"`
	Match      string              `json:"match"`
}

type noticeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateResponse is the session state as rendered for the operator screen.
// Fields irrelevant to the state are omitted.
type StateResponse struct {
	State      string              `json:"state"`
	TokenCode  string              `json:"token_code,omitempty"`
	Registrant *registrantResponse `json:"registrant,omitempty"`
	Query      string              `json:"query,omitempty"`
	Candidates []candidateResponse `json:"candidates,omitempty"`
	Notice     *noticeResponse     `json:"notice,omitempty"`
	Binding    bool                `json:"binding,omitempty"`
	Issues     []string            `json:"issues,omitempty"`
	Overriding bool                `json:"overriding,omitempty"`
	OpID       string              `json:"op_id,omitempty"`
	Queued     bool                `json:"queued,omitempty"`
	Forced     bool                `json:"forced,omitempty"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Message    string              `json:"message,omitempty"`
}

func toRegistrant(r *models.Registrant) *registrantResponse {
	if r == nil {
		return nil
	}
	return &registrantResponse{
		ID:               r.ID.String(),
		DisplayName:      r.DisplayName,
		Kind:             string(r.Kind),
		CheckedIn:        r.CheckedIn,
		CheckedInAt:      r.CheckedInAt,
		BoundTokenCode:   r.BoundTokenCode.String(),
		ContractSigned:   r.ContractSigned,
		MedicalClearance: string(r.MedicalClearance),
	}
}

func toStateResponse(st session.State) *StateResponse {
	resp := &StateResponse{State: string(st.Kind())}
	switch s := st.(type) {
	case session.Identifying:
		resp.TokenCode = s.TokenCode.String()
		resp.Registrant = toRegistrant(s.Registrant)
		resp.Query = s.Query
		for _, c := range s.Candidates {
			resp.Candidates = append(resp.Candidates, candidateResponse{
				Registrant: toRegistrant(c.Registrant),
				Match:      c.Match.String(),
			})
		}
		if s.Notice != nil {
			resp.Notice = &noticeResponse{Code: string(s.Notice.Code), Message: s.Notice.Message}
		}
	case session.Validating:
		resp.TokenCode = s.TokenCode.String()
		resp.Registrant = toRegistrant(s.Registrant)
	case session.Confirming:
		resp.TokenCode = s.TokenCode.String()
		resp.Registrant = toRegistrant(s.Registrant)
		resp.Binding = s.Binding
	case session.Blocked:
		resp.TokenCode = s.TokenCode.String()
		resp.Registrant = toRegistrant(s.Registrant)
		resp.Issues = s.Issues
		resp.Overriding = s.Overriding
	case session.Success:
		resp.TokenCode = s.TokenCode.String()
		resp.Registrant = toRegistrant(s.Registrant)
		if !s.OpID.IsNil() {
			resp.OpID = s.OpID.String()
		}
		resp.Queued = s.Queued
		resp.Forced = s.Forced
		resp.Issues = s.Issues
	case session.Errored:
		resp.TokenCode = s.TokenCode.String()
		resp.ErrorCode = string(s.Code)
		resp.Message = s.Message
	}
	return resp
}

type pendingResponse struct {
	OpID         string    `json:"op_id"`
	Seq          int64     `json:"seq"`
	TokenCode    string    `json:"token_code"`
	RegistrantID string    `json:"registrant_id"`
	CapturedAt   time.Time `json:"captured_at"`
}

// SyncResponse summarises the local queue.
type SyncResponse struct {
	Connectivity  string            `json:"connectivity"`
	Pending       []pendingResponse `json:"pending"`
	OpenConflicts int               `json:"open_conflicts"`
}

type itemResultResponse struct {
	OpID         string `json:"op_id"`
	TokenCode    string `json:"token_code"`
	RegistrantID string `json:"registrant_id"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
}

// DrainResponse is one reconciliation report.
type DrainResponse struct {
	Results    []itemResultResponse `json:"results"`
	Remaining  int                  `json:"remaining"`
	StopReason string               `json:"stop_reason,omitempty"`
}

func toPending(ops []*models.PendingOperation) []pendingResponse {
	out := make([]pendingResponse, 0, len(ops))
	for _, op := range ops {
		out = append(out, pendingResponse{
			OpID:         op.ID.String(),
			Seq:          op.Seq,
			TokenCode:    op.Payload.TokenCode.String(),
			RegistrantID: op.Payload.RegistrantID.String(),
			CapturedAt:   op.Payload.CapturedAt,
		})
	}
	return out
}

func toDrainResponse(report offline.Report) *DrainResponse {
	resp := &DrainResponse{
		Results:    make([]itemResultResponse, 0, len(report.Results)),
		Remaining:  report.Remaining,
		StopReason: report.StopReason,
	}
	for _, r := range report.Results {
		item := itemResultResponse{
			OpID:         r.OpID.String(),
			TokenCode:    r.TokenCode.String(),
			RegistrantID: r.RegistrantID.String(),
			Outcome:      string(r.Outcome),
		}
		if r.Conflict != nil {
			item.Reason = string(r.Conflict.Reason)
			item.Message = r.Conflict.Message
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

type tokenResponse struct {
	Code              string     `json:"code"`
	Status            string     `json:"status"`
	BoundRegistrantID string     `json:"bound_registrant_id,omitempty"`
	BoundAt           *time.Time `json:"bound_at,omitempty"`
	Version           int64      `json:"version"`
}

func toToken(t *models.Token) *tokenResponse {
	if t == nil {
		return nil
	}
	return &tokenResponse{
		Code:              t.Code.String(),
		Status:            string(t.Status),
		BoundRegistrantID: t.BoundRegistrantID.String(),
		BoundAt:           t.BoundAt,
		Version:           t.Version,
	}
}

// BindingResponse is returned by admin binds and unbinds.
type BindingResponse struct {
	Token      *tokenResponse      `json:"token"`
	Registrant *registrantResponse `json:"registrant,omitempty"`
	Forced     bool                `json:"forced,omitempty"`
}
