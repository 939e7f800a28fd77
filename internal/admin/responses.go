package admin

import (
	"time"

	"checkin/internal/checkin/models"
)

// ConflictResponse is the HTTP DTO for one sync conflict.
type ConflictResponse struct {
	OpID                 string     `json:"op_id"`
	TokenCode            string     `json:"token_code"`
	RegistrantID         string     `json:"registrant_id"`
	TerminalID           string     `json:"terminal_id"`
	CapturedAt           time.Time  `json:"captured_at"`
	Reason               string     `json:"reason"`
	Message              string     `json:"message"`
	ObservedRegistrantID string     `json:"observed_registrant_id,omitempty"`
	ObservedTokenCode    string     `json:"observed_token_code,omitempty"`
	DetectedAt           time.Time  `json:"detected_at"`
	AcknowledgedAt       *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy       string     `json:"acknowledged_by,omitempty"`
}

// ConflictsListResponse wraps the open conflicts.
type ConflictsListResponse struct {
	Conflicts []*ConflictResponse `json:"conflicts"`
	Total     int                 `json:"total"`
}

// OverrideResponse is the HTTP DTO for one forced bind.
type OverrideResponse struct {
	ID           string    `json:"id"`
	TokenCode    string    `json:"token_code"`
	RegistrantID string    `json:"registrant_id"`
	TerminalID   string    `json:"terminal_id,omitempty"`
	ActorID      string    `json:"actor_id"`
	Issues       []string  `json:"issues"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToConflictResponse(op *models.PendingOperation) *ConflictResponse {
	resp := &ConflictResponse{
		OpID:         op.ID.String(),
		TokenCode:    op.Payload.TokenCode.String(),
		RegistrantID: op.Payload.RegistrantID.String(),
		TerminalID:   op.TerminalID.String(),
		CapturedAt:   op.Payload.CapturedAt,
	}
	if c := op.Conflict; c != nil {
		resp.Reason = string(c.Reason)
		resp.Message = c.Message
		resp.ObservedRegistrantID = c.ObservedRegistrantID.String()
		resp.ObservedTokenCode = c.ObservedTokenCode.String()
		resp.DetectedAt = c.DetectedAt
		resp.AcknowledgedAt = c.AcknowledgedAt
		resp.AcknowledgedBy = c.AcknowledgedBy
	}
	return resp
}

func ToConflictsList(ops []*models.PendingOperation) *ConflictsListResponse {
	out := &ConflictsListResponse{Conflicts: make([]*ConflictResponse, 0, len(ops)), Total: len(ops)}
	for _, op := range ops {
		out.Conflicts = append(out.Conflicts, ToConflictResponse(op))
	}
	return out
}

func ToOverrideResponses(records []*models.OverrideRecord) []*OverrideResponse {
	out := make([]*OverrideResponse, 0, len(records))
	for _, r := range records {
		issues := r.Issues
		if issues == nil {
			issues = []string{}
		}
		out = append(out, &OverrideResponse{
			ID:           r.ID.String(),
			TokenCode:    r.TokenCode.String(),
			RegistrantID: r.RegistrantID.String(),
			TerminalID:   r.TerminalID.String(),
			ActorID:      r.ActorID,
			Issues:       issues,
			Reason:       r.Reason,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}
