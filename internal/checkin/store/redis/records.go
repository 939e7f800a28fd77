package redis

import (
	"time"

	"github.com/google/uuid"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
)

// Records are stored as JSON strings so the Lua scripts can decode and
// re-encode them with cjson. Optional fields are omitted rather than null.

type tokenRecord struct {
	Code              string     `json:"code"`
	EventID           string     `json:"event_id,omitempty"`
	Status            string     `json:"status"`
	BoundRegistrantID string     `json:"bound_registrant_id,omitempty"`
	BoundAt           *time.Time `json:"bound_at,omitempty"`
	UnboundAt         *time.Time `json:"unbound_at,omitempty"`
	Version           int64      `json:"version"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func fromToken(t *models.Token) tokenRecord {
	return tokenRecord{
		Code:              string(t.Code),
		EventID:           t.EventID,
		Status:            string(t.Status),
		BoundRegistrantID: string(t.BoundRegistrantID),
		BoundAt:           t.BoundAt,
		UnboundAt:         t.UnboundAt,
		Version:           t.Version,
		UpdatedAt:         t.UpdatedAt,
	}
}

func (r tokenRecord) toModel() *models.Token {
	return &models.Token{
		Code:              id.TokenCode(r.Code),
		EventID:           r.EventID,
		Status:            models.TokenStatus(r.Status),
		BoundRegistrantID: id.RegistrantID(r.BoundRegistrantID),
		BoundAt:           r.BoundAt,
		UnboundAt:         r.UnboundAt,
		Version:           r.Version,
		UpdatedAt:         r.UpdatedAt,
	}
}

type registrantRecord struct {
	ID                  string     `json:"id"`
	Kind                string     `json:"kind"`
	DisplayName         string     `json:"display_name"`
	NationalIDFragment  string     `json:"national_id_fragment,omitempty"`
	CheckedIn           bool       `json:"checked_in"`
	CheckedInAt         *time.Time `json:"checked_in_at,omitempty"`
	CheckedInByTerminal string     `json:"checked_in_by_terminal,omitempty"`
	BoundTokenCode      string     `json:"bound_token_code,omitempty"`
	ContractSigned      bool       `json:"contract_signed"`
	MedicalClearance    string     `json:"medical_clearance,omitempty"`
	BirthDate           *time.Time `json:"birth_date,omitempty"`
	Version             int64      `json:"version"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func fromRegistrant(r *models.Registrant) registrantRecord {
	return registrantRecord{
		ID:                  string(r.ID),
		Kind:                string(r.Kind),
		DisplayName:         r.DisplayName,
		NationalIDFragment:  r.NationalIDFragment,
		CheckedIn:           r.CheckedIn,
		CheckedInAt:         r.CheckedInAt,
		CheckedInByTerminal: string(r.CheckedInByTerminal),
		BoundTokenCode:      string(r.BoundTokenCode),
		ContractSigned:      r.ContractSigned,
		MedicalClearance:    string(r.MedicalClearance),
		BirthDate:           r.BirthDate,
		Version:             r.Version,
		UpdatedAt:           r.UpdatedAt,
	}
}

func (r registrantRecord) toModel() *models.Registrant {
	return &models.Registrant{
		ID:                  id.RegistrantID(r.ID),
		Kind:                models.RegistrantKind(r.Kind),
		DisplayName:         r.DisplayName,
		NationalIDFragment:  r.NationalIDFragment,
		CheckedIn:           r.CheckedIn,
		CheckedInAt:         r.CheckedInAt,
		CheckedInByTerminal: id.TerminalID(r.CheckedInByTerminal),
		BoundTokenCode:      id.TokenCode(r.BoundTokenCode),
		ContractSigned:      r.ContractSigned,
		MedicalClearance:    models.MedicalClearance(r.MedicalClearance),
		BirthDate:           r.BirthDate,
		Version:             r.Version,
		UpdatedAt:           r.UpdatedAt,
	}
}

type appliedRecord struct {
	OpID         uuid.UUID `json:"op_id"`
	TokenCode    string    `json:"token_code"`
	RegistrantID string    `json:"registrant_id"`
	TerminalID   string    `json:"terminal_id,omitempty"`
	AppliedAt    time.Time `json:"applied_at"`
}

func (r appliedRecord) toModel() *models.AppliedOperation {
	return &models.AppliedOperation{
		OpID:         id.OperationID(r.OpID),
		TokenCode:    id.TokenCode(r.TokenCode),
		RegistrantID: id.RegistrantID(r.RegistrantID),
		TerminalID:   id.TerminalID(r.TerminalID),
		AppliedAt:    r.AppliedAt,
	}
}

type overrideRecord struct {
	ID           uuid.UUID `json:"id"`
	TokenCode    string    `json:"token_code"`
	RegistrantID string    `json:"registrant_id"`
	TerminalID   string    `json:"terminal_id,omitempty"`
	ActorID      string    `json:"actor_id"`
	Issues       []string  `json:"issues"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r overrideRecord) toModel() *models.OverrideRecord {
	return &models.OverrideRecord{
		ID:           r.ID,
		TokenCode:    id.TokenCode(r.TokenCode),
		RegistrantID: id.RegistrantID(r.RegistrantID),
		TerminalID:   id.TerminalID(r.TerminalID),
		ActorID:      r.ActorID,
		Issues:       r.Issues,
		Reason:       r.Reason,
		CreatedAt:    r.CreatedAt,
	}
}
