package models

import (
	"time"

	"github.com/google/uuid"

	id "checkin/pkg/domain"
)

// Binding is the command applied atomically by a store: token must still be
// available and the registrant must still hold no token.
type Binding struct {
	TokenCode    id.TokenCode
	RegistrantID id.RegistrantID
	TerminalID   id.TerminalID
	At           time.Time

	// OpID is set when the bind replays a queued operation; stores record it
	// in the same atomic step so a later replay can observe it.
	OpID id.OperationID

	// Forced marks an administrative override; OverrideIssues, ActorID and
	// Reason are persisted with the binding.
	Forced         bool
	OverrideIssues []string
	ActorID        string
	Reason         string
}

// BindResult is the post-update state of both records.
type BindResult struct {
	Token      *Token
	Registrant *Registrant
	OpID       id.OperationID
	Forced     bool
}

// UnbindResult is the post-update state after a correction. HolderID is the
// registrant the token was bound to; Registrant is nil when that record did
// not point back at the token.
type UnbindResult struct {
	Token      *Token
	Registrant *Registrant
	HolderID   id.RegistrantID
}

// AppliedOperation records that a queued operation reached the shared store.
type AppliedOperation struct {
	OpID         id.OperationID
	TokenCode    id.TokenCode
	RegistrantID id.RegistrantID
	TerminalID   id.TerminalID
	AppliedAt    time.Time
}

// OverrideRecord keeps the eligibility issues that were overridden by an
// administrator at bind time.
type OverrideRecord struct {
	ID           uuid.UUID
	TokenCode    id.TokenCode
	RegistrantID id.RegistrantID
	TerminalID   id.TerminalID
	ActorID      string
	Issues       []string
	Reason       string
	CreatedAt    time.Time
}
