package models

import (
	"time"

	id "checkin/pkg/domain"
)

// OperationKind is the type of a deferred operation. Only binds are deferred.
type OperationKind string

const OperationKindBind OperationKind = "bind"

// BindPayload is what the terminal captured when the wristband was handed out.
type BindPayload struct {
	TokenCode    id.TokenCode      `json:"token_code"`
	RegistrantID id.RegistrantID   `json:"registrant_id"`
	CapturedAt   time.Time         `json:"captured_at"`
	ExtraFields  map[string]string `json:"extra_fields,omitempty"`
}

// PendingOperation is one unit of deferred work. Seq is assigned by the queue
// on append and defines replay order.
type PendingOperation struct {
	ID         id.OperationID
	Seq        int64
	Kind       OperationKind
	TerminalID id.TerminalID
	Payload    BindPayload
	CreatedAt  time.Time
	AppliedAt  *time.Time
	Conflict   *SyncConflict
}

// IsPending reports whether the operation still waits for replay.
func (p *PendingOperation) IsPending() bool {
	return p.AppliedAt == nil && p.Conflict == nil
}

// Clone returns a deep copy.
func (p *PendingOperation) Clone() *PendingOperation {
	if p == nil {
		return nil
	}
	c := *p
	c.AppliedAt = cloneTime(p.AppliedAt)
	if p.Payload.ExtraFields != nil {
		c.Payload.ExtraFields = make(map[string]string, len(p.Payload.ExtraFields))
		for k, v := range p.Payload.ExtraFields {
			c.Payload.ExtraFields[k] = v
		}
	}
	if p.Conflict != nil {
		conflict := *p.Conflict
		conflict.AcknowledgedAt = cloneTime(p.Conflict.AcknowledgedAt)
		c.Conflict = &conflict
	}
	return &c
}

// ConflictReason explains why a queued bind could not be applied.
type ConflictReason string

const (
	ConflictTokenBoundElsewhere      ConflictReason = "token_bound_elsewhere"
	ConflictTokenDamaged             ConflictReason = "token_damaged"
	ConflictRegistrantBoundElsewhere ConflictReason = "registrant_bound_elsewhere"
	ConflictTokenMissing             ConflictReason = "token_missing"
	ConflictRegistrantMissing        ConflictReason = "registrant_missing"
)

// SyncConflict is surfaced to the operator and stays visible until
// acknowledged.
type SyncConflict struct {
	Reason               ConflictReason
	Message              string
	ObservedRegistrantID id.RegistrantID
	ObservedTokenCode    id.TokenCode
	DetectedAt           time.Time
	AcknowledgedAt       *time.Time
	AcknowledgedBy       string
}

// IsOpen reports whether the conflict still needs an acknowledgement.
func (c *SyncConflict) IsOpen() bool {
	return c != nil && c.AcknowledgedAt == nil
}
