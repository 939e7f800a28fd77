package models

import (
	"fmt"
	"time"

	id "checkin/pkg/domain"
)

// TokenStatus is the binding state of a wristband.
type TokenStatus string

const (
	TokenStatusAvailable TokenStatus = "available"
	TokenStatusBound     TokenStatus = "bound"
	TokenStatusDamaged   TokenStatus = "damaged"
)

// IsValid reports whether s is a known status.
func (s TokenStatus) IsValid() bool {
	switch s {
	case TokenStatusAvailable, TokenStatusBound, TokenStatusDamaged:
		return true
	}
	return false
}

// Token is one physical wristband. BoundRegistrantID is set if and only if
// Status is bound. Version increases on every transition so backends without
// native compare-and-set can detect lost updates.
type Token struct {
	Code              id.TokenCode
	EventID           string
	Status            TokenStatus
	BoundRegistrantID id.RegistrantID
	BoundAt           *time.Time
	UnboundAt         *time.Time
	Version           int64
	UpdatedAt         time.Time
}

// IsAvailable reports whether the token can be bound.
func (t *Token) IsAvailable() bool {
	return t.Status == TokenStatusAvailable
}

// IsBoundTo reports whether the token is bound to registrantID.
func (t *Token) IsBoundTo(registrantID id.RegistrantID) bool {
	return t.Status == TokenStatusBound && t.BoundRegistrantID == registrantID
}

// CheckInvariant verifies the status/binding coupling.
func (t *Token) CheckInvariant() error {
	if !t.Status.IsValid() {
		return fmt.Errorf("token %s: unknown status %q", t.Code, t.Status)
	}
	bound := t.Status == TokenStatusBound
	if bound != (t.BoundRegistrantID != "") {
		return fmt.Errorf("token %s: status %s with bound registrant %q", t.Code, t.Status, t.BoundRegistrantID)
	}
	return nil
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	c.BoundAt = cloneTime(t.BoundAt)
	c.UnboundAt = cloneTime(t.UnboundAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
