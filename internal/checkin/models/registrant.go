package models

import (
	"fmt"
	"time"

	id "checkin/pkg/domain"
)

// RegistrantKind selects the eligibility capability of a registrant.
type RegistrantKind string

const (
	RegistrantKindParticipant RegistrantKind = "participant"
	RegistrantKindStaff       RegistrantKind = "staff"
)

// MedicalClearance is the participant's medical check outcome.
type MedicalClearance string

const (
	MedicalClearancePending  MedicalClearance = "pending"
	MedicalClearanceCleared  MedicalClearance = "cleared"
	MedicalClearanceExempt   MedicalClearance = "exempt"
	MedicalClearanceRejected MedicalClearance = "rejected"
)

// Registrant is a participant or a staff member who can be checked in.
// ContractSigned, MedicalClearance and BirthDate only matter for participants.
type Registrant struct {
	ID                  id.RegistrantID
	Kind                RegistrantKind
	DisplayName         string
	NationalIDFragment  string
	CheckedIn           bool
	CheckedInAt         *time.Time
	CheckedInByTerminal id.TerminalID
	BoundTokenCode      id.TokenCode

	ContractSigned   bool
	MedicalClearance MedicalClearance
	BirthDate        *time.Time

	Version   int64
	UpdatedAt time.Time
}

// RequiresEligibilityCheck reports whether eligibility rules apply.
func (r *Registrant) RequiresEligibilityCheck() bool {
	return r.Kind != RegistrantKindStaff
}

// IsStaffExempt reports whether the registrant bypasses eligibility.
func (r *Registrant) IsStaffExempt() bool {
	return r.Kind == RegistrantKindStaff
}

// HasToken reports whether a wristband is currently bound to the registrant.
func (r *Registrant) HasToken() bool {
	return r.BoundTokenCode != ""
}

// CheckInvariant verifies that a bound token implies a check-in.
func (r *Registrant) CheckInvariant() error {
	if r.BoundTokenCode != "" && !r.CheckedIn {
		return fmt.Errorf("registrant %s: bound token %s without check-in", r.ID, r.BoundTokenCode)
	}
	return nil
}

// Clone returns a deep copy.
func (r *Registrant) Clone() *Registrant {
	if r == nil {
		return nil
	}
	c := *r
	c.CheckedInAt = cloneTime(r.CheckedInAt)
	c.BirthDate = cloneTime(r.BirthDate)
	return &c
}
