// Package eligibility decides whether a registrant may receive a wristband.
package eligibility

import (
	"time"

	"checkin/internal/checkin/models"
)

// DefaultMedicalCheckAge is the age from which medical clearance applies.
const DefaultMedicalCheckAge = 40

// Blocking issues shown to the operator.
const (
	IssueContractNotSigned       = "contract not signed"
	IssueMedicalClearancePending = "medical clearance pending"
)

// Result is the outcome of an eligibility check.
type Result struct {
	Eligible bool
	Issues   []string
}

// Evaluate applies the eligibility rules to a registrant snapshot as of now.
// Staff are always eligible. A participant whose age on the evaluation date
// equals threshold needs clearance; an unknown birth date also needs it.
// Any clearance other than cleared or exempt, rejected included, is reported
// as pending.
func Evaluate(r *models.Registrant, now time.Time, threshold int) Result {
	if r == nil || r.IsStaffExempt() {
		return Result{Eligible: true}
	}

	issues := []string{}
	if !r.ContractSigned {
		issues = append(issues, IssueContractNotSigned)
	}
	if !clearedOrExempt(r.MedicalClearance) && clearanceApplies(r.BirthDate, now, threshold) {
		issues = append(issues, IssueMedicalClearancePending)
	}
	return Result{Eligible: len(issues) == 0, Issues: issues}
}

func clearedOrExempt(c models.MedicalClearance) bool {
	return c == models.MedicalClearanceCleared || c == models.MedicalClearanceExempt
}

func clearanceApplies(birthDate *time.Time, now time.Time, threshold int) bool {
	if birthDate == nil {
		return true
	}
	return Age(*birthDate, now) >= threshold
}

// Age returns the number of full calendar years between birth and now. A
// person born on 29 February turns a year older on 1 March in common years.
func Age(birth, now time.Time) int {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.In(birth.Location()).Date()
	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Validator evaluates registrants against an injectable clock.
type Validator struct {
	threshold int
	clock     func() time.Time
}

type Option func(*Validator)

// WithThreshold sets the medical-check age.
func WithThreshold(years int) Option {
	return func(v *Validator) {
		if years > 0 {
			v.threshold = years
		}
	}
}

// WithClock fixes "now" for deterministic evaluation.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) { v.clock = clock }
}

func New(opts ...Option) *Validator {
	v := &Validator{threshold: DefaultMedicalCheckAge, clock: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate evaluates r as of the validator clock.
func (v *Validator) Validate(r *models.Registrant) Result {
	return Evaluate(r, v.clock(), v.threshold)
}
