package session

import (
	"checkin/internal/checkin/models"
	"checkin/internal/identify"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// Kind names a controller state.
type Kind string

const (
	KindIdle        Kind = "idle"
	KindIdentifying Kind = "identifying"
	KindValidating  Kind = "validating"
	KindConfirming  Kind = "confirming"
	KindBlocked     Kind = "blocked"
	KindSuccess     Kind = "success"
	KindErrored     Kind = "error"
)

// State is one of Idle, Identifying, Validating, Confirming, Blocked,
// Success or Errored.
type State interface {
	Kind() Kind
	isState()
}

// Notice tells the operator why the last step was turned back. The attempt
// continues in Identifying.
type Notice struct {
	Code    dErrors.Code
	Message string
}

type Idle struct{}

// Identifying collects a ready-to-bind token and a registrant, in either
// order.
type Identifying struct {
	TokenCode  id.TokenCode
	Registrant *models.Registrant
	Query      string
	Candidates []identify.Candidate
	Notice     *Notice
}

type Validating struct {
	TokenCode  id.TokenCode
	Registrant *models.Registrant
}

// Confirming waits for the operator. Binding is true while the bind call is
// in flight.
type Confirming struct {
	TokenCode  id.TokenCode
	Registrant *models.Registrant
	Binding    bool
}

// Blocked lists the eligibility issues. Only the administrative override
// leaves it forward. Overriding is true while the forced bind is in flight.
type Blocked struct {
	TokenCode  id.TokenCode
	Registrant *models.Registrant
	Issues     []string
	Overriding bool
}

// Success is final for the attempt. Queued means the bind waits for
// reconciliation and the outcome is provisional.
type Success struct {
	TokenCode  id.TokenCode
	Registrant *models.Registrant
	OpID       id.OperationID
	Queued     bool
	Forced     bool
	Issues     []string
}

type Errored struct {
	Code      dErrors.Code
	Message   string
	TokenCode id.TokenCode
}

func (Idle) Kind() Kind        { return KindIdle }
func (Identifying) Kind() Kind { return KindIdentifying }
func (Validating) Kind() Kind  { return KindValidating }
func (Confirming) Kind() Kind  { return KindConfirming }
func (Blocked) Kind() Kind     { return KindBlocked }
func (Success) Kind() Kind     { return KindSuccess }
func (Errored) Kind() Kind     { return KindErrored }

func (Idle) isState()        {}
func (Identifying) isState() {}
func (Validating) isState()  {}
func (Confirming) isState()  {}
func (Blocked) isState()     {}
func (Success) isState()     {}
func (Errored) isState()     {}

// scanning reports whether the scanner should deliver codes in this state.
func scanning(k Kind) bool {
	return k == KindIdle || k == KindIdentifying
}

// displaysResult reports whether the state is a result awaiting dismissal.
func displaysResult(k Kind) bool {
	return k == KindSuccess || k == KindBlocked || k == KindErrored
}
