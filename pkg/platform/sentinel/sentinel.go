// Package sentinel holds the storage-level facts stores report. Services
// translate them into coded domain errors; handlers never see them raw.
package sentinel

import "errors"

var (
	// ErrNotFound: no such token, registrant or queued operation.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a conditional write lost to the current state, such as a
	// bind on a token that is no longer available.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed: a one-shot transition already happened, such as a
	// conflict that was acknowledged before.
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: the backend answered but could not serve the write.
	ErrUnavailable = errors.New("unavailable")
)
