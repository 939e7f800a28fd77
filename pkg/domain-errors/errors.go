// Package domainerrors carries coded errors across service boundaries.
//
// Stores return sentinel facts (pkg/platform/sentinel); services translate them
// into one of the codes below so callers (the session controller, the HTTP
// transport) can branch on the code without string matching.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// Check-in taxonomy.
	CodeTokenUnavailable       Code = "token_unavailable"
	CodeRegistrantAlreadyBound Code = "registrant_already_bound"
	CodeNotFound               Code = "not_found"
	CodeValidationBlocked      Code = "validation_blocked"
	CodeSyncConflict           Code = "sync_conflict"
	CodeUnreachable            Code = "unreachable"

	// Transport and workflow codes.
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"
	CodeInvalidState Code = "invalid_state"
	CodeCancelled    Code = "cancelled"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Error is a coded domain error. Issues is only populated for
// CodeValidationBlocked and CodeSyncConflict, where the operator has to see
// the specific reasons.
type Error struct {
	Code    Code
	Message string
	Issues  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// WithIssues creates a coded error that names the issues blocking the operation.
func WithIssues(code Code, msg string, issues []string) error {
	return &Error{Code: code, Message: msg, Issues: append([]string(nil), issues...)}
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Issues returns the issues attached to the outermost coded error.
func Issues(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return append([]string(nil), de.Issues...)
	}
	return nil
}

// ToHTTPStatus maps a code onto a response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTokenUnavailable, CodeRegistrantAlreadyBound, CodeConflict, CodeSyncConflict, CodeInvalidState:
		return http.StatusConflict
	case CodeValidationBlocked:
		return http.StatusUnprocessableEntity
	case CodeUnreachable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
