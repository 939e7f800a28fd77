// Package domain holds the typed identifiers shared by every check-in package.
// Parsing happens once at the trust boundary; after that the compiler keeps a
// token code from being passed where a registrant id is expected.
package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "checkin/pkg/domain-errors"
)

const maxIDLength = 128

// TokenCode is the printed/encoded code of one physical wristband.
type TokenCode string

// RegistrantID identifies a participant or staff member in the shared store.
type RegistrantID string

// TerminalID identifies the check-in device performing an operation.
type TerminalID string

// OperationID is the idempotency key of a deferred operation.
type OperationID uuid.UUID

func (c TokenCode) String() string    { return string(c) }
func (r RegistrantID) String() string { return string(r) }
func (t TerminalID) String() string   { return string(t) }

func (o OperationID) String() string { return uuid.UUID(o).String() }

// IsNil reports whether the operation id is the zero uuid.
func (o OperationID) IsNil() bool { return uuid.UUID(o) == uuid.Nil }

// NewOperationID generates a fresh idempotency key.
func NewOperationID() OperationID { return OperationID(uuid.New()) }

// ParseTokenCode trims and upper-cases a scanned or typed code. Structural
// validation against the event's code pattern belongs to the resolver.
func ParseTokenCode(s string) (TokenCode, error) {
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token code must be valid UTF-8")
	}
	v := strings.ToUpper(strings.TrimSpace(s))
	if err := checkPrintable(v, "token code"); err != nil {
		return "", err
	}
	return TokenCode(v), nil
}

// ParseRegistrantID validates a registrant id from an untrusted source.
func ParseRegistrantID(s string) (RegistrantID, error) {
	v := strings.TrimSpace(s)
	if err := checkPrintable(v, "registrant id"); err != nil {
		return "", err
	}
	return RegistrantID(v), nil
}

// ParseTerminalID validates a terminal id.
func ParseTerminalID(s string) (TerminalID, error) {
	v := strings.TrimSpace(s)
	if err := checkPrintable(v, "terminal id"); err != nil {
		return "", err
	}
	return TerminalID(v), nil
}

// ParseOperationID parses a non-nil uuid.
func ParseOperationID(s string) (OperationID, error) {
	if s == "" {
		return OperationID{}, dErrors.New(dErrors.CodeInvalidInput, "operation id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return OperationID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid operation id")
	}
	if u == uuid.Nil {
		return OperationID{}, dErrors.New(dErrors.CodeInvalidInput, "operation id must not be nil")
	}
	return OperationID(u), nil
}

func checkPrintable(v, what string) error {
	if v == "" {
		return dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	if len(v) > maxIDLength {
		return dErrors.New(dErrors.CodeInvalidInput, what+" is too long")
	}
	if !utf8.ValidString(v) {
		return dErrors.New(dErrors.CodeInvalidInput, what+" must be valid UTF-8")
	}
	for _, r := range v {
		if unicode.IsControl(r) || r == '\u200b' || r == '\ufeff' {
			return dErrors.New(dErrors.CodeInvalidInput, what+" contains invalid characters")
		}
	}
	return nil
}
