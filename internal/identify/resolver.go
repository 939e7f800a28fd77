// Package identify turns a scanned code or a typed fragment into check-in
// candidates. Resolution never writes.
package identify

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

const (
	DefaultCodePattern    = `^[A-Z]{1,4}-[0-9]{4,}$`
	DefaultMinFragmentLen = 3
	DefaultMaxCandidates  = 5
)

// TokenLookup is the read side of the token registry.
type TokenLookup interface {
	Token(ctx context.Context, code id.TokenCode) (*models.Token, error)
	Registrant(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error)
}

// ResolutionKind classifies a scanned code.
type ResolutionKind string

const (
	ResolutionNotFound     ResolutionKind = "not_found"
	ResolutionAlreadyBound ResolutionKind = "already_bound"
	ResolutionDamaged      ResolutionKind = "damaged"
	ResolutionReadyToBind  ResolutionKind = "ready_to_bind"
)

// TokenResolution is the outcome of resolving a scanned code. Token is set for
// every kind except not found; RegistrantName only for already bound.
type TokenResolution struct {
	Kind           ResolutionKind
	Code           id.TokenCode
	Token          *models.Token
	RegistrantName string
}

// Resolver resolves codes against the registry and fragments against a
// registrant snapshot.
type Resolver struct {
	tokens        TokenLookup
	logger        *slog.Logger
	pattern       *regexp.Regexp
	minFragment   int
	maxCandidates int
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithCodePattern replaces the structural pattern a decoded code must match.
func WithCodePattern(pattern *regexp.Regexp) Option {
	return func(r *Resolver) {
		if pattern != nil {
			r.pattern = pattern
		}
	}
}

func WithMinFragmentLength(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.minFragment = n
		}
	}
}

func WithMaxCandidates(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxCandidates = n
		}
	}
}

func New(tokens TokenLookup, opts ...Option) *Resolver {
	r := &Resolver{
		tokens:        tokens,
		logger:        slog.Default(),
		pattern:       regexp.MustCompile(DefaultCodePattern),
		minFragment:   DefaultMinFragmentLen,
		maxCandidates: DefaultMaxCandidates,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveByTokenCode looks a decoded code up. Codes that do not match the
// structural pattern resolve to not found without a lookup. Only an
// unreachable registry is returned as an error.
func (r *Resolver) ResolveByTokenCode(ctx context.Context, raw string) (*TokenResolution, error) {
	code, ok := r.ParseCode(raw)
	if !ok {
		r.logger.DebugContext(ctx, "malformed token code", "raw", raw)
		return &TokenResolution{Kind: ResolutionNotFound, Code: code}, nil
	}

	token, err := r.tokens.Token(ctx, code)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return &TokenResolution{Kind: ResolutionNotFound, Code: code}, nil
		}
		return nil, err
	}

	switch token.Status {
	case models.TokenStatusAvailable:
		return &TokenResolution{Kind: ResolutionReadyToBind, Code: code, Token: token}, nil
	case models.TokenStatusDamaged:
		return &TokenResolution{Kind: ResolutionDamaged, Code: code, Token: token}, nil
	case models.TokenStatusBound:
		name := token.BoundRegistrantID.String()
		owner, err := r.tokens.Registrant(ctx, token.BoundRegistrantID)
		switch {
		case err == nil:
			name = owner.DisplayName
		case !dErrors.HasCode(err, dErrors.CodeNotFound):
			return nil, err
		}
		return &TokenResolution{Kind: ResolutionAlreadyBound, Code: code, Token: token, RegistrantName: name}, nil
	default:
		return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("token %s has unknown status %q", code, token.Status))
	}
}

// ParseCode normalises a decoded code and reports whether it matches the
// event's code pattern. It never touches the registry, so an offline
// terminal can still reject garbage scans.
func (r *Resolver) ParseCode(raw string) (id.TokenCode, bool) {
	code, err := id.ParseTokenCode(raw)
	if err != nil {
		return code, false
	}
	return code, r.pattern.MatchString(code.String())
}

// ResolveByIdentityFragment ranks snapshot registrants against a typed
// fragment. Fragments shorter than the minimum length yield no candidates.
func (r *Resolver) ResolveByIdentityFragment(fragment string, snapshot []*models.Registrant) []Candidate {
	return Search(fragment, snapshot, r.minFragment, r.maxCandidates)
}
