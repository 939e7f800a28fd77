package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// InMemory is a single-process shared store. One mutex covers tokens and
// registrants so a bind is atomic across both records, which is what the
// Postgres transaction and the Redis script give the other backends.
type InMemory struct {
	mu          sync.RWMutex
	tokens      map[id.TokenCode]*models.Token
	registrants map[id.RegistrantID]*models.Registrant
	applied     map[id.OperationID]*models.AppliedOperation
	overrides   map[id.TokenCode][]*models.OverrideRecord
}

func New() *InMemory {
	return &InMemory{
		tokens:      make(map[id.TokenCode]*models.Token),
		registrants: make(map[id.RegistrantID]*models.Registrant),
		applied:     make(map[id.OperationID]*models.AppliedOperation),
		overrides:   make(map[id.TokenCode][]*models.OverrideRecord),
	}
}

// SaveToken provisions or replaces a token.
func (s *InMemory) SaveToken(_ context.Context, token *models.Token) error {
	if err := token.CheckInvariant(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Code] = token.Clone()
	return nil
}

// SaveRegistrant provisions or replaces a registrant.
func (s *InMemory) SaveRegistrant(_ context.Context, registrant *models.Registrant) error {
	if err := registrant.CheckInvariant(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrants[registrant.ID] = registrant.Clone()
	return nil
}

func (s *InMemory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *InMemory) FindToken(_ context.Context, code id.TokenCode) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[code]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", code, sentinel.ErrNotFound)
	}
	return token.Clone(), nil
}

func (s *InMemory) FindRegistrant(_ context.Context, registrantID id.RegistrantID) (*models.Registrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	registrant, ok := s.registrants[registrantID]
	if !ok {
		return nil, fmt.Errorf("registrant %s: %w", registrantID, sentinel.ErrNotFound)
	}
	return registrant.Clone(), nil
}

func (s *InMemory) ListRegistrants(_ context.Context) ([]*models.Registrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*models.Registrant, 0, len(s.registrants))
	for _, r := range s.registrants {
		list = append(list, r.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *InMemory) BindIfAvailable(ctx context.Context, b models.Binding) (*models.BindResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[b.TokenCode]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", b.TokenCode, sentinel.ErrNotFound)
	}
	registrant, ok := s.registrants[b.RegistrantID]
	if !ok {
		return nil, fmt.Errorf("registrant %s: %w", b.RegistrantID, sentinel.ErrNotFound)
	}
	if !token.IsAvailable() {
		return nil, fmt.Errorf("token %s is %s: %w", b.TokenCode, token.Status, models.ErrTokenNotAvailable)
	}
	if registrant.HasToken() {
		return nil, fmt.Errorf("registrant %s holds %s: %w", b.RegistrantID, registrant.BoundTokenCode, models.ErrRegistrantHasToken)
	}

	at := b.At
	token.Status = models.TokenStatusBound
	token.BoundRegistrantID = b.RegistrantID
	token.BoundAt = &at
	token.Version++
	token.UpdatedAt = at

	registrant.CheckedIn = true
	registrant.CheckedInAt = &at
	registrant.CheckedInByTerminal = b.TerminalID
	registrant.BoundTokenCode = b.TokenCode
	registrant.Version++
	registrant.UpdatedAt = at

	if !b.OpID.IsNil() {
		s.applied[b.OpID] = &models.AppliedOperation{
			OpID:         b.OpID,
			TokenCode:    b.TokenCode,
			RegistrantID: b.RegistrantID,
			TerminalID:   b.TerminalID,
			AppliedAt:    at,
		}
	}
	if b.Forced {
		s.overrides[b.TokenCode] = append(s.overrides[b.TokenCode], &models.OverrideRecord{
			ID:           uuid.New(),
			TokenCode:    b.TokenCode,
			RegistrantID: b.RegistrantID,
			TerminalID:   b.TerminalID,
			ActorID:      b.ActorID,
			Issues:       append([]string(nil), b.OverrideIssues...),
			Reason:       b.Reason,
			CreatedAt:    at,
		})
	}

	return &models.BindResult{Token: token.Clone(), Registrant: registrant.Clone()}, nil
}

func (s *InMemory) UnbindIfBound(ctx context.Context, code id.TokenCode, at time.Time) (*models.UnbindResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[code]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", code, sentinel.ErrNotFound)
	}
	if token.Status != models.TokenStatusBound {
		return nil, fmt.Errorf("token %s is %s: %w", code, token.Status, models.ErrTokenNotBound)
	}

	holderID := token.BoundRegistrantID
	registrant := s.registrants[holderID]
	token.Status = models.TokenStatusAvailable
	token.BoundRegistrantID = ""
	token.UnboundAt = &at
	token.Version++
	token.UpdatedAt = at

	result := &models.UnbindResult{Token: token.Clone(), HolderID: holderID}
	if registrant != nil && registrant.BoundTokenCode == code {
		registrant.CheckedIn = false
		registrant.CheckedInAt = nil
		registrant.CheckedInByTerminal = ""
		registrant.BoundTokenCode = ""
		registrant.Version++
		registrant.UpdatedAt = at
		result.Registrant = registrant.Clone()
	}
	return result, nil
}

func (s *InMemory) MarkDamagedIfAvailable(ctx context.Context, code id.TokenCode, at time.Time) (*models.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[code]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", code, sentinel.ErrNotFound)
	}
	if !token.IsAvailable() {
		return nil, fmt.Errorf("token %s is %s: %w", code, token.Status, models.ErrTokenNotAvailable)
	}
	token.Status = models.TokenStatusDamaged
	token.Version++
	token.UpdatedAt = at
	return token.Clone(), nil
}

func (s *InMemory) FindAppliedOperation(_ context.Context, opID id.OperationID) (*models.AppliedOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	applied, ok := s.applied[opID]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", opID, sentinel.ErrNotFound)
	}
	c := *applied
	return &c, nil
}

func (s *InMemory) ListOverrides(_ context.Context, code id.TokenCode) ([]*models.OverrideRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.overrides[code]
	out := make([]*models.OverrideRecord, 0, len(records))
	for _, rec := range records {
		c := *rec
		c.Issues = append([]string(nil), rec.Issues...)
		out = append(out, &c)
	}
	return out, nil
}
