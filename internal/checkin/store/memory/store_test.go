package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

type StoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) seedToken(code string) {
	s.Require().NoError(s.store.SaveToken(s.ctx, &models.Token{
		Code:   id.TokenCode(code),
		Status: models.TokenStatusAvailable,
	}))
}

func (s *StoreSuite) seedRegistrant(rid string) {
	s.Require().NoError(s.store.SaveRegistrant(s.ctx, &models.Registrant{
		ID:          id.RegistrantID(rid),
		Kind:        models.RegistrantKindStaff,
		DisplayName: "Registrant " + rid,
	}))
}

func (s *StoreSuite) bind(code, rid string) (*models.BindResult, error) {
	return s.store.BindIfAvailable(s.ctx, models.Binding{
		TokenCode:    id.TokenCode(code),
		RegistrantID: id.RegistrantID(rid),
		TerminalID:   "terminal-a",
		At:           s.now,
	})
}

func (s *StoreSuite) TestBindUpdatesBothRecords() {
	s.seedToken("T-0001")
	s.seedRegistrant("R1")

	result, err := s.bind("T-0001", "R1")
	s.Require().NoError(err)
	s.Equal(models.TokenStatusBound, result.Token.Status)
	s.Equal(id.RegistrantID("R1"), result.Token.BoundRegistrantID)
	s.Equal(int64(1), result.Token.Version)
	s.True(result.Registrant.CheckedIn)
	s.Equal(id.TokenCode("T-0001"), result.Registrant.BoundTokenCode)
	s.Equal(id.TerminalID("terminal-a"), result.Registrant.CheckedInByTerminal)

	// fresh reads observe the write immediately
	token, err := s.store.FindToken(s.ctx, "T-0001")
	s.Require().NoError(err)
	s.NoError(token.CheckInvariant())
	s.Equal(models.TokenStatusBound, token.Status)
}

func (s *StoreSuite) TestBindRejections() {
	s.seedToken("T-0001")
	s.seedToken("T-0002")
	s.seedRegistrant("R1")
	s.seedRegistrant("R2")
	_, err := s.bind("T-0001", "R1")
	s.Require().NoError(err)

	s.Run("token already bound", func() {
		_, err := s.bind("T-0001", "R2")
		s.ErrorIs(err, models.ErrTokenNotAvailable)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("registrant already holds a token", func() {
		_, err := s.bind("T-0002", "R1")
		s.ErrorIs(err, models.ErrRegistrantHasToken)
	})

	s.Run("damaged token", func() {
		_, err := s.store.MarkDamagedIfAvailable(s.ctx, "T-0002", s.now)
		s.Require().NoError(err)
		_, err = s.bind("T-0002", "R2")
		s.ErrorIs(err, models.ErrTokenNotAvailable)
	})

	s.Run("unknown token or registrant", func() {
		_, err := s.bind("T-9999", "R2")
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.seedToken("T-0003")
		_, err = s.bind("T-0003", "R-missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StoreSuite) TestReturnedRecordsAreCopies() {
	s.seedToken("T-0001")
	token, err := s.store.FindToken(s.ctx, "T-0001")
	s.Require().NoError(err)
	token.Status = models.TokenStatusDamaged

	again, err := s.store.FindToken(s.ctx, "T-0001")
	s.Require().NoError(err)
	s.Equal(models.TokenStatusAvailable, again.Status)
}

func (s *StoreSuite) TestUnbindResetsRegistrant() {
	s.seedToken("T-0001")
	s.seedRegistrant("R1")
	_, err := s.bind("T-0001", "R1")
	s.Require().NoError(err)

	result, err := s.store.UnbindIfBound(s.ctx, "T-0001", s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(models.TokenStatusAvailable, result.Token.Status)
	s.Empty(result.Token.BoundRegistrantID)
	s.NotNil(result.Token.UnboundAt)
	s.Equal(id.RegistrantID("R1"), result.HolderID)
	s.False(result.Registrant.CheckedIn)
	s.Empty(result.Registrant.BoundTokenCode)

	_, err = s.store.UnbindIfBound(s.ctx, "T-0001", s.now)
	s.ErrorIs(err, models.ErrTokenNotBound)
}

func (s *StoreSuite) TestAppliedOperationAndOverridesAreRecorded() {
	s.seedToken("T-0001")
	s.seedRegistrant("R1")
	op := id.NewOperationID()

	_, err := s.store.BindIfAvailable(s.ctx, models.Binding{
		TokenCode:      "T-0001",
		RegistrantID:   "R1",
		At:             s.now,
		OpID:           op,
		Forced:         true,
		OverrideIssues: []string{"contract not signed"},
		ActorID:        "admin-1",
	})
	s.Require().NoError(err)

	applied, err := s.store.FindAppliedOperation(s.ctx, op)
	s.Require().NoError(err)
	s.Equal(id.TokenCode("T-0001"), applied.TokenCode)

	overrides, err := s.store.ListOverrides(s.ctx, "T-0001")
	s.Require().NoError(err)
	s.Require().Len(overrides, 1)
	s.Equal([]string{"contract not signed"}, overrides[0].Issues)
	s.Equal("admin-1", overrides[0].ActorID)

	_, err = s.store.FindAppliedOperation(s.ctx, id.NewOperationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentBindSameToken verifies that exactly one of many terminals
// racing on one wristband wins.
func (s *StoreSuite) TestConcurrentBindSameToken() {
	const terminals = 50
	s.seedToken("T-0007")
	for i := range terminals {
		s.seedRegistrant(fmt.Sprintf("R%d", i))
	}

	var wg sync.WaitGroup
	var wins, losses atomic.Int32
	for i := range terminals {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.bind("T-0007", fmt.Sprintf("R%d", i))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, models.ErrTokenNotAvailable):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(terminals-1), losses.Load())

	holders := 0
	list, err := s.store.ListRegistrants(s.ctx)
	s.Require().NoError(err)
	for _, r := range list {
		if r.BoundTokenCode == "T-0007" {
			holders++
		}
	}
	s.Equal(1, holders)
}
