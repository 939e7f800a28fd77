//go:build integration

package postgres_test

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
	"checkin/internal/checkin/store/postgres"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.PostgresStore
	ctx      context.Context
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.ctx = context.Background()
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	err := s.postgres.TruncateTables(s.ctx, "binding_overrides", "applied_operations", "tokens", "registrants")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seed(codes []string, registrants []string) {
	for _, rid := range registrants {
		s.Require().NoError(s.store.SaveRegistrant(s.ctx, &models.Registrant{
			ID:          id.RegistrantID(rid),
			Kind:        models.RegistrantKindParticipant,
			DisplayName: "Registrant " + rid,
		}))
	}
	for _, code := range codes {
		s.Require().NoError(s.store.SaveToken(s.ctx, &models.Token{
			Code:   id.TokenCode(code),
			Status: models.TokenStatusAvailable,
		}))
	}
}

func (s *PostgresStoreSuite) bind(code, rid string) (*models.BindResult, error) {
	return s.store.BindIfAvailable(s.ctx, models.Binding{
		TokenCode:    id.TokenCode(code),
		RegistrantID: id.RegistrantID(rid),
		TerminalID:   "terminal-a",
		At:           s.now,
	})
}

func (s *PostgresStoreSuite) TestBindAndFreshRead() {
	s.seed([]string{"T-0001"}, []string{"R1"})

	result, err := s.bind("T-0001", "R1")
	s.Require().NoError(err)
	s.Equal(models.TokenStatusBound, result.Token.Status)
	s.Equal(int64(1), result.Token.Version)
	s.Equal(id.TokenCode("T-0001"), result.Registrant.BoundTokenCode)

	token, err := s.store.FindToken(s.ctx, "T-0001")
	s.Require().NoError(err)
	s.NoError(token.CheckInvariant())
	s.Equal(id.RegistrantID("R1"), token.BoundRegistrantID)

	registrant, err := s.store.FindRegistrant(s.ctx, "R1")
	s.Require().NoError(err)
	s.True(registrant.CheckedIn)
	s.Equal(id.TerminalID("terminal-a"), registrant.CheckedInByTerminal)
}

func (s *PostgresStoreSuite) TestBindRejections() {
	s.seed([]string{"T-0001", "T-0002", "T-0003"}, []string{"R1", "R2"})
	_, err := s.bind("T-0001", "R1")
	s.Require().NoError(err)

	s.Run("token already bound", func() {
		_, err := s.bind("T-0001", "R2")
		s.ErrorIs(err, models.ErrTokenNotAvailable)
	})

	s.Run("registrant already holds a token", func() {
		_, err := s.bind("T-0002", "R1")
		s.ErrorIs(err, models.ErrRegistrantHasToken)

		token, err := s.store.FindToken(s.ctx, "T-0002")
		s.Require().NoError(err)
		s.Equal(models.TokenStatusAvailable, token.Status, "rejected bind must roll back the token update")
	})

	s.Run("unknown token", func() {
		_, err := s.bind("T-9999", "R2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown registrant", func() {
		_, err := s.bind("T-0003", "R-missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestUnbindAndDamage() {
	s.seed([]string{"T-0001", "T-0002"}, []string{"R1"})
	_, err := s.bind("T-0001", "R1")
	s.Require().NoError(err)

	result, err := s.store.UnbindIfBound(s.ctx, "T-0001", s.now)
	s.Require().NoError(err)
	s.Equal(models.TokenStatusAvailable, result.Token.Status)
	s.NotNil(result.Token.UnboundAt)
	s.Equal(id.RegistrantID("R1"), result.HolderID)
	s.Require().NotNil(result.Registrant)
	s.False(result.Registrant.CheckedIn)
	s.Empty(result.Registrant.BoundTokenCode)

	_, err = s.store.UnbindIfBound(s.ctx, "T-0001", s.now)
	s.ErrorIs(err, models.ErrTokenNotBound)

	damaged, err := s.store.MarkDamagedIfAvailable(s.ctx, "T-0002", s.now)
	s.Require().NoError(err)
	s.Equal(models.TokenStatusDamaged, damaged.Status)

	_, err = s.store.MarkDamagedIfAvailable(s.ctx, "T-0002", s.now)
	s.ErrorIs(err, models.ErrTokenNotAvailable)
}

func (s *PostgresStoreSuite) TestAppliedOperationAndOverride() {
	s.seed([]string{"T-0001"}, []string{"R1"})
	opID := id.NewOperationID()

	_, err := s.store.BindIfAvailable(s.ctx, models.Binding{
		TokenCode:      "T-0001",
		RegistrantID:   "R1",
		TerminalID:     "terminal-a",
		At:             s.now,
		OpID:           opID,
		Forced:         true,
		OverrideIssues: []string{"contract not signed"},
		ActorID:        "admin-1",
		Reason:         "paper contract on file",
	})
	s.Require().NoError(err)

	applied, err := s.store.FindAppliedOperation(s.ctx, opID)
	s.Require().NoError(err)
	s.Equal(opID, applied.OpID)
	s.Equal(id.TokenCode("T-0001"), applied.TokenCode)

	_, err = s.store.FindAppliedOperation(s.ctx, id.NewOperationID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	overrides, err := s.store.ListOverrides(s.ctx, "T-0001")
	s.Require().NoError(err)
	s.Require().Len(overrides, 1)
	s.Equal([]string{"contract not signed"}, overrides[0].Issues)
	s.Equal("admin-1", overrides[0].ActorID)
}

// TestConcurrentBindSameToken verifies that terminals racing on one token
// produce exactly one binding.
func (s *PostgresStoreSuite) TestConcurrentBindSameToken() {
	const terminals = 20
	registrants := make([]string, terminals)
	for i := range registrants {
		registrants[i] = fmt.Sprintf("R%02d", i)
	}
	s.seed([]string{"T-0007"}, registrants)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
		start     = make(chan struct{})
	)
	for _, rid := range registrants {
		wg.Add(1)
		go func(rid string) {
			defer wg.Done()
			<-start
			_, err := s.bind("T-0007", rid)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, models.ErrTokenNotAvailable):
				conflicts.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}(rid)
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(terminals-1), conflicts.Load())

	list, err := s.store.ListRegistrants(s.ctx)
	s.Require().NoError(err)
	holders := 0
	for _, r := range list {
		if r.BoundTokenCode == "T-0007" {
			holders++
		}
	}
	s.Equal(1, holders)
}

// TestConcurrentBindSameRegistrant verifies that one registrant cannot end up
// holding two tokens.
func (s *PostgresStoreSuite) TestConcurrentBindSameRegistrant() {
	codes := []string{"T-0101", "T-0102", "T-0103", "T-0104", "T-0105"}
	s.seed(codes, []string{"R1"})

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for _, code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_, err := s.bind(code, "R1")
			if err == nil {
				successes.Add(1)
				return
			}
			s.ErrorIs(err, models.ErrRegistrantHasToken)
		}(code)
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
}
