//go:build integration

package redis_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"checkin/internal/checkin/models"
	redisstore "checkin/internal/checkin/store/redis"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *redisstore.RedisStore
	ctx   context.Context
	now   time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = redisstore.New(s.redis.Client.Client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.now = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
}

func (s *RedisStoreSuite) seed(codes []string, registrants []string) {
	for _, rid := range registrants {
		s.Require().NoError(s.store.SaveRegistrant(s.ctx, &models.Registrant{
			ID:               id.RegistrantID(rid),
			Kind:             models.RegistrantKindParticipant,
			DisplayName:      "Registrant " + rid,
			MedicalClearance: models.MedicalClearanceCleared,
		}))
	}
	for _, code := range codes {
		s.Require().NoError(s.store.SaveToken(s.ctx, &models.Token{
			Code:   id.TokenCode(code),
			Status: models.TokenStatusAvailable,
		}))
	}
}

func (s *RedisStoreSuite) bind(code, rid string) (*models.BindResult, error) {
	return s.store.BindIfAvailable(s.ctx, models.Binding{
		TokenCode:    id.TokenCode(code),
		RegistrantID: id.RegistrantID(rid),
		TerminalID:   "terminal-b",
		At:           s.now,
	})
}

func (s *RedisStoreSuite) TestBindRoundTrip() {
	s.seed([]string{"T-0001"}, []string{"R1"})

	result, err := s.bind("T-0001", "R1")
	s.Require().NoError(err)
	s.Equal(models.TokenStatusBound, result.Token.Status)
	s.Equal(int64(1), result.Token.Version)
	s.Require().NotNil(result.Token.BoundAt)
	s.True(result.Token.BoundAt.Equal(s.now))
	s.Equal(models.MedicalClearanceCleared, result.Registrant.MedicalClearance)

	registrant, err := s.store.FindRegistrant(s.ctx, "R1")
	s.Require().NoError(err)
	s.True(registrant.CheckedIn)
	s.Equal(id.TokenCode("T-0001"), registrant.BoundTokenCode)
	s.NoError(registrant.CheckInvariant())
}

func (s *RedisStoreSuite) TestBindRejections() {
	s.seed([]string{"T-0001", "T-0002"}, []string{"R1", "R2"})
	_, err := s.bind("T-0001", "R1")
	s.Require().NoError(err)

	_, err = s.bind("T-0001", "R2")
	s.ErrorIs(err, models.ErrTokenNotAvailable)

	_, err = s.bind("T-0002", "R1")
	s.ErrorIs(err, models.ErrRegistrantHasToken)

	_, err = s.bind("T-0404", "R2")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.bind("T-0002", "R404")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestUnbindDamageAndHistory() {
	s.seed([]string{"T-0001", "T-0002"}, []string{"R1"})
	opID := id.NewOperationID()
	_, err := s.store.BindIfAvailable(s.ctx, models.Binding{
		TokenCode:      "T-0001",
		RegistrantID:   "R1",
		At:             s.now,
		OpID:           opID,
		Forced:         true,
		OverrideIssues: []string{"medical clearance pending"},
		ActorID:        "admin-1",
	})
	s.Require().NoError(err)

	applied, err := s.store.FindAppliedOperation(s.ctx, opID)
	s.Require().NoError(err)
	s.Equal(opID, applied.OpID)

	overrides, err := s.store.ListOverrides(s.ctx, "T-0001")
	s.Require().NoError(err)
	s.Require().Len(overrides, 1)
	s.Equal([]string{"medical clearance pending"}, overrides[0].Issues)

	unbound, err := s.store.UnbindIfBound(s.ctx, "T-0001", s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(models.TokenStatusAvailable, unbound.Token.Status)
	s.Equal(id.RegistrantID("R1"), unbound.HolderID)
	s.Require().NotNil(unbound.Registrant)
	s.False(unbound.Registrant.CheckedIn)

	_, err = s.store.UnbindIfBound(s.ctx, "T-0001", s.now)
	s.ErrorIs(err, models.ErrTokenNotBound)

	_, err = s.store.MarkDamagedIfAvailable(s.ctx, "T-0002", s.now)
	s.Require().NoError(err)
	_, err = s.bind("T-0002", "R1")
	s.ErrorIs(err, models.ErrTokenNotAvailable)

	list, err := s.store.ListRegistrants(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *RedisStoreSuite) TestConcurrentBindSameToken() {
	const terminals = 16
	registrants := make([]string, terminals)
	for i := range registrants {
		registrants[i] = fmt.Sprintf("R%02d", i)
	}
	s.seed([]string{"T-0007"}, registrants)

	var successes, conflicts atomic.Int32
	var g errgroup.Group
	for _, rid := range registrants {
		g.Go(func() error {
			_, err := s.bind("T-0007", rid)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, models.ErrTokenNotAvailable):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(int32(1), successes.Load())
	s.Equal(int32(terminals-1), conflicts.Load())
}
