package session

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Registry,Overrider,HealthReporter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"checkin/internal/admin"
	"checkin/internal/checkin/models"
	"checkin/internal/checkin/registry"
	storememory "checkin/internal/checkin/store/memory"
	"checkin/internal/connectivity"
	"checkin/internal/eligibility"
	"checkin/internal/identify"
	queuememory "checkin/internal/offline/store/memory"
	"checkin/internal/scanner"
	"checkin/internal/session/mocks"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/audit/publisher"
	"checkin/pkg/platform/audit/publishers/compliance"
	auditmemory "checkin/pkg/platform/audit/store/memory"
)

var adultBirth = time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC)

func seedShared(t *testing.T, ctx context.Context) *storememory.InMemory {
	t.Helper()
	shared := storememory.New()
	registrants := []*models.Registrant{
		{ID: "R1", Kind: models.RegistrantKindParticipant, DisplayName: "Ana Pereira",
			ContractSigned: true, MedicalClearance: models.MedicalClearanceCleared, BirthDate: &adultBirth},
		{ID: "R2", Kind: models.RegistrantKindParticipant, DisplayName: "José Álvarez",
			ContractSigned: false, MedicalClearance: models.MedicalClearanceCleared, BirthDate: &adultBirth},
		{ID: "R3", Kind: models.RegistrantKindStaff, DisplayName: "Bruno Costa"},
	}
	for _, r := range registrants {
		require.NoError(t, shared.SaveRegistrant(ctx, r))
	}
	for _, code := range []id.TokenCode{"T-0001", "T-0002", "T-0003"} {
		require.NoError(t, shared.SaveToken(ctx, &models.Token{Code: code, Status: models.TokenStatusAvailable}))
	}
	require.NoError(t, shared.SaveToken(ctx, &models.Token{Code: "T-0009", Status: models.TokenStatusDamaged}))
	return shared
}

type ControllerSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	shared     *storememory.InMemory
	registry   *registry.Registry
	queue      *queuememory.Queue
	signal     *connectivity.Manual
	auditStore *auditmemory.InMemoryStore
	feed       *scanner.Feed
	controller *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	s.shared = seedShared(s.T(), s.ctx)
	s.registry = registry.New(s.shared, registry.WithClock(clock))
	s.queue = queuememory.New()
	s.signal = connectivity.NewManual(connectivity.StatusOnline)
	s.auditStore = auditmemory.NewInMemoryStore()
	s.feed = scanner.NewFeed(4)
	validator := eligibility.New(eligibility.WithClock(clock))
	overrides := admin.New(s.registry, s.queue, compliance.New(s.auditStore),
		admin.WithClock(clock), admin.WithValidator(validator))

	s.controller = New("terminal-a",
		identify.New(s.registry), s.registry, validator, s.queue, s.signal,
		WithOverrider(overrides),
		WithAuditor(publisher.NewPublisher(s.auditStore)),
		WithClock(clock),
		WithScanner(s.feed),
	)
}

func (s *ControllerSuite) actions(code string) []string {
	events, err := s.auditStore.ListBySubject(s.ctx, code)
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *ControllerSuite) toConfirming(code string, rid id.RegistrantID) {
	_, err := s.controller.Scan(s.ctx, code)
	s.Require().NoError(err)
	st, err := s.controller.SelectRegistrant(s.ctx, rid)
	s.Require().NoError(err)
	s.Require().Equal(KindConfirming, st.Kind())
}

func (s *ControllerSuite) TestHappyPath() {
	st, err := s.controller.Scan(s.ctx, " t-0001 ")
	s.Require().NoError(err)
	attempt, ok := st.(Identifying)
	s.Require().True(ok)
	s.Equal(id.TokenCode("T-0001"), attempt.TokenCode)
	s.Nil(attempt.Notice)

	st, err = s.controller.Search(s.ctx, "pere")
	s.Require().NoError(err)
	attempt = st.(Identifying)
	s.Require().NotEmpty(attempt.Candidates)
	s.Equal(id.RegistrantID("R1"), attempt.Candidates[0].Registrant.ID)

	st, err = s.controller.SelectRegistrant(s.ctx, "R1")
	s.Require().NoError(err)
	s.Require().Equal(KindConfirming, st.Kind())
	s.True(s.feed.Paused(), "scanner paused while confirming")

	st, err = s.controller.Confirm(s.ctx)
	s.Require().NoError(err)
	success, ok := st.(Success)
	s.Require().True(ok)
	s.False(success.Queued)
	s.False(success.OpID.IsNil())
	s.True(success.Registrant.CheckedIn)

	token, err := s.shared.FindToken(s.ctx, "T-0001")
	s.Require().NoError(err)
	s.True(token.IsBoundTo("R1"))
	s.Equal([]string{string(audit.EventBindingCreated)}, s.actions("T-0001"))

	st, err = s.controller.Dismiss()
	s.Require().NoError(err)
	s.Equal(KindIdle, st.Kind())
	s.False(s.feed.Paused())
}

func (s *ControllerSuite) TestRegistrantFirstThenScan() {
	_, err := s.controller.SelectRegistrant(s.ctx, "R3")
	s.Require().NoError(err)
	st, err := s.controller.Scan(s.ctx, "T-0002")
	s.Require().NoError(err)
	s.Equal(KindConfirming, st.Kind(), "staff skip eligibility")
}

func (s *ControllerSuite) TestScanNotices() {
	_, err := s.registry.Bind(s.ctx, registry.BindRequest{TokenCode: "T-0002", RegistrantID: "R3", TerminalID: "terminal-b"})
	s.Require().NoError(err)

	cases := []struct {
		raw      string
		code     dErrors.Code
		contains string
	}{
		{raw: "T-0002", code: dErrors.CodeTokenUnavailable, contains: "Bruno Costa"},
		{raw: "T-0009", code: dErrors.CodeTokenUnavailable, contains: "damaged"},
		{raw: "T-4040", code: dErrors.CodeNotFound, contains: "not registered"},
		{raw: "not a code", code: dErrors.CodeNotFound, contains: "unrecognised"},
	}
	for _, tc := range cases {
		st, err := s.controller.Scan(s.ctx, tc.raw)
		s.Require().NoError(err, tc.raw)
		attempt := st.(Identifying)
		s.Empty(attempt.TokenCode, tc.raw)
		s.Require().NotNil(attempt.Notice, tc.raw)
		s.Equal(tc.code, attempt.Notice.Code, tc.raw)
		s.Contains(attempt.Notice.Message, tc.contains, tc.raw)
	}
}

func (s *ControllerSuite) TestSelectCheckedInRegistrant() {
	_, err := s.registry.Bind(s.ctx, registry.BindRequest{TokenCode: "T-0003", RegistrantID: "R1", TerminalID: "terminal-b"})
	s.Require().NoError(err)

	st, err := s.controller.SelectRegistrant(s.ctx, "R1")
	s.Require().NoError(err)
	attempt := st.(Identifying)
	s.Nil(attempt.Registrant)
	s.Require().NotNil(attempt.Notice)
	s.Equal(dErrors.CodeRegistrantAlreadyBound, attempt.Notice.Code)
	s.Contains(attempt.Notice.Message, "T-0003")
}

func (s *ControllerSuite) TestBlockedThenOverride() {
	_, err := s.controller.Scan(s.ctx, "T-0001")
	s.Require().NoError(err)
	st, err := s.controller.SelectRegistrant(s.ctx, "R2")
	s.Require().NoError(err)
	blocked, ok := st.(Blocked)
	s.Require().True(ok)
	s.Equal([]string{eligibility.IssueContractNotSigned}, blocked.Issues)

	_, err = s.controller.Confirm(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "blocked attempts cannot be confirmed")

	_, err = s.controller.Override(s.ctx, "", "no actor")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	st, err = s.controller.Override(s.ctx, "admin-1", "contract signed on paper")
	s.Require().NoError(err)
	success, ok := st.(Success)
	s.Require().True(ok)
	s.True(success.Forced)
	s.Equal([]string{eligibility.IssueContractNotSigned}, success.Issues)

	overrides, err := s.registry.Overrides(s.ctx, "T-0001")
	s.Require().NoError(err)
	s.Require().Len(overrides, 1)
	s.Equal("admin-1", overrides[0].ActorID)
	s.Contains(s.actions("T-0001"), string(audit.EventBindingForced))
}

func (s *ControllerSuite) TestOverrideNeedsReachableStore() {
	_, err := s.controller.Scan(s.ctx, "T-0001")
	s.Require().NoError(err)
	_, err = s.controller.SelectRegistrant(s.ctx, "R2")
	s.Require().NoError(err)

	s.signal.Set(connectivity.StatusOffline)
	_, err = s.controller.Override(s.ctx, "admin-1", "offline")
	s.True(dErrors.HasCode(err, dErrors.CodeUnreachable))
	s.Equal(KindBlocked, s.controller.State().Kind())

	pending, err := s.queue.Pending(s.ctx)
	s.Require().NoError(err)
	s.Empty(pending, "overrides are never queued")
}

func (s *ControllerSuite) TestScanRejectedOutsideIdentification() {
	s.toConfirming("T-0001", "R1")
	_, err := s.controller.Scan(s.ctx, "T-0002")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	st := s.controller.State().(Confirming)
	s.Equal(id.TokenCode("T-0001"), st.TokenCode)
}

func (s *ControllerSuite) TestOfflineBindIsQueued() {
	n, err := s.controller.RefreshSnapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, n)
	s.signal.Set(connectivity.StatusOffline)

	s.toConfirming("T-0001", "R1")
	st, err := s.controller.Confirm(s.ctx)
	s.Require().NoError(err)
	success := st.(Success)
	s.True(success.Queued)

	pending, err := s.queue.Pending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(success.OpID, pending[0].ID)
	s.Equal(id.TokenCode("T-0001"), pending[0].Payload.TokenCode)
	s.True(pending[0].Payload.CapturedAt.Equal(s.now))

	token, err := s.shared.FindToken(s.ctx, "T-0001")
	s.Require().NoError(err)
	s.True(token.IsAvailable(), "shared store untouched while offline")
	s.Equal([]string{string(audit.EventOperationQueued)}, s.actions("T-0001"))
}

func (s *ControllerSuite) TestOfflineDuplicateGuards() {
	_, err := s.controller.RefreshSnapshot(s.ctx)
	s.Require().NoError(err)
	s.signal.Set(connectivity.StatusOffline)

	s.toConfirming("T-0001", "R1")
	_, err = s.controller.Confirm(s.ctx)
	s.Require().NoError(err)
	_, err = s.controller.Dismiss()
	s.Require().NoError(err)

	st, err := s.controller.SelectRegistrant(s.ctx, "R1")
	s.Require().NoError(err)
	attempt := st.(Identifying)
	s.Require().NotNil(attempt.Notice)
	s.Equal(dErrors.CodeRegistrantAlreadyBound, attempt.Notice.Code)

	s.toConfirming("T-0001", "R3")
	st, err = s.controller.Confirm(s.ctx)
	s.Require().NoError(err)
	attempt = st.(Identifying)
	s.Require().NotNil(attempt.Notice)
	s.Equal(dErrors.CodeTokenUnavailable, attempt.Notice.Code)
	s.Equal(id.RegistrantID("R3"), attempt.Registrant.ID)

	pending, err := s.queue.Pending(s.ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *ControllerSuite) TestTokenTakenBeforeConfirm() {
	s.toConfirming("T-0001", "R1")
	_, err := s.registry.Bind(s.ctx, registry.BindRequest{TokenCode: "T-0001", RegistrantID: "R3", TerminalID: "terminal-b"})
	s.Require().NoError(err)

	st, err := s.controller.Confirm(s.ctx)
	s.Require().NoError(err)
	attempt := st.(Identifying)
	s.Empty(attempt.TokenCode)
	s.Require().NotNil(attempt.Registrant)
	s.Equal(id.RegistrantID("R1"), attempt.Registrant.ID)
	s.Equal(dErrors.CodeTokenUnavailable, attempt.Notice.Code)
	s.False(s.feed.Paused(), "scanner resumes for the next wristband")
}

func (s *ControllerSuite) TestRegistrantTakenBeforeConfirm() {
	s.toConfirming("T-0001", "R1")
	_, err := s.registry.Bind(s.ctx, registry.BindRequest{TokenCode: "T-0002", RegistrantID: "R1", TerminalID: "terminal-b"})
	s.Require().NoError(err)

	st, err := s.controller.Confirm(s.ctx)
	s.Require().NoError(err)
	attempt := st.(Identifying)
	s.Equal(id.TokenCode("T-0001"), attempt.TokenCode)
	s.Nil(attempt.Registrant)
	s.Equal(dErrors.CodeRegistrantAlreadyBound, attempt.Notice.Code)
}

func (s *ControllerSuite) TestClearAndDismissGuards() {
	_, err := s.controller.Dismiss()
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	s.toConfirming("T-0001", "R1")
	st, err := s.controller.Clear()
	s.Require().NoError(err)
	s.Equal(KindIdle, st.Kind())
	s.False(s.feed.Paused())
}

func (s *ControllerSuite) TestListenFeedsScans() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.controller.Listen(ctx, s.feed) }()

	accepted, err := s.feed.Push(ctx, "T-0001")
	s.Require().NoError(err)
	s.True(accepted)
	s.Eventually(func() bool {
		st, ok := s.controller.State().(Identifying)
		return ok && st.TokenCode == "T-0001"
	}, time.Second, 5*time.Millisecond)

	_, err = s.controller.SelectRegistrant(s.ctx, "R1")
	s.Require().NoError(err)
	accepted, err = s.feed.Push(ctx, "T-0002")
	s.Require().NoError(err)
	s.False(accepted, "codes are dropped while a result is pending")

	s.feed.Stop()
	s.Require().NoError(<-done)
}

type mockedController struct {
	ctrl      *gomock.Controller
	registry  *mocks.MockRegistry
	overrider *mocks.MockOverrider
	health    *mocks.MockHealthReporter
	queue     *queuememory.Queue
	signal    *connectivity.Manual
	c         *Controller
}

func newMockedController(t *testing.T, status connectivity.Status) *mockedController {
	ctx := context.Background()
	shared := seedShared(t, ctx)
	ctrl := gomock.NewController(t)
	m := &mockedController{
		ctrl:      ctrl,
		registry:  mocks.NewMockRegistry(ctrl),
		overrider: mocks.NewMockOverrider(ctrl),
		health:    mocks.NewMockHealthReporter(ctrl),
		queue:     queuememory.New(),
		signal:    connectivity.NewManual(status),
	}
	m.c = New("terminal-a",
		identify.New(registry.New(shared)), m.registry, eligibility.New(), m.queue, m.signal,
		WithOverrider(m.overrider),
		WithHealthReporter(m.health),
	)
	return m
}

var ana = &models.Registrant{ID: "R1", Kind: models.RegistrantKindParticipant, DisplayName: "Ana Pereira",
	ContractSigned: true, MedicalClearance: models.MedicalClearanceCleared, BirthDate: &adultBirth}

var jose = &models.Registrant{ID: "R2", Kind: models.RegistrantKindParticipant, DisplayName: "José Álvarez",
	ContractSigned: false, MedicalClearance: models.MedicalClearanceCleared, BirthDate: &adultBirth}

func (m *mockedController) confirming(t *testing.T) {
	m.registry.EXPECT().Registrant(gomock.Any(), id.RegistrantID("R1")).Return(ana.Clone(), nil)
	_, err := m.c.Scan(context.Background(), "T-0001")
	require.NoError(t, err)
	st, err := m.c.SelectRegistrant(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, KindConfirming, st.Kind())
}

func TestUnreachableWhileDegradedQueuesWithSameOpID(t *testing.T) {
	m := newMockedController(t, connectivity.StatusDegraded)
	m.confirming(t)

	var attempted id.OperationID
	m.registry.EXPECT().Bind(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req registry.BindRequest) (*models.BindResult, error) {
			attempted = req.OpID
			return nil, dErrors.New(dErrors.CodeUnreachable, "bind inconclusive")
		})
	m.health.EXPECT().ReportFailure()

	st, err := m.c.Confirm(context.Background())
	require.NoError(t, err)
	success, ok := st.(Success)
	require.True(t, ok)
	assert.True(t, success.Queued)
	assert.Equal(t, attempted, success.OpID, "replay can detect a bind that landed")

	pending, err := m.queue.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, attempted, pending[0].ID)
}

func TestUnreachableWhileOnlineIsInconclusive(t *testing.T) {
	m := newMockedController(t, connectivity.StatusOnline)
	m.confirming(t)

	m.registry.EXPECT().Bind(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnreachable, "bind inconclusive"))
	m.health.EXPECT().ReportFailure()

	st, err := m.c.Confirm(context.Background())
	require.NoError(t, err)
	errored, ok := st.(Errored)
	require.True(t, ok)
	assert.Equal(t, dErrors.CodeUnreachable, errored.Code)
	assert.Contains(t, errored.Message, "inconclusive")

	pending, err := m.queue.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestConfirmIsNotReentrant(t *testing.T) {
	m := newMockedController(t, connectivity.StatusOnline)
	m.confirming(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	m.registry.EXPECT().Bind(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req registry.BindRequest) (*models.BindResult, error) {
			close(entered)
			<-release
			return &models.BindResult{Registrant: ana.Clone(), OpID: req.OpID}, nil
		})
	m.health.EXPECT().ReportSuccess()

	done := make(chan State, 1)
	go func() {
		st, _ := m.c.Confirm(context.Background())
		done <- st
	}()
	<-entered

	_, err := m.c.Confirm(context.Background())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	_, err = m.c.Clear()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

	close(release)
	assert.Equal(t, KindSuccess, (<-done).Kind())
}

func TestClearDiscardsLateLookup(t *testing.T) {
	m := newMockedController(t, connectivity.StatusOnline)

	entered := make(chan struct{})
	release := make(chan struct{})
	m.registry.EXPECT().Registrant(gomock.Any(), id.RegistrantID("R1")).
		DoAndReturn(func(context.Context, id.RegistrantID) (*models.Registrant, error) {
			close(entered)
			<-release
			return ana.Clone(), nil
		})

	errs := make(chan error, 1)
	go func() {
		_, err := m.c.SelectRegistrant(context.Background(), "R1")
		errs <- err
	}()
	<-entered

	st, err := m.c.Clear()
	require.NoError(t, err)
	assert.Equal(t, KindIdle, st.Kind())

	close(release)
	assert.True(t, dErrors.HasCode(<-errs, dErrors.CodeCancelled))
	assert.Equal(t, KindIdle, m.c.State().Kind(), "late result does not resurrect the attempt")
}

func TestOverrideInFlightHoldsTheAttempt(t *testing.T) {
	ctx := context.Background()
	m := newMockedController(t, connectivity.StatusOnline)
	m.registry.EXPECT().Registrant(gomock.Any(), id.RegistrantID("R2")).Return(jose.Clone(), nil)
	_, err := m.c.Scan(ctx, "T-0001")
	require.NoError(t, err)
	st, err := m.c.SelectRegistrant(ctx, "R2")
	require.NoError(t, err)
	require.Equal(t, KindBlocked, st.Kind())

	entered := make(chan struct{})
	release := make(chan struct{})
	m.overrider.EXPECT().ForceBind(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req admin.ForceBindRequest) (*models.BindResult, error) {
			close(entered)
			<-release
			return &models.BindResult{Registrant: jose.Clone(), Forced: true}, nil
		})

	done := make(chan State, 1)
	go func() {
		st, _ := m.c.Override(ctx, "admin-1", "contract signed on paper")
		done <- st
	}()
	<-entered

	blocked, ok := m.c.State().(Blocked)
	require.True(t, ok)
	assert.True(t, blocked.Overriding)

	_, err = m.c.Dismiss()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	_, err = m.c.Clear()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	_, err = m.c.Override(ctx, "admin-1", "again")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	_, err = m.c.Scan(ctx, "T-0002")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState), "no new attempt starts over a running override")

	close(release)
	success, ok := (<-done).(Success)
	require.True(t, ok)
	assert.Equal(t, id.TokenCode("T-0001"), success.TokenCode)
	assert.True(t, success.Forced)

	_, err = m.c.Dismiss()
	require.NoError(t, err)
	st, err = m.c.Scan(ctx, "T-0002")
	require.NoError(t, err)
	assert.Equal(t, id.TokenCode("T-0002"), st.(Identifying).TokenCode)
}

func TestConcurrentScanAndSelectBothLand(t *testing.T) {
	ctx := context.Background()
	shared := seedShared(t, ctx)
	ctrl := gomock.NewController(t)
	lookup := &blockingLookup{TokenLookup: registry.New(shared), entered: make(chan struct{}), release: make(chan struct{})}
	reg := mocks.NewMockRegistry(ctrl)
	reg.EXPECT().Registrant(gomock.Any(), id.RegistrantID("R1")).Return(ana.Clone(), nil)
	c := New("terminal-a", identify.New(lookup), reg, eligibility.New(), queuememory.New(),
		connectivity.NewManual(connectivity.StatusOnline))

	errs := make(chan error, 1)
	go func() {
		_, err := c.Scan(ctx, "T-0001")
		errs <- err
	}()
	<-lookup.entered

	st, err := c.SelectRegistrant(ctx, "R1")
	require.NoError(t, err, "a concurrent lookup is not a cleared attempt")
	assert.Equal(t, id.RegistrantID("R1"), st.(Identifying).Registrant.ID)

	close(lookup.release)
	require.NoError(t, <-errs)
	confirming, ok := c.State().(Confirming)
	require.True(t, ok)
	assert.Equal(t, id.TokenCode("T-0001"), confirming.TokenCode)
	assert.Equal(t, id.RegistrantID("R1"), confirming.Registrant.ID)
}

func TestSameCodeScannedTwiceWhileInFlight(t *testing.T) {
	ctx := context.Background()
	shared := seedShared(t, ctx)
	ctrl := gomock.NewController(t)
	lookup := &blockingLookup{TokenLookup: registry.New(shared), entered: make(chan struct{}), release: make(chan struct{})}
	reg := mocks.NewMockRegistry(ctrl)
	c := New("terminal-a", identify.New(lookup), reg, eligibility.New(), queuememory.New(),
		connectivity.NewManual(connectivity.StatusOnline))

	errs := make(chan error, 1)
	go func() {
		_, err := c.Scan(ctx, "T-0001")
		errs <- err
	}()
	<-lookup.entered

	_, err := c.Scan(ctx, "T-0001")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	close(lookup.release)
	require.NoError(t, <-errs)
	assert.Equal(t, id.TokenCode("T-0001"), c.State().(Identifying).TokenCode)
}

type blockingLookup struct {
	identify.TokenLookup
	entered chan struct{}
	release chan struct{}
}

func (b *blockingLookup) Token(ctx context.Context, code id.TokenCode) (*models.Token, error) {
	close(b.entered)
	<-b.release
	return b.TokenLookup.Token(ctx, code)
}
