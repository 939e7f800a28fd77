// Package queuetest is a behavioural suite shared by every offline.Queue
// backend.
package queuetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"checkin/internal/checkin/models"
	"checkin/internal/offline"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// Suite runs the queue contract against the queue returned by New.
type Suite struct {
	suite.Suite
	New   func() offline.Queue
	queue offline.Queue
	ctx   context.Context
	now   time.Time
}

func (s *Suite) SetupTest() {
	s.queue = s.New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
}

func (s *Suite) enqueue(code, registrant string) *models.PendingOperation {
	op, err := s.queue.Append(s.ctx, &models.PendingOperation{
		ID:         id.NewOperationID(),
		Kind:       models.OperationKindBind,
		TerminalID: "terminal-1",
		Payload: models.BindPayload{
			TokenCode:    id.TokenCode(code),
			RegistrantID: id.RegistrantID(registrant),
			CapturedAt:   s.now,
		},
		CreatedAt: s.now,
	})
	s.Require().NoError(err)
	return op
}

func (s *Suite) TestAppendAssignsIncreasingSequence() {
	first := s.enqueue("T-0001", "R1")
	second := s.enqueue("T-0002", "R2")

	s.Greater(second.Seq, first.Seq)
	s.True(first.Payload.CapturedAt.Equal(s.now))

	pending, err := s.queue.Pending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)
	s.Equal(second.ID, pending[1].ID)
}

func (s *Suite) TestAppendRejectsDuplicateID() {
	op := s.enqueue("T-0001", "R1")
	_, err := s.queue.Append(s.ctx, op)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *Suite) TestPendingForToken() {
	s.enqueue("T-0001", "R1")
	other := s.enqueue("T-0002", "R2")

	ops, err := s.queue.PendingForToken(s.ctx, "T-0002")
	s.Require().NoError(err)
	s.Require().Len(ops, 1)
	s.Equal(other.ID, ops[0].ID)

	s.Require().NoError(s.queue.MarkApplied(s.ctx, other.ID, s.now))
	ops, err = s.queue.PendingForToken(s.ctx, "T-0002")
	s.Require().NoError(err)
	s.Empty(ops)
}

func (s *Suite) TestAppliedOperationsLeavePendingButStayReadable() {
	op := s.enqueue("T-0001", "R1")
	s.Require().NoError(s.queue.MarkApplied(s.ctx, op.ID, s.now.Add(time.Minute)))

	pending, err := s.queue.Pending(s.ctx)
	s.Require().NoError(err)
	s.Empty(pending)

	got, err := s.queue.Get(s.ctx, op.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.AppliedAt)
	s.True(got.AppliedAt.Equal(s.now.Add(time.Minute)))

	s.ErrorIs(s.queue.MarkApplied(s.ctx, op.ID, s.now), sentinel.ErrInvalidState)
}

func (s *Suite) TestConflictLifecycle() {
	op := s.enqueue("T-0010", "R6")
	err := s.queue.MarkConflict(s.ctx, op.ID, models.SyncConflict{
		Reason:               models.ConflictTokenBoundElsewhere,
		Message:              "token T-0010 is bound to R5",
		ObservedRegistrantID: "R5",
		DetectedAt:           s.now,
	})
	s.Require().NoError(err)

	pending, err := s.queue.Pending(s.ctx)
	s.Require().NoError(err)
	s.Empty(pending)

	conflicts, err := s.queue.Conflicts(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(conflicts, 1)
	s.Equal(models.ConflictTokenBoundElsewhere, conflicts[0].Conflict.Reason)
	s.Equal(id.RegistrantID("R5"), conflicts[0].Conflict.ObservedRegistrantID)

	acked, err := s.queue.Acknowledge(s.ctx, op.ID, "admin-1", s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal("admin-1", acked.Conflict.AcknowledgedBy)

	conflicts, err = s.queue.Conflicts(s.ctx)
	s.Require().NoError(err)
	s.Empty(conflicts)

	_, err = s.queue.Acknowledge(s.ctx, op.ID, "admin-1", s.now)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *Suite) TestAcknowledgeErrors() {
	_, err := s.queue.Acknowledge(s.ctx, id.NewOperationID(), "admin-1", s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)

	op := s.enqueue("T-0001", "R1")
	_, err = s.queue.Acknowledge(s.ctx, op.ID, "admin-1", s.now)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *Suite) TestUnknownOperation() {
	_, err := s.queue.Get(s.ctx, id.NewOperationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.queue.MarkApplied(s.ctx, id.NewOperationID(), s.now), sentinel.ErrNotFound)
}
