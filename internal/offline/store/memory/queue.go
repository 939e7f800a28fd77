package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

// Queue keeps deferred operations for the lifetime of the process.
type Queue struct {
	mu   sync.RWMutex
	seq  int64
	ops  []*models.PendingOperation
	byID map[id.OperationID]*models.PendingOperation
}

func New() *Queue {
	return &Queue{byID: make(map[id.OperationID]*models.PendingOperation)}
}

func (q *Queue) Append(_ context.Context, op *models.PendingOperation) (*models.PendingOperation, error) {
	if op == nil || op.ID.IsNil() {
		return nil, fmt.Errorf("pending operation requires an id: %w", sentinel.ErrInvalidState)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[op.ID]; ok {
		return nil, fmt.Errorf("operation %s already queued: %w", op.ID, sentinel.ErrConflict)
	}
	q.seq++
	stored := op.Clone()
	stored.Seq = q.seq
	q.ops = append(q.ops, stored)
	q.byID[stored.ID] = stored
	return stored.Clone(), nil
}

func (q *Queue) Pending(_ context.Context) ([]*models.PendingOperation, error) {
	return q.filter(func(op *models.PendingOperation) bool { return op.IsPending() }), nil
}

func (q *Queue) PendingForToken(_ context.Context, code id.TokenCode) ([]*models.PendingOperation, error) {
	return q.filter(func(op *models.PendingOperation) bool {
		return op.IsPending() && op.Payload.TokenCode == code
	}), nil
}

func (q *Queue) Conflicts(_ context.Context) ([]*models.PendingOperation, error) {
	return q.filter(func(op *models.PendingOperation) bool { return op.Conflict.IsOpen() }), nil
}

func (q *Queue) filter(keep func(*models.PendingOperation) bool) []*models.PendingOperation {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []*models.PendingOperation
	for _, op := range q.ops {
		if keep(op) {
			out = append(out, op.Clone())
		}
	}
	return out
}

func (q *Queue) Get(_ context.Context, opID id.OperationID) (*models.PendingOperation, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	op, ok := q.byID[opID]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", opID, sentinel.ErrNotFound)
	}
	return op.Clone(), nil
}

func (q *Queue) MarkApplied(_ context.Context, opID id.OperationID, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	op, ok := q.byID[opID]
	if !ok {
		return fmt.Errorf("operation %s: %w", opID, sentinel.ErrNotFound)
	}
	if !op.IsPending() {
		return fmt.Errorf("operation %s is no longer pending: %w", opID, sentinel.ErrInvalidState)
	}
	op.AppliedAt = &at
	return nil
}

func (q *Queue) MarkConflict(_ context.Context, opID id.OperationID, conflict models.SyncConflict) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	op, ok := q.byID[opID]
	if !ok {
		return fmt.Errorf("operation %s: %w", opID, sentinel.ErrNotFound)
	}
	if !op.IsPending() {
		return fmt.Errorf("operation %s is no longer pending: %w", opID, sentinel.ErrInvalidState)
	}
	conflict.AcknowledgedAt = nil
	conflict.AcknowledgedBy = ""
	op.Conflict = &conflict
	return nil
}

func (q *Queue) Acknowledge(_ context.Context, opID id.OperationID, by string, at time.Time) (*models.PendingOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op, ok := q.byID[opID]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", opID, sentinel.ErrNotFound)
	}
	if op.Conflict == nil {
		return nil, fmt.Errorf("operation %s is not in conflict: %w", opID, sentinel.ErrInvalidState)
	}
	if op.Conflict.AcknowledgedAt != nil {
		return nil, fmt.Errorf("conflict %s already acknowledged: %w", opID, sentinel.ErrAlreadyUsed)
	}
	op.Conflict.AcknowledgedAt = &at
	op.Conflict.AcknowledgedBy = by
	return op.Clone(), nil
}
