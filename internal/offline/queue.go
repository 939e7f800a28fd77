// Package offline holds binds captured while the shared store was out of
// reach and replays them, in capture order, once it is back.
package offline

import (
	"context"
	"time"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
)

// Queue is the terminal-local list of deferred operations. Applied and
// acknowledged operations are retained for history but never returned by
// Pending or Conflicts.
//
// Errors: unknown ids wrap sentinel.ErrNotFound; acknowledging an operation
// that is not in conflict wraps sentinel.ErrInvalidState; acknowledging twice
// wraps sentinel.ErrAlreadyUsed.
type Queue interface {
	// Append stores op and assigns its sequence number.
	Append(ctx context.Context, op *models.PendingOperation) (*models.PendingOperation, error)
	// Pending returns operations awaiting replay in FIFO order.
	Pending(ctx context.Context) ([]*models.PendingOperation, error)
	// PendingForToken returns pending operations for one token code.
	PendingForToken(ctx context.Context, code id.TokenCode) ([]*models.PendingOperation, error)
	Get(ctx context.Context, opID id.OperationID) (*models.PendingOperation, error)
	MarkApplied(ctx context.Context, opID id.OperationID, at time.Time) error
	MarkConflict(ctx context.Context, opID id.OperationID, conflict models.SyncConflict) error
	// Conflicts returns unacknowledged conflicts in FIFO order.
	Conflicts(ctx context.Context) ([]*models.PendingOperation, error)
	Acknowledge(ctx context.Context, opID id.OperationID, by string, at time.Time) (*models.PendingOperation, error)
}
