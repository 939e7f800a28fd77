// Package sqlite keeps the offline queue in a SQLite file so queued binds
// survive a terminal restart.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"checkin/internal/checkin/models"
	"checkin/internal/offline/store/sqlite/migrations"
	"checkin/internal/platform/storage/sqlitemigrate"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
)

const columns = `seq, op_id, kind, terminal_id, token_code, registrant_id, captured_at, extra_fields,
	created_at, applied_at, conflict_reason, conflict_message, observed_registrant_id,
	observed_token_code, detected_at, acknowledged_at, acknowledged_by`

// Queue is the SQLite-backed offline queue.
type Queue struct {
	db *sql.DB
}

// Open opens (or creates) the queue file at path and applies migrations.
func Open(ctx context.Context, path string) (*Queue, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("queue path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite queue: %w", err)
	}
	// Writes are serialized by SQLite anyway; one connection keeps
	// sequence assignment and reads consistent.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite queue: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, db, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite queue: %w", err)
	}
	return &Queue{db: db}, nil
}

func (q *Queue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func (q *Queue) Append(ctx context.Context, op *models.PendingOperation) (*models.PendingOperation, error) {
	if op == nil || op.ID.IsNil() {
		return nil, fmt.Errorf("pending operation requires an id: %w", sentinel.ErrInvalidState)
	}
	extra, err := json.Marshal(op.Payload.ExtraFields)
	if err != nil {
		return nil, fmt.Errorf("encode extra fields: %w", err)
	}
	createdAt := op.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	kind := op.Kind
	if kind == "" {
		kind = models.OperationKindBind
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO pending_operations (op_id, kind, terminal_id, token_code, registrant_id, captured_at, extra_fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID.String(), string(kind), op.TerminalID.String(), op.Payload.TokenCode.String(),
		op.Payload.RegistrantID.String(), toMillis(op.Payload.CapturedAt), string(extra), toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("operation %s already queued: %w", op.ID, sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("insert pending operation: %w", err)
	}
	return q.Get(ctx, op.ID)
}

func (q *Queue) Pending(ctx context.Context) ([]*models.PendingOperation, error) {
	return q.list(ctx, `WHERE applied_at IS NULL AND conflict_reason IS NULL ORDER BY seq`)
}

func (q *Queue) PendingForToken(ctx context.Context, code id.TokenCode) ([]*models.PendingOperation, error) {
	return q.list(ctx, `WHERE applied_at IS NULL AND conflict_reason IS NULL AND token_code = ? ORDER BY seq`, code.String())
}

func (q *Queue) Conflicts(ctx context.Context) ([]*models.PendingOperation, error) {
	return q.list(ctx, `WHERE conflict_reason IS NOT NULL AND acknowledged_at IS NULL ORDER BY seq`)
}

func (q *Queue) list(ctx context.Context, where string, args ...any) ([]*models.PendingOperation, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+columns+` FROM pending_operations `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending operations: %w", err)
	}
	defer rows.Close()
	var out []*models.PendingOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending operations: %w", err)
	}
	return out, nil
}

func (q *Queue) Get(ctx context.Context, opID id.OperationID) (*models.PendingOperation, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+columns+` FROM pending_operations WHERE op_id = ?`, opID.String())
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %s: %w", opID, sentinel.ErrNotFound)
	}
	return op, err
}

func (q *Queue) MarkApplied(ctx context.Context, opID id.OperationID, at time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE pending_operations SET applied_at = ?
		WHERE op_id = ? AND applied_at IS NULL AND conflict_reason IS NULL`,
		toMillis(at), opID.String())
	if err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}
	return q.checkPendingUpdate(ctx, res, opID)
}

func (q *Queue) MarkConflict(ctx context.Context, opID id.OperationID, conflict models.SyncConflict) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE pending_operations
		SET conflict_reason = ?, conflict_message = ?, observed_registrant_id = ?,
		    observed_token_code = ?, detected_at = ?
		WHERE op_id = ? AND applied_at IS NULL AND conflict_reason IS NULL`,
		string(conflict.Reason), conflict.Message, conflict.ObservedRegistrantID.String(),
		conflict.ObservedTokenCode.String(), toMillis(conflict.DetectedAt), opID.String())
	if err != nil {
		return fmt.Errorf("mark conflict: %w", err)
	}
	return q.checkPendingUpdate(ctx, res, opID)
}

// checkPendingUpdate distinguishes an unknown id from one that already left
// the pending state.
func (q *Queue) checkPendingUpdate(ctx context.Context, res sql.Result, opID id.OperationID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := q.Get(ctx, opID); err != nil {
		return err
	}
	return fmt.Errorf("operation %s is no longer pending: %w", opID, sentinel.ErrInvalidState)
}

func (q *Queue) Acknowledge(ctx context.Context, opID id.OperationID, by string, at time.Time) (*models.PendingOperation, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE pending_operations SET acknowledged_at = ?, acknowledged_by = ?
		WHERE op_id = ? AND conflict_reason IS NOT NULL AND acknowledged_at IS NULL`,
		toMillis(at), by, opID.String())
	if err != nil {
		return nil, fmt.Errorf("acknowledge conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	op, err := q.Get(ctx, opID)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return op, nil
	}
	if op.Conflict == nil {
		return nil, fmt.Errorf("operation %s is not in conflict: %w", opID, sentinel.ErrInvalidState)
	}
	return nil, fmt.Errorf("conflict %s already acknowledged: %w", opID, sentinel.ErrAlreadyUsed)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*models.PendingOperation, error) {
	var (
		op                                         models.PendingOperation
		opID, kind, terminal, token, registrant    string
		captured, created                          int64
		extra                                      string
		applied, detected, acknowledged            sql.NullInt64
		reason                                     sql.NullString
		message, observedRegistrant, observedToken string
		acknowledgedBy                             string
	)
	err := row.Scan(&op.Seq, &opID, &kind, &terminal, &token, &registrant, &captured, &extra,
		&created, &applied, &reason, &message, &observedRegistrant, &observedToken,
		&detected, &acknowledged, &acknowledgedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan pending operation: %w", err)
	}

	parsed, err := uuid.Parse(opID)
	if err != nil {
		return nil, fmt.Errorf("scan pending operation id: %w", err)
	}
	op.ID = id.OperationID(parsed)
	op.Kind = models.OperationKind(kind)
	op.TerminalID = id.TerminalID(terminal)
	op.CreatedAt = fromMillis(created)
	op.Payload = models.BindPayload{
		TokenCode:    id.TokenCode(token),
		RegistrantID: id.RegistrantID(registrant),
		CapturedAt:   fromMillis(captured),
	}
	if extra != "" && extra != "null" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &op.Payload.ExtraFields); err != nil {
			return nil, fmt.Errorf("decode extra fields: %w", err)
		}
	}
	if applied.Valid {
		t := fromMillis(applied.Int64)
		op.AppliedAt = &t
	}
	if reason.Valid {
		op.Conflict = &models.SyncConflict{
			Reason:               models.ConflictReason(reason.String),
			Message:              message,
			ObservedRegistrantID: id.RegistrantID(observedRegistrant),
			ObservedTokenCode:    id.TokenCode(observedToken),
			AcknowledgedBy:       acknowledgedBy,
		}
		if detected.Valid {
			op.Conflict.DetectedAt = fromMillis(detected.Int64)
		}
		if acknowledged.Valid {
			t := fromMillis(acknowledged.Int64)
			op.Conflict.AcknowledgedAt = &t
		}
	}
	return &op, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
