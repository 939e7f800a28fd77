package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	audit "checkin/pkg/platform/audit"
	txcontext "checkin/pkg/platform/tx"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// Store implements audit.Store using the transactional outbox pattern. Each
// event is written to the queryable audit_events table and to audit_outbox
// in one transaction; the relay publishes outbox rows downstream.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// OutboxEntry is an event waiting to be published.
type OutboxEntry struct {
	Seq     int64
	Subject string
	Action  string
	Payload []byte
}

// Append writes the event and its outbox row. When ctx carries a transaction
// both rows join it, so the audit record commits with the business write.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	event = audit.Normalize(event, time.Now())

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	write := func(exec dbExecutor) error {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO audit_events (
				id, category, timestamp, action, subject, registrant_id,
				terminal_id, operation_id, actor_id, issues, reason, decision, request_id
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO NOTHING`,
			event.ID,
			string(event.Category),
			event.Timestamp,
			event.Action,
			event.Subject,
			event.RegistrantID,
			event.TerminalID,
			event.OperationID,
			event.ActorID,
			pq.Array(nonNil(event.Issues)),
			event.Reason,
			event.Decision,
			event.RequestID,
		)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		_, err = exec.ExecContext(ctx, `
			INSERT INTO audit_outbox (event_id, subject, action, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			event.ID, event.Subject, event.Action, payload, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
		return nil
	}

	if tx, ok := txcontext.From(ctx); ok {
		return write(tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	if err := write(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

const eventColumns = `id, category, timestamp, action, subject, registrant_id,
	terminal_id, operation_id, actor_id, issues, reason, decision, request_id`

// ListBySubject returns events for one token code, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM audit_events WHERE subject = $1 ORDER BY timestamp, id`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM audit_events ORDER BY timestamp DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// PendingOutbox returns unpublished outbox rows in insertion order.
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, subject, action, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.Seq, &e.Subject, &e.Action, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given outbox rows as delivered.
func (s *Store) MarkPublished(ctx context.Context, seqs []int64, at time.Time) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE audit_outbox SET published_at = $1 WHERE seq = ANY($2) AND published_at IS NULL`,
		at, pq.Array(seqs))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
		)
		err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&event.Action,
			&event.Subject,
			&event.RegistrantID,
			&event.TerminalID,
			&event.OperationID,
			&event.ActorID,
			pq.Array(&event.Issues),
			&event.Reason,
			&event.Decision,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if len(event.Issues) == 0 {
			event.Issues = nil
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
