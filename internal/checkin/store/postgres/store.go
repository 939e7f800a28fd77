package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"checkin/internal/checkin/models"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
	txcontext "checkin/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const tokenColumns = `code, event_id, status, bound_registrant_id, bound_at, unbound_at, version, updated_at`

const registrantColumns = `id, kind, display_name, national_id_fragment, checked_in, checked_in_at,
	checked_in_by_terminal, bound_token_code, contract_signed, medical_clearance, birth_date, version, updated_at`

// PostgresStore is the shared store backed by PostgreSQL. Transitions are
// conditional UPDATEs inside one transaction; the WHERE clause is the
// compare-and-set and the unique constraints on the binding columns back it up.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure checkin schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn in a transaction carried by ctx. Nested calls join the
// outer transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveToken(ctx context.Context, token *models.Token) error {
	if err := token.CheckInvariant(); err != nil {
		return err
	}
	query := `
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			status = EXCLUDED.status,
			bound_registrant_id = EXCLUDED.bound_registrant_id,
			bound_at = EXCLUDED.bound_at,
			unbound_at = EXCLUDED.unbound_at,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`
	updatedAt := token.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.q(ctx).ExecContext(ctx, query,
		token.Code,
		token.EventID,
		token.Status,
		nullString(string(token.BoundRegistrantID)),
		token.BoundAt,
		token.UnboundAt,
		token.Version,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRegistrant(ctx context.Context, r *models.Registrant) error {
	if err := r.CheckInvariant(); err != nil {
		return err
	}
	query := `
		INSERT INTO registrants (` + registrantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			display_name = EXCLUDED.display_name,
			national_id_fragment = EXCLUDED.national_id_fragment,
			checked_in = EXCLUDED.checked_in,
			checked_in_at = EXCLUDED.checked_in_at,
			checked_in_by_terminal = EXCLUDED.checked_in_by_terminal,
			bound_token_code = EXCLUDED.bound_token_code,
			contract_signed = EXCLUDED.contract_signed,
			medical_clearance = EXCLUDED.medical_clearance,
			birth_date = EXCLUDED.birth_date,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`
	clearance := r.MedicalClearance
	if clearance == "" {
		clearance = models.MedicalClearancePending
	}
	updatedAt := r.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.q(ctx).ExecContext(ctx, query,
		r.ID,
		r.Kind,
		r.DisplayName,
		r.NationalIDFragment,
		r.CheckedIn,
		r.CheckedInAt,
		string(r.CheckedInByTerminal),
		nullString(string(r.BoundTokenCode)),
		r.ContractSigned,
		clearance,
		r.BirthDate,
		r.Version,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save registrant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindToken(ctx context.Context, code id.TokenCode) (*models.Token, error) {
	token, err := scanToken(s.q(ctx).QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE code = $1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token %s: %w", code, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	return token, nil
}

func (s *PostgresStore) FindRegistrant(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error) {
	r, err := scanRegistrant(s.q(ctx).QueryRowContext(ctx, `SELECT `+registrantColumns+` FROM registrants WHERE id = $1`, registrantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registrant %s: %w", registrantID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find registrant: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListRegistrants(ctx context.Context) ([]*models.Registrant, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+registrantColumns+` FROM registrants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	defer rows.Close()

	var list []*models.Registrant
	for rows.Next() {
		r, err := scanRegistrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registrant: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrants: %w", err)
	}
	return list, nil
}

// BindIfAvailable locks the token row first and the registrant row second, the
// same order UnbindIfBound uses, so concurrent transitions cannot deadlock.
func (s *PostgresStore) BindIfAvailable(ctx context.Context, b models.Binding) (*models.BindResult, error) {
	var result *models.BindResult
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		token, err := scanToken(s.q(ctx).QueryRowContext(ctx, `
			UPDATE tokens
			SET status = 'bound', bound_registrant_id = $2, bound_at = $3,
				version = version + 1, updated_at = $3
			WHERE code = $1 AND status = 'available'
			RETURNING `+tokenColumns,
			b.TokenCode, b.RegistrantID, b.At,
		))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return s.tokenRejection(ctx, b.TokenCode, models.ErrTokenNotAvailable)
		case isPgError(err, pgForeignKeyViolation):
			return fmt.Errorf("registrant %s: %w", b.RegistrantID, sentinel.ErrNotFound)
		case isPgError(err, pgUniqueViolation):
			return fmt.Errorf("registrant %s: %w", b.RegistrantID, models.ErrRegistrantHasToken)
		case err != nil:
			return fmt.Errorf("bind token: %w", err)
		}

		registrant, err := scanRegistrant(s.q(ctx).QueryRowContext(ctx, `
			UPDATE registrants
			SET checked_in = TRUE, checked_in_at = $3, checked_in_by_terminal = $4,
				bound_token_code = $1, version = version + 1, updated_at = $3
			WHERE id = $2 AND bound_token_code IS NULL
			RETURNING `+registrantColumns,
			b.TokenCode, b.RegistrantID, b.At, string(b.TerminalID),
		))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("registrant %s: %w", b.RegistrantID, models.ErrRegistrantHasToken)
		case isPgError(err, pgUniqueViolation):
			return fmt.Errorf("token %s: %w", b.TokenCode, models.ErrTokenNotAvailable)
		case err != nil:
			return fmt.Errorf("bind registrant: %w", err)
		}

		if !b.OpID.IsNil() {
			_, err := s.q(ctx).ExecContext(ctx, `
				INSERT INTO applied_operations (op_id, token_code, registrant_id, terminal_id, applied_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (op_id) DO NOTHING
			`, uuid.UUID(b.OpID), b.TokenCode, b.RegistrantID, string(b.TerminalID), b.At)
			if err != nil {
				return fmt.Errorf("record applied operation: %w", err)
			}
		}
		if b.Forced {
			_, err := s.q(ctx).ExecContext(ctx, `
				INSERT INTO binding_overrides (id, token_code, registrant_id, terminal_id, actor_id, issues, reason, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, uuid.New(), b.TokenCode, b.RegistrantID, string(b.TerminalID), b.ActorID, pq.Array(b.OverrideIssues), b.Reason, b.At)
			if err != nil {
				return fmt.Errorf("record override: %w", err)
			}
		}

		result = &models.BindResult{Token: token, Registrant: registrant}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) UnbindIfBound(ctx context.Context, code id.TokenCode, at time.Time) (*models.UnbindResult, error) {
	var result *models.UnbindResult
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		row := s.q(ctx).QueryRowContext(ctx, `
			WITH prev AS (
				SELECT code, bound_registrant_id FROM tokens
				WHERE code = $1 AND status = 'bound'
				FOR UPDATE
			)
			UPDATE tokens t
			SET status = 'available', bound_registrant_id = NULL, unbound_at = $2,
				version = t.version + 1, updated_at = $2
			FROM prev
			WHERE t.code = prev.code
			RETURNING t.code, t.event_id, t.status, t.bound_registrant_id, t.bound_at, t.unbound_at,
				t.version, t.updated_at, prev.bound_registrant_id
		`, code, at)
		var prevRegistrant sql.NullString
		token, err := scanTokenWith(row, &prevRegistrant)
		if errors.Is(err, sql.ErrNoRows) {
			return s.tokenRejection(ctx, code, models.ErrTokenNotBound)
		}
		if err != nil {
			return fmt.Errorf("unbind token: %w", err)
		}
		result = &models.UnbindResult{Token: token, HolderID: id.RegistrantID(prevRegistrant.String)}

		registrant, err := scanRegistrant(s.q(ctx).QueryRowContext(ctx, `
			UPDATE registrants
			SET checked_in = FALSE, checked_in_at = NULL, checked_in_by_terminal = '',
				bound_token_code = NULL, version = version + 1, updated_at = $3
			WHERE id = $1 AND bound_token_code = $2
			RETURNING `+registrantColumns,
			prevRegistrant.String, code, at,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reset registrant: %w", err)
		}
		result.Registrant = registrant
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) MarkDamagedIfAvailable(ctx context.Context, code id.TokenCode, at time.Time) (*models.Token, error) {
	token, err := scanToken(s.q(ctx).QueryRowContext(ctx, `
		UPDATE tokens
		SET status = 'damaged', version = version + 1, updated_at = $2
		WHERE code = $1 AND status = 'available'
		RETURNING `+tokenColumns,
		code, at,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.tokenRejection(ctx, code, models.ErrTokenNotAvailable)
	}
	if err != nil {
		return nil, fmt.Errorf("mark token damaged: %w", err)
	}
	return token, nil
}

func (s *PostgresStore) FindAppliedOperation(ctx context.Context, opID id.OperationID) (*models.AppliedOperation, error) {
	var (
		op       uuid.UUID
		applied  models.AppliedOperation
		terminal string
	)
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT op_id, token_code, registrant_id, terminal_id, applied_at
		FROM applied_operations WHERE op_id = $1
	`, uuid.UUID(opID)).Scan(&op, &applied.TokenCode, &applied.RegistrantID, &terminal, &applied.AppliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %s: %w", opID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find applied operation: %w", err)
	}
	applied.OpID = id.OperationID(op)
	applied.TerminalID = id.TerminalID(terminal)
	return &applied, nil
}

func (s *PostgresStore) ListOverrides(ctx context.Context, code id.TokenCode) ([]*models.OverrideRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, token_code, registrant_id, terminal_id, actor_id, issues, reason, created_at
		FROM binding_overrides WHERE token_code = $1 ORDER BY created_at
	`, code)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var out []*models.OverrideRecord
	for rows.Next() {
		var (
			rec      models.OverrideRecord
			terminal string
		)
		if err := rows.Scan(&rec.ID, &rec.TokenCode, &rec.RegistrantID, &terminal, &rec.ActorID,
			pq.Array(&rec.Issues), &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		rec.TerminalID = id.TerminalID(terminal)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return out, nil
}

// tokenRejection distinguishes a missing token from a failed condition.
func (s *PostgresStore) tokenRejection(ctx context.Context, code id.TokenCode, conflict error) error {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tokens WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check token: %w", err)
	}
	if !exists {
		return fmt.Errorf("token %s: %w", code, sentinel.ErrNotFound)
	}
	return fmt.Errorf("token %s: %w", code, conflict)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*models.Token, error) {
	return scanTokenWith(row)
}

func scanTokenWith(row rowScanner, extra ...any) (*models.Token, error) {
	var (
		t          models.Token
		registrant sql.NullString
		boundAt    sql.NullTime
		unboundAt  sql.NullTime
	)
	dest := []any{&t.Code, &t.EventID, &t.Status, &registrant, &boundAt, &unboundAt, &t.Version, &t.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	t.BoundRegistrantID = id.RegistrantID(registrant.String)
	t.BoundAt = timePtr(boundAt)
	t.UnboundAt = timePtr(unboundAt)
	return &t, nil
}

func scanRegistrant(row rowScanner) (*models.Registrant, error) {
	var (
		r           models.Registrant
		checkedInAt sql.NullTime
		terminal    string
		boundToken  sql.NullString
		birthDate   sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Kind, &r.DisplayName, &r.NationalIDFragment, &r.CheckedIn, &checkedInAt,
		&terminal, &boundToken, &r.ContractSigned, &r.MedicalClearance, &birthDate, &r.Version, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.CheckedInAt = timePtr(checkedInAt)
	r.CheckedInByTerminal = id.TerminalID(terminal)
	r.BoundTokenCode = id.TokenCode(boundToken.String)
	r.BirthDate = timePtr(birthDate)
	return &r, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
