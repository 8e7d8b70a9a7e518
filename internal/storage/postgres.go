package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"pipeline-acceptance/internal/domain"
)

// PostgresStore keeps acceptance run records, their audit trail and violations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateRun(ctx context.Context, rec domain.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, test_name, identifier, test_root, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.TestName, rec.Identifier, rec.TestRoot, rec.Status)
	return err
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, runID, status)
	return err
}

func (s *PostgresStore) InsertAudit(ctx context.Context, runID string, state domain.AuditState, detail any) error {
	var payload []byte
	switch v := detail.(type) {
	case nil:
		payload = []byte("{}")
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = b
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (run_id, state, detail)
		VALUES ($1, $2, $3::jsonb)
	`, runID, state, string(payload))
	return err
}

// SaveViolations replaces the violations recorded for one validated directory.
func (s *PostgresStore) SaveViolations(ctx context.Context, runID string, dir string, violations []domain.Violation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM violations WHERE run_id = $1 AND dir = $2`, runID, dir); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("violations", "run_id", "dir", "file", "row_number", "column_name", "rule", "value"))
	if err != nil {
		return err
	}
	for _, v := range violations {
		if _, err := stmt.ExecContext(ctx, runID, dir, v.File, v.Row, v.Column, v.Rule, v.Value); err != nil {
			_ = stmt.Close()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status domain.RunStatus, files int, violations int, runErr *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = $2,
		    files = $3,
		    violations = $4,
		    error = $5,
		    finished_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
	`, runID, status, files, violations, runErr)
	return err
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (domain.RunRecord, error) {
	var rec domain.RunRecord
	var runErr sql.NullString
	var finishedAt sql.NullTime
	row := s.db.QueryRowContext(ctx, `
		SELECT id, test_name, identifier, test_root, status, files, violations, error, created_at, finished_at
		FROM runs
		WHERE id = $1
	`, runID)
	if err := row.Scan(
		&rec.ID,
		&rec.TestName,
		&rec.Identifier,
		&rec.TestRoot,
		&rec.Status,
		&rec.Files,
		&rec.Violations,
		&runErr,
		&rec.CreatedAt,
		&finishedAt,
	); err != nil {
		return domain.RunRecord{}, err
	}
	if runErr.Valid {
		rec.Error = &runErr.String
	}
	if finishedAt.Valid {
		rec.FinishedAt = &finishedAt.Time
	}
	return rec, nil
}

func (s *PostgresStore) GetRunStatus(ctx context.Context, runID string) (domain.RunStatus, error) {
	var status domain.RunStatus
	row := s.db.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = $1`, runID)
	if err := row.Scan(&status); err != nil {
		return "", err
	}
	return status, nil
}

func (s *PostgresStore) ListViolations(ctx context.Context, runID string) ([]domain.Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file, row_number, column_name, rule, value
		FROM violations
		WHERE run_id = $1
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Violation, 0)
	for rows.Next() {
		var v domain.Violation
		if err := rows.Scan(&v.File, &v.Row, &v.Column, &v.Rule, &v.Value); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) FailedRules(ctx context.Context, runID string) ([]string, error) {
	var rules []string
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(array_agg(DISTINCT rule ORDER BY rule), '{}')
		FROM violations
		WHERE run_id = $1
	`, runID)
	if err := row.Scan(pq.Array(&rules)); err != nil {
		return nil, fmt.Errorf("failed rules: %w", err)
	}
	return rules, nil
}

func (s *PostgresStore) ListAuditStates(ctx context.Context, runID string) ([]domain.AuditState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state FROM audit_log WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AuditState, 0)
	for rows.Next() {
		var state domain.AuditState
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, rows.Err()
}
