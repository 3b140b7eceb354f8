// File path: internal/catalog/queries.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a named copybook is not registered.
var ErrNotFound = errors.New("catalog: not found")

const copybookColumns = `id, name, fingerprint, source, record_length, field_count, created_at, updated_at`

// SaveCopybook inserts or replaces the definition stored under cb.Name and
// returns the stored row.
func (s *Store) SaveCopybook(ctx context.Context, cb Copybook) (*Copybook, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog: store not initialised")
	}
	cb.Name = strings.TrimSpace(cb.Name)
	if cb.Name == "" {
		return nil, errors.New("catalog: copybook name required")
	}
	now := time.Now().UTC()
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO copybooks (name, fingerprint, source, record_length, field_count, created_at, updated_at)
                VALUES (?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(name) DO UPDATE SET
                        fingerprint = excluded.fingerprint,
                        source = excluded.source,
                        record_length = excluded.record_length,
                        field_count = excluded.field_count,
                        updated_at = excluded.updated_at`,
			cb.Name, cb.Fingerprint, cb.Source, cb.RecordLength, cb.FieldCount, now, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: save copybook %s: %w", cb.Name, err)
	}
	return s.GetCopybook(ctx, cb.Name)
}

// GetCopybook loads a copybook by name.
func (s *Store) GetCopybook(ctx context.Context, name string) (*Copybook, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog: store not initialised")
	}
	var cb Copybook
	err := s.db.GetContext(ctx, &cb, `SELECT `+copybookColumns+` FROM copybooks WHERE name = ?`, strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: copybook %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get copybook %s: %w", name, err)
	}
	return &cb, nil
}

// ListCopybooks returns every registered copybook ordered by name. Sources
// are left out.
func (s *Store) ListCopybooks(ctx context.Context) ([]Copybook, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog: store not initialised")
	}
	copybooks := []Copybook{}
	if err := s.db.SelectContext(ctx, &copybooks, `SELECT id, name, fingerprint, '' AS source, record_length, field_count, created_at, updated_at
                FROM copybooks ORDER BY name`); err != nil {
		return nil, fmt.Errorf("catalog: list copybooks: %w", err)
	}
	return copybooks, nil
}

// DeleteCopybook removes a copybook and its run history.
func (s *Store) DeleteCopybook(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return errors.New("catalog: store not initialised")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM copybooks WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("catalog: delete copybook %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: copybook %s", ErrNotFound, name)
	}
	return nil
}

// RecordRun stores a finished run. An empty ID is filled with a new UUID.
func (s *Store) RecordRun(ctx context.Context, run Run) (*Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog: store not initialised")
	}
	cb, err := s.GetCopybook(ctx, run.Copybook)
	if err != nil {
		return nil, err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = RunSucceeded
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	run.CopybookID = cb.ID
	run.Copybook = cb.Name
	_, err = s.db.ExecContext(ctx, `INSERT INTO decode_runs (id, copybook_id, input, records, failures, status, started_at, finished_at)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CopybookID, run.Input, run.Records, run.Failures, run.Status, run.StartedAt, run.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("catalog: record run %s: %w", run.ID, err)
	}
	return &run, nil
}

// ListRuns returns the newest runs first. An empty copybook name lists runs
// of every copybook; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, copybook string, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("catalog: store not initialised")
	}
	query := `SELECT r.id, r.copybook_id, c.name AS copybook, COALESCE(r.input, '') AS input, r.records, r.failures, r.status, r.started_at, r.finished_at
                FROM decode_runs r
                INNER JOIN copybooks c ON c.id = r.copybook_id`
	var args []interface{}
	if name := strings.TrimSpace(copybook); name != "" {
		query += ` WHERE c.name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY r.started_at DESC, r.id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("catalog: list runs: %w", err)
	}
	return runs, nil
}
