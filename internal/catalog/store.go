// File path: internal/catalog/store.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory catalog.
const MemoryPath = ":memory:"

// Store wraps a pooled sqlx.DB connection to the SQLite catalog.
type Store struct {
	db *sqlx.DB
}

// Open opens the catalog at path, taking pool settings from LoadConfig. A
// non-empty path overrides the configured one.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig opens the catalog and applies the schema.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("catalog: path required")
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	var dsn string
	if cfg.Path == MemoryPath {
		// Each :memory: connection is its own database; keep exactly one open.
		dsn = fmt.Sprintf("file::memory:?_busy_timeout=%d&_foreign_keys=on", busy)
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	} else {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("catalog: resolve path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("catalog: create dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL", abs, busy)
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.Path != MemoryPath {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("catalog: begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("catalog: schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit migration: %w", err)
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS copybooks (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                name TEXT NOT NULL UNIQUE,
                fingerprint TEXT NOT NULL,
                source TEXT NOT NULL,
                record_length INTEGER NOT NULL,
                field_count INTEGER NOT NULL,
                created_at DATETIME NOT NULL,
                updated_at DATETIME NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS decode_runs (
                id TEXT PRIMARY KEY,
                copybook_id INTEGER NOT NULL,
                input TEXT,
                records INTEGER NOT NULL DEFAULT 0,
                failures INTEGER NOT NULL DEFAULT 0,
                status TEXT NOT NULL,
                started_at DATETIME NOT NULL,
                finished_at DATETIME NOT NULL,
                FOREIGN KEY(copybook_id) REFERENCES copybooks(id) ON DELETE CASCADE
        );`,
	`CREATE INDEX IF NOT EXISTS idx_copybooks_fingerprint ON copybooks(fingerprint);`,
	`CREATE INDEX IF NOT EXISTS idx_runs_copybook_started ON decode_runs(copybook_id, started_at);`,
}
