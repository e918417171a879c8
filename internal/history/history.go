// Package history records every backup, restore and sweep operation in a
// small SQLite database so past activity can be reviewed after the fact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"savesaver/internal/config"
	"savesaver/internal/history/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Operation is one recorded engine operation.
type Operation struct {
	ID         int64
	Operation  string // e.g. "BackupNow", "Restore", "Run"
	Target     string
	Detail     string
	Status     string // "running", "success" or "error"
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// Store persists operations in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewStoreFromConfig creates a Store based on the history config type.
func NewStoreFromConfig(cfg config.HistoryConfig) (*Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite history")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
		return Open(filepath.Join(cfg.DataDir, "history.db"))
	case "memory":
		return Open(":memory:")
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}

// Open opens the history database at path (":memory:" for in-memory) and
// brings its schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Wait briefly for locks instead of failing when another invocation of
	// the tool holds the database.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	// Catches a database written by a newer binary: MigrateUp leaves it
	// alone, but this version cannot use it.
	if err := migrations.CheckStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history database schema mismatch: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Record inserts a new running operation and returns its ID.
func (s *Store) Record(operation, target, detail string, startedAt time.Time) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO operations (operation, target, detail, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		operation, target, detail, startedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

// Finish marks an operation finished with the given status.
func (s *Store) Finish(id int64, status string, finishedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, finishedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking finish result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no operation with id %d", id)
	}
	return nil
}

// Recent returns the most recent operations, newest first.
// limit <= 0 returns all of them.
func (s *Store) Recent(limit int) ([]*Operation, error) {
	query := `SELECT id, operation, target, detail, status, started_at, finished_at
		FROM operations ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Target, &op.Detail, &op.Status, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
