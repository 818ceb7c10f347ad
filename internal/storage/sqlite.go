package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned when a requested run doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a run ID is recorded twice
	ErrAlreadyExists = errors.New("already exists")
)

const (
	// DefaultListLimit is used when ListRuns gets a non-positive limit
	DefaultListLimit = 20
	// MaxListLimit caps ListRuns
	MaxListLimit = 100
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode so `ptags history` can read while a run records
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens or creates the ledger at dbPath and applies migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// RecordRun stores run and its chunks in one transaction
func (s *SQLiteStorage) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New("run ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE id = ?", run.ID).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("run %s: %w", run.ID, ErrAlreadyExists)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, root_path, output_path, workers, strategy, status, started_at_ms,
			files_scanned, chunks_succeeded, chunks_failed, entries, duplicates, output_bytes,
			discovery_ms, dispatch_ms, merge_ms, total_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Root, run.Output, run.Workers, run.Strategy, run.Status, run.StartedAt.UnixMilli(),
		run.FilesScanned, run.Succeeded, run.Failed, run.Entries, run.Duplicates, run.OutputBytes,
		run.DiscoveryMs, run.DispatchMs, run.MergeMs, run.TotalMs)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_results (run_id, chunk_index, files, entries, elapsed_ms, exit_code, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range run.Chunks {
		var errText sql.NullString
		if c.Error != "" {
			errText = sql.NullString{String: c.Error, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, c.Index, c.Files, c.Entries, c.ElapsedMs, c.ExitCode, errText); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Index, err)
		}
	}

	return tx.Commit()
}

const runColumns = `
	id, root_path, output_path, workers, strategy, status, started_at_ms,
	files_scanned, chunks_succeeded, chunks_failed, entries, duplicates, output_bytes,
	discovery_ms, dispatch_ms, merge_ms, total_ms
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		startedMs int64
	)
	err := row.Scan(
		&run.ID, &run.Root, &run.Output, &run.Workers, &run.Strategy, &run.Status, &startedMs,
		&run.FilesScanned, &run.Succeeded, &run.Failed, &run.Entries, &run.Duplicates, &run.OutputBytes,
		&run.DiscoveryMs, &run.DispatchMs, &run.MergeMs, &run.TotalMs,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(startedMs)
	return &run, nil
}

// GetRun returns a run with its chunks ordered by index
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_index, files, entries, elapsed_ms, exit_code, error
		FROM chunk_results
		WHERE run_id = ?
		ORDER BY chunk_index
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c       ChunkRecord
			errText sql.NullString
		)
		if err := rows.Scan(&c.Index, &c.Files, &c.Entries, &c.ElapsedMs, &c.ExitCode, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Error = errText.String
		run.Chunks = append(run.Chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns recent runs without their chunks, newest first
func (s *SQLiteStorage) ListRuns(ctx context.Context, root string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	query := "SELECT " + runColumns + " FROM runs"
	args := []any{}
	if root != "" {
		query += " WHERE root_path = ?"
		args = append(args, root)
	}
	query += " ORDER BY started_at_ms DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
