package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- One row per run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    root_path TEXT NOT NULL,
    output_path TEXT NOT NULL,
    workers INTEGER NOT NULL,
    strategy TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at_ms INTEGER NOT NULL,
    files_scanned INTEGER DEFAULT 0,
    chunks_succeeded INTEGER DEFAULT 0,
    chunks_failed INTEGER DEFAULT 0,
    entries INTEGER DEFAULT 0,
    duplicates INTEGER DEFAULT 0,
    output_bytes INTEGER DEFAULT 0,
    discovery_ms INTEGER DEFAULT 0,
    dispatch_ms INTEGER DEFAULT 0,
    merge_ms INTEGER DEFAULT 0,
    total_ms INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root_path);

-- One row per chunk of a run
CREATE TABLE IF NOT EXISTS chunk_results (
    run_id TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    files INTEGER NOT NULL,
    entries INTEGER DEFAULT 0,
    elapsed_ms INTEGER DEFAULT 0,
    exit_code INTEGER DEFAULT 0,
    error TEXT,
    PRIMARY KEY (run_id, chunk_index),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS chunk_results;
DROP TABLE IF EXISTS runs;
DROP TABLE IF EXISTS schema_version;
`

// Listing by root orders by start time
const migrationV11Up = `
CREATE INDEX IF NOT EXISTS idx_runs_root_started ON runs(root_path, started_at_ms DESC);
`

const migrationV11Down = `
DROP INDEX IF EXISTS idx_runs_root_started;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// schemaVersion returns the highest applied version, 0.0.0 on a fresh database
func schemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer rows.Close()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		parsed, err := semver.NewVersion(v)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", v, err)
		}
		if parsed.GreaterThan(current) {
			current = parsed
		}
	}
	return current, rows.Err()
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	var migration *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	// The first migration drops schema_version itself
	if migration.Version == AllMigrations[0].Version {
		return nil
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}
	return nil
}
