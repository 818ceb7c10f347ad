// Package storage provides the SQLite run-history ledger.
//
// Every completed or partial run can be recorded together with its per-chunk
// outcomes. The ledger is write-mostly and read only by reporting surfaces
// (`ptags history`, the MCP list_runs and get_run tools). It is never
// consulted to skip or reuse work; every run starts from a cold file list.
//
// # Database Schema
//
// Tables:
//   - runs: one row per run (root, output, workers, strategy, counts, timings, status)
//   - chunk_results: one row per chunk of a run (files, entries, elapsed, exit code, error)
//   - schema_version: applied migrations, ordered by semantic version
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(cfg.History.Path)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.RecordRun(ctx, storage.FromSummary(summary)); err != nil {
//	    return err
//	}
//
//	runs, err := db.ListRuns(ctx, "/path/to/repo", 20)
//
// # Drivers
//
// The default build uses modernc.org/sqlite, a pure Go driver. Building with
// the sqlite_cgo tag and CGO enabled switches to github.com/mattn/go-sqlite3.
// See DriverName and BuildMode.
package storage
