package cmd

import (
	"fmt"

	"github.com/dshills/ptags/internal/config"
	"github.com/dshills/ptags/internal/indexer"
	"github.com/dshills/ptags/internal/logging"
	"github.com/dshills/ptags/internal/metrics"
	"github.com/dshills/ptags/internal/storage"
)

// env holds the collaborators opened for one command
type env struct {
	logger  *logging.Logger
	history storage.Storage
	metrics *metrics.Recorder
	indexer *indexer.Indexer
}

// open creates the logger, the optional sinks and an Indexer wired to them.
// An unavailable history database is logged and skipped; it never blocks
// tag generation.
func (a *app) open(cfg *config.Config, withHistory bool) (*env, error) {
	logger, err := logging.NewLogger(cfg.Logging.File, cfg.LogLevel(), cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	e := &env{logger: logger}
	if withHistory {
		store, err := storage.NewSQLiteStorage(cfg.History.Path)
		if err != nil {
			logger.Warn("run history unavailable", "path", cfg.History.Path, "error", err)
		} else {
			e.history = store
		}
	}
	if cfg.Metrics.File != "" {
		e.metrics = metrics.New()
	}

	e.indexer = indexer.New(indexer.Options{
		Executor: a.executor,
		Logger:   logger,
		Metrics:  e.metrics,
		History:  e.history,
	})
	return e, nil
}

// Close releases the history database and the log file
func (e *env) Close() {
	if e.history != nil {
		if err := e.history.Close(); err != nil {
			e.logger.Warn("failed to close run history", "error", err)
		}
	}
	_ = e.logger.Close()
}
