package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/ptags/internal/chunker"
	"github.com/dshills/ptags/internal/config"
	"github.com/dshills/ptags/internal/discovery"
	"github.com/dshills/ptags/internal/dispatcher"
	"github.com/dshills/ptags/internal/logging"
	"github.com/dshills/ptags/internal/merger"
	"github.com/dshills/ptags/internal/metrics"
	"github.com/dshills/ptags/internal/storage"
	"github.com/dshills/ptags/pkg/types"
)

// ErrRunInProgress is returned by TryRun while another run holds the lock
var ErrRunInProgress = errors.New("a run is already in progress")

// Options wires the Indexer's collaborators. Every field is optional.
type Options struct {
	// Executor runs git during discovery (default: os/exec)
	Executor discovery.CommandExecutor
	Logger   *logging.Logger
	// Metrics receives every finished run
	Metrics *metrics.Recorder
	// History records every finished run
	History storage.Storage
	// TempDir is the parent of per-run temp directories (default: os.TempDir())
	TempDir string
}

// Indexer coordinates the pipeline: discover -> partition -> dispatch -> merge -> write
type Indexer struct {
	discoverer *discovery.Discoverer
	writer     *merger.Writer
	logger     *logging.Logger
	metrics    *metrics.Recorder
	history    storage.Storage
	tempDir    string

	lock RunLock
}

// New creates a new Indexer instance
func New(opts Options) *Indexer {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Indexer{
		discoverer: discovery.New(opts.Executor, logger.WithPhase("discovery")),
		writer:     merger.NewWriter(logger.WithPhase("write")),
		logger:     logger,
		metrics:    opts.Metrics,
		history:    opts.History,
		tempDir:    opts.TempDir,
	}
}

// TryRun is Run guarded by the Indexer's lock. It fails fast with
// ErrRunInProgress instead of queueing behind another run.
func (idx *Indexer) TryRun(ctx context.Context, cfg *config.Config) (*types.RunSummary, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer idx.lock.Release()
	return idx.Run(ctx, cfg)
}

// Run executes one complete tag generation run. It returns a summary with
// StatusPartial and a nil error when some chunks failed, and a nil summary
// when the run failed as a whole.
func (idx *Indexer) Run(ctx context.Context, cfg *config.Config) (*types.RunSummary, error) {
	if cfg == nil {
		return nil, types.NewConfigError("", nil, "configuration is required")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, config.ValidationErrors(errs)
	}

	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, types.NewConfigError("dir", cfg.Dir, err.Error())
	}

	summary := &types.RunSummary{
		RunID:     uuid.NewString(),
		Root:      root,
		Output:    cfg.OutputPath(),
		Workers:   cfg.Workers,
		Strategy:  cfg.Strategy(),
		StartedAt: time.Now(),
	}
	log := idx.logger.WithRun(summary.RunID)
	log.Info("run started", "root", root, "output", summary.Output, "workers", cfg.Workers, "merge", cfg.Merge)

	if err := idx.execute(ctx, cfg, summary, log); err != nil {
		log.Error("run failed", "error", err, "elapsed", time.Since(summary.StartedAt))
		idx.reportFailure(cfg, log)
		return nil, err
	}

	log.Info("run finished",
		"status", summary.Status,
		"files", summary.FilesScanned,
		"entries", summary.Entries,
		"failed_chunks", summary.Failed,
		"elapsed", summary.TotalElapsed)
	idx.report(ctx, cfg, summary, log)
	return summary, nil
}

func (idx *Indexer) execute(ctx context.Context, cfg *config.Config, summary *types.RunSummary, log *logging.Logger) error {
	// Discover
	phaseStart := time.Now()
	files, err := idx.discoverer.Discover(ctx, summary.Root, discoveryOptions(cfg))
	if err != nil {
		return err
	}
	summary.FilesScanned = len(files)
	summary.DiscoveryElapsed = time.Since(phaseStart)
	log.Debug("files discovered", "files", len(files), "elapsed", summary.DiscoveryElapsed)

	// Partition and dispatch
	phaseStart = time.Now()
	chunks := chunker.Partition(files, cfg.Workers)
	cmd := dispatcher.NewTaggerCommand(cfg.Tagger.Binary, summary.Root, cfg.Tagger.Options, cfg.Strategy())
	d := dispatcher.New(cmd, dispatcher.Options{
		ValidateUTF8: cfg.ValidateUTF8,
		TempDir:      idx.tempDir,
	}, log.WithPhase("dispatch"))

	results, dispatchErr := d.Dispatch(ctx, chunks)
	summary.DispatchElapsed = time.Since(phaseStart)
	if results == nil {
		return dispatchErr
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	if len(files) == 0 && len(results) > 0 {
		// Nothing was tagged; still emit the tagger's header
		header, err := d.Header(ctx)
		if err != nil {
			log.Warn("failed to read tagger header", "error", err)
		}
		results[0].Lines = header
	}
	for i := range results {
		if f := results[i].Failure; f != nil {
			log.WithChunk(f.Index).Warn("chunk omitted from output",
				"files", results[i].Files,
				"exit_code", f.ExitCode,
				"state", f.State,
				"stderr", f.Stderr)
		}
	}

	// Merge and write
	phaseStart = time.Now()
	merged, err := merger.Merge(results, cfg.Strategy())
	if err != nil {
		return err
	}
	n, err := idx.writer.WriteAtomic(summary.Output, merged)
	if err != nil {
		return err
	}
	summary.MergeElapsed = time.Since(phaseStart)

	summarize(summary, results, merged, n)
	summary.TotalElapsed = time.Since(summary.StartedAt)
	return nil
}

// summarize fills the counts of summary from the run's results
func summarize(summary *types.RunSummary, results []types.ChunkResult, merged *types.MergedOutput, written int64) {
	summary.Chunks = make([]types.ChunkStat, len(results))
	for i, r := range results {
		stat := types.ChunkStat{
			Index:   r.Index,
			Files:   r.Files,
			Elapsed: r.Elapsed,
		}
		if r.Failure != nil {
			stat.ExitCode = r.Failure.ExitCode
			stat.Error = r.Failure.Error()
			summary.Failures = append(summary.Failures, r.Failure)
			summary.Failed++
		} else {
			stat.Entries = countEntries(r.Lines)
			if r.Files > 0 {
				summary.Succeeded++
			}
		}
		summary.Chunks[i] = stat
	}

	summary.Entries = len(merged.Entries)
	summary.Duplicates = merged.Duplicates
	summary.OutputBytes = written
	summary.Status = types.StatusComplete
	if summary.Failed > 0 {
		summary.Status = types.StatusPartial
	}
}

func countEntries(lines []string) int {
	n := 0
	for _, l := range lines {
		if l != "" && !merger.IsHeader(l) {
			n++
		}
	}
	return n
}

func discoveryOptions(cfg *config.Config) discovery.Options {
	return discovery.Options{
		GitBinary:         cfg.Git.Binary,
		GitOptions:        cfg.Git.Options,
		LFSOptions:        cfg.Git.LFSOptions,
		IncludeIgnored:    cfg.Include.Ignored,
		IncludeUntracked:  cfg.Include.Untracked,
		IncludeSubmodules: cfg.Include.Submodules,
		ExcludeLFS:        cfg.ExcludeLFS,
		Exclude:           cfg.Exclude,
	}
}

func (idx *Indexer) report(ctx context.Context, cfg *config.Config, summary *types.RunSummary, log *logging.Logger) {
	if idx.metrics != nil {
		idx.metrics.ObserveRun(summary)
		idx.writeMetrics(cfg, log)
	}
	if idx.history != nil {
		// Recording survives an interrupt that arrives after the write
		if err := idx.history.RecordRun(context.WithoutCancel(ctx), storage.FromSummary(summary)); err != nil {
			log.Warn("failed to record run history", "error", err)
		}
	}
}

func (idx *Indexer) reportFailure(cfg *config.Config, log *logging.Logger) {
	if idx.metrics == nil {
		return
	}
	idx.metrics.ObserveFailure()
	idx.writeMetrics(cfg, log)
}

func (idx *Indexer) writeMetrics(cfg *config.Config, log *logging.Logger) {
	if cfg.Metrics.File == "" {
		return
	}
	if err := idx.metrics.WriteTextfile(cfg.Metrics.File); err != nil {
		log.Warn("failed to export metrics", "path", cfg.Metrics.File, "error", err)
	}
}
