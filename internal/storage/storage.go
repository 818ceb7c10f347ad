package storage

import (
	"context"
	"time"

	"github.com/dshills/ptags/pkg/types"
)

// Storage defines the run-history ledger
type Storage interface {
	// RecordRun stores a run and its chunk outcomes atomically
	RecordRun(ctx context.Context, run *Run) error
	// GetRun returns a run with its chunks, or ErrNotFound
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recent runs first. An empty root lists every root.
	ListRuns(ctx context.Context, root string, limit int) ([]*Run, error)

	Close() error
}

// Run is one recorded invocation
type Run struct {
	ID        string
	Root      string
	Output    string
	Workers   int
	Strategy  string
	Status    string
	StartedAt time.Time

	FilesScanned int
	Succeeded    int
	Failed       int
	Entries      int
	Duplicates   int
	OutputBytes  int64

	DiscoveryMs int64
	DispatchMs  int64
	MergeMs     int64
	TotalMs     int64

	Chunks []ChunkRecord
}

// ChunkRecord is the stored outcome of a single chunk
type ChunkRecord struct {
	Index     int
	Files     int
	Entries   int
	ElapsedMs int64
	ExitCode  int
	Error     string
}

// FromSummary converts a RunSummary into its stored form
func FromSummary(s *types.RunSummary) *Run {
	run := &Run{
		ID:           s.RunID,
		Root:         s.Root,
		Output:       s.Output,
		Workers:      s.Workers,
		Strategy:     string(s.Strategy),
		Status:       string(s.Status),
		StartedAt:    s.StartedAt,
		FilesScanned: s.FilesScanned,
		Succeeded:    s.Succeeded,
		Failed:       s.Failed,
		Entries:      s.Entries,
		Duplicates:   s.Duplicates,
		OutputBytes:  s.OutputBytes,
		DiscoveryMs:  s.DiscoveryElapsed.Milliseconds(),
		DispatchMs:   s.DispatchElapsed.Milliseconds(),
		MergeMs:      s.MergeElapsed.Milliseconds(),
		TotalMs:      s.TotalElapsed.Milliseconds(),
		Chunks:       make([]ChunkRecord, len(s.Chunks)),
	}
	for i, c := range s.Chunks {
		run.Chunks[i] = ChunkRecord{
			Index:     c.Index,
			Files:     c.Files,
			Entries:   c.Entries,
			ElapsedMs: c.Elapsed.Milliseconds(),
			ExitCode:  c.ExitCode,
			Error:     c.Error,
		}
	}
	return run
}

// ToSummary converts a stored run back into a RunSummary. Only the error text
// of failed chunks is stored, so Failures is left empty.
func (r *Run) ToSummary() *types.RunSummary {
	s := &types.RunSummary{
		RunID:            r.ID,
		Root:             r.Root,
		Output:           r.Output,
		Workers:          r.Workers,
		Strategy:         types.MergeStrategy(r.Strategy),
		Status:           types.RunStatus(r.Status),
		StartedAt:        r.StartedAt,
		FilesScanned:     r.FilesScanned,
		Succeeded:        r.Succeeded,
		Failed:           r.Failed,
		Entries:          r.Entries,
		Duplicates:       r.Duplicates,
		OutputBytes:      r.OutputBytes,
		DiscoveryElapsed: time.Duration(r.DiscoveryMs) * time.Millisecond,
		DispatchElapsed:  time.Duration(r.DispatchMs) * time.Millisecond,
		MergeElapsed:     time.Duration(r.MergeMs) * time.Millisecond,
		TotalElapsed:     time.Duration(r.TotalMs) * time.Millisecond,
		Chunks:           make([]types.ChunkStat, len(r.Chunks)),
	}
	for i, c := range r.Chunks {
		s.Chunks[i] = types.ChunkStat{
			Index:    c.Index,
			Files:    c.Files,
			Entries:  c.Entries,
			Elapsed:  time.Duration(c.ElapsedMs) * time.Millisecond,
			ExitCode: c.ExitCode,
			Error:    c.Error,
		}
	}
	return s
}
