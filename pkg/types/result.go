package types

import "time"

// RunStatus describes how a run ended
type RunStatus string

const (
	// StatusComplete means every chunk succeeded
	StatusComplete RunStatus = "complete"
	// StatusPartial means output was written with some chunks omitted
	StatusPartial RunStatus = "partial"
	// StatusFailed means nothing was written
	StatusFailed RunStatus = "failed"
)

// ChunkStat is the per-chunk line of a RunSummary
type ChunkStat struct {
	Index    int
	Files    int
	Entries  int
	Elapsed  time.Duration
	ExitCode int
	Error    string // Empty on success
}

// Failed reports whether the chunk was omitted from the output
func (c ChunkStat) Failed() bool {
	return c.Error != ""
}

// RunSummary aggregates what happened during one run.
// It is derived from ChunkResults and exists for reporting only.
type RunSummary struct {
	// Identification
	RunID     string
	Root      string
	Output    string
	Workers   int
	Strategy  MergeStrategy
	StartedAt time.Time

	// Counts
	FilesScanned int
	Chunks       []ChunkStat
	Succeeded    int
	Failed       int
	Entries      int
	Duplicates   int
	OutputBytes  int64

	// Phase timings
	DiscoveryElapsed time.Duration
	DispatchElapsed  time.Duration
	MergeElapsed     time.Duration
	TotalElapsed     time.Duration

	Status   RunStatus
	Failures []*ChunkFailure
}

// AverageElapsed returns the mean tagger time over chunks that ran a process
func (s *RunSummary) AverageElapsed() time.Duration {
	var total time.Duration
	n := 0
	for _, c := range s.Chunks {
		if c.Files == 0 {
			continue
		}
		total += c.Elapsed
		n++
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// FailedIndexes lists the indexes of omitted chunks in ascending order
func (s *RunSummary) FailedIndexes() []int {
	idx := make([]int, 0, s.Failed)
	for _, c := range s.Chunks {
		if c.Failed() {
			idx = append(idx, c.Index)
		}
	}
	return idx
}
