package types

import (
	"errors"
	"time"
)

// FileSet is the ordered, duplicate-free list of root-relative paths produced
// by discovery. It is not modified after discovery returns.
type FileSet []string

// Chunk is the slice of a FileSet handed to a single tagger process
type Chunk struct {
	Index int
	Files []string
}

// Empty reports whether the chunk has no files to tag
func (c Chunk) Empty() bool {
	return len(c.Files) == 0
}

// ChunkResult is the outcome of running the tagger over one Chunk.
// Exactly one of Lines or Failure is meaningful.
type ChunkResult struct {
	Index   int
	Files   int
	Lines   []string
	Elapsed time.Duration

	// Failure is nil when the tagger succeeded
	Failure *ChunkFailure
}

// Succeeded reports whether the chunk produced usable output
func (r *ChunkResult) Succeeded() bool {
	return r != nil && r.Failure == nil
}

// Validate checks the structural consistency of the result
func (r *ChunkResult) Validate() error {
	if r.Index < 0 {
		return errors.New("chunk index must be non-negative")
	}
	if r.Failure != nil && len(r.Lines) > 0 {
		return errors.New("failed chunk cannot carry output")
	}
	if r.Failure != nil && r.Failure.Index != r.Index {
		return errors.New("failure index does not match chunk index")
	}
	return nil
}

// MergeStrategy defines how per-chunk outputs are combined
type MergeStrategy string

const (
	// MergeConcatenate joins chunk outputs in ascending chunk index order
	MergeConcatenate MergeStrategy = "concatenate"
	// MergeSorted performs a k-way merge of individually sorted chunk outputs
	MergeSorted MergeStrategy = "sorted"
)

// ValidMergeStrategies returns every accepted strategy name
func ValidMergeStrategies() []MergeStrategy {
	return []MergeStrategy{MergeConcatenate, MergeSorted}
}

// Valid reports whether s is a known strategy
func (s MergeStrategy) Valid() bool {
	for _, v := range ValidMergeStrategies() {
		if s == v {
			return true
		}
	}
	return false
}

// MergedOutput is the consolidated tag file content
type MergedOutput struct {
	// Header holds pseudo-tag lines ("!_TAG_...") in first-seen order
	Header []string
	// Entries holds the deduplicated tag lines
	Entries []string
	// Duplicates counts lines collapsed during the merge
	Duplicates int
}

// Lines returns the header followed by the entries
func (m *MergedOutput) Lines() []string {
	lines := make([]string, 0, len(m.Header)+len(m.Entries))
	lines = append(lines, m.Header...)
	return append(lines, m.Entries...)
}
