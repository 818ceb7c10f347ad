// Package types provides shared type definitions for ptags.
//
// This package defines the values that flow through a tag generation run:
// the discovered FileSet, the Chunks handed to tagger processes, their
// ChunkResults, the MergedOutput written to disk, and the RunSummary used
// for statistics, metrics and run history.
//
// # Data Flow
//
//	FileSet -> []Chunk -> []ChunkResult -> MergedOutput -> tag file
//	                                    \-> RunSummary
//
// A ChunkResult either carries tag lines or a *ChunkFailure:
//
//	if r.Succeeded() {
//	    lines = append(lines, r.Lines...)
//	} else {
//	    log.Printf("omitted: %v", r.Failure)
//	}
//
// # Errors
//
// Every error type matches a sentinel through errors.Is:
//
//	ConfigError          -> ErrConfig           (fatal, before dispatch)
//	DiscoveryError       -> ErrDiscovery        (fatal, nothing dispatched)
//	ChunkFailure         -> ErrChunkFailed      (non-fatal, per chunk)
//	AllChunksFailedError -> ErrAllChunksFailed  (fatal, nothing written)
//	WriteError           -> ErrWrite            (fatal, after merge)
//
// ExitCode maps a run outcome to the process status: 0 success, 1 fatal
// failure, 2 configuration error, 3 completed with omitted chunks.
package types
