// Package indexer runs the tag generation pipeline end to end.
//
// # Basic Usage
//
//	idx := indexer.New(indexer.Options{Logger: logger})
//
//	summary, err := idx.Run(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d tags from %d files (%s)\n", summary.Entries, summary.FilesScanned, summary.Status)
//
// # Pipeline
//
// Every run is stateless and starts from a cold file list:
//
//  1. Validate: reject bad configuration before any process starts
//  2. Discover: list files through git (tracked, optionally untracked,
//     ignored, submodules; minus LFS and exclude globs)
//  3. Partition: split the file set into one contiguous chunk per worker
//  4. Dispatch: run the tagger on every chunk concurrently
//  5. Merge: hoist pseudo-tags, collapse duplicates, order deterministically
//  6. Write: atomically replace the output file
//
// # Failures
//
// A chunk whose tagger fails is omitted and the run completes with
// StatusPartial and a nil error. When every chunk fails, or discovery or the
// final write fails, Run returns a nil summary and the output file is left
// untouched. Cancelling ctx stops running taggers and likewise writes nothing.
//
// # Reporting
//
// When configured, finished runs are also reported to a metrics Recorder and
// a history Storage. Reporting failures are logged and never fail the run.
package indexer
