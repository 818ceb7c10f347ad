// Package merger combines per-chunk tagger output into one tag file.
//
// # Merging
//
// Merge is a pure function of its input. Lines beginning with "!_" are
// pseudo-tags; they are hoisted to the top in first-seen order and written
// once. Remaining lines are entries:
//   - MergeConcatenate keeps ascending chunk order and the first occurrence
//     of every line
//   - MergeSorted k-way merges the chunks in byte order and collapses equal
//     lines
//
// Failed chunks contribute nothing. When every chunk that had files failed,
// Merge returns *types.AllChunksFailedError and nothing should be written.
//
// # Writing
//
// Writer.WriteAtomic writes into a temp file next to the destination and
// renames it into place, so readers see either the previous file or the
// complete new one.
package merger
