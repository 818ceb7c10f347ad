// Package chunker divides a file set into the balanced chunks handed to
// parallel tagger processes.
//
// # Basic Usage
//
//	chunks := chunker.Partition(files, cfg.Workers)
//	for _, c := range chunks {
//	    fmt.Printf("chunk %d: %d files\n", c.Index, len(c.Files))
//	}
//
// # Partitioning Strategy
//
// Chunks are contiguous slices of the input:
//   - Exactly n chunks are returned, indexed 0..n-1
//   - Sizes differ by at most one; the first len%n chunks take the extra file
//   - Input order is preserved inside each chunk and across chunk indexes
//   - An empty file set yields n empty chunks
//
// Contiguous slicing keeps files from the same directory together, so each
// tagger process reads a compact region of the tree. Concatenating the chunk
// outputs in index order reproduces the input order.
package chunker
