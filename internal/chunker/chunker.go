package chunker

import (
	"fmt"

	"github.com/dshills/ptags/pkg/types"
)

// Partition splits files into exactly n contiguous chunks whose sizes differ by
// at most one. The chunks share the backing array of files.
//
// n must be at least 1. Worker counts are validated when configuration is
// loaded, so a non-positive n here is a programming error and panics.
func Partition(files []string, n int) []types.Chunk {
	if n <= 0 {
		panic(fmt.Sprintf("chunker: partition count must be positive, got %d", n))
	}

	chunks := make([]types.Chunk, n)
	base, extra := len(files)/n, len(files)%n

	start := 0
	for i := range chunks {
		size := base
		if i < extra {
			size++
		}
		end := start + size
		chunks[i] = types.Chunk{
			Index: i,
			Files: files[start:end:end],
		}
		start = end
	}
	return chunks
}

// Sizes returns the file count of every chunk, in index order
func Sizes(chunks []types.Chunk) []int {
	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = len(c.Files)
	}
	return sizes
}
