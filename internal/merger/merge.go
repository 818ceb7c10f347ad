package merger

import (
	"cmp"
	"container/heap"
	"fmt"
	"slices"
	"strings"

	"github.com/dshills/ptags/pkg/types"
)

// HeaderPrefix marks pseudo-tag lines
const HeaderPrefix = "!_"

// IsHeader reports whether line is a pseudo-tag
func IsHeader(line string) bool {
	return strings.HasPrefix(line, HeaderPrefix)
}

// Merge combines chunk results with the given strategy. Results may arrive in
// any order; they are processed by ascending chunk index.
func Merge(results []types.ChunkResult, strategy types.MergeStrategy) (*types.MergedOutput, error) {
	if !strategy.Valid() {
		return nil, types.NewConfigError("merge", string(strategy),
			fmt.Sprintf("must be one of %v", types.ValidMergeStrategies()))
	}

	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b types.ChunkResult) int {
		return cmp.Compare(a.Index, b.Index)
	})

	var (
		failures []*types.ChunkFailure
		nonEmpty int
		sources  [][]string
	)
	header := newHeaderSet()

	for i := range ordered {
		r := &ordered[i]
		if r.Files > 0 {
			nonEmpty++
		}
		if r.Failure != nil {
			failures = append(failures, r.Failure)
			continue
		}
		sources = append(sources, header.split(r.Lines))
	}

	if nonEmpty > 0 && len(failures) >= nonEmpty {
		return nil, &types.AllChunksFailedError{Failures: failures}
	}

	out := &types.MergedOutput{Header: header.lines}
	switch strategy {
	case types.MergeSorted:
		out.Entries, out.Duplicates = mergeSorted(sources)
	default:
		out.Entries, out.Duplicates = concatenate(sources)
	}
	return out, nil
}

// headerSet collects pseudo-tags in first-seen order
type headerSet struct {
	seen  map[string]struct{}
	lines []string
}

func newHeaderSet() *headerSet {
	return &headerSet{seen: make(map[string]struct{})}
}

// split records the header lines of a chunk and returns its entries.
// Empty lines are dropped.
func (h *headerSet) split(lines []string) []string {
	entries := make([]string, 0, len(lines))
	for _, l := range lines {
		switch {
		case l == "":
		case IsHeader(l):
			if _, ok := h.seen[l]; !ok {
				h.seen[l] = struct{}{}
				h.lines = append(h.lines, l)
			}
		default:
			entries = append(entries, l)
		}
	}
	return entries
}

func concatenate(sources [][]string) ([]string, int) {
	total := 0
	for _, s := range sources {
		total += len(s)
	}

	seen := make(map[string]struct{}, total)
	entries := make([]string, 0, total)
	dups := 0
	for _, s := range sources {
		for _, l := range s {
			if _, ok := seen[l]; ok {
				dups++
				continue
			}
			seen[l] = struct{}{}
			entries = append(entries, l)
		}
	}
	return entries, dups
}

// mergeSorted k-way merges the sources. Each source is sorted first, so the
// result is ordered and free of duplicates even when a tagger did not sort.
func mergeSorted(sources [][]string) ([]string, int) {
	h := make(cursorHeap, 0, len(sources))
	total := 0
	for _, s := range sources {
		if len(s) == 0 {
			continue
		}
		if !slices.IsSorted(s) {
			s = slices.Clone(s)
			slices.Sort(s)
		}
		total += len(s)
		h = append(h, &cursor{lines: s})
	}
	heap.Init(&h)

	entries := make([]string, 0, total)
	dups := 0
	for h.Len() > 0 {
		c := h[0]
		line := c.lines[c.pos]
		if n := len(entries); n > 0 && entries[n-1] == line {
			dups++
		} else {
			entries = append(entries, line)
		}

		c.pos++
		if c.pos == len(c.lines) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return entries, dups
}

type cursor struct {
	lines []string
	pos   int
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int           { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return h[i].lines[h[i].pos] < h[j].lines[h[j].pos] }
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)        { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
