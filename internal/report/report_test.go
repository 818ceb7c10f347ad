package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ptags/pkg/types"
)

func summary() *types.RunSummary {
	return &types.RunSummary{
		RunID:            "3f1c",
		Root:             "/repo",
		Output:           "/repo/tags",
		Workers:          8,
		Strategy:         types.MergeConcatenate,
		StartedAt:        time.Now().Add(-time.Minute),
		FilesScanned:     1234,
		Succeeded:        1,
		Failed:           1,
		Entries:          5000,
		Duplicates:       12,
		OutputBytes:      2_500_000,
		DiscoveryElapsed: 12 * time.Millisecond,
		DispatchElapsed:  345 * time.Millisecond,
		MergeElapsed:     6 * time.Millisecond,
		TotalElapsed:     364 * time.Millisecond,
		Status:           types.StatusPartial,
		Chunks: []types.ChunkStat{
			{Index: 0, Files: 617, Entries: 5000, Elapsed: 300 * time.Millisecond},
			{Index: 1, Files: 617, Elapsed: 345 * time.Millisecond, ExitCode: 2, Error: "exit status 2"},
		},
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf).Text(summary()))

	out := buf.String()
	assert.Contains(t, out, "Statistics\n- Options\n    thread    : 8\n")
	assert.Contains(t, out, "- Searched files\n    total     : 1234\n")
	assert.Contains(t, out, "    git_files : 12\n")
	assert.Contains(t, out, "    call_ctags: 345\n")
	assert.Contains(t, out, "    write_tags: 6\n")
	assert.Contains(t, out, "2.5 MB")
	assert.Contains(t, out, "FAILED exit status 2")
	assert.Contains(t, out, "partial: 1 of 2 chunks omitted [1]")

	// A bytes.Buffer is not a terminal, so no escape sequences
	assert.NotContains(t, out, "\x1b[")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlain(&buf).JSON(summary()))

	var got Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "partial", got.Status)
	assert.Equal(t, int64(345), got.DispatchMs)
	require.Len(t, got.Chunks, 2)
	assert.Equal(t, "exit status 2", got.Chunks[1].Error)
	assert.Empty(t, got.Chunks[0].Error)
}

func TestRuns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlain(&buf).Runs([]*types.RunSummary{summary()}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "RUN"))
	assert.Contains(t, lines[1], "3f1c")
	assert.Contains(t, lines[1], "1 minute ago")
	assert.Contains(t, lines[1], "partial")

	buf.Reset()
	require.NoError(t, NewPlain(&buf).Runs(nil))
	assert.Equal(t, "no runs recorded\n", buf.String())
}
