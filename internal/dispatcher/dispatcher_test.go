package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ptags/internal/chunker"
	"github.com/dshills/ptags/pkg/types"
)

// fakeTagger emits a header line and then the content of every listed file.
// Files whose name contains "fail" make it exit 2.
const fakeTagger = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -f) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf '!_TAG_FILE_FORMAT\t2\t/extended format/\n' > "$out"
while IFS= read -r f; do
  case "$f" in
    *fail*) echo "cannot tag $f" >&2; exit 2 ;;
  esac
  cat "$f" >> "$out"
done
`

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tagger requires a POSIX shell")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ctags")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

// writeTree creates files under a new root, each holding the given tag lines
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func TestTaggerCommandArgs(t *testing.T) {
	opts := []string{"--fields=+n", "--extras=+q"}
	concat := NewTaggerCommand("ctags", "/repo", opts, types.MergeConcatenate)
	sorted := NewTaggerCommand("ctags", "/repo", opts, types.MergeSorted)

	assert.Equal(t, []string{"-L", "-", "-f", "/tmp/c0", "--sort=no", "--fields=+n", "--extras=+q"}, concat.Args("/tmp/c0"))
	assert.Equal(t, []string{"-L", "-", "-f", "/tmp/c0", "--fields=+n", "--extras=+q"}, sorted.Args("/tmp/c0"))
	assert.Equal(t, "ctags -L - -f out --fields=+n --extras=+q", sorted.String("out"))

	// Later changes to the caller's slice do not leak into the command
	opts[0] = "--mutated"
	assert.Contains(t, sorted.Args("x"), "--fields=+n")
}

func TestDispatchExample(t *testing.T) {
	requireShell(t)

	root := writeTree(t, map[string]string{
		"a.c": "TAG_A\ta.c\t1\n",
		"b.c": "TAG_B\tb.c\t1\n",
		"c.c": "TAG_B\tb.c\t1\n",
		"d.c": "TAG_C\td.c\t1\n",
	})
	cmd := NewTaggerCommand(writeScript(t, fakeTagger), root, nil, types.MergeConcatenate)
	chunks := chunker.Partition([]string{"a.c", "b.c", "c.c", "d.c"}, 2)

	results, err := New(cmd, Options{}, nil).Dispatch(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, results, 2)

	header := "!_TAG_FILE_FORMAT\t2\t/extended format/"
	assert.Equal(t, []string{header, "TAG_A\ta.c\t1", "TAG_B\tb.c\t1"}, results[0].Lines)
	assert.Equal(t, []string{header, "TAG_B\tb.c\t1", "TAG_C\td.c\t1"}, results[1].Lines)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, 2, r.Files)
		assert.True(t, r.Succeeded())
		assert.Positive(t, r.Elapsed)
	}
}

func TestDispatchFailureIsolation(t *testing.T) {
	requireShell(t)

	root := writeTree(t, map[string]string{
		"a.c":    "TAG_A\ta.c\t1\n",
		"fail.c": "",
		"c.c":    "TAG_C\tc.c\t1\n",
	})
	cmd := NewTaggerCommand(writeScript(t, fakeTagger), root, nil, types.MergeConcatenate)
	chunks := chunker.Partition([]string{"a.c", "fail.c", "c.c"}, 3)

	results, err := New(cmd, Options{}, nil).Dispatch(context.Background(), chunks)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrChunkFailed)
	require.Len(t, results, 3)

	assert.True(t, results[0].Succeeded())
	assert.True(t, results[2].Succeeded())
	assert.Contains(t, results[2].Lines, "TAG_C\tc.c\t1")

	f := results[1].Failure
	require.NotNil(t, f)
	assert.Equal(t, 1, f.Index)
	assert.Equal(t, 2, f.ExitCode)
	assert.Equal(t, "exit status 2", f.State)
	assert.Equal(t, "cannot tag fail.c", f.Stderr)
	assert.Empty(t, results[1].Lines)

	var cf *types.ChunkFailure
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, 1, cf.Index)
}

func TestDispatchMissingBinary(t *testing.T) {
	root := t.TempDir()
	cmd := NewTaggerCommand(filepath.Join(root, "no-such-ctags"), root, nil, types.MergeSorted)
	chunks := chunker.Partition([]string{"a.c", "b.c"}, 2)

	results, err := New(cmd, Options{}, nil).Dispatch(context.Background(), chunks)
	require.Error(t, err)
	for _, r := range results {
		require.NotNil(t, r.Failure)
		assert.Equal(t, -1, r.Failure.ExitCode)
		assert.Equal(t, "not started", r.Failure.State)
		assert.Error(t, r.Failure.Err)
	}
}

func TestDispatchEmptyChunks(t *testing.T) {
	// A binary that cannot run proves empty chunks start no process
	cmd := NewTaggerCommand("/nonexistent/ctags", t.TempDir(), nil, types.MergeConcatenate)
	chunks := chunker.Partition(nil, 4)

	results, err := New(cmd, Options{}, nil).Dispatch(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.Succeeded())
		assert.Empty(t, r.Lines)
		assert.Zero(t, r.Elapsed)
	}
}

func TestDispatchValidateUTF8(t *testing.T) {
	requireShell(t)

	root := writeTree(t, map[string]string{
		"good.c": "TAG_OK\tgood.c\t1\n",
		"bad.c":  "TAG_\xff\xfe\tbad.c\t1\n",
	})
	cmd := NewTaggerCommand(writeScript(t, fakeTagger), root, nil, types.MergeConcatenate)
	chunks := chunker.Partition([]string{"bad.c", "good.c"}, 2)

	results, err := New(cmd, Options{ValidateUTF8: true}, nil).Dispatch(context.Background(), chunks)
	require.Error(t, err)
	require.NotNil(t, results[0].Failure)
	assert.ErrorIs(t, results[0].Failure, errInvalidUTF8)
	// header line is 38 bytes, then "TAG_"
	assert.Contains(t, results[0].Failure.Error(), "offset 42 (line 2)")
	assert.True(t, results[1].Succeeded())

	// Without validation the bytes pass through untouched
	results, err = New(cmd, Options{}, nil).Dispatch(context.Background(), chunks)
	require.NoError(t, err)
	assert.Contains(t, results[0].Lines, "TAG_\xff\xfe\tbad.c\t1")
}

func TestHeader(t *testing.T) {
	requireShell(t)

	cmd := NewTaggerCommand(writeScript(t, fakeTagger), t.TempDir(), nil, types.MergeConcatenate)
	header, err := New(cmd, Options{}, nil).Header(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"!_TAG_FILE_FORMAT\t2\t/extended format/"}, header)

	missing := NewTaggerCommand("/nonexistent/ctags", t.TempDir(), nil, types.MergeConcatenate)
	_, err = New(missing, Options{}, nil).Header(context.Background())
	var failure *types.ChunkFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, -1, failure.ExitCode)
}

func TestFirstInvalidUTF8(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
		line   int
		found  bool
	}{
		{"empty", "", 0, 0, false},
		{"valid multibyte", "caf\u00e9\n\u65e5\u672c\n", 0, 0, false},
		{"first byte", "\xffabc", 0, 1, true},
		{"third line", "a\nb\nxy\xc3(", 6, 3, true},
		{"truncated sequence", "ok\xe6\x97", 2, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, line, found := firstInvalidUTF8([]byte(tt.input))
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.offset, offset)
			assert.Equal(t, tt.line, line)
		})
	}
}

func TestDispatchRemovesTempDir(t *testing.T) {
	requireShell(t)

	parent := t.TempDir()
	root := writeTree(t, map[string]string{"a.c": "TAG_A\ta.c\t1\n", "fail.c": ""})
	cmd := NewTaggerCommand(writeScript(t, fakeTagger), root, nil, types.MergeConcatenate)

	_, _ = New(cmd, Options{TempDir: parent}, nil).Dispatch(context.Background(), chunker.Partition([]string{"a.c", "fail.c"}, 2))

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispatchCanceledContext(t *testing.T) {
	requireShell(t)

	root := writeTree(t, map[string]string{"a.c": "TAG_A\ta.c\t1\n"})
	cmd := NewTaggerCommand(writeScript(t, fakeTagger), root, nil, types.MergeConcatenate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := New(cmd, Options{}, nil).Dispatch(ctx, chunker.Partition([]string{"a.c"}, 1))
	require.Error(t, err)
	assert.NotNil(t, results[0].Failure)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(nil))
	assert.Nil(t, splitLines([]byte("\n")))
	assert.Equal(t, []string{"a", "b"}, splitLines([]byte("a\r\nb\n")))
	assert.Equal(t, []string{"a", "", "b"}, splitLines([]byte("a\n\nb")))
}
