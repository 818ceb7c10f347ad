package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/ptags/internal/logging"
	"github.com/dshills/ptags/pkg/types"
)

var errInvalidUTF8 = errors.New("tagger output is not valid UTF-8")

// Options tunes a Dispatcher
type Options struct {
	// ValidateUTF8 fails chunks whose output is not valid UTF-8
	ValidateUTF8 bool
	// TempDir is the parent of the run-scoped temp directory (default: os.TempDir())
	TempDir string
}

// Dispatcher fans chunks out to concurrent tagger processes
type Dispatcher struct {
	cmd    TaggerCommand
	opts   Options
	logger *logging.Logger
}

// New creates a Dispatcher. A nil logger discards.
func New(cmd TaggerCommand, opts Options, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Dispatcher{cmd: cmd, opts: opts, logger: logger}
}

// Dispatch runs one tagger per non-empty chunk, all at once, and waits for
// every one to finish. The returned slice is indexed by chunk index. The
// error joins every ChunkFailure and is nil when all chunks succeeded; the
// results are valid either way. Setup failures return nil results.
func (d *Dispatcher) Dispatch(ctx context.Context, chunks []types.Chunk) ([]types.ChunkResult, error) {
	tmpDir, err := os.MkdirTemp(d.opts.TempDir, "ptags-run-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			d.logger.Warn("failed to remove temp directory", "path", tmpDir, "error", err)
		}
	}()

	results := make([]types.ChunkResult, len(chunks))

	// Plain Group: a failed chunk must not cancel its siblings
	var g errgroup.Group
	g.SetLimit(max(len(chunks), 1))

	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = d.runChunk(ctx, tmpDir, chunk)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i := range results {
		if f := results[i].Failure; f != nil {
			errs = append(errs, f)
		}
	}
	return results, errors.Join(errs...)
}

// Header runs the tagger once on an empty file list and returns the
// pseudo-tag lines it writes. It is used when there is nothing to tag so the
// output still carries the tagger's header.
func (d *Dispatcher) Header(ctx context.Context) ([]string, error) {
	tmpDir, err := os.MkdirTemp(d.opts.TempDir, "ptags-run-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			d.logger.Warn("failed to remove temp directory", "path", tmpDir, "error", err)
		}
	}()

	result := d.tag(ctx, tmpDir, types.ChunkResult{}, strings.NewReader(""))
	if result.Failure != nil {
		return nil, result.Failure
	}
	header := make([]string, 0, len(result.Lines))
	for _, l := range result.Lines {
		if strings.HasPrefix(l, "!_") {
			header = append(header, l)
		}
	}
	return header, nil
}

// runChunk tags a single chunk. It never returns a Go error; problems are
// recorded in the result's Failure.
func (d *Dispatcher) runChunk(ctx context.Context, tmpDir string, chunk types.Chunk) types.ChunkResult {
	result := types.ChunkResult{Index: chunk.Index, Files: len(chunk.Files)}
	if chunk.Empty() {
		return result
	}
	return d.tag(ctx, tmpDir, result, strings.NewReader(strings.Join(chunk.Files, "\n")+"\n"))
}

// tag runs one tagger process reading its file list from stdin
func (d *Dispatcher) tag(ctx context.Context, tmpDir string, result types.ChunkResult, stdin io.Reader) types.ChunkResult {
	log := d.logger.WithChunk(result.Index)
	outFile := filepath.Join(tmpDir, fmt.Sprintf("chunk-%03d.tags", result.Index))
	cmdline := d.cmd.String(outFile)
	log.Debug("Call : "+cmdline, "files", result.Files)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.cmd.binary, d.cmd.Args(outFile)...)
	cmd.Dir = d.cmd.dir
	cmd.Stdin = stdin
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	result.Elapsed = time.Since(start)

	if runErr != nil {
		result.Failure = processFailure(result.Index, cmdline, runErr, stderr.String())
		return result
	}

	content, err := os.ReadFile(outFile)
	if err != nil {
		result.Failure = &types.ChunkFailure{
			Index:   result.Index,
			Command: cmdline,
			State:   cmd.ProcessState.String(),
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     fmt.Errorf("failed to read tagger output: %w", err),
		}
		return result
	}
	if d.opts.ValidateUTF8 {
		if offset, line, ok := firstInvalidUTF8(content); ok {
			result.Failure = &types.ChunkFailure{
				Index:   result.Index,
				Command: cmdline,
				State:   cmd.ProcessState.String(),
				Stderr:  strings.TrimSpace(stderr.String()),
				Err:     fmt.Errorf("%w: first invalid byte at offset %d (line %d)", errInvalidUTF8, offset, line),
			}
			return result
		}
	}

	result.Lines = splitLines(content)
	log.Debug("chunk tagged", "lines", len(result.Lines), "elapsed", result.Elapsed)
	return result
}

// firstInvalidUTF8 returns the byte offset and 1-based line of the first
// invalid UTF-8 sequence in b
func firstInvalidUTF8(b []byte) (offset, line int, found bool) {
	line = 1
	for offset < len(b) {
		r, size := utf8.DecodeRune(b[offset:])
		if r == utf8.RuneError && size == 1 {
			return offset, line, true
		}
		if r == '\n' {
			line++
		}
		offset += size
	}
	return 0, 0, false
}

// processFailure describes a tagger that did not exit cleanly
func processFailure(index int, cmdline string, err error, stderr string) *types.ChunkFailure {
	f := &types.ChunkFailure{
		Index:    index,
		Command:  cmdline,
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		f.ExitCode = exitErr.ExitCode()
		f.State = exitErr.ProcessState.String()
		f.Err = nil
	} else {
		f.State = "not started"
	}
	return f
}

// splitLines splits tagger output into lines without terminators
func splitLines(content []byte) []string {
	text := strings.TrimSuffix(string(content), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
