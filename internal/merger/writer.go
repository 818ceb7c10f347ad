package merger

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/ptags/internal/logging"
	"github.com/dshills/ptags/pkg/types"
)

const (
	defaultFileMode = 0644
	writeBufferSize = 256 * 1024
)

// TempPattern returns the os.CreateTemp pattern used for dest
func TempPattern(dest string) string {
	return "." + filepath.Base(dest) + ".tmp-*"
}

// IsTempFile reports whether path is an in-progress temp file for dest
func IsTempFile(path, dest string) bool {
	if filepath.Dir(path) != filepath.Dir(dest) {
		return false
	}
	return strings.HasPrefix(filepath.Base(path), "."+filepath.Base(dest)+".tmp-")
}

// Writer persists merged output atomically
type Writer struct {
	logger *logging.Logger

	// replace moves the finished temp file over the destination
	replace func(tmpPath, dest string) error
}

// NewWriter creates a Writer. A nil logger discards.
func NewWriter(logger *logging.Logger) *Writer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Writer{logger: logger, replace: osReplace}
}

// WriteAtomic writes merged to path, one line per entry with a trailing
// newline, and returns the number of bytes written. The destination is
// either left untouched or fully replaced. The temp file never outlives a
// failed call.
func (w *Writer) WriteAtomic(path string, merged *types.MergedOutput) (n int64, err error) {
	dir := filepath.Dir(path)
	mode := fs.FileMode(defaultFileMode)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, TempPattern(path))
	if err != nil {
		return 0, &types.WriteError{Path: path, Op: "create", Err: err}
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
				w.logger.Warn("failed to remove temp file", "path", tmpPath, "error", rmErr)
			}
		}
	}()

	if err := tmp.Chmod(mode); err != nil {
		w.logger.Debug("could not set tag file mode", "path", tmpPath, "error", err)
	}

	bw := bufio.NewWriterSize(tmp, writeBufferSize)
	for _, line := range merged.Header {
		n += writeLine(bw, line)
	}
	for _, line := range merged.Entries {
		n += writeLine(bw, line)
	}

	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return 0, &types.WriteError{Path: tmpPath, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, &types.WriteError{Path: tmpPath, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return 0, &types.WriteError{Path: tmpPath, Op: "close", Err: err}
	}
	if err := w.replace(tmpPath, path); err != nil {
		return 0, &types.WriteError{Path: path, Op: "rename", Err: err}
	}

	if err := syncDir(dir); err != nil {
		w.logger.Debug("directory sync skipped", "dir", dir, "error", err)
	}
	return n, nil
}

// writeLine buffers line plus a newline. Errors are sticky in bufio.Writer
// and surface at Flush.
func writeLine(bw *bufio.Writer, line string) int64 {
	k, _ := bw.WriteString(line)
	_ = bw.WriteByte('\n')
	return int64(k) + 1
}
