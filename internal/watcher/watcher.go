// Package watcher re-triggers tag generation when the working tree changes.
//
// Events are debounced: a burst of changes produces one trigger after the
// tree has been quiet for the debounce window. The handler runs on the
// watcher goroutine, so triggers never overlap. Changes that arrive while a
// handler runs are batched into the next trigger.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/ptags/internal/logging"
	"github.com/dshills/ptags/internal/merger"
)

// DefaultDebounce is used when Options.Debounce is zero
const DefaultDebounce = 500 * time.Millisecond

// skipDirs are never watched
var skipDirs = []string{".git", ".hg", ".svn"}

// Handler receives the sorted, distinct paths changed since the last trigger
type Handler func(ctx context.Context, changed []string)

// Options configures a Watcher
type Options struct {
	// Output is the tag file; it and its temp files are ignored
	Output   string
	// Ignore lists further files to ignore, e.g. the metrics textfile.
	// Siblings whose name extends an ignored name are ignored as well.
	Ignore   []string
	// Debounce is the quiet period before a trigger (default: DefaultDebounce)
	Debounce time.Duration
}

// Watcher watches a directory tree
type Watcher struct {
	root     string
	output   string
	ignore   []string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *logging.Logger
}

// New creates a Watcher over root and registers every directory below it
func New(root string, opts Options, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     absRoot,
		debounce: opts.Debounce,
		fsw:      fsw,
		logger:   logger,
	}
	if opts.Output != "" {
		w.output = absPath(opts.Output)
	}
	for _, p := range opts.Ignore {
		if p != "" {
			w.ignore = append(w.ignore, absPath(p))
		}
	}

	if err := w.addRecursive(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped; the root itself must be watchable
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && slices.Contains(skipDirs, d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ShouldIgnore reports whether a change to path must not trigger a run
func (w *Watcher) ShouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if slices.Contains(skipDirs, part) {
			return true
		}
	}
	if w.output != "" && (path == w.output || merger.IsTempFile(path, w.output)) {
		return true
	}
	return slices.ContainsFunc(w.ignore, func(ignored string) bool {
		return path == ignored || isTempSibling(path, ignored)
	})
}

// isTempSibling reports whether path sits next to file and its base name
// extends file's, as the temp files written by os.CreateTemp(dir, base) do.
// This also covers sqlite's -wal and -journal files.
func isTempSibling(path, file string) bool {
	if filepath.Dir(path) != filepath.Dir(file) {
		return false
	}
	return strings.HasPrefix(filepath.Base(path), filepath.Base(file))
}

// Run delivers debounced changes to handler until ctx is done
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.ShouldIgnore(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watch events overflowed; regenerating")
				pending[w.root] = struct{}{}
				timer.Reset(w.debounce)
				continue
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)

			w.logger.Debug("changes detected", "count", len(changed))
			handler(ctx, changed)
		}
	}
}
