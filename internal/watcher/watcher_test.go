package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ptags/internal/metrics"
)

func newTestWatcher(t *testing.T, opts Options) (*Watcher, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))

	if opts.Output == "" {
		opts.Output = filepath.Join(root, "tags")
	}
	// relative ignore paths are placed under root
	for i, p := range opts.Ignore {
		if !filepath.IsAbs(p) {
			opts.Ignore[i] = filepath.Join(root, p)
		}
	}
	w, err := New(root, opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, root
}

func TestShouldIgnore(t *testing.T) {
	w, root := newTestWatcher(t, Options{Ignore: []string{
		"/elsewhere/metrics.prom",
		"ptags.prom",
	}})

	tests := []struct {
		path   string
		ignore bool
	}{
		{filepath.Join(root, "src", "main.c"), false},
		{filepath.Join(root, "README"), false},
		{filepath.Join(root, ".git", "index"), true},
		{filepath.Join(root, "sub", ".git", "HEAD"), true},
		{filepath.Join(root, "tags"), true},
		{filepath.Join(root, ".tags.tmp-123456"), true},
		{filepath.Join(root, "tags.bak"), false},
		{"/elsewhere/metrics.prom", true},
		{filepath.Join(root, "ptags.prom"), true},
		{filepath.Join(root, "ptags.prom3843074493"), true},
		{filepath.Join(root, "src", "ptags.prom123"), false},
		{filepath.Join(root, "other.prom"), false},
		{filepath.Join(filepath.Dir(root), "outside.c"), true},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.ignore, w.ShouldIgnore(tt.path))
		})
	}
}

func TestNewMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), Options{}, nil)
	assert.Error(t, err)
}

func TestNewDefaultDebounce(t *testing.T) {
	w, _ := newTestWatcher(t, Options{})
	assert.Equal(t, DefaultDebounce, w.debounce)
}

// collector records handler invocations
type collector struct {
	mu      sync.Mutex
	batches [][]string
	signal  chan struct{}
}

func newCollector() *collector {
	return &collector{signal: make(chan struct{}, 16)}
}

func (c *collector) handle(_ context.Context, changed []string) {
	c.mu.Lock()
	c.batches = append(c.batches, changed)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *collector) snapshot() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.batches...)
}

func TestRunDebouncesBurst(t *testing.T) {
	w, root := newTestWatcher(t, Options{Debounce: 100 * time.Millisecond})
	c := newCollector()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, c.handle) }()

	for _, name := range []string{"a.c", "b.c", "c.c"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, "src", name), []byte("int x;\n"), 0644))
	}

	select {
	case <-c.signal:
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}

	// Nothing else changed, so no further trigger is expected
	select {
	case <-c.signal:
		t.Fatal("unexpected second trigger")
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	batches := c.snapshot()
	require.Len(t, batches, 1)
	assert.Contains(t, batches[0], filepath.Join(root, "src", "a.c"))
	assert.Contains(t, batches[0], filepath.Join(root, "src", "c.c"))
}

func TestRunIgnoresOutputWrites(t *testing.T) {
	w, root := newTestWatcher(t, Options{Debounce: 50 * time.Millisecond})
	c := newCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, c.handle) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, ".tags.tmp-42"), []byte("x"), 0644))
	require.NoError(t, os.Rename(filepath.Join(root, ".tags.tmp-42"), filepath.Join(root, "tags")))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "index"), []byte("x"), 0644))

	select {
	case <-c.signal:
		t.Fatalf("unexpected trigger: %v", c.snapshot())
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRunIgnoresMetricsTextfile(t *testing.T) {
	w, root := newTestWatcher(t, Options{
		Debounce: 50 * time.Millisecond,
		Ignore:   []string{"ptags.prom"},
	})
	c := newCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, c.handle) }()

	rec := metrics.New()
	for range 3 {
		require.NoError(t, rec.WriteTextfile(filepath.Join(root, "ptags.prom")))
	}

	select {
	case <-c.signal:
		t.Fatalf("unexpected trigger: %v", c.snapshot())
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRunWatchesNewDirectories(t *testing.T) {
	w, root := newTestWatcher(t, Options{Debounce: 50 * time.Millisecond})
	c := newCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, c.handle) }()

	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(dir, 0755))

	select {
	case <-c.signal:
	case <-time.After(5 * time.Second):
		t.Fatal("directory creation did not trigger")
	}

	target := filepath.Join(dir, "new.go")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(target, []byte("package pkg\n"), 0644)
		select {
		case <-c.signal:
		case <-time.After(200 * time.Millisecond):
			return false
		}
		for _, b := range c.snapshot() {
			for _, p := range b {
				if p == target {
					return true
				}
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}
