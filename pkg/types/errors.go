package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the run error taxonomy
var (
	ErrConfig          = errors.New("invalid configuration")
	ErrDiscovery       = errors.New("file discovery failed")
	ErrChunkFailed     = errors.New("tagger failed on chunk")
	ErrAllChunksFailed = errors.New("all chunks failed")
	ErrWrite           = errors.New("writing tag file failed")
)

// ConfigError reports an invalid configuration value. Detected before any
// subprocess is started.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

// NewConfigError creates a ConfigError for field
func NewConfigError(field string, value any, reason string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfig, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s (got %v)", ErrConfig, e.Field, e.Reason, e.Value)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// DiscoveryError reports a failed version-control query
type DiscoveryError struct {
	Component string // "git" or "git-lfs"
	Command   string // Full command line
	Stderr    string
	Err       error
}

// NewDiscoveryError creates a DiscoveryError for component
func NewDiscoveryError(component string, err error) *DiscoveryError {
	return &DiscoveryError{Component: component, Err: err}
}

// WithCommand records the command line that failed
func (e *DiscoveryError) WithCommand(cmd string) *DiscoveryError {
	e.Command = cmd
	return e
}

// WithStderr records the captured error output
func (e *DiscoveryError) WithStderr(stderr string) *DiscoveryError {
	e.Stderr = strings.TrimSpace(stderr)
	return e
}

func (e *DiscoveryError) Error() string {
	var b strings.Builder
	b.WriteString(e.Component)
	b.WriteString(" failed")
	if e.Command != "" {
		fmt.Fprintf(&b, ": %s", e.Command)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		b.WriteString("\n")
		b.WriteString(e.Stderr)
	}
	return b.String()
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

func (e *DiscoveryError) Is(target error) bool { return target == ErrDiscovery }

// ChunkFailure records a tagger process that could not produce output for a
// chunk. It is non-fatal: sibling chunks are unaffected.
type ChunkFailure struct {
	Index    int
	Command  string
	ExitCode int    // -1 when the process never started or was killed by a signal
	State    string // Process state text, e.g. "exit status 2" or "signal: killed"
	Stderr   string
	Err      error
}

func (e *ChunkFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "chunk %d: tagger failed", e.Index)
	if e.State != "" {
		fmt.Fprintf(&b, " (%s)", e.State)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	}
	return b.String()
}

func (e *ChunkFailure) Unwrap() error { return e.Err }

func (e *ChunkFailure) Is(target error) bool { return target == ErrChunkFailed }

// AllChunksFailedError is returned when no chunk produced output
type AllChunksFailedError struct {
	Failures []*ChunkFailure
}

func (e *AllChunksFailedError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%s (%d chunks): %s", ErrAllChunksFailed, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *AllChunksFailedError) Is(target error) bool { return target == ErrAllChunksFailed }

// Unwrap exposes every chunk failure to errors.Is/As
func (e *AllChunksFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// WriteError reports a failure while persisting the merged output
type WriteError struct {
	Path string
	Op   string // "create", "write", "sync", "close", "rename"
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrWrite, e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }

// Process exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitPartial = 3
)

// ExitCode maps a run outcome to a process exit status
func ExitCode(summary *RunSummary, err error) int {
	switch {
	case err == nil && summary != nil && summary.Status == StatusPartial:
		return ExitPartial
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfig):
		return ExitConfig
	default:
		return ExitFailure
	}
}
