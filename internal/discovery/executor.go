package discovery

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandExecutor abstracts command execution so tests can fake git
type CommandExecutor interface {
	// Run executes name with args in dir and returns stdout and stderr
	// separately. A non-zero exit is reported as an *exec.ExitError.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, error)
}

// ExecCommandExecutor runs commands with os/exec
type ExecCommandExecutor struct{}

// NewExecCommandExecutor creates a new os/exec backed executor
func NewExecCommandExecutor() *ExecCommandExecutor {
	return &ExecCommandExecutor{}
}

// Run executes a command and captures its output streams
func (e *ExecCommandExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
