package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/dshills/ptags/internal/logging"
	"github.com/dshills/ptags/pkg/types"
)

const (
	componentGit = "git"
	componentLFS = "git-lfs"
)

// Options selects which files discovery returns
type Options struct {
	GitBinary  string
	GitOptions []string
	LFSOptions []string

	IncludeIgnored    bool
	IncludeUntracked  bool
	IncludeSubmodules bool
	ExcludeLFS        bool

	// Exclude holds glob patterns matched against the relative path and its base name
	Exclude []string
}

// Discoverer produces the FileSet for a root directory
type Discoverer struct {
	executor CommandExecutor
	logger   *logging.Logger
}

// New creates a Discoverer. A nil executor uses os/exec and a nil logger discards.
func New(executor CommandExecutor, logger *logging.Logger) *Discoverer {
	if executor == nil {
		executor = NewExecCommandExecutor()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Discoverer{executor: executor, logger: logger}
}

// Discover lists the files under root according to opts
func (d *Discoverer) Discover(ctx context.Context, root string, opts Options) (types.FileSet, error) {
	if opts.GitBinary == "" {
		opts.GitBinary = "git"
	}

	excludes, err := compileExcludes(opts.Exclude)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var files []string

	for _, query := range lsFilesQueries(opts) {
		out, err := d.call(ctx, root, componentGit, opts.GitBinary, query)
		if err != nil {
			return nil, err
		}
		paths, err := splitNUL(out)
		if err != nil {
			return nil, types.NewDiscoveryError(componentGit, err).
				WithCommand(commandLine(opts.GitBinary, query))
		}
		for _, p := range paths {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	if opts.ExcludeLFS {
		lfs, err := d.lfsFiles(ctx, root, opts)
		if err != nil {
			return nil, err
		}
		files = slices.DeleteFunc(files, func(p string) bool {
			_, tracked := lfs[p]
			return tracked
		})
	}

	if len(excludes) > 0 {
		files = slices.DeleteFunc(files, func(p string) bool {
			return excluded(excludes, p)
		})
	}

	slices.Sort(files)
	d.logger.Debug("discovery finished", "root", root, "files", len(files))

	return types.FileSet(files), nil
}

// lsFilesQueries returns the argument lists for every ls-files query
func lsFilesQueries(opts Options) [][]string {
	base := []string{"ls-files", "-z", "--cached", "--exclude-standard"}
	if opts.IncludeSubmodules {
		base = append(base, "--recurse-submodules")
	}
	queries := [][]string{append(base, opts.GitOptions...)}

	if opts.IncludeUntracked {
		q := []string{"ls-files", "-z", "--others", "--exclude-standard"}
		queries = append(queries, append(q, opts.GitOptions...))
	}
	if opts.IncludeIgnored {
		q := []string{"ls-files", "-z", "--others", "--ignored", "--exclude-standard"}
		queries = append(queries, append(q, opts.GitOptions...))
	}
	return queries
}

// lfsFiles returns the LFS-tracked paths rebased to root
func (d *Discoverer) lfsFiles(ctx context.Context, root string, opts Options) (map[string]struct{}, error) {
	args := append([]string{"lfs", "ls-files"}, opts.LFSOptions...)
	out, err := d.call(ctx, root, componentLFS, opts.GitBinary, args)
	if err != nil {
		return nil, err
	}

	prefix, err := d.revParse(ctx, root, opts.GitBinary, "--show-prefix")
	if err != nil {
		return nil, err
	}
	cdup, err := d.revParse(ctx, root, opts.GitBinary, "--show-cdup")
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]struct{})
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimRight(line, "\r") == "" {
			continue
		}
		p, ok := parseLFSLine(line)
		if !ok {
			return nil, types.NewDiscoveryError(componentLFS, fmt.Errorf("%w: %q", errLFSLine, line)).
				WithCommand(commandLine(opts.GitBinary, args))
		}
		tracked[rebase(p, prefix, cdup)] = struct{}{}
	}
	d.logger.Debug("lfs files excluded", "count", len(tracked))
	return tracked, nil
}

// parseLFSLine extracts the path from "<oid> <*|-> <path>"
func parseLFSLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 3 || fields[0] == "" || fields[2] == "" {
		return "", false
	}
	if fields[1] != "*" && fields[1] != "-" {
		return "", false
	}
	return fields[2], true
}

// rebase converts a repository-root relative path to one relative to the
// directory described by prefix (its path below the top level) and cdup
// (the way back up to the top level).
func rebase(p, prefix, cdup string) string {
	if prefix != "" && strings.HasPrefix(p, prefix) {
		return strings.TrimPrefix(p, prefix)
	}
	return cdup + p
}

func (d *Discoverer) revParse(ctx context.Context, root, gitBinary, flag string) (string, error) {
	out, err := d.call(ctx, root, componentGit, gitBinary, []string{"rev-parse", flag})
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimRight(line, "\r"), nil
}

func (d *Discoverer) call(ctx context.Context, root, component, bin string, args []string) ([]byte, error) {
	cmdline := commandLine(bin, args)
	d.logger.Debug("Call : "+cmdline, "dir", root)

	stdout, stderr, err := d.executor.Run(ctx, root, bin, args...)
	if err != nil {
		return nil, types.NewDiscoveryError(component, err).
			WithCommand(cmdline).
			WithStderr(string(stderr))
	}
	return stdout, nil
}

var (
	errMissingTerminator = errors.New("output is not NUL terminated")
	errNewlineInPath     = errors.New("path contains a line break")
	errLFSLine           = errors.New("unexpected lfs ls-files line")
)

// splitNUL decodes `ls-files -z` output
func splitNUL(out []byte) ([]string, error) {
	if len(out) == 0 {
		return nil, nil
	}
	if out[len(out)-1] != 0 {
		return nil, errMissingTerminator
	}

	records := bytes.Split(out[:len(out)-1], []byte{0})
	paths := make([]string, 0, len(records))
	for _, r := range records {
		if len(r) == 0 {
			continue
		}
		if bytes.ContainsAny(r, "\n\r") {
			return nil, fmt.Errorf("%w: %q", errNewlineInPath, r)
		}
		paths = append(paths, string(r))
	}
	return paths, nil
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for i, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, types.NewConfigError(fmt.Sprintf("exclude[%d]", i), pattern, err.Error())
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func excluded(globs []glob.Glob, p string) bool {
	base := path.Base(p)
	for _, g := range globs {
		if g.Match(p) || g.Match(base) {
			return true
		}
	}
	return false
}

func commandLine(bin string, args []string) string {
	return strings.Join(append([]string{bin}, args...), " ")
}
