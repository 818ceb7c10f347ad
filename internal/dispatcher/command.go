package dispatcher

import (
	"slices"
	"strings"

	"github.com/dshills/ptags/pkg/types"
)

// TaggerCommand describes how to invoke the tagger. It is immutable after
// construction and shared read-only by every worker.
type TaggerCommand struct {
	binary  string
	options []string
	dir     string
	unsort  bool
}

// NewTaggerCommand creates a TaggerCommand running binary in dir. Options are
// copied. Concatenated output is requested unsorted so the tag file header
// does not claim an order the merged file lacks.
func NewTaggerCommand(binary, dir string, options []string, strategy types.MergeStrategy) TaggerCommand {
	return TaggerCommand{
		binary:  binary,
		options: slices.Clone(options),
		dir:     dir,
		unsort:  strategy == types.MergeConcatenate,
	}
}

// Binary returns the tagger executable
func (c TaggerCommand) Binary() string { return c.binary }

// Dir returns the working directory the tagger runs in
func (c TaggerCommand) Dir() string { return c.dir }

// Args returns the argument list writing tags to outFile and reading the
// file list from stdin
func (c TaggerCommand) Args(outFile string) []string {
	args := []string{"-L", "-", "-f", outFile}
	if c.unsort {
		args = append(args, "--sort=no")
	}
	return append(args, c.options...)
}

// String renders the full command line for outFile
func (c TaggerCommand) String(outFile string) string {
	return strings.Join(append([]string{c.binary}, c.Args(outFile)...), " ")
}
