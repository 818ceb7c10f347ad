// Package cmd implements the ptags command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/ptags/internal/config"
	"github.com/dshills/ptags/internal/discovery"
	"github.com/dshills/ptags/internal/report"
	"github.com/dshills/ptags/internal/storage"
	"github.com/dshills/ptags/pkg/types"
)

// BuildInfo is stamped into the binary at link time
type BuildInfo struct {
	Version   string
	BuildTime string
}

// app is the state of one process invocation shared by every subcommand
type app struct {
	build   BuildInfo
	cfgFile string
	v       *viper.Viper

	// executor runs git; nil uses os/exec
	executor discovery.CommandExecutor

	exitCode int
}

// flagKeys maps config keys to the persistent flags that override them
var flagKeys = map[string]string{
	"workers":            "thread",
	"output":             "file",
	"merge":              "merge",
	"validate_utf8":      "validate-utf8",
	"exclude":            "exclude",
	"exclude_lfs":        "exclude-lfs",
	"include.untracked":  "include-untracked",
	"include.ignored":    "include-ignored",
	"include.submodules": "include-submodule",
	"tagger.binary":      "bin-ctags",
	"tagger.options":     "opt-ctags",
	"git.binary":         "bin-git",
	"git.options":        "opt-git",
	"git.lfs_options":    "opt-git-lfs",
	"stats.enabled":      "stat",
	"stats.json":         "stat-json",
	"logging.verbose":    "verbose",
	"logging.level":      "log-level",
	"logging.format":     "log-format",
	"logging.file":       "log-file",
	"history.enabled":    "history",
	"history.path":       "history-db",
	"metrics.file":       "metrics-file",
}

// Execute runs the command line and returns the process exit status.
// SIGINT and SIGTERM cancel the running command.
func Execute(build BuildInfo) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, build, os.Args[1:], os.Stdout, os.Stderr, nil)
}

func run(ctx context.Context, build BuildInfo, args []string, stdout, stderr io.Writer, executor discovery.CommandExecutor) int {
	a := &app{build: build, executor: executor}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "ptags: %v\n", err)
	}
	if a.exitCode != types.ExitOK {
		return a.exitCode
	}
	return types.ExitCode(nil, err)
}

func newRootCommand(a *app) *cobra.Command {
	d := config.Default()

	root := &cobra.Command{
		Use:   "ptags [flags] [DIR]",
		Short: "Generate a tag file in parallel",
		Long: `ptags lists the files of a git working tree, splits them into chunks,
runs one ctags process per chunk concurrently and merges the results into a
single tag file, replacing the destination atomically.

A chunk whose tagger fails is omitted and the run exits with status 3. When
no chunk succeeds the existing tag file is left untouched.`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           fmt.Sprintf("%s (built %s, sqlite %s/%s)", a.build.Version, a.build.BuildTime, storage.BuildMode, storage.DriverName),
		PersistentPreRunE: a.initConfig,
		RunE:              a.runGenerate,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return types.NewConfigError("flags", nil, err.Error())
	})

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is ./.ptags.yaml, then $XDG_CONFIG_HOME/ptags/.ptags.yaml)")

	f.IntP("thread", "t", d.Workers, "number of parallel ctags processes")
	f.StringP("file", "f", d.Output, "output tag file")
	f.String("merge", d.Merge, "merge strategy: concatenate or sorted")
	f.Bool("validate-utf8", d.ValidateUTF8, "omit chunks whose output is not valid UTF-8")
	f.StringArrayP("exclude", "e", nil, "glob pattern of files to skip (repeatable)")
	f.Bool("exclude-lfs", d.ExcludeLFS, "skip files tracked by git-lfs")
	f.Bool("include-untracked", d.Include.Untracked, "also tag untracked files")
	f.Bool("include-ignored", d.Include.Ignored, "also tag ignored files")
	f.Bool("include-submodule", d.Include.Submodules, "recurse into submodules")

	f.String("bin-ctags", d.Tagger.Binary, "path to ctags")
	f.StringArrayP("opt-ctags", "c", nil, "option passed to ctags (repeatable)")
	f.String("bin-git", d.Git.Binary, "path to git")
	f.StringArrayP("opt-git", "g", nil, "option passed to git ls-files (repeatable)")
	f.StringArray("opt-git-lfs", nil, "option passed to git lfs ls-files (repeatable)")

	f.BoolP("stat", "s", d.Stats.Enabled, "print statistics")
	f.Bool("stat-json", d.Stats.JSON, "print statistics as JSON")
	f.BoolP("verbose", "v", d.Logging.Verbose, "log every command line")
	f.String("log-level", d.Logging.Level, "log level: DEBUG, INFO, WARN, ERROR")
	f.String("log-format", d.Logging.Format, "log format: text or json")
	f.String("log-file", d.Logging.File, "write logs to a file instead of stderr")
	f.Bool("history", d.History.Enabled, "record runs in the history database")
	f.String("history-db", d.History.Path, "history database path")
	f.String("metrics-file", d.Metrics.File, "write Prometheus metrics to this textfile after each run")

	root.AddCommand(
		newServeCommand(a),
		newHistoryCommand(a),
		newWatchCommand(a),
		newConfigCommand(a),
	)
	return root
}

// initConfig builds the process viper and binds every persistent flag to it
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	a.v = config.NewViper(a.cfgFile)
	flags := cmd.Root().PersistentFlags()
	for key, name := range flagKeys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	if err := config.ReadFile(a.v); err != nil {
		a.exitCode = types.ExitConfig
		return err
	}
	return nil
}

// load returns the validated configuration. A DIR argument overrides dir.
func (a *app) load(args []string) (*config.Config, error) {
	if len(args) > 0 {
		a.v.Set("dir", args[0])
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		a.exitCode = types.ExitConfig
		return nil, err
	}
	return cfg, nil
}

func (a *app) runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := a.load(args)
	if err != nil {
		return err
	}

	env, err := a.open(cfg, cfg.History.Enabled)
	if err != nil {
		a.exitCode = types.ExitFailure
		return err
	}
	defer env.Close()

	summary, err := env.indexer.Run(cmd.Context(), cfg)
	a.exitCode = types.ExitCode(summary, err)
	if err != nil {
		return err
	}
	return printStats(report.New(cmd.OutOrStdout()), cfg, summary)
}

// printStats writes the statistics block when enabled
func printStats(r *report.Reporter, cfg *config.Config, summary *types.RunSummary) error {
	switch {
	case cfg.Stats.JSON:
		return r.JSON(summary)
	case cfg.Stats.Enabled:
		return r.Text(summary)
	}
	return nil
}

// isCanceled reports whether err only says the context ended
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
