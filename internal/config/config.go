package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/dshills/ptags/pkg/types"
)

const (
	// EnvPrefix is the prefix for environment overrides, e.g. PTAGS_WORKERS
	EnvPrefix = "PTAGS"
	// FileName is the config file name searched for without extension
	FileName = ".ptags"
)

// Config is the complete run configuration. It is built once at startup and
// passed by value into every component; nothing reads ambient globals.
type Config struct {
	// Workers is the number of parallel tagger processes and chunks (default: 8)
	Workers int `mapstructure:"workers" yaml:"workers"`
	// Output is the tag file path, relative to the working directory (default: "tags")
	Output string `mapstructure:"output" yaml:"output"`
	// Dir is the discovery root (default: ".")
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Merge selects how chunk outputs are combined: "concatenate" or "sorted"
	Merge string `mapstructure:"merge" yaml:"merge"`
	// ValidateUTF8 rejects chunk output that is not valid UTF-8
	ValidateUTF8 bool `mapstructure:"validate_utf8" yaml:"validate_utf8"`
	// Exclude lists glob patterns removed from the file set
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
	// ExcludeLFS drops files tracked by git-lfs
	ExcludeLFS bool `mapstructure:"exclude_lfs" yaml:"exclude_lfs"`

	Include IncludeConfig `mapstructure:"include" yaml:"include"`
	Tagger  TaggerConfig  `mapstructure:"tagger" yaml:"tagger"`
	Git     GitConfig     `mapstructure:"git" yaml:"git"`

	Stats   StatsConfig   `mapstructure:"stats" yaml:"stats"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
}

// IncludeConfig toggles additional discovery queries
type IncludeConfig struct {
	Ignored    bool `mapstructure:"ignored" yaml:"ignored"`
	Untracked  bool `mapstructure:"untracked" yaml:"untracked"`
	Submodules bool `mapstructure:"submodules" yaml:"submodules"`
}

// TaggerConfig describes the external tagging tool
type TaggerConfig struct {
	Binary  string   `mapstructure:"binary" yaml:"binary"`
	Options []string `mapstructure:"options" yaml:"options"`
}

// GitConfig describes the version-control tool
type GitConfig struct {
	Binary     string   `mapstructure:"binary" yaml:"binary"`
	Options    []string `mapstructure:"options" yaml:"options"`
	LFSOptions []string `mapstructure:"lfs_options" yaml:"lfs_options"`
}

// StatsConfig controls the statistics summary printed after a run
type StatsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	JSON    bool `mapstructure:"json" yaml:"json"`
}

// LoggingConfig controls diagnostic logging
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (default: WARN)
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "text" or "json" (default: text)
	Format string `mapstructure:"format" yaml:"format"`
	// File receives logs instead of stderr when set
	File string `mapstructure:"file" yaml:"file"`
	// Verbose forces DEBUG and logs every command line
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// HistoryConfig controls the run-history ledger
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig controls the Prometheus textfile export
type MetricsConfig struct {
	// File is the .prom path written after each run; empty disables export
	File string `mapstructure:"file" yaml:"file"`
}

// WatchConfig controls `ptags watch`
type WatchConfig struct {
	// DebounceMs is the quiet period after the last change before a re-run
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Workers: 8,
		Output:  "tags",
		Dir:     ".",
		Merge:   string(types.MergeConcatenate),
		Tagger: TaggerConfig{
			Binary:  "ctags",
			Options: []string{},
		},
		Git: GitConfig{
			Binary:     "git",
			Options:    []string{},
			LFSOptions: []string{},
		},
		Exclude: []string{},
		Logging: LoggingConfig{
			Level:  "WARN",
			Format: "text",
		},
		History: HistoryConfig{
			Path: filepath.Join(DataDir(), "history.db"),
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
	}
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("workers", d.Workers)
	v.SetDefault("output", d.Output)
	v.SetDefault("dir", d.Dir)
	v.SetDefault("merge", d.Merge)
	v.SetDefault("validate_utf8", d.ValidateUTF8)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("exclude_lfs", d.ExcludeLFS)

	v.SetDefault("include.ignored", d.Include.Ignored)
	v.SetDefault("include.untracked", d.Include.Untracked)
	v.SetDefault("include.submodules", d.Include.Submodules)

	v.SetDefault("tagger.binary", d.Tagger.Binary)
	v.SetDefault("tagger.options", d.Tagger.Options)
	v.SetDefault("git.binary", d.Git.Binary)
	v.SetDefault("git.options", d.Git.Options)
	v.SetDefault("git.lfs_options", d.Git.LFSOptions)

	v.SetDefault("stats.enabled", d.Stats.Enabled)
	v.SetDefault("stats.json", d.Stats.JSON)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.verbose", d.Logging.Verbose)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("metrics.file", d.Metrics.File)
	v.SetDefault("watch.debounce_ms", d.Watch.DebounceMs)
}

// NewViper returns a viper instance with defaults, env overrides, and the
// config file search path installed. cfgFile overrides the search when set.
func NewViper(cfgFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	// PTAGS_TAGGER_BINARY for tagger.binary
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile loads the config file if one exists. A missing file is not an error.
func ReadFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return types.NewConfigError("config", v.ConfigFileUsed(), err.Error())
	}
	return nil
}

// Load reads v into a Config and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.NewConfigError("", nil, err.Error())
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Strategy returns the merge strategy as a typed value
func (c *Config) Strategy() types.MergeStrategy {
	return types.MergeStrategy(c.Merge)
}

// OutputPath returns Output as an absolute path
func (c *Config) OutputPath() string {
	abs, err := filepath.Abs(c.Output)
	if err != nil {
		return filepath.Clean(c.Output)
	}
	return abs
}

// LogLevel returns the effective level, honoring Verbose
func (c *Config) LogLevel() string {
	if c.Logging.Verbose {
		return "DEBUG"
	}
	return c.Logging.Level
}

// ConfigDir returns the user's ptags config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ptags")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ptags"
	}
	return filepath.Join(home, ".config", "ptags")
}

// DataDir returns the directory holding the run-history database
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "ptags")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ptags"
	}
	return filepath.Join(home, ".local", "share", "ptags")
}
