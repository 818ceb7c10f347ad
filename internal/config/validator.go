package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/dshills/ptags/internal/logging"
	"github.com/dshills/ptags/pkg/types"
)

// ValidationErrors collects every ConfigError found by Validate
type ValidationErrors []*types.ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = "  - " + err.Error()
	}
	return fmt.Sprintf("%d configuration errors:\n%s", len(e), strings.Join(msgs, "\n"))
}

func (e ValidationErrors) Is(target error) bool { return target == types.ErrConfig }

// Validate checks the configuration and returns all problems found
func (c *Config) Validate() []*types.ConfigError {
	var errs []*types.ConfigError

	if c.Workers < 1 {
		errs = append(errs, types.NewConfigError("workers", c.Workers, "must be at least 1"))
	}
	if !c.Strategy().Valid() {
		errs = append(errs, types.NewConfigError("merge", c.Merge,
			fmt.Sprintf("must be one of %v", types.ValidMergeStrategies())))
	}

	errs = append(errs, c.validatePaths()...)
	errs = append(errs, c.validateExclude()...)
	errs = append(errs, c.validateLogging()...)

	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		errs = append(errs, types.NewConfigError("history.path", c.History.Path, "required when history is enabled"))
	}
	if c.Watch.DebounceMs < 0 {
		errs = append(errs, types.NewConfigError("watch.debounce_ms", c.Watch.DebounceMs, "must not be negative"))
	}

	return errs
}

func (c *Config) validatePaths() []*types.ConfigError {
	var errs []*types.ConfigError

	for _, p := range []struct {
		field string
		value string
	}{
		{"tagger.binary", c.Tagger.Binary},
		{"git.binary", c.Git.Binary},
		{"output", c.Output},
		{"dir", c.Dir},
	} {
		if err := checkPath(p.field, p.value); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Dir != "" {
		if info, err := os.Stat(c.Dir); err != nil {
			errs = append(errs, types.NewConfigError("dir", c.Dir, "does not exist"))
		} else if !info.IsDir() {
			errs = append(errs, types.NewConfigError("dir", c.Dir, "is not a directory"))
		}
	}

	if c.Output != "" {
		if info, err := os.Stat(c.OutputPath()); err == nil && info.IsDir() {
			errs = append(errs, types.NewConfigError("output", c.Output, "is a directory"))
		}
	}

	return errs
}

func checkPath(field, value string) *types.ConfigError {
	switch {
	case strings.TrimSpace(value) == "":
		return types.NewConfigError(field, value, "must not be empty")
	case strings.ContainsRune(value, 0):
		return types.NewConfigError(field, value, "contains a NUL byte")
	case strings.ContainsAny(value, "\n\r"):
		return types.NewConfigError(field, value, "contains a line break")
	}
	return nil
}

func (c *Config) validateExclude() []*types.ConfigError {
	var errs []*types.ConfigError
	for i, pattern := range c.Exclude {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, types.NewConfigError(fmt.Sprintf("exclude[%d]", i), pattern, err.Error()))
		}
	}
	return errs
}

func (c *Config) validateLogging() []*types.ConfigError {
	var errs []*types.ConfigError
	if c.Logging.Level != "" && !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Logging.Level)) {
		errs = append(errs, types.NewConfigError("logging.level", c.Logging.Level,
			fmt.Sprintf("must be one of %v", logging.ValidLevels())))
	}
	if c.Logging.Format != "" && !slices.Contains(logging.ValidFormats(), strings.ToLower(c.Logging.Format)) {
		errs = append(errs, types.NewConfigError("logging.format", c.Logging.Format,
			fmt.Sprintf("must be one of %v", logging.ValidFormats())))
	}
	return errs
}
