package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ptags/internal/config"
	"github.com/dshills/ptags/internal/indexer"
	"github.com/dshills/ptags/internal/report"
	"github.com/dshills/ptags/internal/storage"
	"github.com/dshills/ptags/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeRunFailed       = -32001 // The run failed as a whole; nothing was written
	ErrorCodeRunInProgress   = -32002 // Another run is already in progress
	ErrorCodeRunNotFound     = -32003 // No run with the given ID
	ErrorCodeHistoryDisabled = -32004 // Run history is not enabled
)

// handleGenerateTags handles the generate_tags tool invocation
func (s *Server) handleGenerateTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	cfg, err := s.runConfig(path, args)
	if err != nil {
		return nil, err
	}

	summary, err := s.indexer.TryRun(ctx, cfg)
	switch {
	case errors.Is(err, indexer.ErrRunInProgress):
		return nil, newMCPError(ErrorCodeRunInProgress, "a run is already in progress", nil)
	case errors.Is(err, types.ErrConfig):
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeRunFailed, "tag generation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(report.ToSummary(summary))), nil
}

// runConfig derives the configuration for one generate_tags call from the
// server's base configuration
func (s *Server) runConfig(path string, args map[string]interface{}) (*config.Config, error) {
	cfg := s.base
	cfg.Dir = path
	cfg.Exclude = slices.Clone(s.base.Exclude)

	output := getStringDefault(args, "output", s.base.Output)
	if !filepath.IsAbs(output) {
		output = filepath.Join(path, output)
	}
	cfg.Output = output

	cfg.Workers = getIntDefault(args, "workers", s.base.Workers)
	if cfg.Workers < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "workers must be at least 1", map[string]interface{}{
			"param": "workers",
			"value": cfg.Workers,
		})
	}

	cfg.Merge = getStringDefault(args, "merge", s.base.Merge)
	if !types.MergeStrategy(cfg.Merge).Valid() {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid merge", map[string]interface{}{
			"param":   "merge",
			"value":   cfg.Merge,
			"allowed": types.ValidMergeStrategies(),
		})
	}

	if patterns, ok := getStringSlice(args, "exclude"); ok {
		cfg.Exclude = patterns
	}
	cfg.Include.Untracked = getBoolDefault(args, "include_untracked", s.base.Include.Untracked)
	cfg.Include.Ignored = getBoolDefault(args, "include_ignored", s.base.Include.Ignored)
	cfg.Include.Submodules = getBoolDefault(args, "include_submodules", s.base.Include.Submodules)
	cfg.ExcludeLFS = getBoolDefault(args, "exclude_lfs", s.base.ExcludeLFS)
	cfg.ValidateUTF8 = getBoolDefault(args, "validate_utf8", s.base.ValidateUTF8)

	return &cfg, nil
}

// handleListRuns handles the list_runs tool invocation
func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}
	if s.history == nil {
		return nil, errHistoryDisabled()
	}

	path := getStringDefault(args, "path", "")
	if path != "" {
		if !filepath.IsAbs(path) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
				"param":  "path",
				"reason": ErrPathNotAbsolute.Error(),
			})
		}
		path = filepath.Clean(path)
	}

	limit := getIntDefault(args, "limit", storage.DefaultListLimit)
	if limit < 1 || limit > storage.MaxListLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	runs, err := s.history.ListRuns(ctx, path, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list runs", map[string]interface{}{
			"error": err.Error(),
		})
	}

	summaries := make([]report.Summary, len(runs))
	for i, run := range runs {
		summaries[i] = report.ToSummary(run.ToSummary())
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"count": len(summaries),
		"runs":  summaries,
	})), nil
}

// handleGetRun handles the get_run tool invocation
func (s *Server) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["run_id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "run_id parameter is required", map[string]interface{}{
			"param":  "run_id",
			"reason": "missing or empty",
		})
	}
	if s.history == nil {
		return nil, errHistoryDisabled()
	}

	run, err := s.history.GetRun(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeRunNotFound, "run not found", map[string]interface{}{
			"run_id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get run", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(report.ToSummary(run.ToSummary()))), nil
}

func errHistoryDisabled() error {
	return newMCPError(ErrorCodeHistoryDisabled, "run history is not enabled", map[string]interface{}{
		"hint": "start the server with --history",
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a response as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter. Non-string items are skipped.
func getStringSlice(args map[string]interface{}, key string) ([]string, bool) {
	switch val := args[key].(type) {
	case []string:
		return slices.Clone(val), true
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

// Validation helpers
var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
