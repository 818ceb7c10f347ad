package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ptags/internal/storage"
	"github.com/dshills/ptags/pkg/types"
)

// generateTagsTool returns the tool definition for generate_tags
func generateTagsTool() mcp.Tool {
	strategies := make([]string, 0, len(types.ValidMergeStrategies()))
	for _, s := range types.ValidMergeStrategies() {
		strategies = append(strategies, string(s))
	}

	return mcp.Tool{
		Name:        "generate_tags",
		Description: "Generate a ctags file for a git working tree using parallel tagger processes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to tag (inside a git working tree)",
				},
				"output": map[string]interface{}{
					"type":        "string",
					"description": "Tag file path; relative paths are resolved against path",
				},
				"workers": map[string]interface{}{
					"type":        "integer",
					"description": "Number of parallel tagger processes",
					"minimum":     1,
				},
				"merge": map[string]interface{}{
					"type":        "string",
					"description": "How chunk outputs are combined",
					"enum":        strategies,
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Glob patterns removed from the file set (e.g., 'vendor/**')",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"include_untracked": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, also tag untracked files",
				},
				"include_ignored": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, also tag ignored files",
				},
				"include_submodules": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, recurse into submodules",
				},
				"exclude_lfs": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, skip files tracked by git-lfs",
				},
				"validate_utf8": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, drop chunks whose output is not valid UTF-8",
				},
			},
			Required: []string{"path"},
		},
	}
}

// listRunsTool returns the tool definition for list_runs
func listRunsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_runs",
		Description: "List recent tag generation runs from the run history",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the tagged directory; omit to list every directory",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of runs to return (1-100)",
					"default":     storage.DefaultListLimit,
					"minimum":     1,
					"maximum":     storage.MaxListLimit,
				},
			},
		},
	}
}

// getRunTool returns the tool definition for get_run
func getRunTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_run",
		Description: "Show one recorded run including per-chunk outcomes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Run identifier as returned by generate_tags or list_runs",
				},
			},
			Required: []string{"run_id"},
		},
	}
}
