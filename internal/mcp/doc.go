// Package mcp implements the Model Context Protocol (MCP) server for ptags.
//
// The MCP server exposes three tools to AI coding assistants:
//   - generate_tags: Regenerate the tag file for a working tree
//   - list_runs: List recent runs from the run history
//   - get_run: Show one recorded run with its per-chunk outcomes
//
// # Basic Usage
//
// The MCP server is started via the serve command:
//
//	ptags serve --history
//
// It then listens on stdin for MCP protocol messages and writes responses to
// stdout. Logs go to stderr or to logging.file.
//
// # Tool: generate_tags
//
//	Request:
//	{
//	  "name": "generate_tags",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "workers": 8,
//	    "merge": "concatenate",
//	    "exclude": ["vendor/**"]
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
//	  "output": "/path/to/project/tags",
//	  "status": "complete",
//	  "files_scanned": 1834,
//	  "entries": 52110,
//	  "chunks": [ ... ]
//	}
//
// Settings not given in the request come from the configuration the server
// was started with. A relative output is resolved against path. Only one run
// executes at a time; a concurrent call fails with code -32002 instead of
// waiting.
//
// A run where some chunks failed still succeeds with status "partial" and
// lists the failed chunks. A run that produced nothing fails with -32001 and
// leaves the existing tag file untouched.
//
// # Tools: list_runs and get_run
//
// Both read the run history and fail with -32004 when the server was started
// without it. list_runs accepts an optional absolute path and a limit between
// 1 and 100; get_run takes a run_id.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments or configuration)
//   - -32603: Internal error (history database)
//   - -32001: Run failed
//   - -32002: Run in progress
//   - -32003: Run not found
//   - -32004: History disabled
package mcp
