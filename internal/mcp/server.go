package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/ptags/internal/config"
	"github.com/dshills/ptags/internal/indexer"
	"github.com/dshills/ptags/internal/logging"
	"github.com/dshills/ptags/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "ptags"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	indexer *indexer.Indexer
	history storage.Storage
	base    config.Config
	logger  *logging.Logger
}

// NewServer creates a new MCP server instance. base supplies every setting a
// tool call does not override. history may be nil, in which case the run
// history tools report that history is disabled.
func NewServer(base *config.Config, idx *indexer.Indexer, history storage.Storage, logger *logging.Logger) *Server {
	if base == nil {
		base = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		indexer: idx,
		history: history,
		base:    *base,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is canceled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server started", "name", ServerName, "version", ServerVersion)
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(generateTagsTool(), s.handleGenerateTags)
	s.mcp.AddTool(listRunsTool(), s.handleListRuns)
	s.mcp.AddTool(getRunTool(), s.handleGetRun)
}
