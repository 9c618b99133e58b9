package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes archive search tools.
type Server struct {
	store   *catalog.Store
	metrics *metrics.Metrics
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server over store. m may be nil.
func NewServer(store *catalog.Store, m *metrics.Metrics) *Server {
	s := &Server{
		store:   store,
		metrics: m,
	}

	s.mcp = server.NewMCPServer(
		"pdfvault",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
	s.mcp.AddTool(getDocumentTool, s.handleGetDocument)
	s.mcp.AddTool(indexStatsTool, s.handleIndexStats)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
