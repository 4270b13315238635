// Package mcp exposes captured appointment requests to operators over the
// Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/macworld/concierge/internal/leads"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the leads store.
type Server struct {
	store *leads.Store
	mcp   *server.MCPServer
}

// NewServer creates a new MCP server over the given leads store.
func NewServer(store *leads.Store) *Server {
	s := &Server{store: store}

	s.mcp = server.NewMCPServer(
		"macworld-concierge",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(listAppointmentRequestsTool, s.handleListAppointmentRequests)
	s.mcp.AddTool(getConversationTool, s.handleGetConversation)
	s.mcp.AddTool(markRequestReadTool, s.handleMarkRequestRead)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
