package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Vigil tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("vigil", "1.0.0")
	client := NewVigilClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetSessionReport, h.HandleGetSessionReport)
	s.AddTool(ToolListViolations, h.HandleListViolations)
	s.AddTool(ToolGetSession, h.HandleGetSession)
	s.AddTool(ToolListCandidateSessions, h.HandleListCandidateSessions)
	s.AddTool(ToolGetCandidate, h.HandleGetCandidate)
	s.AddTool(ToolCloseSession, h.HandleCloseSession)

	return s
}
