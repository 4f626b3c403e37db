// Package mcp serves the SQL tools and the schema description over the
// Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Dispatcher runs a named tool. tools.Toolset satisfies it.
type Dispatcher interface {
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// MCPServer wraps the mcp-go server with the asksql tool and resource
// registrations.
type MCPServer struct {
	tools    Dispatcher
	readOnly bool
	logger   *slog.Logger
	server   *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with the SQL tools and the
// schema resources. readOnly marks get_sql_result as non-mutating for
// clients; it should match the executor's read-only setting.
func NewMCPServer(tools Dispatcher, version string, readOnly bool, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &MCPServer{
		tools:    tools,
		readOnly: readOnly,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"asksql",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
		server.WithInstructions("Answer questions about the company database. "+
			"Use get_sql_query to write SQL for a question and get_sql_result to run it."),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, the integration path for
// desktop MCP clients that launch asksql as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode on addr and shuts
// it down when ctx is done.
func (s *MCPServer) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MCP HTTP server starting", "addr", addr)
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("MCP HTTP server stopping")
		return httpServer.Shutdown(context.Background())
	}
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
