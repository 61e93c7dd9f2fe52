// Package mcp exposes model inference and document validation as MCP tools
// over stdio.
package mcp

import (
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alfredjeanlab/modelbase/internal/client"
)

// Deps are the collaborators the tools need. Client may be nil, in which case
// only the local tools work.
type Deps struct {
	Client         client.ModelClient
	StrictRequired bool
}

// Server wraps the MCP server with the modelbase tools registered.
type Server struct {
	mcpServer *sdkmcp.Server
	deps      *Deps
}

// NewServer creates an MCP server with every tool registered.
func NewServer(deps *Deps, version string) *Server {
	if deps == nil {
		deps = &Deps{}
	}
	s := &Server{deps: deps}
	s.mcpServer = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "modelbase",
		Version: version,
	}, nil)
	s.mcpServer.AddReceivingMiddleware(LoggingMiddleware())
	registerTools(s.mcpServer, deps)
	return s
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *sdkmcp.Server {
	return s.mcpServer
}

// Run serves over stdin/stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &sdkmcp.StdioTransport{})
}

// LoggingMiddleware returns middleware that logs all incoming method calls.
func LoggingMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)

			attrs := []slog.Attr{
				slog.String("method", method),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				slog.LogAttrs(ctx, slog.LevelError, "mcp call failed", attrs...)
			} else {
				slog.LogAttrs(ctx, slog.LevelDebug, "mcp call completed", attrs...)
			}
			return result, err
		}
	}
}
