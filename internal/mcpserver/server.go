// Package mcpserver exposes the portal as a stdio MCP server: a fixed
// catalog of tools and resources with JSON-schema-described parameters.
// Framing, handshake and dispatch come from mcp-go; stdout carries only
// protocol frames, all logging goes through telemetry to stderr.
package mcpserver

import (
	"context"
	"io"

	"portalbridge/internal/components/assert"
	"portalbridge/internal/components/telemetry"
	"portalbridge/internal/portal"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Options struct {
	// ServerName and ServerVersion are cosmetic identity strings reported
	// during the protocol handshake.
	ServerName    string
	ServerVersion string
}

type Server struct {
	portal *portal.Portal
	mcp    *server.MCPServer
	tel    telemetry.API
}

func New(p *portal.Portal, opts Options, tel telemetry.API) *Server {
	assert.NotNil(p)
	assert.NotNil(tel)

	if opts.ServerName == "" {
		opts.ServerName = "portalbridge"
	}
	if opts.ServerVersion == "" {
		opts.ServerVersion = "dev"
	}

	s := &Server{
		portal: p,
		tel:    telemetry.NewScopedAPI("mcpserver", tel),
	}

	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest) {
		s.tel.ReportDebug("tool call", message.Params.Name)
	})

	s.mcp = server.NewMCPServer(
		opts.ServerName,
		opts.ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithHooks(hooks),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves requests from in until EOF or context cancellation. Requests
// are handled sequentially; the pipeline is single-flight by design.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}
