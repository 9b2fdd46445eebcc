// Package mcpserver exposes clone detection, refactoring and smell scans
// as Model Context Protocol tools over stdio.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/panbanda/clonefix/internal/logging"
	"github.com/panbanda/clonefix/pkg/config"
)

// Server wraps the MCP server and the configuration its tools run with.
type Server struct {
	server *mcp.Server
	cfg    *config.Config
	log    logrus.FieldLogger
}

// NewServer creates an MCP server with every clonefix tool registered.
// A nil cfg uses the defaults and a nil log discards.
func NewServer(version string, cfg *config.Config, log logrus.FieldLogger) *Server {
	if version == "" {
		version = "dev"
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logging.Discard()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "clonefix",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, cfg: cfg, log: log}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "detect_duplicates",
		Description: describeDetect(),
	}, s.handleDetect)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "refactor_duplicates",
		Description: describeRefactor(),
	}, s.handleRefactor)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_smells",
		Description: describeSmells(),
	}, s.handleSmells)
}
