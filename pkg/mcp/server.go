// Package mcp exposes timestamp conversion as MCP tools for editors and agents.
package mcp

import (
	"log/slog"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/mcplog"
	"github.com/gnana997/unixtime/pkg/metrics"
	"github.com/gnana997/unixtime/pkg/workspace"
)

const serverName = "unixtime"

// Version is reported to clients; the CLI overrides it at build time.
var Version = "0.1.0-dev"

// Options wire a Server. Only Config is required.
type Options struct {
	Config convert.Config

	// Converter handles convert_file. Nil creates one from Config.
	Converter *workspace.Converter

	// Root bounds convert_file paths. Empty means the working directory.
	Root string

	CallLog *mcplog.Logger
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Server is the MCP server.
type Server struct {
	mcpServer *server.MCPServer
	cfg       convert.Config
	converter *workspace.Converter
	ownsConv  bool
	root      string
	callLog   *mcplog.Logger
	metrics   *metrics.Collector
	logger    *slog.Logger
}

func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	// Paths are confined after symlink resolution, so the root must be too.
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	s := &Server{
		cfg:       opts.Config,
		converter: opts.Converter,
		root:      absRoot,
		callLog:   opts.CallLog,
		metrics:   opts.Metrics,
		logger:    logger,
	}
	if s.converter == nil {
		s.converter = workspace.NewConverter(workspace.ConverterOptions{
			Config:  opts.Config,
			Metrics: opts.Metrics,
			Logger:  logger,
		})
		s.ownsConv = true
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(s.observeMiddleware()),
	)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: hoverTimestampTool(), Handler: s.handleHover},
		server.ServerTool{Tool: convertAllTool(), Handler: s.handleConvertAll},
		server.ServerTool{Tool: convertSelectionTool(), Handler: s.handleConvertSelection},
		server.ServerTool{Tool: scanTimestampsTool(), Handler: s.handleScan},
		server.ServerTool{Tool: convertFileTool(), Handler: s.handleConvertFile},
	)

	return s, nil
}

// ServeStdio serves MCP on stdin/stdout until stdin closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP on stdio", "tools", ToolNames(), "root", s.root)
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying server, for in-process transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Close releases the converter when the server created it.
func (s *Server) Close() error {
	if s.ownsConv {
		return s.converter.Close()
	}
	return nil
}
