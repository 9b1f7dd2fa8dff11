package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/unixtime/pkg/mcplog"
)

// observeMiddleware records every tool call in the JSONL call log and the
// tool-call counter. Both sinks are nil-safe.
func (s *Server) observeMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)

			entry := mcplog.NewEntry(req.Params.Name, req.GetArguments(), start, result, err)
			_ = s.callLog.Write(entry)
			s.metrics.ObserveToolCall(req.Params.Name, entry.IsError)

			if entry.IsError {
				s.logger.Debug("tool call failed", "tool", req.Params.Name, "id", entry.ID, "error", err)
			}
			return result, err
		}
	}
}
