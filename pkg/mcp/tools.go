package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool names.
const (
	ToolHover     = "hover_timestamp"
	ToolAll       = "convert_all"
	ToolSelection = "convert_selection"
	ToolScan      = "scan_timestamps"
	ToolFile      = "convert_file"
)

// ToolNames lists every registered tool in registration order.
func ToolNames() []string {
	return []string{ToolHover, ToolAll, ToolSelection, ToolScan, ToolFile}
}

func hoverTimestampTool() mcp.Tool {
	return mcp.NewTool(ToolHover,
		mcp.WithDescription("Describe the Unix timestamp under a cursor as local date-time. "+
			"Give either a byte offset or a 0-based line and UTF-16 character. "+
			"Returns found=false when no qualifying timestamp is there."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text.")),
		mcp.WithNumber("offset", mcp.Description("Byte offset of the cursor.")),
		mcp.WithNumber("line", mcp.Description("0-based line of the cursor.")),
		mcp.WithNumber("character", mcp.Description("0-based UTF-16 character of the cursor.")),
	)
}

func convertAllTool() mcp.Tool {
	return mcp.NewTool(ToolAll,
		mcp.WithDescription("Replace every word-bounded Unix timestamp (seconds or milliseconds, "+
			"optional fraction) with YYYY/MM/DD HH:mm:ss[.fraction] in the server's time zone. "+
			"Returns the edits, the converted text and a notice."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text.")),
	)
}

func convertSelectionTool() mcp.Tool {
	return mcp.NewTool(ToolSelection,
		mcp.WithDescription("Like convert_all, restricted to selections. Each selection is scanned on its own. "+
			"Selections are {start, end} byte offsets, or {start, end} positions given as {line, character}."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text.")),
		mcp.WithArray("selections", mcp.Required(),
			mcp.Description("Non-overlapping selections."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start": map[string]any{"description": "Byte offset, or {line, character}."},
					"end":   map[string]any{"description": "Byte offset, or {line, character}."},
				},
				"required": []string{"start", "end"},
			}),
		),
	)
}

func scanTimestampsTool() mcp.Tool {
	return mcp.NewTool(ToolScan,
		mcp.WithDescription("List numeric literals with their classification (accepted, below_threshold, "+
			"not_finite, out_of_range), unit, position and rendering. Never edits."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text.")),
		mcp.WithBoolean("include_rejected", mcp.Description("Also list literals that do not qualify (default false).")),
	)
}

func convertFileTool() mcp.Tool {
	return mcp.NewTool(ToolFile,
		mcp.WithDescription("Convert the timestamps of a file under the server root. "+
			"With write=false (default) only reports the count."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path, relative to the server root or absolute inside it.")),
		mcp.WithBoolean("write", mcp.Description("Rewrite the file atomically (default false).")),
	)
}
