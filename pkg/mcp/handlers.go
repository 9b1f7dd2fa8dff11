package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/document"
	"github.com/gnana997/unixtime/pkg/edit"
	"github.com/gnana997/unixtime/pkg/metrics"
	"github.com/gnana997/unixtime/pkg/workspace"
)

type hoverResponse struct {
	Found   bool   `json:"found"`
	Token   string `json:"token,omitempty"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Unit    string `json:"unit,omitempty"`
	Local   string `json:"local,omitempty"`
	UTC     string `json:"utc,omitempty"`
	Zone    string `json:"zone,omitempty"`
	Display string `json:"display,omitempty"`
}

type convertResponse struct {
	Count  int            `json:"count"`
	Notice convert.Notice `json:"notice"`
	Edits  []edit.Edit    `json:"edits"`
	Text   string         `json:"text"`
}

type scanItem struct {
	Text      string            `json:"text"`
	Start     int               `json:"start"`
	End       int               `json:"end"`
	Position  document.Position `json:"position"`
	Reason    string            `json:"reason"`
	Unit      string            `json:"unit,omitempty"`
	Formatted string            `json:"formatted,omitempty"`
	UTC       string            `json:"utc,omitempty"`
}

type fileResponse struct {
	Path    string         `json:"path"`
	Count   int            `json:"count"`
	Notice  convert.Notice `json:"notice"`
	Written bool           `json:"written"`
	Syntax  bool           `json:"syntax,omitempty"`
	Skipped string         `json:"skipped,omitempty"`
}

func (s *Server) handleHover(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text, ok := stringArg(args, "text")
	if !ok {
		return mcp.NewToolResultError("'text' parameter is required and must be a string"), nil
	}

	offset, hasOffset, err := intArg(args, "offset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !hasOffset {
		line, hasLine, err := intArg(args, "line")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		char, hasChar, err := intArg(args, "character")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !hasLine || !hasChar {
			return mcp.NewToolResultError("give either 'offset' or both 'line' and 'character'"), nil
		}
		offset = document.New(text).OffsetAt(document.Position{Line: line, Character: char})
	}

	start := time.Now()
	h, found := convert.Hover(s.cfg, text, offset)
	if !found {
		s.metrics.ObserveConversion(metrics.OpHover, 0, time.Since(start))
		return jsonResult(hoverResponse{Found: false})
	}
	s.metrics.ObserveConversion(metrics.OpHover, 1, time.Since(start))

	return jsonResult(hoverResponse{
		Found:   true,
		Token:   h.Token.Text(),
		Start:   h.Token.Start,
		End:     h.Token.End,
		Unit:    h.Unit.String(),
		Local:   h.Local,
		UTC:     h.UTC,
		Zone:    h.Zone,
		Display: h.Display,
	})
}

func (s *Server) handleConvertAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := stringArg(req.GetArguments(), "text")
	if !ok {
		return mcp.NewToolResultError("'text' parameter is required and must be a string"), nil
	}

	start := time.Now()
	res := convert.All(s.cfg, text)
	s.metrics.ObserveConversion(metrics.OpAll, res.Count, time.Since(start))

	return convertResult(res, text)
}

func (s *Server) handleConvertSelection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text, ok := stringArg(args, "text")
	if !ok {
		return mcp.NewToolResultError("'text' parameter is required and must be a string"), nil
	}
	ranges, err := selectionsArg(args, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	start := time.Now()
	res, err := convert.Selections(s.cfg, text, ranges)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.metrics.ObserveConversion(metrics.OpSelection, res.Count, time.Since(start))

	return convertResult(res, text)
}

func (s *Server) handleScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	text, ok := stringArg(args, "text")
	if !ok {
		return mcp.NewToolResultError("'text' parameter is required and must be a string"), nil
	}
	includeRejected, _ := args["include_rejected"].(bool)

	start := time.Now()
	findings := convert.Scan(s.cfg, text)
	if !includeRejected {
		findings = convert.Qualifying(findings)
	}
	s.metrics.ObserveConversion(metrics.OpScan, len(convert.Qualifying(findings)), time.Since(start))

	doc := document.New(text)
	items := make([]scanItem, 0, len(findings))
	for _, f := range findings {
		item := scanItem{
			Text:      f.Text,
			Start:     f.Token.Start,
			End:       f.Token.End,
			Position:  doc.PositionAt(f.Token.Start),
			Reason:    f.Reason.String(),
			Formatted: f.Formatted,
			UTC:       f.UTC,
		}
		if f.Unit != nil {
			item.Unit = f.Unit.String()
		}
		items = append(items, item)
	}
	return jsonResult(items)
}

func (s *Server) handleConvertFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, ok := stringArg(args, "path")
	if !ok || path == "" {
		return mcp.NewToolResultError("'path' parameter is required and must be a non-empty string"), nil
	}
	write, _ := args["write"].(bool)

	abs, err := s.resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mode := workspace.ModeCheck
	if write {
		mode = workspace.ModeWrite
	}
	report := s.converter.ConvertFile(ctx, abs, mode)
	if report.Err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to convert %s: %v", path, report.Err)), nil
	}

	return jsonResult(fileResponse{
		Path:    abs,
		Count:   report.Count,
		Notice:  report.Notice,
		Written: report.Written,
		Syntax:  report.Syntax,
		Skipped: report.Skipped,
	})
}

// resolve maps path into the server root and rejects escapes, including
// symlinks inside the root that point out of it. The returned path has its
// symlinks resolved.
func (s *Server) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)
	if !within(s.root, path) {
		return "", fmt.Errorf("path %s is outside the server root %s", path, s.root)
	}

	resolved, err := filepath.EvalSymlinks(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Reading reports the missing file.
		return path, nil
	case err != nil:
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if !within(s.root, resolved) {
		return "", fmt.Errorf("path %s resolves to %s, outside the server root %s", path, resolved, s.root)
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func convertResult(res convert.Result, text string) (*mcp.CallToolResult, error) {
	out, err := res.Apply(text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to apply edits: %v", err)), nil
	}
	return jsonResult(convertResponse{
		Count:  res.Count,
		Notice: res.Notice,
		Edits:  res.Transaction.Sorted(),
		Text:   out,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to serialize result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok
}

// intArg reads an integral number. JSON clients send float64; in-process
// callers may send Go integers.
func intArg(args map[string]any, key string) (int, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, false, fmt.Errorf("'%s' %w", key, err)
	}
	return n, true, nil
}

var errNotInteger = errors.New("must be an integer")

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, errNotInteger
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errNotInteger
		}
		return int(i), nil
	default:
		return 0, errNotInteger
	}
}

// selectionsArg decodes selections given as byte offsets or as
// {line, character} positions.
func selectionsArg(args map[string]any, text string) ([]convert.Range, error) {
	raw, ok := args["selections"].([]any)
	if !ok {
		return nil, errors.New("'selections' parameter is required and must be an array")
	}

	var doc *document.Document
	bound := func(v any) (int, error) {
		if pos, ok := v.(map[string]any); ok {
			line, hasLine, err := intArg(pos, "line")
			if err != nil {
				return 0, err
			}
			char, hasChar, err := intArg(pos, "character")
			if err != nil {
				return 0, err
			}
			if !hasLine || !hasChar {
				return 0, errors.New("positions need 'line' and 'character'")
			}
			if doc == nil {
				doc = document.New(text)
			}
			return doc.OffsetAt(document.Position{Line: line, Character: char}), nil
		}
		return toInt(v)
	}

	ranges := make([]convert.Range, 0, len(raw))
	for i, item := range raw {
		sel, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("selection %d must be an object", i)
		}
		start, err := bound(sel["start"])
		if err != nil {
			return nil, fmt.Errorf("selection %d start: %w", i, err)
		}
		end, err := bound(sel["end"])
		if err != nil {
			return nil, fmt.Errorf("selection %d end: %w", i, err)
		}
		ranges = append(ranges, convert.Range{Start: start, End: end})
	}
	return ranges, nil
}
