package mcplog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

func TestSanitizeParams(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		wantKeys map[string]bool // keys expected in output
		wantSkip map[string]bool // keys that should NOT appear
	}{
		{
			name:     "nil map returns empty",
			input:    nil,
			wantKeys: map[string]bool{},
		},
		{
			name:     "short string passes through",
			input:    map[string]any{"path": "logs/app.log"},
			wantKeys: map[string]bool{"path": true},
		},
		{
			name: "long string replaced with _len key",
			input: map[string]any{
				"text": string(make([]byte, 200)), // 200 bytes > 64
			},
			wantKeys: map[string]bool{"text_len": true},
			wantSkip: map[string]bool{"text": true},
		},
		{
			name: "bool and nil pass through",
			input: map[string]any{
				"write": true,
				"extra": nil,
			},
			wantKeys: map[string]bool{"write": true, "extra": true},
		},
		{
			name: "mixed short and long strings",
			input: map[string]any{
				"path": "a.ts",
				"text": string(make([]byte, 100)),
			},
			wantKeys: map[string]bool{"path": true, "text_len": true},
			wantSkip: map[string]bool{"text": true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := SanitizeParams(tc.input)
			for k := range tc.wantKeys {
				if _, ok := out[k]; !ok {
					t.Errorf("expected key %q in output", k)
				}
			}
			for k := range tc.wantSkip {
				if _, ok := out[k]; ok {
					t.Errorf("unexpected key %q in output", k)
				}
			}
		})
	}
}

func TestResponseBytes(t *testing.T) {
	t.Run("nil returns zero", func(t *testing.T) {
		if got := ResponseBytes(nil); got != 0 {
			t.Errorf("got %d, want 0", got)
		}
	})
	t.Run("text content", func(t *testing.T) {
		if got := ResponseBytes(mcp.NewToolResultText("ok")); got == 0 {
			t.Error("expected non-zero size")
		}
	})
}

func TestNewEntry(t *testing.T) {
	start := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	restore := Now
	Now = func() time.Time { return start.Add(15 * time.Millisecond) }
	defer func() { Now = restore }()

	args := map[string]any{"text": strings.Repeat("1700000000 ", 10), "offset": 3}
	entry := NewEntry("convert_all", args, start, mcp.NewToolResultError("bad range"), nil)

	if _, err := uuid.Parse(entry.ID); err != nil {
		t.Errorf("id %q is not a uuid: %v", entry.ID, err)
	}
	if entry.DurationMs != 15 {
		t.Errorf("duration_ms=%d, want 15", entry.DurationMs)
	}
	if !entry.IsError || entry.Error != nil {
		t.Errorf("tool errors set is_error only, got is_error=%v error=%v", entry.IsError, entry.Error)
	}
	if entry.Params["text_len"] != 110 {
		t.Errorf("text_len=%v, want 110", entry.Params["text_len"])
	}

	failed := NewEntry("convert_file", nil, start, nil, errors.New("boom"))
	if failed.Error == nil || *failed.Error != "boom" {
		t.Errorf("error=%v, want boom", failed.Error)
	}
	if other := NewEntry("convert_file", nil, start, nil, nil); other.ID == entry.ID {
		t.Error("ids must be unique per call")
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var l *Logger
	if err := l.Write(LogEntry{Tool: "x"}); err != nil {
		t.Errorf("nil logger write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil logger close: %v", err)
	}
}

func TestLoggerWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.jsonl")

	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	entries := []LogEntry{
		{Ts: time.Now().UTC().Format(time.RFC3339), Tool: "hover_timestamp", Params: map[string]any{"offset": 4}, DurationMs: 1, ResponseBytes: 100},
		{Ts: time.Now().UTC().Format(time.RFC3339), Tool: "convert_all", Params: map[string]any{"text_len": 1200}, DurationMs: 42, ResponseBytes: 800},
		{Ts: time.Now().UTC().Format(time.RFC3339), Tool: "convert_file", Params: map[string]any{"path": "a.log", "write": false}, DurationMs: 3, ResponseBytes: 50},
	}

	for _, e := range entries {
		if err := logger.Write(e); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Re-open and read back.
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var got []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("unmarshal line %q: %v", line, err)
		}
		got = append(got, e)
	}

	if len(got) != len(entries) {
		t.Fatalf("got %d lines, want %d", len(got), len(entries))
	}
	for i, e := range entries {
		if got[i].Tool != e.Tool {
			t.Errorf("line %d: tool=%q, want %q", i, got[i].Tool, e.Tool)
		}
		if got[i].DurationMs != e.DurationMs {
			t.Errorf("line %d: duration_ms=%d, want %d", i, got[i].DurationMs, e.DurationMs)
		}
	}
}

func TestLoggerConcurrency(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concurrent.jsonl")

	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	const goroutines = 50
	const writesEach = 10

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < writesEach; j++ {
				_ = logger.Write(LogEntry{
					Ts:   time.Now().UTC().Format(time.RFC3339),
					Tool: "scan_timestamps",
				})
			}
		}(i)
	}
	wg.Wait()

	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("torn write detected at line %d: %v", count+1, err)
		}
		count++
	}

	if count != goroutines*writesEach {
		t.Errorf("got %d lines, want %d", count, goroutines*writesEach)
	}
}

func TestNewLoggerCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "mcp.jsonl")

	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestNewLoggerEmptyPath(t *testing.T) {
	logger, err := NewLogger("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger != nil {
		t.Errorf("expected nil logger for empty path")
	}
}
