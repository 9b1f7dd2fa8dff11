package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestCollectorRecordsConversions(t *testing.T) {
	c, err := NewCollector()
	require.NoError(t, err)

	c.ObserveConversion(OpAll, 3, 2*time.Millisecond)
	c.ObserveConversion(OpAll, 0, time.Millisecond)
	c.ObserveConversion(OpHover, 1, time.Microsecond)

	body := scrape(t, c)
	assert.Contains(t, body, `unixtime_conversions_total{operation="convert_all"} 2`)
	assert.Contains(t, body, `unixtime_tokens_converted_total{operation="convert_all"} 3`)
	assert.Contains(t, body, `unixtime_empty_conversions_total{operation="convert_all"} 1`)
	assert.Contains(t, body, `unixtime_tokens_converted_total{operation="hover"} 1`)
	assert.Contains(t, body, `unixtime_operation_duration_seconds_count{operation="convert_all"} 2`)
}

func TestCollectorRecordsFilesAndTools(t *testing.T) {
	c, err := NewCollector()
	require.NoError(t, err)

	c.ObserveFile(FileConverted)
	c.ObserveFile(FileConverted)
	c.ObserveFile(FileFailed)
	c.ObserveToolCall("convert_all", false)
	c.ObserveToolCall("convert_file", true)

	body := scrape(t, c)
	assert.Contains(t, body, `unixtime_workspace_files_total{outcome="converted"} 2`)
	assert.Contains(t, body, `unixtime_workspace_files_total{outcome="failed"} 1`)
	assert.Contains(t, body, `unixtime_mcp_tool_calls_total{status="ok",tool="convert_all"} 1`)
	assert.Contains(t, body, `unixtime_mcp_tool_calls_total{status="error",tool="convert_file"} 1`)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveConversion(OpScan, 1, time.Millisecond)
		c.ObserveFile(FileSkipped)
		c.ObserveToolCall("scan_timestamps", false)
	})
}
