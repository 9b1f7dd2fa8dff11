// Package metrics exposes Prometheus counters for conversions, files and
// MCP tool calls. A nil *Collector is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "unixtime"

// Operation labels.
const (
	OpHover     = "hover"
	OpAll       = "convert_all"
	OpSelection = "convert_selection"
	OpScan      = "scan"
	OpFile      = "convert_file"
)

// File outcome labels.
const (
	FileConverted = "converted"
	FileUnchanged = "unchanged"
	FileSkipped   = "skipped"
	FileFailed    = "failed"
)

// Collector owns a private registry so tests and embedders never collide
// with the global one.
type Collector struct {
	registry *prometheus.Registry

	conversions *prometheus.CounterVec
	tokens      *prometheus.CounterVec
	empty       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	files       *prometheus.CounterVec
	toolCalls   *prometheus.CounterVec
}

// NewCollector constructs a collector with its metrics registered.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversion requests by operation.",
		}, []string{"operation"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_converted_total",
			Help:      "Timestamp literals replaced or rendered, by operation.",
		}, []string{"operation"}),
		empty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_conversions_total",
			Help:      "Conversion requests that found nothing to convert.",
		}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution of conversion operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"operation"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workspace",
			Name:      "files_total",
			Help:      "Files processed by the workspace converter, by outcome.",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "MCP tool calls by tool and status.",
		}, []string{"tool", "status"}),
	}

	for _, col := range []prometheus.Collector{c.conversions, c.tokens, c.empty, c.duration, c.files, c.toolCalls} {
		if err := c.registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveConversion records one conversion request that produced count
// replacements (or renderings, for hover and scan).
func (c *Collector) ObserveConversion(operation string, count int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.conversions.WithLabelValues(operation).Inc()
	c.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if count == 0 {
		c.empty.WithLabelValues(operation).Inc()
		return
	}
	c.tokens.WithLabelValues(operation).Add(float64(count))
}

// ObserveFile records the outcome of one workspace file.
func (c *Collector) ObserveFile(outcome string) {
	if c == nil {
		return
	}
	c.files.WithLabelValues(outcome).Inc()
}

// ObserveToolCall records one MCP tool call.
func (c *Collector) ObserveToolCall(tool string, failed bool) {
	if c == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	c.toolCalls.WithLabelValues(tool, status).Inc()
}

// Handler returns an HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
