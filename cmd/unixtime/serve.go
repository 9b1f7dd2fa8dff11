package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gnana997/unixtime/pkg/mcp"
	"github.com/gnana997/unixtime/pkg/mcplog"
	"github.com/gnana997/unixtime/pkg/metrics"
	"github.com/gnana997/unixtime/pkg/workspace"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		logFile     string
		metricsAddr string
		root        string
		syntax      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Start a Model Context Protocol server exposing hover_timestamp,
convert_all, convert_selection, scan_timestamps and convert_file over
STDIN/STDOUT. Logs go to stderr so the JSON-RPC stream stays clean.

Example:

  unixtime serve --log-file .unixtime/calls.jsonl --metrics-addr :9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cmd.Flags().Changed("log-file") {
				a.cfg.Log.MCPLog = logFile
			}
			if !cmd.Flags().Changed("syntax") {
				syntax = a.cfg.Syntax.Enabled
			}

			cfg, err := a.cfg.CachedConvertConfig()
			if err != nil {
				return err
			}

			callLog, err := mcplog.NewLogger(a.cfg.Log.MCPLog)
			if err != nil {
				return err
			}
			defer callLog.Close()

			collector, err := startMetrics(ctx, a, metricsAddr)
			if err != nil {
				return err
			}

			regions, err := a.extractor(syntax)
			if err != nil {
				return err
			}
			if regions != nil {
				defer regions.Close()
			}

			conv := workspace.NewConverter(workspace.ConverterOptions{
				Config:  cfg,
				Regions: regions,
				Workers: a.cfg.Workers,
				Metrics: collector,
				Logger:  a.logger,
			})
			defer conv.Close()

			srv, err := mcp.NewServer(mcp.Options{
				Config:    cfg,
				Converter: conv,
				Root:      root,
				CallLog:   callLog,
				Metrics:   collector,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}
			defer srv.Close()

			return srv.ServeStdio()
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "append a JSONL line per tool call to this file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address")
	cmd.Flags().StringVar(&root, "root", ".", "directory convert_file is confined to")
	cmd.Flags().BoolVar(&syntax, "syntax", false, "syntax-aware convert_file for JS/TS")
	return cmd
}

// startMetrics serves /metrics in the background when addr is set.
// It returns a nil collector otherwise, which records nothing.
func startMetrics(ctx context.Context, a *app, addr string) (*metrics.Collector, error) {
	if addr == "" {
		return nil, nil
	}
	collector, err := metrics.NewCollector()
	if err != nil {
		return nil, err
	}
	go func() {
		if err := collector.Serve(ctx, addr, a.logger); err != nil {
			a.logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return collector, nil
}
