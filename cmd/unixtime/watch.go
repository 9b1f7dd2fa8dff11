package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnana997/unixtime/pkg/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		metricsAddr string
		debounce    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Report timestamps in files as they change",
		Long: `Watch a directory tree and print every Unix timestamp of a changed file
as path:line:column token -> date-time. Files are never rewritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			absRoot, err := filepath.Abs(root)
			if err != nil {
				return err
			}

			cfg, err := a.cfg.CachedConvertConfig()
			if err != nil {
				return err
			}
			collector, err := startMetrics(ctx, a, metricsAddr)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report := func(r watch.Report) {
				rel, err := filepath.Rel(absRoot, r.Path)
				if err != nil {
					rel = r.Path
				}
				if r.Err != nil {
					a.logger.Warn("failed to scan file", "file", rel, "error", r.Err)
					return
				}
				for _, l := range r.Findings {
					fmt.Fprintf(out, "%s:%s\n", rel, l)
				}
			}

			w, err := watch.New(watch.Options{
				Config:   cfg,
				Filter:   a.cfg.WorkspaceOptions(),
				Debounce: debounce,
				Metrics:  collector,
				Logger:   a.logger,
			}, report)
			if err != nil {
				return err
			}
			return w.Run(ctx, absRoot)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a changed file is scanned")
	return cmd
}
