package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/document"
	"github.com/gnana997/unixtime/pkg/util"
	"github.com/gnana997/unixtime/pkg/workspace"
)

// scanLine is one reported literal.
type scanLine struct {
	Path      string            `json:"path,omitempty"`
	Position  document.Position `json:"position"`
	Text      string            `json:"text"`
	Reason    string            `json:"reason"`
	Unit      string            `json:"unit,omitempty"`
	Formatted string            `json:"formatted,omitempty"`
}

func (l scanLine) String() string {
	loc := fmt.Sprintf("%d:%d", l.Position.Line+1, l.Position.Character+1)
	if l.Path != "" {
		loc = l.Path + ":" + loc
	}
	if l.Formatted == "" {
		return fmt.Sprintf("%s %s (%s)", loc, l.Text, l.Reason)
	}
	return fmt.Sprintf("%s %s -> %s (%s)", loc, l.Text, l.Formatted, l.Unit)
}

func newScanCmd(a *app) *cobra.Command {
	var (
		all    bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "List timestamps and how they classify, without editing",
		Long: `Report every Unix timestamp found in stdin, files or directories as
path:line:column token -> date-time. With --all, literals that do not
qualify are listed too, with the reason (below_threshold, not_finite,
out_of_range).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.convertConfig()
			if err != nil {
				return err
			}

			var lines []scanLine
			if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
				text, err := readInput(cmd, "-")
				if err != nil {
					return err
				}
				lines = scanText(cfg, "", text, all)
			} else {
				files, err := workspace.DiscoverAll(args, a.cfg.WorkspaceOptions())
				if err != nil {
					return err
				}
				cfgCache := util.DefaultFileCacheConfig()
				cfgCache.Logger = a.logger
				cache := util.NewFileCache(cfgCache)
				defer cache.Close()

				for _, path := range files {
					text, err := cache.ReadString(path)
					// Each file is read once; keep the mapping count flat.
					_ = cache.Invalidate(path)
					if err != nil {
						a.logger.Warn("failed to read file", "file", path, "error", err)
						continue
					}
					if workspace.IsBinary(text) {
						continue
					}
					lines = append(lines, scanText(cfg, path, text, all)...)
				}
			}

			return printScan(cmd.OutOrStdout(), lines, asJSON)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include literals that do not qualify")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func scanText(cfg convert.Config, path, text string, all bool) []scanLine {
	findings := convert.Scan(cfg, text)
	if !all {
		findings = convert.Qualifying(findings)
	}
	if len(findings) == 0 {
		return nil
	}

	doc := document.New(text)
	lines := make([]scanLine, 0, len(findings))
	for _, f := range findings {
		l := scanLine{
			Path:      path,
			Position:  doc.PositionAt(f.Token.Start),
			Text:      f.Text,
			Reason:    f.Reason.String(),
			Formatted: f.Formatted,
		}
		if f.Unit != nil {
			l.Unit = f.Unit.String()
		}
		lines = append(lines, l)
	}
	return lines
}

func printScan(w io.Writer, lines []scanLine, asJSON bool) error {
	if asJSON {
		if lines == nil {
			lines = []scanLine{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(lines)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l.String()); err != nil {
			return err
		}
	}
	return nil
}
