package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/workspace"
)

type convertFlags struct {
	selections []string
	write      bool
	syntax     bool
	asJSON     bool
}

func newConvertCmd(a *app) *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "convert [paths...]",
		Short: "Replace Unix timestamps with date-times",
		Long: `Convert every qualifying Unix timestamp.

With no paths or "-", stdin is converted to stdout. With --selection, only
the given byte ranges of a single input are converted. Files and directories
are converted on a worker pool: by default only a report is printed, and
--write rewrites the files in place.

Examples:

  echo 1700000000 | unixtime convert --timezone UTC
  unixtime convert --selection 0:10 --selection 20:33 notes.txt
  unixtime convert --write --syntax src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("syntax") {
				f.syntax = a.cfg.Syntax.Enabled
			}
			if len(f.selections) > 0 || len(args) == 0 || (len(args) == 1 && args[0] == "-") {
				return a.convertSingle(cmd, args, f)
			}
			return a.convertFiles(cmd, args, f)
		},
	}

	cmd.Flags().StringArrayVar(&f.selections, "selection", nil, "byte range start:end to convert (repeatable)")
	cmd.Flags().BoolVarP(&f.write, "write", "w", false, "rewrite files in place")
	cmd.Flags().BoolVar(&f.syntax, "syntax", false, "in JS/TS files, only convert numbers, comments and strings")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the file report as JSON")
	return cmd
}

// convertSingle converts one input, optionally restricted to selections.
func (a *app) convertSingle(cmd *cobra.Command, args []string, f convertFlags) error {
	if len(args) > 1 {
		return errors.New("--selection takes a single input")
	}
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	stdin := path == "" || path == "-"
	if f.write && stdin {
		return errors.New("--write needs a file")
	}

	cfg, err := a.convertConfig()
	if err != nil {
		return err
	}
	text, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	var res convert.Result
	if len(f.selections) > 0 {
		ranges, err := parseSelections(f.selections)
		if err != nil {
			return err
		}
		res, err = convert.Selections(cfg, text, ranges)
		if err != nil {
			return err
		}
	} else {
		res = convert.All(cfg, text)
	}

	out, err := res.Apply(text)
	if err != nil {
		return err
	}
	printNotice(cmd, res.Notice)

	if f.write {
		if res.Empty() {
			return nil
		}
		return workspace.WriteFileAtomic(path, []byte(out))
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

// convertFiles runs the workspace converter over files and directories.
func (a *app) convertFiles(cmd *cobra.Command, args []string, f convertFlags) error {
	cfg, err := a.convertConfig()
	if err != nil {
		return err
	}
	files, err := workspace.DiscoverAll(args, a.cfg.WorkspaceOptions())
	if err != nil {
		return err
	}

	regions, err := a.extractor(f.syntax)
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
		Logger:  a.logger,
	})
	defer conv.Close()

	mode := workspace.ModeCheck
	if f.write {
		mode = workspace.ModeWrite
	}
	report, err := conv.Run(cmd.Context(), files, mode)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for _, fr := range report.Files {
			switch {
			case fr.Err != nil:
				fmt.Fprintf(out, "%s: error: %v\n", fr.Path, fr.Err)
			case fr.Skipped != "":
				fmt.Fprintf(out, "%s: skipped (%s)\n", fr.Path, fr.Skipped)
			case fr.Count > 0:
				verb := "would convert"
				if fr.Written {
					verb = "converted"
				}
				fmt.Fprintf(out, "%s: %s %d timestamp(s)\n", fr.Path, verb, fr.Count)
			}
		}
	}

	printNotice(cmd, summaryNotice(report))
	if err := report.Err(); err != nil {
		return fmt.Errorf("%d file(s) failed: %w", report.Failed, err)
	}
	return nil
}

func summaryNotice(r workspace.Report) convert.Notice {
	if r.Tokens == 0 {
		return convert.Notice{Level: convert.LevelWarning, Message: fmt.Sprintf("No Unix timestamps found in %d file(s).", len(r.Files))}
	}
	verb := "Found"
	if r.Mode == workspace.ModeWrite {
		verb = "Converted"
	}
	return convert.Notice{
		Level:   convert.LevelInfo,
		Message: fmt.Sprintf("%s %d Unix timestamp(s) in %d of %d file(s).", verb, r.Tokens, r.Changed, len(r.Files)),
	}
}

// parseSelections parses "start:end" byte ranges.
func parseSelections(specs []string) ([]convert.Range, error) {
	ranges := make([]convert.Range, 0, len(specs))
	for _, s := range specs {
		lo, hi, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("invalid selection %q: want start:end", s)
		}
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q: %w", s, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q: %w", s, err)
		}
		ranges = append(ranges, convert.Range{Start: start, End: end})
	}
	return ranges, nil
}
