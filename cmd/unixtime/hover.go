package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/document"
)

func newHoverCmd(a *app) *cobra.Command {
	var (
		offset    int
		line      int
		character int
		markdown  bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "hover <file|->",
		Short: "Show the date-time of the timestamp at a position",
		Long: `Resolve the Unix timestamp under a cursor position and print it in the
configured time zone. Prints nothing when no timestamp qualifies there.

The position is a byte --offset, or a 0-based --line and --character where
characters count UTF-16 code units as editors do.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			byOffset := flags.Changed("offset")
			byPosition := flags.Changed("line") || flags.Changed("character")
			if byOffset == byPosition {
				return errors.New("give either --offset or --line and --character")
			}

			cfg, err := a.convertConfig()
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if byPosition {
				offset = document.New(text).OffsetAt(document.Position{Line: line, Character: character})
			}

			h, found := convert.Hover(cfg, text, offset)
			if !found {
				return nil
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(h)
			case markdown:
				fmt.Fprintln(out, h.Display)
			default:
				fmt.Fprintf(out, "%s: %s\n", h.Zone, h.Local)
				if cfg.ShowUTC {
					fmt.Fprintf(out, "UTC: %s\n", h.UTC)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "byte offset of the cursor")
	cmd.Flags().IntVar(&line, "line", 0, "0-based line of the cursor")
	cmd.Flags().IntVar(&character, "character", 0, "0-based UTF-16 character of the cursor")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the editor hover markdown")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the hover result as JSON")
	cmd.MarkFlagsMutuallyExclusive("markdown", "json")
	return cmd
}
