package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnana997/unixtime/pkg/config"
	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/parser"
	"github.com/gnana997/unixtime/pkg/timestamp"
	"github.com/gnana997/unixtime/pkg/util"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	threshold  float64
	timezone   string
	showUTC    bool
	workers    int
	logLevel   string
	logFormat  string
}

// app carries state resolved once per invocation in PersistentPreRunE.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "unixtime",
		Short: "Convert Unix timestamps in text into readable date-times",
		Long: `unixtime finds Unix timestamps (seconds or milliseconds since the epoch,
with an optional fraction) in text and renders them as YYYY/MM/DD HH:mm:ss
in a chosen time zone.

It runs as a one-shot converter, a file watcher, or an MCP server for
editors and agents.

Examples:

  echo "created 1700000000" | unixtime convert --timezone UTC
  unixtime convert --write --syntax src/
  unixtime hover app.log --line 3 --character 12
  unixtime serve`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.Float64Var(&a.flags.threshold, "threshold", timestamp.DefaultThreshold, "smallest integer treated as a timestamp")
	pf.StringVar(&a.flags.timezone, "timezone", "", `time zone for rendering: "Local", "UTC" or an IANA name`)
	pf.BoolVar(&a.flags.showUTC, "show-utc", false, "also show the UTC rendering in hover output")
	pf.IntVar(&a.flags.workers, "workers", 0, "worker count for file conversion (0 = auto)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: text, json")

	root.AddCommand(
		newHoverCmd(a),
		newConvertCmd(a),
		newScanCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newSetupCmd(a),
		newVersionCmd(),
	)
	return root
}

// load resolves configuration with flag > file > default precedence and
// builds the logger.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}

	var o config.Overrides
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		o.Threshold = &a.flags.threshold
	}
	if flags.Changed("timezone") {
		o.Timezone = &a.flags.timezone
	}
	if flags.Changed("show-utc") {
		o.ShowUTC = &a.flags.showUTC
	}
	if flags.Changed("workers") {
		o.Workers = &a.flags.workers
	}
	if flags.Changed("log-level") {
		o.LogLevel = &a.flags.logLevel
	}
	if flags.Changed("log-format") {
		o.LogFormat = &a.flags.logFormat
	}
	if err := cfg.Apply(o); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lc, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	lc.Output = cmd.ErrOrStderr()
	a.logger = util.NewLogger(lc)
	a.cfg = cfg
	return nil
}

// convertConfig is the engine config for one-shot commands.
func (a *app) convertConfig() (convert.Config, error) {
	return a.cfg.ConvertConfig()
}

// extractor returns a syntax region extractor, or nil when syntax-aware
// conversion is off.
func (a *app) extractor(enabled bool) (*parser.Extractor, error) {
	if !enabled {
		return nil, nil
	}
	kinds, err := a.cfg.SyntaxKinds()
	if err != nil {
		return nil, err
	}
	return parser.NewExtractor(a.logger, a.cfg.Workers, kinds), nil
}

// readInput reads a file, or stdin for "" and "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// printNotice writes "warning: ..." or "info: ..." to stderr.
func printNotice(cmd *cobra.Command, n convert.Notice) {
	if n.Message == "" {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", n.Level, n.Message)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of unixtime",
		Args:  cobra.NoArgs,
		// Skips config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "unixtime %s\n", version)
		},
	}
}
