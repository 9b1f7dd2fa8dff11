package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/unixtime/pkg/config"
)

// serverID is the key unixtime is registered under in agent configs.
const serverID = "unixtime"

// AgentDef describes how to detect and configure one MCP client.
type AgentDef struct {
	ID          string
	DisplayName string
	Method      string            // "cli" or "file"
	Binary      string            // cli: binary on PATH
	DirMarkers  []string          // file: directories that indicate presence
	ConfigPath  func() string     // file: config file location
	ServersKey  string            // "servers" (VS Code) or "mcpServers"
	NeedsScope  bool              // cli: ask for project or user scope
	ExtraFields map[string]string // e.g. "type": "stdio" for VS Code
}

// DetectedAgent is an agent found on this machine.
type DetectedAgent struct {
	Def            AgentDef
	AlreadySetup   bool
	ResolvedConfig string
}

type setupOptions struct {
	auto       bool
	initConfig bool
}

// Replaceable in tests.
var lookPathFunc = exec.LookPath
var statFunc = os.Stat

var agentRegistry = []AgentDef{
	{
		ID: "claude_code", DisplayName: "Claude Code",
		Method: "cli", Binary: "claude", NeedsScope: true,
	},
	{
		ID: "openai_codex", DisplayName: "OpenAI Codex",
		Method: "cli", Binary: "codex", NeedsScope: true,
	},
	{
		ID: "vscode", DisplayName: "VS Code",
		Method: "file", DirMarkers: []string{".vscode"},
		ConfigPath:  func() string { return filepath.Join(".vscode", "mcp.json") },
		ServersKey:  "servers",
		ExtraFields: map[string]string{"type": "stdio"},
	},
	{
		ID: "cursor", DisplayName: "Cursor",
		Method: "file", DirMarkers: []string{".cursor"},
		ConfigPath: func() string { return filepath.Join(".cursor", "mcp.json") },
		ServersKey: "mcpServers",
	},
	{
		ID: "claude_desktop", DisplayName: "Claude Desktop",
		Method:     "file",
		ConfigPath: claudeDesktopConfigPath,
		ServersKey: "mcpServers",
	},
}

func claudeDesktopConfigPath() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

func newSetupCmd(a *app) *cobra.Command {
	var opts setupOptions

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register `unixtime serve` with detected editors and agents",
		Long: `Detect MCP clients (Claude Code, Codex, VS Code, Cursor, Claude Desktop)
and add a "unixtime" server entry that runs "unixtime serve". Existing
entries are left alone.

With --init-config, also write a starter ` + config.DefaultPath() + ` holding the
current settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.initConfig {
				path, err := writeStarterConfig(a.cfg, a.flags.configPath)
				switch {
				case errors.Is(err, os.ErrExist):
					fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, leaving it alone\n", path)
				case err != nil:
					return err
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "+ wrote %s\n", path)
				}
			}
			executeSetup(cmd.InOrStdin(), cmd.OutOrStdout(), opts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.auto, "auto", false, "configure every detected agent without prompting")
	cmd.Flags().BoolVar(&opts.initConfig, "init-config", false, "write a starter config file if none exists")
	return cmd
}

// writeStarterConfig writes cfg to path (DefaultPath when empty) unless the
// file exists, in which case it returns an error wrapping os.ErrExist.
func writeStarterConfig(cfg *config.Config, path string) (string, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%s: %w", path, os.ErrExist)
	}
	data, err := cfg.Marshal()
	if err != nil {
		return path, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, fmt.Errorf("create config directory: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// detectAgents finds installed or configured agents.
func detectAgents() []DetectedAgent {
	var detected []DetectedAgent

	for _, def := range agentRegistry {
		switch def.Method {
		case "cli":
			if _, err := lookPathFunc(def.Binary); err == nil {
				detected = append(detected, DetectedAgent{Def: def, AlreadySetup: hasServerEntry(".mcp.json", "mcpServers")})
			}

		case "file":
			found := false
			configPath := ""

			for _, marker := range def.DirMarkers {
				if _, err := statFunc(marker); err == nil {
					found = true
					configPath = def.ConfigPath()
					break
				}
			}

			// Agents without project markers are present when their config
			// directory exists.
			if !found && len(def.DirMarkers) == 0 && def.ConfigPath != nil {
				configPath = def.ConfigPath()
				if _, err := statFunc(filepath.Dir(configPath)); err == nil {
					found = true
				}
			}

			if found {
				detected = append(detected, DetectedAgent{
					Def:            def,
					ResolvedConfig: configPath,
					AlreadySetup:   hasServerEntry(configPath, def.ServersKey),
				})
			}
		}
	}

	return detected
}

// hasServerEntry reports whether the JSON file at path registers unixtime
// under serversKey.
func hasServerEntry(path, serversKey string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return false
	}
	servers, ok := cfg[serversKey].(map[string]any)
	if !ok {
		return false
	}
	_, exists := servers[serverID]
	return exists
}

func serverEntry(extra map[string]string) map[string]any {
	entry := map[string]any{
		"command": "unixtime",
		"args":    []any{"serve"},
	}
	for k, v := range extra {
		entry[k] = v
	}
	return entry
}

// mergeServerEntry adds the unixtime entry under serversKey to existing
// JSON (or to a new document). Returns nil, nil when it is already there.
func mergeServerEntry(existing []byte, serversKey string, extra map[string]string) ([]byte, error) {
	cfg := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &cfg); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	servers, ok := cfg[serversKey].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	if _, exists := servers[serverID]; exists {
		return nil, nil
	}

	servers[serverID] = serverEntry(extra)
	cfg[serversKey] = servers

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func configureCLIAgent(def AgentDef, scope string) error {
	args := []string{"mcp", "add"}
	if scope != "" {
		args = append(args, "--scope", scope)
	}
	args = append(args, serverID, "--", "unixtime", "serve")
	cmd := exec.Command(def.Binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func configureFileAgent(def AgentDef, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	existing, err := os.ReadFile(configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	merged, err := mergeServerEntry(existing, def.ServersKey, def.ExtraFields)
	if err != nil {
		return fmt.Errorf("%s: %w", configPath, err)
	}
	if merged == nil {
		return nil
	}
	return os.WriteFile(configPath, merged, 0o644)
}

// --- prompts ---

// promptYesNo reads Y/n; empty input and EOF mean yes.
func promptYesNo(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s ", question)
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return true
	}
	answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return answer == "" || answer == "y" || answer == "yes"
}

// promptScope returns "project", "user", or "" to skip.
func promptScope(r io.Reader, w io.Writer, agentName string) string {
	fmt.Fprintf(w, "\n%s: add the unixtime MCP server?\n", agentName)
	fmt.Fprintln(w, "  [1] Project scope (shared with team)")
	fmt.Fprintln(w, "  [2] User scope (personal, global)")
	fmt.Fprintln(w, "  [3] Skip")
	fmt.Fprintf(w, "  > ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return "project"
	}
	switch strings.TrimSpace(scanner.Text()) {
	case "1", "":
		return "project"
	case "2":
		return "user"
	default:
		return ""
	}
}

// executeSetup is the I/O-parameterized core of `unixtime setup`.
func executeSetup(r io.Reader, w io.Writer, opts setupOptions) {
	detected := detectAgents()
	if len(detected) == 0 {
		fmt.Fprintln(w, "No supported MCP clients detected.")
		return
	}

	fmt.Fprintln(w, "Detected MCP clients:")
	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(w, "  * %s (already configured)\n", d.Def.DisplayName)
		} else {
			fmt.Fprintf(w, "  * %s\n", d.Def.DisplayName)
		}
	}
	fmt.Fprintln(w)

	if !opts.auto && !promptYesNo(r, w, "Configure them? [Y/n]") {
		return
	}

	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(w, "\n%s: already configured, skipping\n", d.Def.DisplayName)
			continue
		}
		configureOneAgent(r, w, d, opts)
	}
}

func configureOneAgent(r io.Reader, w io.Writer, d DetectedAgent, opts setupOptions) {
	switch d.Def.Method {
	case "cli":
		scope := "project"
		if !opts.auto && d.Def.NeedsScope {
			scope = promptScope(r, w, d.Def.DisplayName)
			if scope == "" {
				fmt.Fprintf(w, "  skipped\n")
				return
			}
		}
		if err := configureCLIAgent(d.Def, scope); err != nil {
			fmt.Fprintf(w, "  ! %s: failed: %v\n", d.Def.DisplayName, err)
			return
		}
		fmt.Fprintf(w, "  + %s configured (scope: %s)\n", d.Def.DisplayName, scope)

	case "file":
		if !opts.auto && !promptYesNo(r, w, fmt.Sprintf("\n%s: add to %s? [Y/n]", d.Def.DisplayName, d.ResolvedConfig)) {
			fmt.Fprintf(w, "  skipped\n")
			return
		}
		if err := configureFileAgent(d.Def, d.ResolvedConfig); err != nil {
			fmt.Fprintf(w, "  ! %s: failed: %v\n", d.Def.DisplayName, err)
			return
		}
		fmt.Fprintf(w, "  + %s configured (%s)\n", d.Def.DisplayName, d.ResolvedConfig)
	}
}
