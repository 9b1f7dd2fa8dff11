// Package config loads .unixtime/config.yaml and resolves it into the
// settings each host needs. Precedence is flag > file > default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/parser"
	"github.com/gnana997/unixtime/pkg/timestamp"
	"github.com/gnana997/unixtime/pkg/util"
	"github.com/gnana997/unixtime/pkg/workspace"
)

const (
	Dir      = ".unixtime"
	FileName = "config.yaml"

	// DefaultCacheSize is the render cache size for long-lived hosts.
	DefaultCacheSize = 1024
)

// DefaultPath is the project config path relative to the working directory.
func DefaultPath() string {
	return filepath.Join(Dir, FileName)
}

// Syntax controls tree-sitter regions for JS/TS files.
type Syntax struct {
	Enabled bool     `yaml:"enabled"`
	Kinds   []string `yaml:"kinds,omitempty"`
}

// Log holds logger and tool-call log settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	MCPLog string `yaml:"mcp_log,omitempty"`
}

// Config holds the contents of .unixtime/config.yaml.
type Config struct {
	Threshold float64  `yaml:"threshold"`
	Timezone  string   `yaml:"timezone"`
	ShowUTC   bool     `yaml:"show_utc"`
	Include   []string `yaml:"include,omitempty"`
	Exclude   []string `yaml:"exclude,omitempty"`
	Syntax    Syntax   `yaml:"syntax"`
	Workers   int      `yaml:"workers"`
	CacheSize int      `yaml:"cache_size"`
	Log       Log      `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Threshold: timestamp.DefaultThreshold,
		Timezone:  "Local",
		Exclude:   append([]string(nil), workspace.DefaultExcludes...),
		CacheSize: DefaultCacheSize,
		Log: Log{
			Level:  string(util.LevelInfo),
			Format: string(util.FormatText),
		},
	}
}

// Load reads the config at path over the defaults.
//
// An empty path means DefaultPath, and a missing default file is not an
// error. A path given explicitly must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected so that
// typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Overrides carries flag values. Nil fields were not set on the command line.
type Overrides struct {
	Threshold *float64
	Timezone  *string
	ShowUTC   *bool
	Workers   *int
	LogLevel  *string
	LogFormat *string
	MCPLog    *string
}

// Apply layers flag values over c and revalidates.
func (c *Config) Apply(o Overrides) error {
	if o.Threshold != nil {
		c.Threshold = *o.Threshold
	}
	if o.Timezone != nil {
		c.Timezone = *o.Timezone
	}
	if o.ShowUTC != nil {
		c.ShowUTC = *o.ShowUTC
	}
	if o.Workers != nil {
		c.Workers = *o.Workers
	}
	if o.LogLevel != nil {
		c.Log.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		c.Log.Format = *o.LogFormat
	}
	if o.MCPLog != nil {
		c.Log.MCPLog = *o.MCPLog
	}
	return c.Validate()
}

// Validate checks every field that can be checked without side effects.
func (c *Config) Validate() error {
	var errs []error
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) || c.Threshold < 0 {
		errs = append(errs, fmt.Errorf("threshold must be a finite non-negative number, got %v", c.Threshold))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize))
	}
	if err := c.WorkspaceOptions().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parser.ParseKinds(c.Syntax.Kinds); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LoggerConfig(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves Timezone: "" and "Local" are the process zone, any
// other value is an IANA name such as "UTC" or "Asia/Tokyo".
func (c *Config) Location() (*time.Location, error) {
	switch tz := strings.TrimSpace(c.Timezone); {
	case tz == "" || strings.EqualFold(tz, "local"):
		return time.Local, nil
	case strings.EqualFold(tz, "utc"):
		return time.UTC, nil
	default:
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
		}
		return loc, nil
	}
}

// ConvertConfig returns the engine configuration without a render cache.
func (c *Config) ConvertConfig() (convert.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return convert.Config{}, err
	}
	cfg := convert.Config{
		Threshold: c.Threshold,
		Location:  loc,
		ShowUTC:   c.ShowUTC,
	}
	return cfg, cfg.Validate()
}

// CachedConvertConfig is ConvertConfig with a render cache of CacheSize
// entries attached, for the server and the watcher.
func (c *Config) CachedConvertConfig() (convert.Config, error) {
	cfg, err := c.ConvertConfig()
	if err != nil {
		return cfg, err
	}
	cfg.Cache, err = convert.NewRenderCache(c.CacheSize)
	return cfg, err
}

// WorkspaceOptions returns the discovery globs.
func (c *Config) WorkspaceOptions() workspace.Options {
	return workspace.Options{Include: c.Include, Exclude: c.Exclude}
}

// SyntaxKinds returns the configured region kinds.
func (c *Config) SyntaxKinds() ([]parser.Kind, error) {
	return parser.ParseKinds(c.Syntax.Kinds)
}

// LoggerConfig returns the slog settings; output is left to the caller.
func (c *Config) LoggerConfig() (util.LoggerConfig, error) {
	level, err := util.ParseLogLevel(c.Log.Level)
	if err != nil {
		return util.LoggerConfig{}, err
	}
	format, err := util.ParseLogFormat(c.Log.Format)
	if err != nil {
		return util.LoggerConfig{}, err
	}
	return util.LoggerConfig{Level: level, Format: format, Output: os.Stderr}, nil
}

// Marshal renders c as YAML, for `setup` to write a starter file.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
