package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/unixtime/pkg/parser"
	"github.com/gnana997/unixtime/pkg/timestamp"
	"github.com/gnana997/unixtime/pkg/util"
	"github.com/gnana997/unixtime/pkg/workspace"
)

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, timestamp.DefaultThreshold, cfg.Threshold)
	assert.Equal(t, workspace.DefaultExcludes, cfg.Exclude)
}

func TestLoad_DefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(Dir, 0o755))
	require.NoError(t, os.WriteFile(DefaultPath(), []byte("timezone: UTC\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	data := []byte(`
threshold: 1500000000
timezone: Asia/Tokyo
show_utc: true
include: ["**/*.log"]
syntax:
  enabled: true
  kinds: [number, comment]
workers: 4
cache_size: 16
log:
  level: debug
  format: json
  mcp_log: .unixtime/calls.jsonl
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 1.5e9, cfg.Threshold)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.True(t, cfg.ShowUTC)
	assert.Equal(t, []string{"**/*.log"}, cfg.Include)
	assert.Equal(t, workspace.DefaultExcludes, cfg.Exclude, "unset keys keep their defaults")
	assert.True(t, cfg.Syntax.Enabled)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, ".unixtime/calls.jsonl", cfg.Log.MCPLog)

	kinds, err := cfg.SyntaxKinds()
	require.NoError(t, err)
	assert.Equal(t, []parser.Kind{parser.KindNumber, parser.KindComment}, kinds)

	lc, err := cfg.LoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, util.LevelDebug, lc.Level)
	assert.Equal(t, util.FormatJSON, lc.Format)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "treshold: 5\n"},
		{"bad yaml", "threshold: [\n"},
		{"negative threshold", "threshold: -1\n"},
		{"unknown timezone", "timezone: Mars/Olympus\n"},
		{"negative workers", "workers: -2\n"},
		{"negative cache", "cache_size: -1\n"},
		{"bad glob", "exclude: ['[abc']\n"},
		{"bad syntax kind", "syntax:\n  kinds: [regex]\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad log format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestApply_FlagsOverrideFile(t *testing.T) {
	cfg, err := Parse([]byte("threshold: 1500000000\ntimezone: Asia/Tokyo\nworkers: 2\n"))
	require.NoError(t, err)

	threshold := 2e9
	tz := "UTC"
	require.NoError(t, cfg.Apply(Overrides{Threshold: &threshold, Timezone: &tz}))

	assert.Equal(t, 2e9, cfg.Threshold)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 2, cfg.Workers, "unset flags leave file values alone")

	bad := "nowhere"
	assert.Error(t, cfg.Apply(Overrides{Timezone: &bad}))
}

func TestLocation(t *testing.T) {
	tests := []struct {
		tz   string
		want string
	}{
		{"", time.Local.String()},
		{"Local", time.Local.String()},
		{"local", time.Local.String()},
		{"UTC", "UTC"},
		{"utc", "UTC"},
		{"Europe/Berlin", "Europe/Berlin"},
	}
	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			loc, err := (&Config{Timezone: tt.tz}).Location()
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.String())
		})
	}
}

func TestConvertConfig(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "UTC"
	cfg.ShowUTC = true

	cc, err := cfg.ConvertConfig()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cc.Location)
	assert.True(t, cc.ShowUTC)
	assert.Nil(t, cc.Cache)

	cc, err = cfg.CachedConvertConfig()
	require.NoError(t, err)
	require.NotNil(t, cc.Cache)

	cfg.CacheSize = 0
	cc, err = cfg.CachedConvertConfig()
	require.NoError(t, err)
	assert.Nil(t, cc.Cache, "a zero size disables the cache")
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "UTC"
	cfg.Syntax.Enabled = true

	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "timezone: UTC")

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
