package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI in-process.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestConvert_Stdin(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, stderr, err := run(t, "created 1700000000\n", "convert", "--timezone", "UTC")
	require.NoError(t, err)
	assert.Equal(t, "created 2023/11/14 22:13:20\n", stdout)
	assert.Contains(t, stderr, "info: Converted 1 Unix timestamp(s) to date-time.")

	stdout, stderr, err = run(t, "version 1.2.3", "convert", "-")
	require.NoError(t, err)
	assert.Equal(t, "version 1.2.3", stdout)
	assert.Contains(t, stderr, "warning: No Unix timestamps found to convert.")
}

func TestConvert_Timezone(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, _, err := run(t, "1700000000", "convert", "--timezone", "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2023/11/15 07:13:20", stdout)

	_, _, err = run(t, "1700000000", "convert", "--timezone", "Nowhere/Special")
	assert.Error(t, err)
}

func TestConvert_Threshold(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, stderr, err := run(t, "1700000000", "convert", "--timezone", "UTC", "--threshold", "2000000000")
	require.NoError(t, err)
	assert.Equal(t, "1700000000", stdout)
	assert.Contains(t, stderr, "warning:")
}

func TestConvert_ConfigFilePrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll(".unixtime", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(".unixtime", "config.yaml"), []byte("timezone: Asia/Tokyo\n"), 0o644))

	stdout, _, err := run(t, "1700000000", "convert")
	require.NoError(t, err)
	assert.Equal(t, "2023/11/15 07:13:20", stdout, "file beats default")

	stdout, _, err = run(t, "1700000000", "convert", "--timezone", "UTC")
	require.NoError(t, err)
	assert.Equal(t, "2023/11/14 22:13:20", stdout, "flag beats file")

	_, _, err = run(t, "", "convert", "--config", "missing.yaml")
	assert.Error(t, err, "an explicit config must exist")
}

func TestConvert_Selections(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, _, err := run(t, "1700000000 1700000000", "convert", "--timezone", "UTC", "--selection", "11:21")
	require.NoError(t, err)
	assert.Equal(t, "1700000000 2023/11/14 22:13:20", stdout)

	for _, sel := range []string{"5", "a:b", "0:99"} {
		_, _, err := run(t, "1700000000", "convert", "--selection", sel)
		assert.Error(t, err, sel)
	}

	_, _, err = run(t, "", "convert", "--write", "--selection", "0:1")
	assert.Error(t, err, "--write needs a file")
}

func TestConvert_SelectionWritesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("notes.txt", []byte("a 1700000000 b 1700000000"), 0o644))

	_, _, err := run(t, "", "convert", "--timezone", "UTC", "--write", "--selection", "0:12", "notes.txt")
	require.NoError(t, err)

	data, err := os.ReadFile("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "a 2023/11/14 22:13:20 b 1700000000", string(data))
}

func TestConvert_Directory(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll("logs", 0o755))
	path := filepath.Join("logs", "app.log")
	require.NoError(t, os.WriteFile(path, []byte("t=1700000000\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("logs", "empty.log"), []byte("nothing\n"), 0o644))

	stdout, stderr, err := run(t, "", "convert", "--timezone", "UTC", "logs")
	require.NoError(t, err)
	assert.Contains(t, stdout, "app.log: would convert 1 timestamp(s)")
	assert.NotContains(t, stdout, "empty.log")
	assert.Contains(t, stderr, "info: Found 1 Unix timestamp(s) in 1 of 2 file(s).")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "t=1700000000\n", string(data))

	stdout, _, err = run(t, "", "convert", "--timezone", "UTC", "--write", "logs")
	require.NoError(t, err)
	assert.Contains(t, stdout, "app.log: converted 1 timestamp(s)")

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "t=2023/11/14 22:13:20\n", string(data))
}

func TestConvert_DirectoryJSON(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("a.log", []byte("1700000000 1700000000000"), 0o644))

	stdout, _, err := run(t, "", "convert", "--timezone", "UTC", "--json", ".")
	require.NoError(t, err)

	var report struct {
		Tokens  int `json:"tokens"`
		Changed int `json:"changed"`
		Files   []struct {
			Count int `json:"count"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 2, report.Tokens)
	assert.Equal(t, 1, report.Changed)
	require.Len(t, report.Files, 1)
}

func TestHover(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("a.log", []byte("at 1700000000\nid 42\n"), 0o644))

	stdout, _, err := run(t, "", "hover", "a.log", "--offset", "4", "--timezone", "UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC: 2023/11/14 22:13:20\n", stdout)

	stdout, _, err = run(t, "", "hover", "a.log", "--line", "0", "--character", "13", "--timezone", "UTC", "--show-utc")
	require.NoError(t, err)
	assert.Equal(t, "UTC: 2023/11/14 22:13:20\nUTC: 2023/11/14 22:13:20\n", stdout)

	stdout, _, err = run(t, "", "hover", "a.log", "--line", "1", "--character", "3")
	require.NoError(t, err)
	assert.Empty(t, stdout, "non-qualifying literals print nothing")

	stdout, _, err = run(t, "x 1700000000", "hover", "-", "--offset", "2", "--timezone", "UTC", "--markdown")
	require.NoError(t, err)
	assert.Equal(t, "🕒 **UTC:** 2023/11/14 22:13:20\n", stdout)
}

func TestHover_NeedsOnePosition(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := run(t, "1700000000", "hover", "-")
	assert.Error(t, err)

	_, _, err = run(t, "1700000000", "hover", "-", "--offset", "1", "--line", "0")
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, _, err := run(t, "x 42\n  1700000000", "scan", "--timezone", "UTC")
	require.NoError(t, err)
	assert.Equal(t, "2:3 1700000000 -> 2023/11/14 22:13:20 (seconds)\n", stdout)

	stdout, _, err = run(t, "x 42\n  1700000000", "scan", "--timezone", "UTC", "--all")
	require.NoError(t, err)
	assert.Equal(t, "1:3 42 (below_threshold)\n2:3 1700000000 -> 2023/11/14 22:13:20 (seconds)\n", stdout)
}

func TestScan_Files(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("a.log", []byte("1700000000000"), 0o644))
	require.NoError(t, os.WriteFile("blob.bin", []byte("1700000000\x00"), 0o644))

	stdout, _, err := run(t, "", "scan", "--timezone", "UTC", "--json", ".")
	require.NoError(t, err)

	var lines []scanLine
	require.NoError(t, json.Unmarshal([]byte(stdout), &lines))
	require.Len(t, lines, 1, "binary files are skipped")
	assert.Equal(t, "milliseconds", lines[0].Unit)
	assert.True(t, strings.HasSuffix(lines[0].Path, "a.log"))
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "unixtime "+version+"\n", stdout)
}

func TestInvalidLogLevel(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := run(t, "", "convert", "--log-level", "loud")
	assert.Error(t, err)
}
