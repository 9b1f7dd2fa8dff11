package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/timestamp"
	"github.com/gnana997/unixtime/pkg/workspace"
)

func testOptions() Options {
	return Options{
		Config:   convert.Config{Threshold: timestamp.DefaultThreshold, Location: time.UTC},
		Filter:   workspace.DefaultOptions(),
		Debounce: 20 * time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	}
}

func TestLocate(t *testing.T) {
	text := "id=42\r\n  at 1700000000.5 and 1700000000000\n"
	located := Locate(testOptions().Config, text)
	require.Len(t, located, 2)

	assert.Equal(t, "2:6 1700000000.5 -> 2023/11/14 22:13:20.5", located[0].String())
	assert.Equal(t, 1, located[1].Position.Line)
	assert.Equal(t, "1700000000000", located[1].Text)

	assert.Nil(t, Locate(testOptions().Config, "nothing 123"))
}

func TestLocate_UTF16Columns(t *testing.T) {
	located := Locate(testOptions().Config, "🕒 1700000000")
	require.Len(t, located, 1)
	assert.Equal(t, 3, located[0].Position.Character, "the clock emoji is two UTF-16 units")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(testOptions(), nil)
	assert.Error(t, err)

	opts := testOptions()
	opts.Filter.Exclude = []string{"[bad"}
	_, err = New(opts, func(Report) {})
	assert.Error(t, err)
}

func TestWatcher_ReportsChangedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	reports := make(chan Report, 8)
	w, err := New(testOptions(), func(r Report) { reports <- r })
	require.NoError(t, err)
	require.NoError(t, w.Start(root))
	defer w.Stop()

	// Excluded directories produce nothing.
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep.js"), []byte("1700000000"), 0o644))

	path := filepath.Join(root, "events.log")
	require.NoError(t, os.WriteFile(path, []byte("first 1700000000\n"), 0o644))

	select {
	case r := <-reports:
		require.NoError(t, r.Err)
		assert.Equal(t, path, r.Path)
		require.Len(t, r.Findings, 1)
		assert.Equal(t, "1:7 1700000000 -> 2023/11/14 22:13:20", r.Findings[0].String())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for report")
	}

	// A rewrite is rescanned from disk, not served from the cache.
	require.NoError(t, os.WriteFile(path, []byte("second 1700003600 1700007200\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-reports:
			assert.Equal(t, path, r.Path)
			if len(r.Findings) == 2 {
				assert.Equal(t, "2023/11/14 23:13:20", r.Findings[0].Formatted)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for rescan")
		}
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(testOptions(), func(Report) {})
	require.NoError(t, err)
	require.NoError(t, w.Start(t.TempDir()))

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
	assert.Error(t, w.Start(t.TempDir()))
	assert.Equal(t, 0, w.Pending())
}

func TestWatcher_ScanReleasesMappings(t *testing.T) {
	root := t.TempDir()
	w, err := New(testOptions(), func(Report) {})
	require.NoError(t, err)

	for _, name := range []string{"a.log", "b.log", "c.log"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.WriteFile(path, []byte("at 1700000000\n"), 0o644))
		located, err := w.ScanFile(path)
		require.NoError(t, err)
		require.Len(t, located, 1)
	}
	assert.Equal(t, 0, w.cache.Size(), "scanned files are unmapped")

	require.NoError(t, w.Stop())
	_, err = w.ScanFile(filepath.Join(root, "a.log"))
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, 0, w.cache.Size())
}
