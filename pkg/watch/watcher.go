// Package watch reports Unix timestamps in files as they change on disk.
// It never rewrites files.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/document"
	"github.com/gnana997/unixtime/pkg/metrics"
	"github.com/gnana997/unixtime/pkg/util"
	"github.com/gnana997/unixtime/pkg/workspace"
)

// ErrStopped is returned by ScanFile once the watcher has been stopped.
var ErrStopped = errors.New("watch: watcher stopped")

// DefaultDebounce groups bursts of writes from editors saving a file.
const DefaultDebounce = 200 * time.Millisecond

// Located is a qualifying finding with its line and column.
type Located struct {
	convert.Finding
	Position document.Position `json:"position"`
}

// String renders "line:col token -> formatted" with 1-based line and column.
func (l Located) String() string {
	return fmt.Sprintf("%d:%d %s -> %s", l.Position.Line+1, l.Position.Character+1, l.Text, l.Formatted)
}

// Report is delivered for every changed file that was scanned.
type Report struct {
	Path     string
	Findings []Located
	Err      error
}

// Reporter receives reports from the watcher goroutine. Calls are serialized.
type Reporter func(Report)

// Options configure a Watcher.
type Options struct {
	Config convert.Config

	// Filter applies include/exclude globs relative to the watched root.
	Filter workspace.Options

	// Debounce <= 0 uses DefaultDebounce.
	Debounce time.Duration

	// Cache is optional; the watcher invalidates changed files in it.
	Cache util.FileCache

	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Watcher watches a directory tree.
//
// Usage:
//
//	w, err := watch.New(opts, func(r watch.Report) { ... })
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx, root)
type Watcher struct {
	fsw      *fsnotify.Watcher
	opts     Options
	report   Reporter
	logger   *slog.Logger
	cache    util.FileCache
	ownCache bool
	root     string

	reportMu sync.Mutex

	timers   map[string]*time.Timer
	timersMu sync.Mutex

	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
}

// New creates a Watcher. Run or Start must be called to begin watching.
func New(opts Options, report Reporter) (*Watcher, error) {
	if report == nil {
		return nil, errors.New("watch: reporter is required")
	}
	if err := opts.Filter.Validate(); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		fsw:      fsw,
		opts:     opts,
		report:   report,
		logger:   logger,
		cache:    opts.Cache,
		timers:   make(map[string]*time.Timer),
		stopChan: make(chan struct{}),
	}
	if w.cache == nil {
		cacheCfg := util.DefaultFileCacheConfig()
		cacheCfg.Logger = logger
		w.cache = util.NewFileCache(cacheCfg)
		w.ownCache = true
	}
	return w, nil
}

// Start adds watches for root and its non-excluded subdirectories and
// begins processing events in the background.
func (w *Watcher) Start(root string) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return errors.New("watcher already stopped")
	}
	w.mu.Unlock()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root: %w", err)
	}
	w.root = absRoot

	if err := w.addTree(absRoot); err != nil {
		return err
	}

	w.logger.Info("watching for timestamps", "root", absRoot, "debounce", w.opts.Debounce)
	go w.eventLoop()
	return nil
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context, root string) error {
	if err := w.Start(root); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}

// Stop is idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopChan)

	w.timersMu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.timersMu.Unlock()

	err := w.fsw.Close()
	if w.ownCache {
		err = errors.Join(err, w.cache.Close())
	}
	w.logger.Info("watcher stopped")
	return err
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.ignored(path) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		if isDir(path) {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			return
		}
		if w.included(path) {
			w.debounce(path)
		}
	case event.Has(fsnotify.Write):
		if w.included(path) {
			w.debounce(path)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(path)
		if err := w.cache.Invalidate(path); err != nil {
			w.logger.Debug("failed to release removed file", "file", path, "error", err)
		}
	}
}

// debounce schedules a scan of path, replacing any pending one.
func (w *Watcher) debounce(path string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.timersMu.Lock()
		delete(w.timers, path)
		w.timersMu.Unlock()

		w.fire(path)
	})
}

func (w *Watcher) cancel(path string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) fire(path string) {
	findings, err := w.ScanFile(path)
	if errors.Is(err, ErrStopped) {
		return
	}

	w.reportMu.Lock()
	defer w.reportMu.Unlock()
	w.report(Report{Path: path, Findings: findings, Err: err})
}

// ScanFile returns the qualifying timestamps in path with their positions.
func (w *Watcher) ScanFile(path string) ([]Located, error) {
	start := time.Now()
	text, err := w.read(path)
	if err != nil {
		return nil, err
	}
	located := Locate(w.opts.Config, text)
	w.opts.Metrics.ObserveConversion(metrics.OpScan, len(located), time.Since(start))
	return located, nil
}

// read copies path out of the cache and unmaps it. Holding mu keeps Stop
// from closing the cache mid-read.
func (w *Watcher) read(path string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return "", ErrStopped
	}
	text, err := w.cache.ReadString(path)
	if ierr := w.cache.Invalidate(path); ierr != nil {
		w.logger.Debug("failed to release cached file", "file", path, "error", ierr)
	}
	return text, err
}

// Locate scans text and attaches positions to qualifying findings.
func Locate(cfg convert.Config, text string) []Located {
	qualifying := convert.Qualifying(convert.Scan(cfg, text))
	if len(qualifying) == 0 {
		return nil
	}

	doc := document.New(text)
	out := make([]Located, 0, len(qualifying))
	for _, f := range qualifying {
		out = append(out, Located{Finding: f, Position: doc.PositionAt(f.Token.Start)})
	}
	return out
}

// Pending returns the number of scheduled scans.
func (w *Watcher) Pending() int {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()
	return len(w.timers)
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) ignored(path string) bool {
	rel, ok := w.rel(path)
	if !ok {
		return true
	}
	return rel != "." && w.opts.Filter.Excluded(rel)
}

func (w *Watcher) included(path string) bool {
	rel, ok := w.rel(path)
	return ok && w.opts.Filter.Included(rel)
}
