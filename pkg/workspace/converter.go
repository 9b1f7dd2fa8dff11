package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gnana997/unixtime/pkg/convert"
	"github.com/gnana997/unixtime/pkg/metrics"
	"github.com/gnana997/unixtime/pkg/parser"
	"github.com/gnana997/unixtime/pkg/util"
)

// Mode selects what Run does with a computed conversion.
type Mode int

const (
	// ModeCheck only reports; files are never touched.
	ModeCheck Mode = iota
	// ModeWrite replaces each file atomically.
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "check"
}

// binarySniffLen is how much of a file is searched for NUL bytes.
const binarySniffLen = 8000

// IsBinary reports whether text looks like binary content: a NUL byte
// within its first binarySniffLen bytes.
func IsBinary(text string) bool {
	return strings.IndexByte(text[:min(len(text), binarySniffLen)], 0) >= 0
}

// ConverterOptions wires a Converter.
type ConverterOptions struct {
	Config convert.Config

	// Regions enables syntax-aware conversion for files it supports.
	// Nil converts whole buffers.
	Regions *parser.Extractor

	// Cache is used for reads. Nil makes the converter own a default cache.
	Cache util.FileCache

	// Workers <= 0 uses util.GetOptimalPoolSize.
	Workers int

	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// FileReport is the outcome for one file.
type FileReport struct {
	Path    string         `json:"path"`
	Count   int            `json:"count"`
	Notice  convert.Notice `json:"notice"`
	Syntax  bool           `json:"syntax,omitempty"`
	Written bool           `json:"written,omitempty"`
	Skipped string         `json:"skipped,omitempty"`
	Err     error          `json:"-"`

	index int
}

// Report summarizes a Run.
type Report struct {
	Mode   Mode         `json:"-"`
	Files  []FileReport `json:"files"`
	Tokens int          `json:"tokens"`

	// Changed counts files with at least one conversion.
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

// Err joins the per-file errors.
func (r Report) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
		}
	}
	return errors.Join(errs...)
}

// Converter converts files concurrently. It is safe for concurrent use.
type Converter struct {
	opts      ConverterOptions
	cache     util.FileCache
	ownsCache bool
	logger    *slog.Logger
}

func NewConverter(opts ConverterOptions) *Converter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Converter{opts: opts, cache: opts.Cache, logger: logger}
	if c.cache == nil {
		c.cache = util.NewFileCache(&util.FileCacheConfig{
			MaxFiles:      util.DefaultFileCacheConfig().MaxFiles,
			MaxMemoryMB:   util.DefaultFileCacheConfig().MaxMemoryMB,
			EnableMetrics: true,
			Logger:        logger,
		})
		c.ownsCache = true
	}
	return c
}

// Close releases the file cache when the converter created it.
func (c *Converter) Close() error {
	if c.ownsCache {
		return c.cache.Close()
	}
	return nil
}

// Compute converts text as the contents of path. It uses syntax regions
// when an extractor is configured and supports path. The returned bool
// reports whether regions were used.
func (c *Converter) Compute(ctx context.Context, path, text string) (convert.Result, bool, error) {
	if c.opts.Regions != nil && parser.Supported(path) {
		ranges, err := c.opts.Regions.Regions(ctx, []byte(text), path)
		if err != nil {
			return convert.Result{}, false, fmt.Errorf("syntax regions: %w", err)
		}
		res, err := convert.Selections(c.opts.Config, text, ranges)
		if err != nil {
			return convert.Result{}, false, err
		}
		return res, true, nil
	}
	return convert.All(c.opts.Config, text), false, nil
}

// ConvertFile converts one file. Errors are reported in the FileReport.
func (c *Converter) ConvertFile(ctx context.Context, path string, mode Mode) FileReport {
	report := FileReport{Path: path}
	if err := ctx.Err(); err != nil {
		report.Err = err
		return report
	}

	start := time.Now()
	text, err := c.read(path)
	if err != nil {
		report.Err = fmt.Errorf("read: %w", err)
		c.opts.Metrics.ObserveFile(metrics.FileFailed)
		return report
	}

	if IsBinary(text) {
		report.Skipped = "binary"
		c.opts.Metrics.ObserveFile(metrics.FileSkipped)
		c.logger.Debug("skipping binary file", "file", path)
		return report
	}

	res, syntax, err := c.Compute(ctx, path, text)
	if err != nil {
		report.Err = err
		c.opts.Metrics.ObserveFile(metrics.FileFailed)
		return report
	}
	c.opts.Metrics.ObserveConversion(metrics.OpFile, res.Count, time.Since(start))

	report.Count = res.Count
	report.Notice = res.Notice
	report.Syntax = syntax

	if res.Empty() {
		c.opts.Metrics.ObserveFile(metrics.FileUnchanged)
		return report
	}

	if mode == ModeWrite {
		out, err := res.Apply(text)
		if err != nil {
			report.Err = fmt.Errorf("apply: %w", err)
			c.opts.Metrics.ObserveFile(metrics.FileFailed)
			return report
		}
		if err := WriteFileAtomic(path, []byte(out)); err != nil {
			report.Err = err
			c.opts.Metrics.ObserveFile(metrics.FileFailed)
			return report
		}
		report.Written = true
	}

	c.opts.Metrics.ObserveFile(metrics.FileConverted)
	c.logger.Debug("converted file", "file", path, "count", res.Count, "mode", mode, "syntax", syntax)
	return report
}

// read copies path out of the cache and releases the mapping, so nothing
// stays mapped between conversions of the same file.
func (c *Converter) read(path string) (string, error) {
	text, err := c.cache.ReadString(path)
	if err != nil {
		return "", err
	}
	if err := c.cache.Invalidate(path); err != nil {
		c.logger.Warn("failed to release cached file", "file", path, "error", err)
	}
	return text, nil
}

// Run converts files on the worker pool. Per-file failures are collected
// in the Report; the returned error is non-nil only when ctx ends the run
// early, in which case unprocessed files carry ctx.Err().
func (c *Converter) Run(ctx context.Context, files []string, mode Mode) (Report, error) {
	report := Report{Mode: mode, Files: make([]FileReport, len(files))}
	if len(files) == 0 {
		return report, nil
	}

	workers := min(util.GetOptimalPoolSizeWithOverride(c.opts.Workers), len(files))
	pool := newWorkerPool(workers, func(ctx context.Context, job fileJob) FileReport {
		r := c.ConvertFile(ctx, job.path, mode)
		r.index = job.index
		return r
	}, c.logger)
	pool.start(ctx)

	go func() {
		defer pool.finishSubmitting()
		for i, f := range files {
			if err := pool.submit(ctx, fileJob{path: f, index: i}); err != nil {
				return
			}
		}
	}()

	done := make([]bool, len(files))
	for r := range pool.results() {
		report.Files[r.index] = r
		done[r.index] = true
	}

	for i, f := range files {
		if !done[i] {
			report.Files[i] = FileReport{Path: f, Err: ctx.Err()}
		}
		fr := report.Files[i]
		switch {
		case fr.Err != nil:
			report.Failed++
		case fr.Count > 0:
			report.Changed++
			report.Tokens += fr.Count
		}
	}

	c.logger.Info("workspace conversion finished",
		"mode", mode,
		"files", len(files),
		"changed", report.Changed,
		"tokens", report.Tokens,
		"failed", report.Failed)

	return report, ctx.Err()
}

// WriteFileAtomic replaces path with data through a temp file in the same
// directory and a rename, keeping the original permissions.
func WriteFileAtomic(path string, data []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".unixtime-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Chmod(perm); err != nil {
		return cleanup(fmt.Errorf("chmod temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
