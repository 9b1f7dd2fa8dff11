// FileCache gives the workspace converter and the watcher read access to
// source files through memory-mapped regions.
//
// Files are mapped lazily on first access and stay mapped until they are
// invalidated, found stale, or the cache is closed. Every hit is checked
// against os.Stat: an entry whose file was replaced (different inode),
// resized or touched is dropped and reloaded. A file that cannot be mapped
// is read with os.ReadFile instead. Callers that read a file once should
// Invalidate it afterwards so no mapping outlives the request.
package util

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// ErrCacheFull is returned by Get when a configured limit would be exceeded.
var ErrCacheFull = errors.New("file cache limit reached")

// FileCache is safe for concurrent use.
type FileCache interface {
	// Get returns the mapped file, loading it on first access.
	Get(filePath string) (*MappedFile, error)

	// ReadString returns the whole file as a string.
	ReadString(filePath string) (string, error)

	// Slice returns bytes [start, end) of the file.
	Slice(filePath string, start, end int) (string, error)

	// Invalidate unmaps filePath so the next Get reloads it from disk.
	Invalidate(filePath string) error

	Size() int
	Stats() FileCacheStats
	Close() error
}

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles caps the number of mapped files. 0 means unlimited.
	MaxFiles int

	// MaxMemoryMB caps mapped virtual memory. 0 means unlimited.
	// Only touched pages are resident, so this bounds address space, not RAM.
	MaxMemoryMB int

	EnableMetrics bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultFileCacheConfig returns limits suitable for a medium repository.
func DefaultFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{
		MaxFiles:      10000,
		MaxMemoryMB:   2048,
		EnableMetrics: true,
	}
}

// UnboundedFileCacheConfig returns a config with no limits.
func UnboundedFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{EnableMetrics: true}
}

// MappedFile is one cached file.
type MappedFile struct {
	Path string

	// Data is nil for empty files.
	Data mmap.MMap

	// File is nil for entries loaded through the read fallback.
	File *os.File

	Size     int64
	MappedAt time.Time

	info     os.FileInfo
	fallback bool
}

// current reports whether info still describes the file mf was loaded from.
func (mf *MappedFile) current(info os.FileInfo) bool {
	return os.SameFile(mf.info, info) &&
		info.Size() == mf.Size &&
		info.ModTime().Equal(mf.info.ModTime())
}

// FileCacheStats is a snapshot of cache counters.
type FileCacheStats struct {
	FilesLoaded   int64
	FilesCached   int
	CacheHits     int64
	CacheMisses   int64
	MmapFailures  int64
	Invalidations int64
	StaleReloads  int64
	TotalMappedMB float64
}

// NewFileCache creates a FileCache. A nil config means DefaultFileCacheConfig().
func NewFileCache(config *FileCacheConfig) FileCache {
	if config == nil {
		config = DefaultFileCacheConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &fileCacheImpl{
		config: config,
		logger: logger,
		files:  make(map[string]*MappedFile),
	}
}

type fileCacheImpl struct {
	config *FileCacheConfig
	logger *slog.Logger

	files map[string]*MappedFile
	mu    sync.RWMutex

	stats   FileCacheStats
	statsMu sync.Mutex
}

func (fc *fileCacheImpl) Get(filePath string) (*MappedFile, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		// Drop any mapping of a file that is gone.
		fc.drop(filePath)
		return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}

	fc.mu.RLock()
	if mf, ok := fc.files[filePath]; ok && mf.current(info) {
		fc.mu.RUnlock()
		fc.record(func(s *FileCacheStats) { s.CacheHits++ })
		return mf, nil
	}
	fc.mu.RUnlock()

	fc.mu.Lock()
	defer fc.mu.Unlock()

	// Another goroutine may have loaded it while we waited.
	if mf, ok := fc.files[filePath]; ok {
		if mf.current(info) {
			fc.record(func(s *FileCacheStats) { s.CacheHits++ })
			return mf, nil
		}
		delete(fc.files, filePath)
		fc.record(func(s *FileCacheStats) { s.StaleReloads++ })
		if err := release(mf); err != nil {
			fc.logger.Warn("failed to release stale file", "path", filePath, "error", err)
		}
	}

	fc.record(func(s *FileCacheStats) { s.CacheMisses++ })

	var size int64
	if fc.config.MaxMemoryMB > 0 {
		size = info.Size()
	}
	if err := fc.checkLimitsLocked(size); err != nil {
		return nil, err
	}

	mf, err := fc.load(filePath)
	if err != nil {
		return nil, err
	}
	fc.files[filePath] = mf
	fc.record(func(s *FileCacheStats) { s.FilesLoaded++ })

	return mf, nil
}

// drop releases the entry for filePath, if any.
func (fc *fileCacheImpl) drop(filePath string) {
	fc.mu.Lock()
	mf, ok := fc.files[filePath]
	delete(fc.files, filePath)
	fc.mu.Unlock()

	if ok {
		if err := release(mf); err != nil {
			fc.logger.Warn("failed to release file", "path", filePath, "error", err)
		}
	}
}

// checkLimitsLocked must be called with mu held.
func (fc *fileCacheImpl) checkLimitsLocked(newFileSize int64) error {
	if fc.config.MaxFiles > 0 && len(fc.files) >= fc.config.MaxFiles {
		return fmt.Errorf("%w: %d files (limit %d)", ErrCacheFull, len(fc.files), fc.config.MaxFiles)
	}

	if fc.config.MaxMemoryMB > 0 && newFileSize > 0 {
		currentMB := fc.totalMappedMBLocked()
		afterMB := currentMB + float64(newFileSize)/(1024*1024)
		if afterMB >= float64(fc.config.MaxMemoryMB) {
			return fmt.Errorf("%w: %.2f MB after load (limit %d MB)", ErrCacheFull, afterMB, fc.config.MaxMemoryMB)
		}
	}
	return nil
}

func (fc *fileCacheImpl) load(filePath string) (*MappedFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", filePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}

	// Zero-length files cannot be mapped.
	if stat.Size() == 0 {
		return &MappedFile{Path: filePath, File: file, MappedAt: time.Now(), info: stat}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		fc.logger.Warn("mmap failed, using fallback", "file", filePath, "size", stat.Size(), "error", err)
		file.Close()

		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("mmap failed and fallback failed for %q: mmap error: %v, read error: %w",
				filePath, err, readErr)
		}
		fc.record(func(s *FileCacheStats) { s.MmapFailures++ })

		return &MappedFile{
			Path:     filePath,
			Data:     mmap.MMap(raw),
			Size:     int64(len(raw)),
			MappedAt: time.Now(),
			info:     stat,
			fallback: true,
		}, nil
	}

	return &MappedFile{
		Path:     filePath,
		Data:     data,
		File:     file,
		Size:     stat.Size(),
		MappedAt: time.Now(),
		info:     stat,
	}, nil
}

func (fc *fileCacheImpl) ReadString(filePath string) (string, error) {
	mf, err := fc.Get(filePath)
	if err != nil {
		return "", err
	}
	return string(mf.Data), nil
}

func (fc *fileCacheImpl) Slice(filePath string, start, end int) (string, error) {
	mf, err := fc.Get(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get file %q: %w", filePath, err)
	}
	if start < 0 || end < start || end > len(mf.Data) {
		return "", fmt.Errorf("invalid byte range [%d,%d) for %q of %d bytes", start, end, filePath, len(mf.Data))
	}
	return string(mf.Data[start:end]), nil
}

func (fc *fileCacheImpl) Invalidate(filePath string) error {
	fc.mu.Lock()
	mf, ok := fc.files[filePath]
	delete(fc.files, filePath)
	fc.mu.Unlock()

	if !ok {
		return nil
	}
	fc.record(func(s *FileCacheStats) { s.Invalidations++ })
	return release(mf)
}

func (fc *fileCacheImpl) Size() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.files)
}

func (fc *fileCacheImpl) Stats() FileCacheStats {
	fc.mu.RLock()
	cached := len(fc.files)
	mappedMB := fc.totalMappedMBLocked()
	fc.mu.RUnlock()

	fc.statsMu.Lock()
	defer fc.statsMu.Unlock()

	stats := fc.stats
	stats.FilesCached = cached
	stats.TotalMappedMB = mappedMB
	return stats
}

// totalMappedMBLocked must be called with mu held.
func (fc *fileCacheImpl) totalMappedMBLocked() float64 {
	var total int64
	for _, mf := range fc.files {
		total += mf.Size
	}
	return float64(total) / (1024 * 1024)
}

func (fc *fileCacheImpl) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	var errs []error
	for path, mf := range fc.files {
		if err := release(mf); err != nil {
			fc.logger.Warn("failed to release file", "path", path, "error", err)
			errs = append(errs, err)
		}
	}
	fc.files = make(map[string]*MappedFile)

	fc.statsMu.Lock()
	fc.logger.Debug("file cache closed",
		"files_loaded", fc.stats.FilesLoaded,
		"cache_hits", fc.stats.CacheHits,
		"cache_misses", fc.stats.CacheMisses,
		"mmap_failures", fc.stats.MmapFailures)
	fc.statsMu.Unlock()

	return errors.Join(errs...)
}

func release(mf *MappedFile) error {
	var errs []error
	if mf.Data != nil && !mf.fallback {
		if err := mf.Data.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap %q: %w", mf.Path, err))
		}
	}
	if mf.File != nil {
		if err := mf.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", mf.Path, err))
		}
	}
	return errors.Join(errs...)
}

func (fc *fileCacheImpl) record(update func(*FileCacheStats)) {
	if !fc.config.EnableMetrics {
		return
	}
	fc.statsMu.Lock()
	update(&fc.stats)
	fc.statsMu.Unlock()
}
