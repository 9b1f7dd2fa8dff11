// Package convert runs the timestamp engine over documents: hover lookups,
// whole-buffer conversion, and selection-scoped conversion. Each operation
// receives its Config explicitly and returns an edit transaction plus a
// user-facing notice; nothing is applied behind the caller's back.
package convert

import (
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnana997/unixtime/pkg/timestamp"
)

// Config is the per-call configuration of every operation.
type Config struct {
	// Threshold is the smallest integer part treated as a timestamp.
	Threshold float64

	// Location resolves local renderings. Nil means time.Local.
	Location *time.Location

	// ShowUTC appends the UTC rendering to hover display text.
	ShowUTC bool

	// Cache memoizes renderings for long-lived hosts. May be nil.
	Cache *RenderCache
}

// DefaultConfig returns the default threshold in the process-local zone.
func DefaultConfig() Config {
	return Config{
		Threshold: timestamp.DefaultThreshold,
		Location:  time.Local,
	}
}

// Validate rejects thresholds that would make classification meaningless.
func (c Config) Validate() error {
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return fmt.Errorf("threshold must be finite, got %v", c.Threshold)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative, got %v", c.Threshold)
	}
	return nil
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Config) render(cls timestamp.Classification) timestamp.Rendering {
	loc := c.location()
	if c.Cache == nil {
		return timestamp.Convert(cls, loc)
	}
	return c.Cache.get(cls, loc)
}

type renderKey struct {
	millis int64
	zone   string
}

// RenderCache is a bounded LRU of renderings keyed by instant and zone.
// It is safe for concurrent use.
type RenderCache struct {
	entries *lru.Cache[renderKey, timestamp.Rendering]
}

// NewRenderCache creates a cache holding up to size renderings.
// Returns nil, nil if size <= 0; callers treat a nil cache as disabled.
func NewRenderCache(size int) (*RenderCache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[renderKey, timestamp.Rendering](size)
	if err != nil {
		return nil, fmt.Errorf("create render cache: %w", err)
	}
	return &RenderCache{entries: entries}, nil
}

// Len returns the number of cached renderings.
func (rc *RenderCache) Len() int {
	return rc.entries.Len()
}

func (rc *RenderCache) get(cls timestamp.Classification, loc *time.Location) timestamp.Rendering {
	key := renderKey{millis: cls.Millis, zone: loc.String()}
	if r, ok := rc.entries.Get(key); ok {
		return r
	}
	r := timestamp.Convert(cls, loc)
	rc.entries.Add(key, r)
	return r
}
