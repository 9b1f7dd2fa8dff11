// Package workspace converts timestamps across many files: it discovers
// files with doublestar globs and runs conversions on a worker pool.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes skips VCS metadata, dependency trees and the tool's own
// config directory.
var DefaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	".unixtime/**",
}

// Options selects files under a root. Patterns are matched against
// slash-separated paths relative to the root.
type Options struct {
	Include []string
	Exclude []string
}

// DefaultOptions includes everything outside DefaultExcludes.
func DefaultOptions() Options {
	return Options{Exclude: append([]string(nil), DefaultExcludes...)}
}

// Validate checks every glob.
func (o Options) Validate() error {
	for _, pattern := range o.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	for _, pattern := range o.Include {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}
	return nil
}

// Excluded reports whether rel (slash-separated, relative to the root) is
// excluded.
func (o Options) Excluded(rel string) bool {
	for _, pattern := range o.Exclude {
		if matched, _ := doublestar.PathMatch(pattern, rel); matched {
			return true
		}
		// "dir/**" should also prune "dir" itself.
		if matched, _ := doublestar.PathMatch(pattern, rel+"/"); matched {
			return true
		}
	}
	return false
}

// Included reports whether rel passes the include globs. No globs means
// everything is included.
func (o Options) Included(rel string) bool {
	if len(o.Include) == 0 {
		return true
	}
	for _, pattern := range o.Include {
		if matched, _ := doublestar.PathMatch(pattern, rel); matched {
			return true
		}
	}
	return false
}

// DiscoverFiles walks root and returns sorted absolute paths of regular
// files selected by opts. A root that is itself a file is returned as is.
func DiscoverFiles(root string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return []string{absRoot}, nil
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == absRoot {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if opts.Excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !opts.Included(rel) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// DiscoverAll runs DiscoverFiles over several roots and removes duplicates.
func DiscoverAll(roots []string, opts Options) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, root := range roots {
		files, err := DiscoverFiles(root, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", root, err)
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
