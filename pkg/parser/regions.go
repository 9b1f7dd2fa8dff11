package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/unixtime/pkg/convert"
)

// ErrUnsupported is returned by Regions for files no grammar covers.
var ErrUnsupported = errors.New("no grammar for file")

// Kind is a class of syntax node that may hold a timestamp.
type Kind string

const (
	KindNumber  Kind = "number"
	KindComment Kind = "comment"
	KindString  Kind = "string"
)

// AllKinds is the default region selection.
var AllKinds = []Kind{KindNumber, KindComment, KindString}

// ParseKinds validates kind names from config or flags. An empty list means AllKinds.
func ParseKinds(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return slices.Clone(AllKinds), nil
	}
	var kinds []Kind
	for _, name := range names {
		k := Kind(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(AllKinds, k) {
			return nil, fmt.Errorf("unknown syntax kind %q (want number, comment or string)", name)
		}
		if !slices.Contains(kinds, k) {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// regionQuery captures every node kind at once; Regions filters by capture
// name. Template strings are captured as strings and may nest other
// captures through their substitutions.
const regionQuery = `
(number) @number
(comment) @comment
(string) @string
(template_string) @string
`

// Extractor turns source files into the byte ranges conversion may touch.
// It is safe for concurrent use.
type Extractor struct {
	parsers *ParserManager
	kinds   []Kind

	queries map[grammarKey]*ts.Query
	mu      sync.RWMutex

	logger *slog.Logger
}

// NewExtractor creates an Extractor selecting the given kinds (nil means
// AllKinds). poolSize is passed to NewParserManager.
func NewExtractor(logger *slog.Logger, poolSize int, kinds []Kind) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	return &Extractor{
		parsers: NewParserManager(logger, poolSize),
		kinds:   kinds,
		queries: make(map[grammarKey]*ts.Query),
		logger:  logger,
	}
}

// Kinds returns the node kinds this extractor selects.
func (e *Extractor) Kinds() []Kind {
	return slices.Clone(e.kinds)
}

// Regions parses source as the language of filePath and returns the sorted,
// non-overlapping byte ranges of the selected node kinds. Nested captures
// (a number inside a template substitution) collapse into their outer range.
func (e *Extractor) Regions(ctx context.Context, source []byte, filePath string) ([]convert.Range, error) {
	key := grammarFor(filePath)
	if key.lang == LanguageUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filePath)
	}

	query, err := e.query(key)
	if err != nil {
		return nil, err
	}

	tree, err := e.parsers.Parse(ctx, source, key.lang, key.tsx)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	names := query.CaptureNames()
	var ranges []convert.Range

	matches := cursor.Matches(query, tree.RootNode(), source)
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			if int(capture.Index) >= len(names) {
				continue
			}
			if !slices.Contains(e.kinds, Kind(names[capture.Index])) {
				continue
			}
			ranges = append(ranges, convert.Range{
				Start: int(capture.Node.StartByte()),
				End:   int(capture.Node.EndByte()),
			})
		}
	}

	return mergeRanges(ranges), nil
}

func (e *Extractor) query(key grammarKey) (*ts.Query, error) {
	e.mu.RLock()
	q, ok := e.queries[key]
	e.mu.RUnlock()
	if ok {
		return q, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if q, ok = e.queries[key]; ok {
		return q, nil
	}

	ptr, err := key.pointer()
	if err != nil {
		return nil, err
	}
	q, qerr := ts.NewQuery(ts.NewLanguage(ptr), regionQuery)
	if qerr != nil {
		return nil, fmt.Errorf("failed to compile region query for %s: %s", key, qerr.Message)
	}
	e.queries[key] = q

	e.logger.Debug("compiled region query", "grammar", key)
	return q, nil
}

// Stats reports parser usage of the underlying manager.
func (e *Extractor) Stats() ParserStats {
	return e.parsers.GetStats()
}

// Close frees compiled queries and pooled parsers.
func (e *Extractor) Close() error {
	e.mu.Lock()
	for key, q := range e.queries {
		q.Close()
		delete(e.queries, key)
	}
	e.mu.Unlock()

	return e.parsers.Close()
}

// mergeRanges sorts ranges and coalesces overlapping ones. Ranges that only
// touch stay separate, so each keeps its own word boundaries when scanned.
func mergeRanges(ranges []convert.Range) []convert.Range {
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Start != ranges[j].Start {
			return ranges[i].Start < ranges[j].Start
		}
		return ranges[i].End > ranges[j].End
	})

	merged := []convert.Range{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.Start < last.End {
			last.End = max(last.End, r.End)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
