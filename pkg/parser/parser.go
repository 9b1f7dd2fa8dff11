// Package parser finds the syntactic regions of JavaScript and TypeScript
// sources in which numeric literals may be rewritten: number literals,
// comments and string literals. It wraps tree-sitter behind pooled parsers
// and lazily compiled queries.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/gnana997/unixtime/pkg/util"
)

// grammarKey identifies one tree-sitter grammar. TSX is a separate grammar
// from TypeScript, so it gets its own pool and its own compiled queries.
type grammarKey struct {
	lang Language
	tsx  bool
}

func (k grammarKey) String() string {
	if k.tsx {
		return "tsx"
	}
	return k.lang.String()
}

func grammarFor(filePath string) grammarKey {
	return grammarKey{lang: DetectLanguage(filePath), tsx: IsTSXFile(filePath)}
}

func (k grammarKey) pointer() (unsafe.Pointer, error) {
	switch k.lang {
	case LanguageTypeScript:
		if k.tsx {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", k.lang)
	}
}

// ParserManager owns one parser pool per grammar. Pools are created on
// first use. Callers own returned trees and must Close them.
//
// Example:
//
//	manager := NewParserManager(logger, 0)
//	defer manager.Close()
//
//	tree, err := manager.ParseFile(ctx, src, "src/app.ts")
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
type ParserManager struct {
	pools    map[grammarKey]*parserPool
	poolSize int
	mu       sync.RWMutex
	logger   *slog.Logger

	parses int
}

// NewParserManager creates a manager. poolSize <= 0 sizes each pool with
// util.GetOptimalPoolSize so that workspace workers never wait on a parser.
func NewParserManager(logger *slog.Logger, poolSize int) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParserManager{
		pools:    make(map[grammarKey]*parserPool),
		poolSize: util.GetOptimalPoolSizeWithOverride(poolSize),
		logger:   logger,
	}
}

// Parse parses source with the given grammar. Trees with syntax errors are
// still returned; tree-sitter recovers and the regions it finds stay usable.
func (pm *ParserManager) Parse(ctx context.Context, source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}
	key := grammarKey{lang: lang, tsx: isTSX && lang == LanguageTypeScript}

	pool, err := pm.pool(key)
	if err != nil {
		return nil, err
	}

	parser, err := pool.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s parser: %w", key, err)
	}
	tree := parser.Parse(source, nil)
	pool.release(parser)

	pm.mu.Lock()
	pm.parses++
	pm.mu.Unlock()

	if tree == nil {
		return nil, fmt.Errorf("%s parser returned no tree", key)
	}
	if tree.RootNode().HasError() {
		pm.logger.Debug("parse tree contains errors", "grammar", key)
	}
	return tree, nil
}

// ParseFile detects the grammar from filePath and parses source.
func (pm *ParserManager) ParseFile(ctx context.Context, source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("unsupported file extension: %s", filePath)
	}
	return pm.Parse(ctx, source, lang, IsTSXFile(filePath))
}

func (pm *ParserManager) pool(key grammarKey) (*parserPool, error) {
	pm.mu.RLock()
	pool, ok := pm.pools[key]
	pm.mu.RUnlock()
	if ok {
		return pool, nil
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pool, ok = pm.pools[key]; ok {
		return pool, nil
	}

	ptr, err := key.pointer()
	if err != nil {
		return nil, err
	}
	pool = newParserPool(key, ptr, pm.poolSize, pm.logger)
	pm.pools[key] = pool

	pm.logger.Debug("created parser pool", "grammar", key, "max_size", pm.poolSize)
	return pool, nil
}

// Close releases every pooled parser. The manager cannot be used afterwards.
func (pm *ParserManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, pool := range pm.pools {
		pool.close()
	}
	pm.logger.Debug("closed parser manager", "pools", len(pm.pools), "parses", pm.parses)
	pm.pools = make(map[grammarKey]*parserPool)
	return nil
}

// ParserStats reports parser usage.
type ParserStats struct {
	ParsersCreated int
	ParsesCalled   int
}

func (pm *ParserManager) GetStats() ParserStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	created := 0
	for _, pool := range pm.pools {
		created += pool.createdCount()
	}
	return ParserStats{ParsersCreated: created, ParsesCalled: pm.parses}
}
