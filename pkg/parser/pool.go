package parser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// parserPool hands out parsers for one grammar. Parsers are created lazily
// up to maxSize; after that acquire waits for a release.
type parserPool struct {
	pool    chan *ts.Parser
	langPtr unsafe.Pointer
	key     grammarKey
	maxSize int

	mu      sync.Mutex
	created int

	logger *slog.Logger
}

func newParserPool(key grammarKey, langPtr unsafe.Pointer, maxSize int, logger *slog.Logger) *parserPool {
	return &parserPool{
		pool:    make(chan *ts.Parser, maxSize),
		langPtr: langPtr,
		key:     key,
		maxSize: maxSize,
		logger:  logger,
	}
}

func (p *parserPool) acquire(ctx context.Context) (*ts.Parser, error) {
	select {
	case parser := <-p.pool:
		return parser, nil
	default:
	}

	p.mu.Lock()
	if p.created < p.maxSize {
		parser, err := p.newParser()
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.created++
		p.logger.Debug("created parser", "grammar", p.key, "pool_size", p.created)
		p.mu.Unlock()
		return parser, nil
	}
	p.mu.Unlock()

	select {
	case parser := <-p.pool:
		return parser, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *parserPool) newParser() (*ts.Parser, error) {
	parser := ts.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create parser")
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.langPtr)); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language %s: %w", p.key, err)
	}
	return parser, nil
}

func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}
	select {
	case p.pool <- parser:
	default:
		parser.Close()
		p.logger.Warn("parser pool full, closing excess parser", "grammar", p.key)
	}
}

func (p *parserPool) close() {
	close(p.pool)
	for parser := range p.pool {
		parser.Close()
	}
}

func (p *parserPool) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
