package circuit

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haikusw/JaqalPaw/internal/metrics"
)

// CacheSize is the number of parsed sources a Parser keeps.
const CacheSize = 32

type parseKey struct {
	text   string
	strict bool
}

// Parser memoizes Parse in a bounded LRU cache keyed by source text and
// the strict flag. Parse is pure, so cached ASTs are shared freely; callers
// must treat them as read-only. A Parser is safe for concurrent use.
type Parser struct {
	cache   *lru.Cache[parseKey, *AST]
	metrics *metrics.Metrics
}

// NewParser returns a parser with an empty cache. m may be nil.
func NewParser(m *metrics.Metrics) *Parser {
	cache, err := lru.New[parseKey, *AST](CacheSize)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Parser{cache: cache, metrics: m}
}

// Parse returns the cached AST of text or parses and caches it. Failed
// parses are not cached.
func (p *Parser) Parse(text string, strict bool) (*AST, error) {
	key := parseKey{text: text, strict: strict}
	if ast, ok := p.cache.Get(key); ok {
		p.metrics.CacheLookup(true)
		return ast, nil
	}
	p.metrics.CacheLookup(false)
	ast, err := Parse(text, strict)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, ast)
	return ast, nil
}

// Len is the number of cached sources.
func (p *Parser) Len() int {
	return p.cache.Len()
}
