package ast

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/abiiranathan/rx-aot/aot/compiler"
)

// compiledTemplate stores the output of one template compilation.
type compiledTemplate struct {
	code    compiler.Lines   // Generated expression
	symbols *compiler.Symbols // Runtime helpers it references
}

// compileCache provides concurrent-safe memoization of template compilations.
// Compilation is deterministic, so identical html with identical custom
// elements and modifiers always produces the same expression; modules that
// load the same template share a single compilation.
type compileCache struct {
	mu    sync.RWMutex                // Protects concurrent map access
	cache map[string]compiledTemplate // Keyed by compileKey
}

// newCompileCache initializes a compileCache with reasonable default capacity.
func newCompileCache() *compileCache {
	return &compileCache{
		cache: make(map[string]compiledTemplate, 64),
	}
}

// compileKey joins the compilation inputs with separators that cannot occur
// in html text.
func compileKey(html string, customElements, modifiers compiler.Lines) string {
	return html + "\x00" + customElements.String() + "\x00" + modifiers.String()
}

// get retrieves a cached compilation with read lock for concurrent safety.
// The returned symbols are a private copy.
func (cc *compileCache) get(k string) (compiledTemplate, bool) {
	cc.mu.RLock()
	v, ok := cc.cache[k]
	cc.mu.RUnlock()
	if !ok {
		return compiledTemplate{}, false
	}
	return compiledTemplate{code: v.code, symbols: compiler.NewSymbols(v.symbols.Values()...)}, true
}

// set stores a compilation in cache with write lock for concurrent safety.
func (cc *compileCache) set(k string, v compiledTemplate) {
	cc.mu.Lock()
	cc.cache[k] = compiledTemplate{code: v.code, symbols: compiler.NewSymbols(v.symbols.Values()...)}
	cc.mu.Unlock()
}

// len reports the number of cached compilations.
func (cc *compileCache) len() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

// parserPool manages tree-sitter parsers. Parsers own native resources and
// are expensive to create, so they are reused across parses and goroutines.
// A parser is only ever used by one goroutine at a time.
type parserPool struct {
	pool sync.Pool
}

// newParserPool creates a pool that builds parsers on demand.
func newParserPool() *parserPool {
	return &parserPool{
		pool: sync.Pool{
			New: func() any {
				return sitter.NewParser()
			},
		},
	}
}

// get retrieves a parser configured for lang.
func (pp *parserPool) get(lang *sitter.Language) *sitter.Parser {
	p := pp.pool.Get().(*sitter.Parser)
	p.SetLanguage(lang)
	return p
}

// put returns a parser to the pool for later reuse.
func (pp *parserPool) put(p *sitter.Parser) {
	p.Reset()
	pp.pool.Put(p)
}

// parsers is shared by every Transformer in the process.
var parsers = newParserPool()

// indentOf returns the leading whitespace of the line containing offset.
func indentOf(src []byte, offset uint32) string {
	start := int(offset)
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := start
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}
