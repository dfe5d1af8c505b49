package ast

import (
	"context"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/abiiranathan/rx-aot/aot/compiler"
)

// stubCompiler returns a fixed expression and records what it was asked to
// compile.
type stubCompiler struct {
	code    compiler.Lines
	symbols []string
	err     error

	mu     sync.Mutex
	inputs []string
}

func newStub(symbols ...string) *stubCompiler {
	if len(symbols) == 0 {
		symbols = []string{"createDocumentFragment"}
	}
	return &stubCompiler{
		code:    compiler.Lines{"() => createDocumentFragment()"},
		symbols: symbols,
	}
}

func (s *stubCompiler) Setup(ctx context.Context) error {
	return ctx.Err()
}

func (s *stubCompiler) Compile(_ context.Context, html string, _, _ compiler.Lines) (compiler.Lines, *compiler.Symbols, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, html)
	s.mu.Unlock()

	if s.err != nil {
		return nil, nil, s.err
	}
	return s.code, compiler.NewSymbols(s.symbols...), nil
}

func (s *stubCompiler) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.inputs...)
}

// templates builds an in-memory file system rooted at "/".
func templates(files map[string]string) FSReader {
	fsys := fstest.MapFS{}
	for name, data := range files {
		fsys[strings.TrimPrefix(name, "/")] = &fstest.MapFile{Data: []byte(data)}
	}
	return FSReader{FS: fsys}
}

// transform runs a Transformer over src as /x/y/mod.ts.
func transform(t *testing.T, src string, opts ...Option) *Result {
	t.Helper()
	res, err := New(opts...).Transform(context.Background(), []byte(src), "/x/y/mod.ts")
	require.NoError(t, err)
	return res
}

// parseModule parses src as /x/y/mod.ts and indexes it with the default
// functions.
func parseModule(t *testing.T, src string) (*Tree, *moduleIndex) {
	t.Helper()
	tree, err := Parse(context.Background(), []byte(src), "/x/y/mod.ts")
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree, tree.scan(New().functions)
}
