package ast

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/abiiranathan/rx-aot/aot/errors"
)

// Tree is a parsed module. Nodes borrowed from it are only valid until Close
// and must not be shared across goroutines.
type Tree struct {
	Path   string       // Module path the source was read from
	Source []byte       // Exact source text; node offsets index into it
	Root   *sitter.Node // Program node

	lang *sitter.Language
	tree *sitter.Tree
}

// languageFor picks the grammar for a module path by extension.
// Unknown extensions are parsed as TypeScript, a superset of JavaScript.
func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return tsx.GetLanguage()
	case ".js", ".mjs", ".cjs", ".jsx":
		return javascript.GetLanguage()
	default:
		return typescript.GetLanguage()
	}
}

// Parse parses src as the module at path. A module that does not parse
// cleanly is rejected with a syntax error.
func Parse(ctx context.Context, src []byte, path string) (*Tree, error) {
	lang := languageFor(path)
	t, err := parseWith(ctx, lang, src)
	if err != nil {
		return nil, errors.New(errors.PhaseParse, errors.KindSyntax).
			Path(path).
			Cause(err).
			Detail("failed to parse module").
			Build()
	}

	if t.RootNode().HasError() {
		line, col := firstError(t.RootNode())
		t.Close()
		return nil, errors.New(errors.PhaseParse, errors.KindSyntax).
			Path(path).
			Detail("syntax error near line %d, column %d", line, col).
			Build()
	}

	return &Tree{
		Path:   path,
		Source: src,
		Root:   t.RootNode(),
		lang:   lang,
		tree:   t,
	}, nil
}

// parseWith parses src with a pooled parser.
func parseWith(ctx context.Context, lang *sitter.Language, src []byte) (*sitter.Tree, error) {
	p := parsers.get(lang)
	defer parsers.put(p)
	return p.ParseCtx(ctx, nil, src)
}

// Close releases the native tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// firstError returns the 1-based position of the first ERROR or MISSING node.
func firstError(n *sitter.Node) (int, int) {
	if n.Type() == "ERROR" || n.IsMissing() {
		return lineCol(n)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.HasError() {
			return firstError(c)
		}
	}
	return lineCol(n)
}
