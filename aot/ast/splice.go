package ast

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/abiiranathan/rx-aot/aot/compiler"
	"github.com/abiiranathan/rx-aot/aot/errors"
)

// spliceText validates generated code and returns the text that replaces a
// call expression. The code must parse as exactly one expression statement.
// Load templates are wrapped in a resolved promise so the call site keeps
// yielding a thenable; inline expressions are parenthesized unless they bind
// at least as tightly as a call. Lines after the first are prefixed with
// indent, except inside template literals.
func spliceText(ctx context.Context, kind CallKind, code compiler.Lines, indent string) (string, error) {
	src := []byte(code.String())

	tree, err := parseWith(ctx, javascript.GetLanguage(), src)
	if err != nil {
		return "", invalidTree(err, "generated code could not be parsed")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return "", invalidTree(nil, "generated code is not valid JavaScript")
	}

	statements := namedChildren(root)
	if len(statements) != 1 || kindOf(statements[0]) != kindExpressionStatement {
		return "", invalidTree(nil, "generated code must be a single expression statement, got %d statements", len(statements))
	}

	exprs := namedChildren(statements[0])
	if len(exprs) != 1 {
		return "", invalidTree(nil, "generated statement holds %d expressions", len(exprs))
	}

	expr := exprs[0]
	if kind == CallLoad {
		inner := indent + "  "
		return "Promise.resolve(\n" + inner + reindent(src, expr, inner) + "\n" + indent + ")", nil
	}

	text := reindent(src, expr, indent)
	if !primaryTypes[expr.Type()] {
		text = "(" + text + ")"
	}
	return text, nil
}

// reindent returns the text of n with indent inserted after every newline
// that is not part of a template literal.
func reindent(src []byte, n *sitter.Node, indent string) string {
	text := string(src[n.StartByte():n.EndByte()])
	if indent == "" || !strings.Contains(text, "\n") {
		return text
	}

	var literals [][2]uint32
	var walk func(c *sitter.Node)
	walk = func(c *sitter.Node) {
		if kindOf(c) == kindTemplateString {
			literals = append(literals, [2]uint32{c.StartByte(), c.EndByte()})
			return
		}
		for _, child := range namedChildren(c) {
			walk(child)
		}
	}
	walk(n)

	var b strings.Builder
	next := 0
	for i := n.StartByte(); i < n.EndByte(); i++ {
		b.WriteByte(src[i])
		if src[i] != '\n' {
			continue
		}
		for next < len(literals) && literals[next][1] <= i {
			next++
		}
		if next < len(literals) && literals[next][0] < i {
			continue
		}
		b.WriteString(indent)
	}
	return b.String()
}

func invalidTree(cause error, detail string, args ...any) error {
	return errors.New(errors.PhaseSplice, errors.KindInvalidGeneratedTree).
		Cause(cause).
		Detail(detail, args...).
		Build()
}
