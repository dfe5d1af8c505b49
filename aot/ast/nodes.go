package ast

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// nodeKind is the closed set of node shapes the inliner recognizes. Every
// grammar type outside the set maps to kindOther, so a switch over nodeKind
// never silently falls through on an unknown shape.
type nodeKind int

const (
	kindOther nodeKind = iota
	kindIdentifier
	kindShorthandProperty
	kindPropertyIdentifier
	kindString
	kindTemplateString
	kindTemplateSubstitution
	kindObject
	kindPair
	kindSpread
	kindArguments
	kindCall
	kindNew
	kindMember
	kindParenthesized
	kindImportStatement
	kindImportClause
	kindNamedImports
	kindImportSpecifier
	kindNamespaceImport
	kindExpressionStatement
	kindHashBang
	kindComment
)

// nodeKinds maps tree-sitter grammar types to recognized kinds.
var nodeKinds = map[string]nodeKind{
	"identifier":                    kindIdentifier,
	"shorthand_property_identifier": kindShorthandProperty,
	"property_identifier":           kindPropertyIdentifier,
	"string":                        kindString,
	"template_string":               kindTemplateString,
	"template_substitution":         kindTemplateSubstitution,
	"object":                        kindObject,
	"pair":                          kindPair,
	"spread_element":                kindSpread,
	"arguments":                     kindArguments,
	"call_expression":               kindCall,
	"new_expression":                kindNew,
	"member_expression":             kindMember,
	"parenthesized_expression":      kindParenthesized,
	"import_statement":              kindImportStatement,
	"import_clause":                 kindImportClause,
	"named_imports":                 kindNamedImports,
	"import_specifier":              kindImportSpecifier,
	"namespace_import":              kindNamespaceImport,
	"expression_statement":          kindExpressionStatement,
	"hash_bang_line":                kindHashBang,
	"comment":                       kindComment,
}

// kindOf classifies n. A nil node is kindOther.
func kindOf(n *sitter.Node) nodeKind {
	if n == nil {
		return kindOther
	}
	return nodeKinds[n.Type()]
}

// primaryTypes are expressions that bind tighter than any operator, so they
// can replace a call expression without parentheses.
var primaryTypes = map[string]bool{
	"identifier":               true,
	"this":                     true,
	"member_expression":        true,
	"subscript_expression":     true,
	"call_expression":          true,
	"parenthesized_expression": true,
	"string":                   true,
	"template_string":          true,
	"number":                   true,
	"array":                    true,
	"true":                     true,
	"false":                    true,
	"null":                     true,
	"undefined":                true,
	"regex":                    true,
}

// namedChildren returns n's named children, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || kindOf(c) == kindComment {
			continue
		}
		out = append(out, c)
	}
	return out
}

// unwrap strips any number of enclosing parentheses.
func unwrap(n *sitter.Node) *sitter.Node {
	for kindOf(n) == kindParenthesized {
		children := namedChildren(n)
		if len(children) != 1 {
			return n
		}
		n = children[0]
	}
	return n
}

// text returns the source text of n.
func (t *Tree) text(n *sitter.Node) string {
	return string(t.Source[n.StartByte():n.EndByte()])
}

// isIdentifierNamed reports whether n is an identifier spelled name.
func (t *Tree) isIdentifierNamed(n *sitter.Node, name string) bool {
	return kindOf(n) == kindIdentifier && t.text(n) == name
}

// stringValue returns the decoded value of a string literal.
func (t *Tree) stringValue(n *sitter.Node) (string, bool) {
	if kindOf(n) != kindString {
		return "", false
	}
	s, err := unquote(t.text(n))
	if err != nil {
		return "", false
	}
	return s, true
}

// templateValue returns the cooked value of a template literal holding a
// single static chunk.
func (t *Tree) templateValue(n *sitter.Node) (string, bool) {
	if kindOf(n) != kindTemplateString {
		return "", false
	}
	for _, c := range namedChildren(n) {
		if kindOf(c) == kindTemplateSubstitution {
			return "", false
		}
	}

	raw := t.text(n)
	if len(raw) < 2 || raw[0] != '`' || raw[len(raw)-1] != '`' {
		return "", false
	}
	// Cooked template values see every line terminator as LF
	body := strings.ReplaceAll(raw[1:len(raw)-1], "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")

	s, err := decodeEscapes(body)
	if err != nil {
		return "", false
	}
	return s, true
}

// isImportMetaURL matches `import.meta.url`. Grammar versions disagree on how
// `import.meta` is represented, so the object is compared by its text.
func (t *Tree) isImportMetaURL(n *sitter.Node) bool {
	n = unwrap(n)
	if kindOf(n) != kindMember {
		return false
	}
	property := n.ChildByFieldName("property")
	if property == nil || t.text(property) != "url" {
		return false
	}
	object := unwrap(n.ChildByFieldName("object"))
	if object == nil {
		return false
	}
	return strings.Join(strings.Fields(t.text(object)), "") == "import.meta"
}

// lineCol returns the 1-based position of n.
func lineCol(n *sitter.Node) (int, int) {
	p := n.StartPoint()
	return int(p.Row) + 1, int(p.Column) + 1
}

// unquote decodes a single- or double-quoted JavaScript string literal.
func unquote(raw string) (string, error) {
	if len(raw) < 2 {
		return "", fmt.Errorf("invalid string literal %s", raw)
	}
	q := raw[0]
	if (q != '"' && q != '\'') || raw[len(raw)-1] != q {
		return "", fmt.Errorf("invalid string literal %s", raw)
	}
	return decodeEscapes(raw[1 : len(raw)-1])
}

// decodeEscapes resolves JavaScript escape sequences in the body of a string
// or template literal.
func decodeEscapes(body string) (string, error) {
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	var b strings.Builder
	b.Grow(len(body))

	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}

		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling escape in %q", body)
		}

		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\r':
			// line continuation, optionally \r\n
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case '\n':
			// line continuation
		case 'x':
			if i+2 >= len(body) {
				return "", fmt.Errorf("invalid hex escape in %q", body)
			}
			v, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("invalid hex escape in %q", body)
			}
			b.WriteRune(rune(v))
			i += 2
		case 'u':
			r, n, err := decodeUnicodeEscape(body[i+1:])
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		default:
			// \\, \', \", \` and any other character escape to themselves
			r, size := utf8.DecodeRuneInString(body[i:])
			b.WriteRune(r)
			i += size - 1
		}
	}

	return b.String(), nil
}

// decodeUnicodeEscape decodes the part of a \u escape following the "u":
// either four hex digits or a braced code point. It returns the rune and the
// number of bytes consumed.
func decodeUnicodeEscape(s string) (rune, int, error) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0, fmt.Errorf("invalid unicode escape \\u%s", s)
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0, fmt.Errorf("invalid unicode escape \\u%s", s[:end+1])
		}
		return rune(v), end + 1, nil
	}

	if len(s) < 4 {
		return 0, 0, fmt.Errorf("invalid unicode escape \\u%s", s)
	}
	v, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid unicode escape \\u%s", s[:4])
	}
	r := rune(v)

	// Surrogate pair written as two escapes
	if utf16.IsSurrogate(r) && len(s) >= 10 && s[4] == '\\' && s[5] == 'u' {
		if lo, err := strconv.ParseUint(s[6:10], 16, 16); err == nil {
			if pair := utf16.DecodeRune(r, rune(lo)); pair != utf8.RuneError {
				return pair, 10, nil
			}
		}
	}
	return r, 4, nil
}
