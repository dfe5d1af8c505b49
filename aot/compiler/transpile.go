package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attribute prefixes of the reactive HTML syntax.
const (
	propertyPrefix = "["
	eventPrefix    = "("
	modifierPrefix = "#"
)

// fragmentContext is the element reactive templates are parsed under.
var fragmentContext = &html.Node{
	Type:     html.ElementNode,
	Data:     "body",
	DataAtom: atom.Body,
}

// transpiler turns a parsed HTML fragment into reactive-DOM statements.
// Each created node gets its own constant (n0, n1, ...) so the emitted code
// stays flat.
type transpiler struct {
	lines Lines
	next  int
}

// transpileReactiveHTML converts minified reactive HTML into the statements
// that build it under a `parentNode` constant. It returns no lines when the
// template has no content.
func transpileReactiveHTML(src string) (Lines, error) {
	nodes, err := html.ParseFragment(strings.NewReader(src), fragmentContext)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	t := &transpiler{}
	for _, n := range nodes {
		if err := t.node(n, "parentNode"); err != nil {
			return nil, err
		}
	}
	return t.lines, nil
}

func (t *transpiler) emit(format string, args ...any) {
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

func (t *transpiler) node(n *html.Node, parent string) error {
	switch n.Type {
	case html.ElementNode:
		return t.element(n, parent)
	case html.TextNode:
		return t.text(n.Data, parent)
	case html.CommentNode, html.DoctypeNode:
		return nil
	default:
		return fmt.Errorf("unsupported html node type %d", n.Type)
	}
}

func (t *transpiler) element(n *html.Node, parent string) error {
	name := fmt.Sprintf("n%d", t.next)
	t.next++

	t.emit("const %s = createElement(%s);", name, quote(n.Data))

	for _, attr := range n.Attr {
		key := attr.Key
		if attr.Namespace != "" {
			key = attr.Namespace + ":" + key
		}

		switch {
		case strings.HasPrefix(key, propertyPrefix) && strings.HasSuffix(key, "]"):
			t.emit("setReactiveProperty(%s, %s, %s);", name, quote(key[1:len(key)-1]), expression(attr.Val))
		case strings.HasPrefix(key, eventPrefix) && strings.HasSuffix(key, ")"):
			t.emit("setReactiveEventListener(%s, %s, %s);", name, quote(key[1:len(key)-1]), expression(attr.Val))
		case strings.HasPrefix(key, modifierPrefix):
			t.emit("getNodeModifier(%s)(%s, %s);", quote(key[1:]), name, expression(attr.Val))
		default:
			t.emit("setAttributeValue(%s, %s, %s);", name, quote(key), quote(attr.Val))
		}
	}

	t.emit("nodeAppendChild(%s, %s);", parent, name)

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := t.node(c, name); err != nil {
			return err
		}
	}
	return nil
}

// text splits a text node on {{ }} interpolations.
func (t *transpiler) text(data, parent string) error {
	for data != "" {
		start := strings.Index(data, "{{")
		if start < 0 {
			t.emit("nodeAppendChild(%s, createTextNode(%s));", parent, quote(data))
			return nil
		}
		if start > 0 {
			t.emit("nodeAppendChild(%s, createTextNode(%s));", parent, quote(data[:start]))
		}

		end := strings.Index(data[start+2:], "}}")
		if end < 0 {
			return fmt.Errorf("unterminated interpolation in %q", data[start:])
		}

		expr := strings.TrimSpace(data[start+2 : start+2+end])
		if expr == "" {
			return fmt.Errorf("empty interpolation in %q", data)
		}
		t.emit("nodeAppendChild(%s, createReactiveTextNode(%s));", parent, expr)

		data = data[start+2+end+2:]
	}
	return nil
}

// expression returns the attribute value as code, defaulting to undefined.
func expression(val string) string {
	val = strings.TrimSpace(val)
	if val == "" {
		return "void 0"
	}
	return val
}

// quote renders s as a single-quoted JavaScript string literal.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028', '\u2029':
			b.WriteString(`\u`)
			b.WriteString(strconv.FormatInt(int64(r), 16))
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
