package ast

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/abiiranathan/rx-aot/aot/errors"
)

// insertMode describes how new specifiers are added to an import declaration.
type insertMode int

const (
	insertAfterSpecifier insertMode = iota // import { a } from "m" -> import { a, b } from "m"
	insertIntoBraces                       // import {} from "m" -> import { b } from "m"
	insertAfterDefault                     // import d from "m" -> import d, { b } from "m"
	insertClause                           // import "m" -> import { b } from "m"
	insertUnsupported                      // import * as ns from "m"
)

// importDecl is one import declaration of the module, existing or created.
type importDecl struct {
	Source   string          // Module specifier
	TypeOnly bool            // `import type ...`
	names    map[string]bool // Imported (not local) names of value specifiers
	added    []string        // Names added by reconciliation, in order
	created  bool            // Declared by reconciliation, not in the source

	// typed maps names of unaliased `type x` specifiers to the range of
	// their modifier. Deleting it turns the specifier into a value import.
	typed    map[string]edit
	upgraded []edit

	mode     insertMode
	insertAt uint32 // Byte offset where added specifiers go
}

// provides reports whether the declaration imports name.
func (d *importDecl) provides(name string) bool {
	return !d.TypeOnly && d.names[name]
}

// importTable is the module's import declarations. Reconciliation only ever
// adds names, so the table grows monotonically.
type importTable struct {
	decls []*importDecl

	prependAt     uint32 // Offset where created declarations go
	afterHashBang bool   // prependAt follows a hash-bang line
}

// collect records an import_statement node.
func (it *importTable) collect(t *Tree, stmt *sitter.Node) *importDecl {
	source, ok := t.stringValue(stmt.ChildByFieldName("source"))
	if !ok {
		return nil
	}

	d := &importDecl{
		Source: source,
		names:  make(map[string]bool),
		typed:  make(map[string]edit),
		mode:   insertClause,
	}

	var clause *sitter.Node
	for i := 0; i < int(stmt.ChildCount()); i++ {
		c := stmt.Child(i)
		switch {
		case i == 0:
			// `import` keyword; a bare import gets its clause right after it
			d.insertAt = c.EndByte()
		case !c.IsNamed() && (c.Type() == "type" || c.Type() == "typeof"):
			d.TypeOnly = true
		case kindOf(c) == kindImportClause:
			clause = c
		}
	}

	if clause != nil {
		d.describeClause(t, clause)
	}

	it.decls = append(it.decls, d)
	return d
}

// describeClause records the names of an import clause and where new
// specifiers can be inserted.
func (d *importDecl) describeClause(t *Tree, clause *sitter.Node) {
	var hasDefault, hasNamespace bool
	var defaultEnd uint32

	for _, c := range namedChildren(clause) {
		switch kindOf(c) {
		case kindIdentifier:
			hasDefault = true
			defaultEnd = c.EndByte()
		case kindNamespaceImport:
			hasNamespace = true
		case kindNamedImports:
			specifiers := 0
			for _, s := range namedChildren(c) {
				if kindOf(s) != kindImportSpecifier {
					continue
				}
				specifiers++
				d.insertAt = s.EndByte()

				name := s.ChildByFieldName("name")
				if name == nil {
					continue
				}
				v, ok := t.stringValue(name)
				if !ok {
					v = t.text(name)
				}
				if modifier := typeModifier(s); modifier != nil {
					if s.ChildByFieldName("alias") == nil {
						d.typed[v] = edit{start: modifier.StartByte(), end: name.StartByte()}
					}
					continue
				}
				d.names[v] = true
			}
			if specifiers > 0 {
				d.mode = insertAfterSpecifier
			} else {
				d.mode = insertIntoBraces
				d.insertAt = c.StartByte() + 1
			}
			return
		}
	}

	switch {
	case hasNamespace:
		d.mode = insertUnsupported
	case hasDefault:
		d.mode = insertAfterDefault
		d.insertAt = defaultEnd
	}
}

// typeModifier returns the `type` or `typeof` keyword of an inline type
// specifier such as `import { type a } from "m"`.
func typeModifier(spec *sitter.Node) *sitter.Node {
	for i := 0; i < int(spec.ChildCount()); i++ {
		c := spec.Child(i)
		if !c.IsNamed() && (c.Type() == "type" || c.Type() == "typeof") {
			return c
		}
	}
	return nil
}

// upgradable returns the declaration holding an unaliased type specifier
// for name, if any.
func (it *importTable) upgradable(path, name string) *importDecl {
	for _, d := range it.decls {
		if d.Source != path || d.TypeOnly {
			continue
		}
		if _, ok := d.typed[name]; ok {
			return d
		}
	}
	return nil
}

// has reports whether name is imported from path by a value declaration.
func (it *importTable) has(path, name string) bool {
	for _, d := range it.decls {
		if d.Source == path && d.provides(name) {
			return true
		}
	}
	return false
}

// host returns the declaration new names for path are merged into, or nil
// when none exists and one must be created.
func (it *importTable) host(path string) *importDecl {
	var fallback *importDecl
	for _, d := range it.decls {
		if d.Source != path || d.TypeOnly {
			continue
		}
		if d.mode != insertUnsupported {
			return d
		}
		if fallback == nil {
			fallback = d
		}
	}
	return fallback
}

// missing returns the names not yet imported from path.
func (it *importTable) missing(path string, names []string) []string {
	var out []string
	for _, name := range names {
		if !it.has(path, name) {
			out = append(out, name)
		}
	}
	return out
}

// check verifies that names can all be imported from path without mutating
// the table.
func (it *importTable) check(path string, names []string) error {
	var missing []string
	for _, name := range it.missing(path, names) {
		if it.upgradable(path, name) == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if d := it.host(path); d != nil && d.mode == insertUnsupported {
		return errors.New(errors.PhaseImport, errors.KindUnsupportedImport).
			Path(path).
			Value(missing).
			Detail("namespace import of %q cannot receive named specifiers %s", path, strings.Join(missing, ", ")).
			Build()
	}
	return nil
}

// add ensures every name is imported from path, merging into an existing
// declaration or creating one. Callers must check first.
func (it *importTable) add(path string, names []string) []string {
	missing := it.missing(path, names)
	if len(missing) == 0 {
		return nil
	}

	var rest []string
	for _, name := range missing {
		if u := it.upgradable(path, name); u != nil {
			u.upgraded = append(u.upgraded, u.typed[name])
			delete(u.typed, name)
			u.names[name] = true
			continue
		}
		rest = append(rest, name)
	}
	if len(rest) == 0 {
		return missing
	}

	d := it.host(path)
	if d == nil {
		d = &importDecl{
			Source:  path,
			names:   make(map[string]bool),
			created: true,
		}
		it.decls = append(it.decls, d)
	}

	for _, name := range rest {
		d.names[name] = true
		d.added = append(d.added, name)
	}
	return missing
}

// edits renders the pending additions as source edits.
func (it *importTable) edits() []edit {
	var out []edit
	for _, d := range it.decls {
		out = append(out, d.upgraded...)
		if len(d.added) == 0 {
			continue
		}
		list := strings.Join(d.added, ", ")

		if d.created {
			decl := "import { " + list + " } from " + strconv.Quote(d.Source) + ";"
			if it.afterHashBang {
				out = append(out, edit{start: it.prependAt, end: it.prependAt, text: "\n" + decl})
			} else {
				out = append(out, edit{start: it.prependAt, end: it.prependAt, text: decl + "\n"})
			}
			continue
		}

		var text string
		switch d.mode {
		case insertAfterSpecifier:
			text = ", " + list
		case insertIntoBraces:
			text = " " + list + " "
		case insertAfterDefault:
			text = ", { " + list + " }"
		case insertClause:
			text = " { " + list + " } from"
		default:
			continue
		}
		out = append(out, edit{start: d.insertAt, end: d.insertAt, text: text})
	}
	return out
}
