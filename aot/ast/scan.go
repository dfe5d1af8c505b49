package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// moduleIndex is everything the orchestrator learns from one walk over the
// module: the call sites to optimize, the default-import symbol table used to
// resolve `html: identifier`, and the import declarations reconciliation
// merges into.
type moduleIndex struct {
	sites    []CallSite
	defaults map[string]string // Default import local name -> module specifier
	imports  *importTable
}

// scan walks the tree once. functions maps recognized callee names to kinds.
// Sites are returned in source order, outer calls before the calls nested in
// their arguments.
func (t *Tree) scan(functions map[string]CallKind) *moduleIndex {
	idx := &moduleIndex{
		defaults: make(map[string]string),
		imports:  &importTable{},
	}

	// Created imports go before the first statement, after a hash-bang line
	if top := namedChildren(t.Root); len(top) > 0 && kindOf(top[0]) == kindHashBang {
		idx.imports.prependAt = top[0].EndByte()
		idx.imports.afterHashBang = true
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch kindOf(n) {
		case kindImportStatement:
			if d := idx.imports.collect(t, n); d != nil && !d.TypeOnly {
				t.collectDefault(n, d.Source, idx.defaults)
			}
			return

		case kindCall:
			if site, ok := t.callSite(n, functions); ok {
				idx.sites = append(idx.sites, site)
			}
		}

		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c != nil {
				walk(c)
			}
		}
	}
	walk(t.Root)

	return idx
}

// collectDefault records the default binding of an import statement.
func (t *Tree) collectDefault(stmt *sitter.Node, source string, defaults map[string]string) {
	for _, c := range namedChildren(stmt) {
		if kindOf(c) != kindImportClause {
			continue
		}
		for _, b := range namedChildren(c) {
			if kindOf(b) == kindIdentifier {
				defaults[t.text(b)] = source
			}
		}
	}
}

// callSite matches a call whose callee is a bare identifier naming one of the
// recognized functions.
func (t *Tree) callSite(n *sitter.Node, functions map[string]CallKind) (CallSite, bool) {
	callee := n.ChildByFieldName("function")
	if kindOf(callee) != kindIdentifier {
		return CallSite{}, false
	}

	name := t.text(callee)
	kind, ok := functions[name]
	if !ok {
		return CallSite{}, false
	}

	line, col := lineCol(n)
	return CallSite{
		Kind:     kind,
		Function: name,
		Node:     n,
		Line:     line,
		Column:   col,
	}, true
}
