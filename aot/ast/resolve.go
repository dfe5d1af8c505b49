package ast

import (
	"net/url"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/abiiranathan/rx-aot/aot/errors"
)

// analyseURL accepts `new URL('<relative>', import.meta.url)`, optionally
// followed by `.href`, and resolves it against the module path.
func (t *Tree) analyseURL(n *sitter.Node) (TemplateSource, error) {
	n = unwrap(n)

	// new URL(...).href
	if kindOf(n) == kindMember {
		property := n.ChildByFieldName("property")
		if property != nil && t.text(property) == "href" {
			return t.analyseURL(n.ChildByFieldName("object"))
		}
	}

	if kindOf(n) == kindNew && t.isIdentifierNamed(n.ChildByFieldName("constructor"), "URL") {
		args := namedChildren(n.ChildByFieldName("arguments"))
		if len(args) == 2 && t.isImportMetaURL(args[1]) {
			if ref, ok := t.stringValue(unwrap(args[0])); ok {
				file, err := resolveModuleURL(ref, t.Path)
				if err != nil {
					return TemplateSource{}, err
				}
				return TemplateSource{File: file}, nil
			}
		}
	}

	return TemplateSource{}, errors.New(errors.PhaseResolve, errors.KindInvalidURLFormat).
		Path(propURL).
		Value(t.excerpt(n)).
		Detail("invalid URL format, expected new URL('<path>', import.meta.url)").
		Build()
}

// analyseHTML accepts a string literal, a template literal without
// substitutions, or an identifier bound by a default import.
func (t *Tree) analyseHTML(n *sitter.Node, defaults map[string]string) (TemplateSource, error) {
	n = unwrap(n)

	switch kindOf(n) {
	case kindString:
		if s, ok := t.stringValue(n); ok {
			return TemplateSource{HTML: s}, nil
		}

	case kindTemplateString:
		if s, ok := t.templateValue(n); ok {
			return TemplateSource{HTML: s}, nil
		}

	case kindIdentifier, kindShorthandProperty:
		name := t.text(n)
		source, ok := defaults[name]
		if !ok {
			return TemplateSource{}, errors.New(errors.PhaseResolve, errors.KindUnresolvedImport).
				Path(propHTML).
				Value(name).
				Detail("'%s' is not a default import of this module", name).
				Build()
		}
		file, err := resolveModuleURL(source, t.Path)
		if err != nil {
			return TemplateSource{}, err
		}
		return TemplateSource{File: file}, nil
	}

	return TemplateSource{}, errors.New(errors.PhaseResolve, errors.KindUnoptimizableHTMLProperty).
		Path(propHTML).
		Value(t.excerpt(n)).
		Detail("unoptimizable html property, expected a string, a static template or a default import").
		Build()
}

// resolveModuleURL resolves ref against the module at modulePath the way a
// URL relative to `file:<modulePath>` resolves, returning a local path.
func resolveModuleURL(ref, modulePath string) (string, error) {
	invalid := func(cause error) error {
		return errors.New(errors.PhaseResolve, errors.KindInvalidURLFormat).
			Value(ref).
			Cause(cause).
			Detail("cannot resolve %q against %s", ref, modulePath).
			Build()
	}

	r, err := url.Parse(ref)
	if err != nil {
		return "", invalid(err)
	}

	if !filepath.IsAbs(modulePath) {
		abs, err := filepath.Abs(modulePath)
		if err != nil {
			return "", invalid(err)
		}
		modulePath = abs
	}

	base := &url.URL{Scheme: "file", Path: filepath.ToSlash(modulePath)}
	resolved := base.ResolveReference(r)
	if resolved.Scheme != "file" || resolved.Path == "" {
		return "", invalid(nil)
	}
	return filepath.FromSlash(resolved.Path), nil
}

// excerpt returns a short form of n's source for error values.
func (t *Tree) excerpt(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	s := t.text(n)
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
