package ast

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/abiiranathan/rx-aot/aot/compiler"
	"github.com/abiiranathan/rx-aot/aot/errors"
)

// Recognized property names of the call argument.
const (
	propURL            = "url"
	propHTML           = "html"
	propCustomElements = "customElements"
	propModifiers      = "modifiers"
)

// extract builds the template configuration of a call site from its single
// object-literal argument. defaults is the module's default-import table.
func (t *Tree) extract(site CallSite, defaults map[string]string) (*TemplateConfig, error) {
	object, err := t.argumentObject(site)
	if err != nil {
		return nil, err
	}

	cfg := &TemplateConfig{}
	var sourceProp string

	for _, prop := range namedChildren(object) {
		name, value, err := t.property(prop)
		if err != nil {
			return nil, err
		}

		switch name {
		case propURL, propHTML:
			if sourceProp != "" {
				return nil, errors.New(errors.PhaseExtract, errors.KindDuplicateTemplateSource).
					Path(name).
					Detail("template source already given by '%s'", sourceProp).
					Build()
			}
			sourceProp = name

			if name == propURL {
				cfg.Source, err = t.analyseURL(value)
			} else {
				cfg.Source, err = t.analyseHTML(value, defaults)
			}
			if err != nil {
				return nil, err
			}

		case propCustomElements:
			cfg.CustomElements = compiler.SplitLines(t.text(value))

		case propModifiers:
			cfg.Modifiers = compiler.SplitLines(t.text(value))

		default:
			return nil, errors.UnknownProperty(name)
		}
	}

	if sourceProp == "" {
		return nil, errors.New(errors.PhaseExtract, errors.KindMissingTemplateSource).
			Detail("missing property '%s' or '%s'", propURL, propHTML).
			Build()
	}

	return cfg, nil
}

// argumentObject returns the call's only argument, which must be an object
// literal.
func (t *Tree) argumentObject(site CallSite) (*sitter.Node, error) {
	args := site.Node.ChildByFieldName("arguments")
	if kindOf(args) != kindArguments {
		return nil, malformedCall(site, "arguments must be a parenthesized list")
	}

	list := namedChildren(args)
	if len(list) != 1 {
		return nil, malformedCall(site, fmt.Sprintf("expected one object argument, got %d arguments", len(list)))
	}

	object := unwrap(list[0])
	if kindOf(object) != kindObject {
		return nil, malformedCall(site, "expected one object argument, got "+object.Type())
	}
	return object, nil
}

func malformedCall(site CallSite, detail string) error {
	return errors.New(errors.PhaseExtract, errors.KindMalformedCall).
		Path(site.Function).
		Detail("%s", detail).
		Build()
}

// property returns the key and value expression of an object member.
// A shorthand property is its own value.
func (t *Tree) property(prop *sitter.Node) (string, *sitter.Node, error) {
	switch kindOf(prop) {
	case kindPair:
		key := prop.ChildByFieldName("key")
		if kindOf(key) != kindPropertyIdentifier {
			return "", nil, errors.Unsupported(fmt.Sprintf("property key %s is not an identifier", t.text(key)))
		}
		value := prop.ChildByFieldName("value")
		if value == nil {
			return "", nil, errors.Unsupported(fmt.Sprintf("property '%s' has no value", t.text(key)))
		}
		return t.text(key), value, nil

	case kindShorthandProperty:
		return t.text(prop), prop, nil

	case kindSpread:
		return "", nil, errors.Unsupported("spread elements are not supported")

	default:
		return "", nil, errors.Unsupported(fmt.Sprintf("unsupported %s in argument object", prop.Type()))
	}
}
