// Package compiler is the template-compilation service used by the inliner.
//
// It minifies reactive HTML, transpiles it into reactive-DOM JavaScript and
// reports which runtime helpers the generated code needs:
//
//	c := compiler.New()
//	lines, symbols, err := c.Compile(ctx, "<div>{{ $.name }}</div>", nil, nil)
//
// The returned Lines hold a single expression (an arrow function building a
// DocumentFragment); symbols always contain "createDocumentFragment".
package compiler

import (
	"context"
	"fmt"
	"sync"

	"github.com/tdewolff/minify/v2"
	htmlmin "github.com/tdewolff/minify/v2/html"
	"go.uber.org/zap"
)

// Names the generated code binds from the template's argument object.
const (
	DataName    = "$"
	ContentName = "$content"
)

// runtimeConstants are the runtime helpers generated code may reference.
var runtimeConstants = map[string]bool{
	"createDocumentFragment":                          true,
	"createElement":                                   true,
	"createTextNode":                                  true,
	"createReactiveTextNode":                          true,
	"nodeAppendChild":                                 true,
	"setAttributeValue":                               true,
	"setReactiveProperty":                             true,
	"setReactiveEventListener":                        true,
	"getNodeModifier":                                 true,
	"generateCreateElementFunctionWithCustomElements": true,
	"generateGetNodeModifierFunctionFromArray":        true,
}

// templateVariables maps argument variables to the property they bind.
var templateVariables = map[string]string{
	DataName:    "data",
	ContentName: "content",
}

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the compiler package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the compiler package's logger.
// This must be called before any compilation.
func SetLogger(l *zap.Logger) {
	logger = l
}

// Compiler compiles reactive HTML templates. The zero value is not usable;
// call New. A Compiler is safe for concurrent use once Setup has run.
type Compiler struct {
	setupOnce sync.Once
	setupErr  error
	minifier  *minify.M
}

// New returns a Compiler. Setup is performed lazily on first use.
func New() *Compiler {
	return &Compiler{}
}

// Setup prepares the compilation environment. It is idempotent and safe to
// call from several goroutines; only the first call does any work.
func (c *Compiler) Setup(ctx context.Context) error {
	c.setupOnce.Do(func() {
		if err := ctx.Err(); err != nil {
			c.setupErr = err
			return
		}

		m := minify.New()
		m.Add("text/html", &htmlmin.Minifier{
			KeepDefaultAttrVals: true,
			KeepDocumentTags:    true,
			KeepEndTags:         true,
			KeepQuotes:          true,
		})
		c.minifier = m

		Logger().Debug("Template compiler environment ready.")
	})
	return c.setupErr
}

// Minify collapses insignificant whitespace and comments in html.
func (c *Compiler) Minify(ctx context.Context, html string) (string, error) {
	if err := c.Setup(ctx); err != nil {
		return "", err
	}
	out, err := c.minifier.String("text/html", html)
	if err != nil {
		return "", fmt.Errorf("minify html: %w", err)
	}
	return out, nil
}

// Compile minifies and transpiles html into a reactive template expression.
// customElements and modifiers are code fragments evaluated at runtime; they
// are only injected when the generated code needs them.
func (c *Compiler) Compile(ctx context.Context, html string, customElements, modifiers Lines) (Lines, *Symbols, error) {
	minified, err := c.Minify(ctx, html)
	if err != nil {
		return nil, nil, err
	}
	return c.Transpile(ctx, minified, customElements, modifiers)
}

// Transpile converts already minified html into a reactive template
// expression and the runtime symbols it requires.
func (c *Compiler) Transpile(ctx context.Context, html string, customElements, modifiers Lines) (Lines, *Symbols, error) {
	symbols := NewSymbols("createDocumentFragment")

	body, err := transpileReactiveHTML(html)
	if err != nil {
		return nil, nil, err
	}
	body = body.Optional()

	if len(body) == 0 {
		return Lines{"() => createDocumentFragment()"}, symbols, nil
	}

	// Analyse constants to import
	identifiers, err := scanIdentifiers(ctx, body)
	if err != nil {
		return nil, nil, err
	}

	variables := make(map[string]bool)
	for _, name := range identifiers {
		if _, ok := templateVariables[name]; ok {
			variables[name] = true
		} else if runtimeConstants[name] {
			symbols.Add(name)
		}
	}

	var prelude Lines

	// Custom elements replace the default element factory
	if len(customElements) > 0 && symbols.Has("createElement") {
		symbols.Delete("createElement")
		symbols.Add("generateCreateElementFunctionWithCustomElements")
		prelude = append(prelude, "const createElement = generateCreateElementFunctionWithCustomElements(")
		prelude = append(prelude, customElements.Indent()...)
		prelude = append(prelude, ");")
	}

	// Modifiers replace the default modifier lookup
	if len(modifiers) > 0 && symbols.Has("getNodeModifier") {
		symbols.Delete("getNodeModifier")
		symbols.Add("generateGetNodeModifierFunctionFromArray")
		prelude = append(prelude, "const getNodeModifier = generateGetNodeModifierFunctionFromArray(")
		prelude = append(prelude, modifiers.Indent()...)
		prelude = append(prelude, ");")
	}

	statements := make(Lines, 0, len(prelude)+len(body)+2)
	statements = append(statements, prelude...)
	statements = append(statements, "const parentNode = createDocumentFragment();")
	statements = append(statements, body...)
	statements = append(statements, "return parentNode;")

	lines := Lines{templateSignature(variables)}
	lines = append(lines, statements.Indent()...)
	lines = append(lines, "}")

	Logger().Debug("Template transpiled.",
		zap.Int("lines", len(lines)),
		zap.Strings("symbols", symbols.Values()),
	)

	return lines, symbols, nil
}

// templateSignature returns the arrow-function head binding the template
// variables the body uses.
func templateSignature(variables map[string]bool) string {
	var params []string
	for _, name := range []string{DataName, ContentName} {
		if variables[name] {
			params = append(params, templateVariables[name]+": "+name)
		}
	}
	if len(params) == 0 {
		return "() => {"
	}

	head := "({ "
	for i, p := range params {
		if i > 0 {
			head += ", "
		}
		head += p
	}
	return head + " }) => {"
}
