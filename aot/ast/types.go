package ast

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/multierr"

	"github.com/abiiranathan/rx-aot/aot/compiler"
)

// Default names of the recognized template functions and the runtime module
// their generated code imports from.
const (
	DefaultInlineFunction = "compileReactiveHTMLAsGenericComponentTemplate"
	DefaultLoadFunction   = "loadReactiveHTMLAsGenericComponentTemplate"
	DefaultRuntimeModule  = "@lifaon/rx-dom"
)

// CallKind distinguishes the two recognized template functions.
type CallKind int

const (
	// CallInline is replaced by the template expression itself.
	CallInline CallKind = iota
	// CallLoad is replaced by a promise resolving to the expression.
	CallLoad
)

// String returns the kind name used in logs.
func (k CallKind) String() string {
	switch k {
	case CallInline:
		return "inline"
	case CallLoad:
		return "load"
	default:
		return fmt.Sprintf("CallKind(%d)", int(k))
	}
}

// CallSite is a recognized call expression in a parsed module.
type CallSite struct {
	Kind     CallKind     // Which template function was called
	Function string       // Callee name as written
	Node     *sitter.Node // The call_expression node
	Line     int          // 1-based line of the call
	Column   int          // 1-based column of the call
}

// span returns the byte range the call occupies.
func (s CallSite) span() (uint32, uint32) {
	return s.Node.StartByte(), s.Node.EndByte()
}

// TemplateSource is where a template's html comes from: text written inline
// in the module, or a file resolved against the module's location.
type TemplateSource struct {
	HTML string // Inline html; meaningful when File is empty
	File string // Absolute path of a template file
}

// IsFile reports whether the source must be read from disk.
func (s TemplateSource) IsFile() bool {
	return s.File != ""
}

// String describes the source for logs.
func (s TemplateSource) String() string {
	if s.IsFile() {
		return "file:" + s.File
	}
	return fmt.Sprintf("inline(%d bytes)", len(s.HTML))
}

// TemplateConfig is the statically extracted argument of a call site.
type TemplateConfig struct {
	Source         TemplateSource
	CustomElements compiler.Lines // Source text of the customElements value
	Modifiers      compiler.Lines // Source text of the modifiers value
}

// TemplateCompiler compiles html into a single JavaScript expression and the
// runtime symbols it requires. *compiler.Compiler implements it.
type TemplateCompiler interface {
	Setup(ctx context.Context) error
	Compile(ctx context.Context, html string, customElements, modifiers compiler.Lines) (compiler.Lines, *compiler.Symbols, error)
}

// Normalizer rewrites a module before it is analysed, for example to strip
// type syntax. The output must preserve call sites and imports.
type Normalizer interface {
	Normalize(ctx context.Context, src []byte, path string) ([]byte, error)
}

// Diagnostic records a call site that could not be optimized. The site is
// left untouched in the output.
type Diagnostic struct {
	Function string // Callee name
	Path     string // Module path
	Line     int
	Column   int
	Err      error
}

// Error formats the diagnostic the way it is reported to users.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("Failed to optimize '%s' from file '%s': %v", d.Function, d.Path, d.Err)
}

// Unwrap returns the underlying failure.
func (d Diagnostic) Unwrap() error {
	return d.Err
}

// Result is the outcome of transforming one module.
type Result struct {
	Code        string       // Transformed module text
	Sites       int          // Recognized call sites
	Optimized   int          // Sites replaced by compiled expressions
	Diagnostics []Diagnostic // One per site left unchanged because it failed
}

// Changed reports whether any site was rewritten.
func (r *Result) Changed() bool {
	return r.Optimized > 0
}

// Err combines the diagnostics into a single error, or nil.
func (r *Result) Err() error {
	var err error
	for _, d := range r.Diagnostics {
		err = multierr.Append(err, d)
	}
	return err
}
