// Package ast is the ahead-of-time inliner for reactive HTML templates.
//
// It parses a JavaScript or TypeScript module, finds calls to
// compileReactiveHTMLAsGenericComponentTemplate and
// loadReactiveHTMLAsGenericComponentTemplate, compiles the template each call
// describes, and replaces the call with the generated expression, importing
// the runtime helpers that expression needs:
//
//	tr := ast.New()
//	res, err := tr.Transform(ctx, src, "/app/src/component.ts")
//
// A call site that cannot be optimized is left unchanged and reported in
// Result.Diagnostics; only a module that fails to parse or print fails the
// transform.
package ast

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abiiranathan/rx-aot/aot/compiler"
	"github.com/abiiranathan/rx-aot/aot/errors"
)

// Transformer rewrites modules. It is safe for concurrent use; each Transform
// call owns its tree.
type Transformer struct {
	compiler      TemplateCompiler
	reader        FileReader
	normalizer    Normalizer
	logger        *zap.Logger
	runtimeModule string
	functions     map[string]CallKind
	concurrency   int
	cache         *compileCache
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithCompiler sets the template compiler. Defaults to compiler.New().
func WithCompiler(c TemplateCompiler) Option {
	return func(tr *Transformer) { tr.compiler = c }
}

// WithFileReader sets how template files are read. Defaults to OSReader.
func WithFileReader(r FileReader) Option {
	return func(tr *Transformer) { tr.reader = r }
}

// WithNormalizer runs n over every module before it is parsed.
func WithNormalizer(n Normalizer) Option {
	return func(tr *Transformer) { tr.normalizer = n }
}

// WithLogger overrides the package logger for this Transformer.
func WithLogger(l *zap.Logger) Option {
	return func(tr *Transformer) { tr.logger = l }
}

// WithRuntimeModule sets the module generated code imports helpers from.
func WithRuntimeModule(path string) Option {
	return func(tr *Transformer) { tr.runtimeModule = path }
}

// WithFunctions renames the recognized template functions. Empty names keep
// the defaults.
func WithFunctions(inline, load string) Option {
	return func(tr *Transformer) {
		if inline == "" {
			inline = DefaultInlineFunction
		}
		if load == "" {
			load = DefaultLoadFunction
		}
		tr.functions = map[string]CallKind{
			inline: CallInline,
			load:   CallLoad,
		}
	}
}

// WithConcurrency bounds how many call sites are compiled at once.
// Values below 1 mean one per CPU.
func WithConcurrency(n int) Option {
	return func(tr *Transformer) { tr.concurrency = n }
}

// New returns a Transformer with the given options applied over defaults.
func New(opts ...Option) *Transformer {
	tr := &Transformer{
		compiler:      compiler.New(),
		reader:        OSReader{},
		runtimeModule: DefaultRuntimeModule,
		functions: map[string]CallKind{
			DefaultInlineFunction: CallInline,
			DefaultLoadFunction:   CallLoad,
		},
		cache: newCompileCache(),
	}
	for _, opt := range opts {
		opt(tr)
	}
	if tr.concurrency < 1 {
		tr.concurrency = max(runtime.NumCPU(), 1)
	}
	return tr
}

// siteResult is the outcome of one call site. Tasks write only their own
// slot; the orchestrator reads slots after every task settled.
type siteResult struct {
	site    CallSite
	config  *TemplateConfig
	indent  string            // Leading whitespace of the call's line
	text    string            // Replacement for the call expression
	symbols *compiler.Symbols // Runtime helpers to import
	err     error
}

// Transform rewrites the module src read from path.
//
// Algorithm:
// 1. Phase 1: Parse once and index call sites, default imports and imports
// 2. Phase 2: Extract each site's configuration (tree access, sequential)
// 3. Phase 3: Read, compile and validate templates concurrently
// 4. Phase 4: Apply successful sites in source order, splice and imports
// together, and print the module
//
// Failures in phases 2 to 4 are isolated to their call site. Parse and print
// failures, and context cancellation, fail the whole module.
func (tr *Transformer) Transform(ctx context.Context, src []byte, path string) (*Result, error) {
	log := tr.log().With(zap.String("path", path))

	if err := tr.compiler.Setup(ctx); err != nil {
		return nil, fmt.Errorf("setup template compiler: %w", err)
	}

	if tr.normalizer != nil {
		normalized, err := tr.normalizer.Normalize(ctx, src, path)
		if err != nil {
			return nil, fmt.Errorf("normalize %s: %w", path, err)
		}
		src = normalized
	}

	// Phase 1: single walk over the module
	tree, err := Parse(ctx, src, path)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	idx := tree.scan(tr.functions)
	result := &Result{Sites: len(idx.sites)}
	if len(idx.sites) == 0 {
		result.Code = string(src)
		return result, nil
	}
	log.Debug("Call sites found.", zap.Int("sites", len(idx.sites)))

	// Phase 2: extraction reads the tree, so it stays on this goroutine
	results := make([]siteResult, len(idx.sites))
	for i, site := range idx.sites {
		results[i].site = site
		results[i].indent = indentOf(tree.Source, site.Node.StartByte())
		results[i].config, results[i].err = tree.extract(site, idx.defaults)
	}

	// Phase 3: independent compilations
	g := new(errgroup.Group)
	g.SetLimit(tr.concurrency)
	for i := range results {
		if results[i].err != nil {
			continue
		}
		g.Go(func() error {
			r := &results[i]
			code, symbols, err := tr.dispatch(ctx, r.config)
			if err == nil {
				r.text, err = spliceText(ctx, r.site.Kind, code, r.indent)
			}
			r.symbols, r.err = symbols, err
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 4: sequential application in source order
	var splices []edit
	for i := range results {
		r := &results[i]
		if enclosing, ok := containing(splices, r.site); ok {
			log.Debug("Nested call site superseded by enclosing site.",
				zap.String("function", r.site.Function),
				zap.Int("line", r.site.Line),
				zap.Uint32("enclosing_start", enclosing.start),
			)
			continue
		}

		if r.err == nil {
			r.err = tr.apply(tree, r, idx.imports, &splices)
		}
		if r.err == nil {
			result.Optimized++
			continue
		}

		d := Diagnostic{
			Function: r.site.Function,
			Path:     path,
			Line:     r.site.Line,
			Column:   r.site.Column,
			Err:      r.err,
		}
		result.Diagnostics = append(result.Diagnostics, d)
		log.Warn(d.Error(),
			zap.String("function", d.Function),
			zap.Int("line", d.Line),
			zap.Int("column", d.Column),
			zap.Error(d.Err),
		)
	}

	edits := append(splices, idx.imports.edits()...)
	code, err := tree.print(ctx, edits)
	if err != nil {
		return nil, err
	}

	result.Code = code
	log.Debug("Module transformed.",
		zap.Int("optimized", result.Optimized),
		zap.Int("failed", len(result.Diagnostics)),
	)
	return result, nil
}

// containing returns the applied splice that encloses site, if any. The
// enclosing template argument already captured the nested call's text.
func containing(splices []edit, site CallSite) (edit, bool) {
	start, end := site.span()
	for _, prev := range splices {
		if prev.contains(edit{start: start, end: end}) {
			return prev, true
		}
	}
	return edit{}, false
}

// apply records a successful site's splice and import additions, or neither.
func (tr *Transformer) apply(tree *Tree, r *siteResult, imports *importTable, splices *[]edit) error {
	start, end := r.site.span()
	e := edit{start: start, end: end, text: r.text}

	for _, prev := range *splices {
		if prev.overlaps(e) {
			return errors.New(errors.PhasePrint, errors.KindStructural).
				Path(tree.Path).
				Detail("call site overlaps an optimized call site at bytes %d..%d", prev.start, prev.end).
				Build()
		}
	}

	names := r.symbols.Values()
	if err := imports.check(tr.runtimeModule, names); err != nil {
		return err
	}

	*splices = append(*splices, e)
	imports.add(tr.runtimeModule, names)
	return nil
}

func (tr *Transformer) log() *zap.Logger {
	if tr.logger != nil {
		return tr.logger
	}
	return Logger()
}
