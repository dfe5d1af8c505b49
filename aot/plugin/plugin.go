// Package plugin exposes the inliner to build pipelines: a filtered transform
// hook and an esbuild plugin wrapping it.
package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/multierr"

	"github.com/abiiranathan/rx-aot/aot/ast"
)

// Output is the result of a hook invocation. Map is always nil; the inliner
// edits modules in place and does not produce source maps.
type Output struct {
	Code     string
	Map      *string
	Warnings []ast.Diagnostic
}

// Hook runs a Transformer over modules whose path matches its filter.
type Hook struct {
	transformer *ast.Transformer
	filter      *regexp.Regexp
}

// NewHook returns a hook for tr. A nil filter matches `.ts` modules.
func NewHook(tr *ast.Transformer, filter *regexp.Regexp) *Hook {
	if filter == nil {
		filter = ast.DefaultInclude
	}
	return &Hook{transformer: tr, filter: filter}
}

// Matches reports whether the hook handles path.
func (h *Hook) Matches(path string) bool {
	return h.filter.MatchString(filepath.ToSlash(path))
}

// Transform rewrites src when path matches the filter. It returns nil, nil
// for other modules so the host falls back to its default handling.
func (h *Hook) Transform(ctx context.Context, src []byte, path string) (*Output, error) {
	if !h.Matches(path) {
		return nil, nil
	}

	res, err := h.transformer.Transform(ctx, src, path)
	if err != nil {
		return nil, err
	}
	return &Output{Code: res.Code, Warnings: res.Diagnostics}, nil
}

// ESBuild adapts a hook into an esbuild plugin. Call-site diagnostics become
// build warnings; a module that cannot be transformed is a build error.
func ESBuild(h *Hook) api.Plugin {
	return api.Plugin{
		Name: "aot",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: h.filter.String(), Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					src, err := os.ReadFile(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}

					out, err := h.Transform(context.Background(), src, args.Path)
					if err != nil {
						return api.OnLoadResult{
							Errors: []api.Message{{Text: err.Error(), Location: &api.Location{File: args.Path}}},
						}, nil
					}
					if out == nil {
						return api.OnLoadResult{}, nil
					}

					dir := filepath.Dir(args.Path)
					result := api.OnLoadResult{
						Contents:   &out.Code,
						ResolveDir: dir,
						Loader:     LoaderFor(args.Path),
					}
					for _, d := range out.Warnings {
						result.Warnings = append(result.Warnings, api.Message{
							Text: d.Error(),
							Location: &api.Location{
								File:   d.Path,
								Line:   d.Line,
								Column: d.Column - 1,
							},
						})
					}
					return result, nil
				})
		},
	}
}

// LoaderFor picks the esbuild loader for a module path.
func LoaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".js", ".mjs", ".cjs":
		return api.LoaderJS
	default:
		return api.LoaderDefault
	}
}

// stripTypesTsconfig keeps every value import and class field semantics so
// the stripped module still exposes the call sites and imports the inliner
// works on.
const stripTypesTsconfig = `{"compilerOptions":{"useDefineForClassFields":true,"verbatimModuleSyntax":true}}`

// StripTypes is an ast.Normalizer that removes TypeScript syntax with esbuild,
// leaving ESNext JavaScript. JSX is preserved.
type StripTypes struct{}

// Normalize implements ast.Normalizer.
func (StripTypes) Normalize(ctx context.Context, src []byte, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := api.Transform(string(src), api.TransformOptions{
		Loader:      LoaderFor(path),
		Target:      api.ESNext,
		JSX:         api.JSXPreserve,
		Sourcefile:  path,
		TsconfigRaw: stripTypesTsconfig,
	})
	if len(res.Errors) > 0 {
		var err error
		for _, msg := range res.Errors {
			err = multierr.Append(err, messageError(msg))
		}
		return nil, err
	}
	return res.Code, nil
}

// messageError is an esbuild message as an error.
type messageError api.Message

func (m messageError) Error() string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}
