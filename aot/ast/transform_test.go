package ast

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/tools/txtar"

	"github.com/abiiranathan/rx-aot/aot/compiler"
	"github.com/abiiranathan/rx-aot/aot/errors"
)

func TestTransform_InlineIsNotWrapped(t *testing.T) {
	stub := newStub()
	res := transform(t, `export const t = compileReactiveHTMLAsGenericComponentTemplate({ html: "<p></p>" });`, WithCompiler(stub))

	require.Empty(t, res.Diagnostics)
	assert.Contains(t, res.Code, "export const t = (() => createDocumentFragment());")
	assert.NotContains(t, res.Code, "Promise.resolve")
	assert.Equal(t, []string{"<p></p>"}, stub.calls())
}

func TestTransform_LoadIsWrapped(t *testing.T) {
	stub := newStub()
	res := transform(t,
		`export const t = loadReactiveHTMLAsGenericComponentTemplate({ url: new URL("./a.html", import.meta.url) });`,
		WithCompiler(stub),
		WithFileReader(templates(map[string]string{"/x/y/a.html": "<a></a>"})),
	)

	require.Empty(t, res.Diagnostics)
	assert.Contains(t, res.Code, "export const t = Promise.resolve(\n  () => createDocumentFragment()\n);")
	assert.Equal(t, []string{"<a></a>"}, stub.calls(), "file content is compiled")
}

func TestTransform_FailedSitesAreUntouched(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind errors.Kind
	}{
		{
			name: "missing template source",
			src:  "const t = compileReactiveHTMLAsGenericComponentTemplate({ customElements: [] });\n",
			kind: errors.KindMissingTemplateSource,
		},
		{
			name: "unknown property",
			src:  "const t = compileReactiveHTMLAsGenericComponentTemplate({ html: \"<div>{{x}}</div>\", foo: 1 });\n",
			kind: errors.KindUnknownProperty,
		},
		{
			name: "absent template file",
			src:  "const t = loadReactiveHTMLAsGenericComponentTemplate({ url: new URL(\"./t.html\", import.meta.url) });\n",
			kind: errors.KindReadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := transform(t, tt.src, WithFileReader(templates(nil)))

			assert.Equal(t, tt.src, res.Code)
			assert.Equal(t, 1, res.Sites)
			assert.Zero(t, res.Optimized)
			require.Len(t, res.Diagnostics, 1)

			d := res.Diagnostics[0]
			assert.Equal(t, tt.kind, errors.KindOf(d.Err))
			assert.Equal(t, "/x/y/mod.ts", d.Path)
			assert.Equal(t, 1, d.Line)
			assert.Equal(t, 11, d.Column)
			assert.True(t, strings.HasPrefix(d.Error(), "Failed to optimize '"+d.Function+"' from file '/x/y/mod.ts': "), d.Error())
			assert.Error(t, res.Err())
		})
	}
}

func TestTransform_FailuresAreIsolated(t *testing.T) {
	src := `const a = compileReactiveHTMLAsGenericComponentTemplate({ html: "<a></a>" });
const b = compileReactiveHTMLAsGenericComponentTemplate({ oops: true });
const c = loadReactiveHTMLAsGenericComponentTemplate({ url: new URL("./missing.html", import.meta.url) });
const d = compileReactiveHTMLAsGenericComponentTemplate({ html: "<d></d>" });
`
	res := transform(t, src, WithCompiler(newStub()), WithFileReader(templates(nil)))

	assert.Equal(t, 4, res.Sites)
	assert.Equal(t, 2, res.Optimized)
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, 2, res.Diagnostics[0].Line)
	assert.Equal(t, 3, res.Diagnostics[1].Line)

	want := `import { createDocumentFragment } from "@lifaon/rx-dom";
const a = (() => createDocumentFragment());
const b = compileReactiveHTMLAsGenericComponentTemplate({ oops: true });
const c = loadReactiveHTMLAsGenericComponentTemplate({ url: new URL("./missing.html", import.meta.url) });
const d = (() => createDocumentFragment());
`
	if diff := cmp.Diff(want, res.Code); diff != "" {
		t.Errorf("Transform() mismatch (-want +got):\n%s", diff)
	}

	err := res.Err()
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnknownProperty) || errors.IsKind(err, errors.KindReadFailed))
}

func TestTransform_CollaboratorErrors(t *testing.T) {
	tests := []struct {
		name string
		stub *stubCompiler
		kind errors.Kind
	}{
		{
			name: "compiler error",
			stub: &stubCompiler{err: fmt.Errorf("boom")},
			kind: errors.KindCompileFailed,
		},
		{
			name: "statement instead of expression",
			stub: &stubCompiler{code: compiler.Lines{"const a = 1;"}},
			kind: errors.KindInvalidGeneratedTree,
		},
		{
			name: "several statements",
			stub: &stubCompiler{code: compiler.Lines{"a;", "b;"}},
			kind: errors.KindInvalidGeneratedTree,
		},
		{
			name: "invalid code",
			stub: &stubCompiler{code: compiler.Lines{"() => {"}},
			kind: errors.KindInvalidGeneratedTree,
		},
	}

	src := "f(compileReactiveHTMLAsGenericComponentTemplate({ html: '' }));\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := transform(t, src, WithCompiler(tt.stub))
			assert.Equal(t, src, res.Code)
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, tt.kind, errors.KindOf(res.Diagnostics[0].Err), "%v", res.Diagnostics[0])
		})
	}
}

func TestTransform_PrimaryExpressionsAreNotParenthesized(t *testing.T) {
	stub := &stubCompiler{code: compiler.Lines{"createDocumentFragment()"}, symbols: []string{"createDocumentFragment"}}
	res := transform(t, "const t = compileReactiveHTMLAsGenericComponentTemplate({ html: '' }).firstChild;\n", WithCompiler(stub))

	require.Empty(t, res.Diagnostics)
	assert.Contains(t, res.Code, "const t = createDocumentFragment().firstChild;")
}

func TestTransform_NestedSites(t *testing.T) {
	src := `const t = compileReactiveHTMLAsGenericComponentTemplate({
  html: "<p></p>",
  customElements: [compileReactiveHTMLAsGenericComponentTemplate({ html: "<i></i>" })],
});
`
	res := transform(t, src, WithCompiler(newStub()), WithConcurrency(1))

	assert.Equal(t, 2, res.Sites)
	assert.Equal(t, 1, res.Optimized)
	assert.Empty(t, res.Diagnostics)
	assert.Contains(t, res.Code, "const t = (() => createDocumentFragment());")
}

func TestTransform_Reindent(t *testing.T) {
	stub := &stubCompiler{code: compiler.Lines{"() => {", "  return 1;", "}"}}
	src := "class A {\n  static t = compileReactiveHTMLAsGenericComponentTemplate({ html: '' });\n}\n"

	res := transform(t, src, WithCompiler(stub))
	require.Empty(t, res.Diagnostics)
	assert.Equal(t, "class A {\n  static t = (() => {\n    return 1;\n  });\n}\n", res.Code)
}

func TestTransform_ReindentKeepsTemplateLiterals(t *testing.T) {
	stub := &stubCompiler{code: compiler.Lines{"() => {", "  return `a", "b ${`c", "d`}`;", "}"}}

	src := "class A {\n    static t = compileReactiveHTMLAsGenericComponentTemplate({ html: '' });\n}\n"
	res := transform(t, src, WithCompiler(stub))
	require.Empty(t, res.Diagnostics)
	assert.Equal(t, "class A {\n    static t = (() => {\n      return `a\nb ${`c\nd`}`;\n    });\n}\n", res.Code)

	src = "class A {\n    static t = loadReactiveHTMLAsGenericComponentTemplate({ html: '' });\n}\n"
	res = transform(t, src, WithCompiler(stub))
	require.Empty(t, res.Diagnostics)
	assert.Equal(t, "class A {\n    static t = Promise.resolve(\n      () => {\n        return `a\nb ${`c\nd`}`;\n      }\n    );\n}\n", res.Code)
}

func TestTransform_CustomElementsTemplateLiteralIsVerbatim(t *testing.T) {
	src := "function f() {\n    return compileReactiveHTMLAsGenericComponentTemplate({\n      html: '<x-y></x-y>',\n      customElements: [`x\ny`],\n    });\n}\n"

	res := transform(t, src)
	require.Empty(t, res.Diagnostics)
	assert.Contains(t, res.Code, "generateCreateElementFunctionWithCustomElements(")
	assert.Contains(t, res.Code, "`x\n    y`", "only the compiler's own block indent applies")
	assert.NotContains(t, res.Code, "`x\n        y`")
}

func TestTransform_CompilationsAreCached(t *testing.T) {
	stub := newStub()
	src := strings.Repeat("compileReactiveHTMLAsGenericComponentTemplate({ html: '<p></p>' });\n", 3)

	tr := New(WithCompiler(stub), WithConcurrency(1))
	for range 2 {
		res, err := tr.Transform(context.Background(), []byte(src), "/x/y/mod.ts")
		require.NoError(t, err)
		assert.Equal(t, 3, res.Optimized)
	}
	assert.Len(t, stub.calls(), 1)
	assert.Equal(t, 1, tr.cache.len())
}

func TestTransform_ConcurrentSitesKeepSourceOrder(t *testing.T) {
	var src strings.Builder
	files := map[string]string{}
	for i := range 40 {
		fmt.Fprintf(&src, "export const t%d = loadReactiveHTMLAsGenericComponentTemplate({ url: new URL(\"./t%d.html\", import.meta.url) });\n", i, i)
		files[fmt.Sprintf("/x/y/t%d.html", i)] = fmt.Sprintf("<p>%d</p>", i)
	}

	res := transform(t, src.String(),
		WithFileReader(templates(files)),
		WithConcurrency(8),
	)
	require.Empty(t, res.Diagnostics)
	assert.Equal(t, 40, res.Optimized)

	last := -1
	for i := range 40 {
		pos := strings.Index(res.Code, fmt.Sprintf("createTextNode('%d')", i))
		require.Greater(t, pos, last, "template %d out of order", i)
		last = pos
	}
	assert.Equal(t, 1, strings.Count(res.Code, "from \"@lifaon/rx-dom\""))
}

func TestTransform_Options(t *testing.T) {
	src := "export const t = inline({ html: '' });\nexport const u = compileReactiveHTMLAsGenericComponentTemplate({ html: '' });\n"

	res := transform(t, src,
		WithCompiler(newStub()),
		WithFunctions("inline", ""),
		WithRuntimeModule("rx"),
	)

	assert.Equal(t, 1, res.Sites, "renamed inline function replaces the default one")
	assert.Contains(t, res.Code, "import { createDocumentFragment } from \"rx\";\n")
	assert.Contains(t, res.Code, "export const u = compileReactiveHTMLAsGenericComponentTemplate({ html: '' });")
}

func TestTransform_NoSites(t *testing.T) {
	src := "export const answer: number = 42 // untouched\n"
	res := transform(t, src, WithCompiler(newStub()))

	assert.Equal(t, src, res.Code)
	assert.Zero(t, res.Sites)
	assert.False(t, res.Changed())
	assert.NoError(t, res.Err())
}

func TestTransform_Languages(t *testing.T) {
	stub := newStub()
	tests := map[string]string{
		"mod.js":  "export const t = compileReactiveHTMLAsGenericComponentTemplate({ html: '' });\n",
		"mod.tsx": "export const v = <div />;\nexport const t = compileReactiveHTMLAsGenericComponentTemplate({ html: '' });\n",
		"mod.ts":  "export const t: Template = compileReactiveHTMLAsGenericComponentTemplate({ html: '' }) as Template;\n",
	}
	for path, src := range tests {
		t.Run(path, func(t *testing.T) {
			res, err := New(WithCompiler(stub)).Transform(context.Background(), []byte(src), filepath.Join("/x", path))
			require.NoError(t, err)
			assert.Equal(t, 1, res.Optimized)
		})
	}
}

func TestTransform_FatalErrors(t *testing.T) {
	t.Run("syntax error", func(t *testing.T) {
		_, err := New(WithCompiler(newStub())).Transform(context.Background(), []byte("const = ;"), "/x/mod.ts")
		require.Error(t, err)
		assert.Equal(t, errors.KindSyntax, errors.KindOf(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(WithCompiler(newStub())).Transform(ctx, []byte("const a = 1;"), "/x/mod.ts")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("normalizer failure", func(t *testing.T) {
		boom := stderrors.New("boom")
		_, err := New(WithCompiler(newStub()), WithNormalizer(normalizerFunc(func([]byte) ([]byte, error) {
			return nil, boom
		}))).Transform(context.Background(), []byte("const a = 1;"), "/x/mod.ts")
		assert.ErrorIs(t, err, boom)
	})
}

type normalizerFunc func([]byte) ([]byte, error)

func (f normalizerFunc) Normalize(_ context.Context, src []byte, _ string) ([]byte, error) {
	return f(src)
}

func TestTransform_Normalizer(t *testing.T) {
	n := normalizerFunc(func(src []byte) ([]byte, error) {
		return bytes.ReplaceAll(src, []byte("declare "), nil), nil
	})
	res := transform(t, "declare const t = compileReactiveHTMLAsGenericComponentTemplate({ html: '' });\n",
		WithCompiler(newStub()),
		WithNormalizer(n),
	)
	assert.Contains(t, res.Code, "\nconst t = (() => createDocumentFragment());")
}

func TestTransform_LogsDiagnostics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	transform(t, "compileReactiveHTMLAsGenericComponentTemplate({ foo: 1 });\n",
		WithCompiler(newStub()),
		WithLogger(zap.New(core)),
	)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "Failed to optimize 'compileReactiveHTMLAsGenericComponentTemplate' from file '/x/y/mod.ts'")

	fields := warnings[0].ContextMap()
	assert.Equal(t, "/x/y/mod.ts", fields["path"])
	assert.Equal(t, int64(1), fields["line"])
	assert.Contains(t, fields["error"], "foo")
}

func TestTransform_LogsCacheHitsToOptionLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	src := "compileReactiveHTMLAsGenericComponentTemplate({ html: '<p></p>' });\n"
	tr := New(WithCompiler(newStub()), WithLogger(zap.New(core)))
	for range 2 {
		_, err := tr.Transform(context.Background(), []byte(src), "/x/y/mod.ts")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, logs.FilterMessage("Template compilation cache hit.").Len())
}

// TestTransform_Golden runs the archives in testdata. Each archive holds an
// input.ts module, the expected output.ts, optional template files resolved
// relative to /app, and an optional diagnostics section listing error kinds.
func TestTransform_Golden(t *testing.T) {
	archives, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	require.NoError(t, err)
	require.NotEmpty(t, archives)

	for _, file := range archives {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(file)
			require.NoError(t, err)

			sections := map[string]string{}
			fsys := fstest.MapFS{}
			for _, f := range ar.Files {
				sections[f.Name] = string(f.Data)
				if strings.HasSuffix(f.Name, ".html") {
					fsys["app/"+f.Name] = &fstest.MapFile{Data: bytes.TrimSpace(f.Data)}
				}
			}
			require.Contains(t, sections, "input.ts")
			require.Contains(t, sections, "output.ts")

			tr := New(WithFileReader(FSReader{FS: fsys}))
			res, err := tr.Transform(context.Background(), []byte(sections["input.ts"]), "/app/input.ts")
			require.NoError(t, err)

			if diff := cmp.Diff(sections["output.ts"], res.Code); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}

			want := strings.Fields(sections["diagnostics"])
			got := make([]string, 0, len(res.Diagnostics))
			for _, d := range res.Diagnostics {
				got = append(got, string(errors.KindOf(d.Err)))
			}
			assert.Equal(t, want, got)
		})
	}
}
