package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abiiranathan/rx-aot/aot/compiler"
	"github.com/abiiranathan/rx-aot/aot/errors"
)

func extractFirst(t *testing.T, src string) (*TemplateConfig, error) {
	t.Helper()
	tree, idx := parseModule(t, src)
	require.NotEmpty(t, idx.sites, "no call site in %q", src)
	return tree.extract(idx.sites[0], idx.defaults)
}

func TestExtract_TemplateSources(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want TemplateSource
	}{
		{
			name: "double quoted string",
			src:  `compileReactiveHTMLAsGenericComponentTemplate({ html: "<p>a</p>" });`,
			want: TemplateSource{HTML: "<p>a</p>"},
		},
		{
			name: "escapes are decoded",
			src:  `compileReactiveHTMLAsGenericComponentTemplate({ html: '<p>\'A\x42\n</p>' });`,
			want: TemplateSource{HTML: "<p>'AB\n</p>"},
		},
		{
			name: "static template literal",
			src:  "compileReactiveHTMLAsGenericComponentTemplate({ html: `<p>\n  a\n</p>` });",
			want: TemplateSource{HTML: "<p>\n  a\n</p>"},
		},
		{
			name: "parenthesized value",
			src:  `compileReactiveHTMLAsGenericComponentTemplate({ html: ("<p></p>") });`,
			want: TemplateSource{HTML: "<p></p>"},
		},
		{
			name: "url relative to module",
			src:  `loadReactiveHTMLAsGenericComponentTemplate({ url: new URL("./a.html", import.meta.url) });`,
			want: TemplateSource{File: "/x/y/a.html"},
		},
		{
			name: "url through href",
			src:  `loadReactiveHTMLAsGenericComponentTemplate({ url: new URL('../b.html', import.meta.url).href });`,
			want: TemplateSource{File: "/x/b.html"},
		},
		{
			name: "url query is dropped",
			src:  `loadReactiveHTMLAsGenericComponentTemplate({ url: new URL("./a.html?raw", import.meta.url) });`,
			want: TemplateSource{File: "/x/y/a.html"},
		},
		{
			name: "default import",
			src: `import template from "./views/t.html";
compileReactiveHTMLAsGenericComponentTemplate({ html: template });`,
			want: TemplateSource{File: "/x/y/views/t.html"},
		},
		{
			name: "shorthand default import",
			src: `import html from "./t.html";
compileReactiveHTMLAsGenericComponentTemplate({ html });`,
			want: TemplateSource{File: "/x/y/t.html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := extractFirst(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Source)
		})
	}
}

func TestExtract_CodeFragments(t *testing.T) {
	src := `compileReactiveHTMLAsGenericComponentTemplate({
  html: "<app-x></app-x>",
  customElements: [
    AppX,
  ],
  modifiers: [tooltip],
});`

	cfg, err := extractFirst(t, src)
	require.NoError(t, err)
	assert.Equal(t, compiler.Lines{"[", "    AppX,", "  ]"}, cfg.CustomElements)
	assert.Equal(t, compiler.Lines{"[tooltip]"}, cfg.Modifiers)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind errors.Kind
	}{
		{"missing source", `compileReactiveHTMLAsGenericComponentTemplate({});`, errors.KindMissingTemplateSource},
		{"only custom elements", `compileReactiveHTMLAsGenericComponentTemplate({ customElements: [] });`, errors.KindMissingTemplateSource},
		{"unknown property", `compileReactiveHTMLAsGenericComponentTemplate({ html: "", foo: 1 });`, errors.KindUnknownProperty},
		{"html and url", `compileReactiveHTMLAsGenericComponentTemplate({ html: "", url: new URL("./a.html", import.meta.url) });`, errors.KindDuplicateTemplateSource},
		{"html twice", `compileReactiveHTMLAsGenericComponentTemplate({ html: "", html: "" });`, errors.KindDuplicateTemplateSource},
		{"spread", `compileReactiveHTMLAsGenericComponentTemplate({ ...options });`, errors.KindUnsupportedArgumentShape},
		{"computed key", `compileReactiveHTMLAsGenericComponentTemplate({ ["html"]: "" });`, errors.KindUnsupportedArgumentShape},
		{"string key", `compileReactiveHTMLAsGenericComponentTemplate({ "html": "" });`, errors.KindUnsupportedArgumentShape},
		{"method", `compileReactiveHTMLAsGenericComponentTemplate({ html() { return "" } });`, errors.KindUnsupportedArgumentShape},
		{"no argument", `compileReactiveHTMLAsGenericComponentTemplate();`, errors.KindMalformedCall},
		{"two arguments", `compileReactiveHTMLAsGenericComponentTemplate({ html: "" }, {});`, errors.KindMalformedCall},
		{"non-object argument", `compileReactiveHTMLAsGenericComponentTemplate(options);`, errors.KindMalformedCall},
		{"plain string url", `loadReactiveHTMLAsGenericComponentTemplate({ url: "./a.html" });`, errors.KindInvalidURLFormat},
		{"dynamic url", `loadReactiveHTMLAsGenericComponentTemplate({ url: new URL(path, import.meta.url) });`, errors.KindInvalidURLFormat},
		{"url without base", `loadReactiveHTMLAsGenericComponentTemplate({ url: new URL("./a.html") });`, errors.KindInvalidURLFormat},
		{"url with other base", `loadReactiveHTMLAsGenericComponentTemplate({ url: new URL("./a.html", location.href) });`, errors.KindInvalidURLFormat},
		{"remote url", `loadReactiveHTMLAsGenericComponentTemplate({ url: new URL("https://cdn.example.com/a.html", import.meta.url) });`, errors.KindInvalidURLFormat},
		{"interpolated template", "compileReactiveHTMLAsGenericComponentTemplate({ html: `<p>${x}</p>` });", errors.KindUnoptimizableHTMLProperty},
		{"concatenation", `compileReactiveHTMLAsGenericComponentTemplate({ html: "<p>" + "</p>" });`, errors.KindUnoptimizableHTMLProperty},
		{"call", `compileReactiveHTMLAsGenericComponentTemplate({ html: render() });`, errors.KindUnoptimizableHTMLProperty},
		{"not imported", `const tpl = "<p></p>"; compileReactiveHTMLAsGenericComponentTemplate({ html: tpl });`, errors.KindUnresolvedImport},
		{"named import", `import { tpl } from "./t.html"; compileReactiveHTMLAsGenericComponentTemplate({ html: tpl });`, errors.KindUnresolvedImport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractFirst(t, tt.src)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err), "error: %v", err)
		})
	}
}

func TestExtract_UnknownPropertyNamesKey(t *testing.T) {
	_, err := extractFirst(t, `compileReactiveHTMLAsGenericComponentTemplate({ html: "<div></div>", foo: 1 });`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foo")
	assert.Contains(t, err.Error(), string(errors.KindUnknownProperty))
}

func TestScan_CallSites(t *testing.T) {
	src := `import x from "./x.html";
import { a, b as c } from "m";
other({ html: "" });
obj.compileReactiveHTMLAsGenericComponentTemplate({ html: "" });
const t1 = compileReactiveHTMLAsGenericComponentTemplate({ html: "" });
async function f() {
  return loadReactiveHTMLAsGenericComponentTemplate({ url: new URL("./a.html", import.meta.url) });
}
`
	_, idx := parseModule(t, src)

	require.Len(t, idx.sites, 2)
	assert.Equal(t, CallInline, idx.sites[0].Kind)
	assert.Equal(t, 5, idx.sites[0].Line)
	assert.Equal(t, 12, idx.sites[0].Column)
	assert.Equal(t, CallLoad, idx.sites[1].Kind)
	assert.Equal(t, "loadReactiveHTMLAsGenericComponentTemplate", idx.sites[1].Function)

	assert.Equal(t, map[string]string{"x": "./x.html"}, idx.defaults)

	require.Len(t, idx.imports.decls, 2)
	assert.True(t, idx.imports.has("m", "a"))
	assert.True(t, idx.imports.has("m", "b"), "imported name, not alias")
	assert.False(t, idx.imports.has("m", "c"))
}

func TestResolveModuleURL(t *testing.T) {
	tests := []struct {
		ref, module, want string
	}{
		{"./a.html", "/x/y/mod.ts", "/x/y/a.html"},
		{"a.html", "/x/y/mod.ts", "/x/y/a.html"},
		{"../a.html", "/x/y/mod.ts", "/x/a.html"},
		{"/abs/a.html", "/x/y/mod.ts", "/abs/a.html"},
		{"./with%20space.html", "/x/y/mod.ts", "/x/y/with space.html"},
		{"file:///etc/t.html", "/x/y/mod.ts", "/etc/t.html"},
	}
	for _, tt := range tests {
		got, err := resolveModuleURL(tt.ref, tt.module)
		require.NoError(t, err, tt.ref)
		assert.Equal(t, tt.want, got, tt.ref)
	}

	_, err := resolveModuleURL("http://example.com/a.html", "/x/y/mod.ts")
	assert.True(t, errors.IsKind(err, errors.KindInvalidURLFormat))
}
