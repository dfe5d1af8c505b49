// Package config loads aot.hcl, the inliner's configuration file.
//
// Every attribute is optional:
//
//	runtime_module = "@lifaon/rx-dom"
//	include        = "\\.(ts|mts)$"
//	concurrency    = 8
//	strip_types    = false
//
//	log {
//	  level  = "info"
//	  format = "console"
//	}
//
//	functions {
//	  inline = "compileReactiveHTMLAsGenericComponentTemplate"
//	  load   = "loadReactiveHTMLAsGenericComponentTemplate"
//	}
//
// Expressions are evaluated with an `env` object holding the process
// environment, so `runtime_module = env.RX_RUNTIME` works.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap/zapcore"

	"github.com/abiiranathan/rx-aot/aot/ast"
	"github.com/abiiranathan/rx-aot/aot/errors"
)

// Log formats.
const (
	FormatAuto    = "auto"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "aot.hcl"

// fileRoot mirrors the file layout. Pointers distinguish absent attributes
// from zero values.
type fileRoot struct {
	RuntimeModule *string         `hcl:"runtime_module,optional"`
	Include       *string         `hcl:"include,optional"`
	Concurrency   *int            `hcl:"concurrency,optional"`
	StripTypes    *bool           `hcl:"strip_types,optional"`
	Log           *logBlock       `hcl:"log,block"`
	Functions     *functionsBlock `hcl:"functions,block"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

type functionsBlock struct {
	Inline *string `hcl:"inline,optional"`
	Load   *string `hcl:"load,optional"`
}

// Config is the resolved configuration.
type Config struct {
	RuntimeModule  string
	Include        *regexp.Regexp
	Concurrency    int // 0 means one worker per CPU
	StripTypes     bool
	LogLevel       zapcore.Level
	LogFormat      string
	InlineFunction string
	LoadFunction   string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		RuntimeModule:  ast.DefaultRuntimeModule,
		Include:        ast.DefaultInclude,
		LogLevel:       zapcore.InfoLevel,
		LogFormat:      FormatAuto,
		InlineFunction: ast.DefaultInlineFunction,
		LoadFunction:   ast.DefaultLoadFunction,
	}
}

// Load reads and decodes the file at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse decodes configuration source. filename is used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, evalContext(), &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	return root.resolve()
}

// evalContext exposes the process environment as `env`.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// resolve applies defaults and validates every field.
func (r *fileRoot) resolve() (*Config, error) {
	c := Default()

	if r.RuntimeModule != nil {
		if strings.TrimSpace(*r.RuntimeModule) == "" {
			return nil, errors.InvalidConfig("runtime_module", "must not be empty")
		}
		c.RuntimeModule = *r.RuntimeModule
	}

	if r.Include != nil {
		re, err := regexp.Compile(*r.Include)
		if err != nil {
			return nil, errors.InvalidConfig("include", "invalid pattern %q: %v", *r.Include, err)
		}
		c.Include = re
	}

	if r.Concurrency != nil {
		if *r.Concurrency < 0 {
			return nil, errors.InvalidConfig("concurrency", "must be zero or positive, got %d", *r.Concurrency)
		}
		c.Concurrency = *r.Concurrency
	}

	if r.StripTypes != nil {
		c.StripTypes = *r.StripTypes
	}

	if r.Log != nil {
		if r.Log.Level != nil {
			level, err := zapcore.ParseLevel(*r.Log.Level)
			if err != nil {
				return nil, errors.InvalidConfig("log.level", "%v", err)
			}
			c.LogLevel = level
		}
		if r.Log.Format != nil {
			format, err := ParseFormat(*r.Log.Format)
			if err != nil {
				return nil, errors.InvalidConfig("log.format", "%v", err)
			}
			c.LogFormat = format
		}
	}

	if r.Functions != nil {
		if r.Functions.Inline != nil {
			c.InlineFunction = *r.Functions.Inline
		}
		if r.Functions.Load != nil {
			c.LoadFunction = *r.Functions.Load
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseFormat validates a log format name.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case FormatAuto, FormatJSON, FormatConsole:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q, expected %s, %s or %s", s, FormatAuto, FormatJSON, FormatConsole)
	}
}

// Validate checks fields that flags may also set.
func (c *Config) Validate() error {
	if !identifier.MatchString(c.InlineFunction) {
		return errors.InvalidConfig("functions.inline", "%q is not an identifier", c.InlineFunction)
	}
	if !identifier.MatchString(c.LoadFunction) {
		return errors.InvalidConfig("functions.load", "%q is not an identifier", c.LoadFunction)
	}
	if c.InlineFunction == c.LoadFunction {
		return errors.InvalidConfig("functions", "inline and load must differ, both are %q", c.InlineFunction)
	}
	if c.Concurrency < 0 {
		return errors.InvalidConfig("concurrency", "must be zero or positive, got %d", c.Concurrency)
	}
	return nil
}

// Options converts the configuration into Transformer options.
func (c *Config) Options() []ast.Option {
	return []ast.Option{
		ast.WithRuntimeModule(c.RuntimeModule),
		ast.WithFunctions(c.InlineFunction, c.LoadFunction),
		ast.WithConcurrency(c.Concurrency),
	}
}
