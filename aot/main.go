// Command aot inlines reactive HTML templates into JavaScript and TypeScript
// modules ahead of time.
//
//	aot [flags] [path ...]
//
// Each path is a module or a directory searched for modules matching the
// configured include pattern. Transformed code is printed to stdout unless
// -write is given.
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/abiiranathan/rx-aot/aot/ast"
	"github.com/abiiranathan/rx-aot/aot/compiler"
	"github.com/abiiranathan/rx-aot/aot/config"
	"github.com/abiiranathan/rx-aot/aot/plugin"
)

// Report is the JSON structure emitted with -json.
type Report struct {
	Files []FileReport `json:"files"`
}

// FileReport summarizes one module.
type FileReport struct {
	Path        string       `json:"path"`
	Sites       int          `json:"sites"`
	Optimized   int          `json:"optimized"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Diagnostic is a call site that was left untouched.
type Diagnostic struct {
	Function string `json:"function"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Message  string `json:"message"`
}

// Failed reports whether any module could not be transformed.
func (r *Report) Failed() bool {
	for _, f := range r.Files {
		if f.Error != "" {
			return true
		}
	}
	return false
}

type options struct {
	configPath string
	write      bool
	jsonOut    bool
	compress   bool
	stripTypes bool
	logLevel   string
	logFormat  string
	paths      []string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run is the CLI body. It returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := newLogger(cfg, stderr)
	defer logger.Sync() //nolint:errcheck
	ast.SetLogger(logger.Named("ast"))
	compiler.SetLogger(logger.Named("compiler"))

	trOpts := append(cfg.Options(), ast.WithLogger(logger.Named("transform")))
	if cfg.StripTypes {
		trOpts = append(trOpts, ast.WithNormalizer(plugin.StripTypes{}))
	}
	tr := ast.New(trOpts...)

	files, err := collectFiles(opts.paths, cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	report := &Report{}
	for _, path := range files {
		fr := transformFile(ctx, tr, path, opts.write, stdout, opts.jsonOut, logger)
		report.Files = append(report.Files, fr)
	}

	switch {
	case opts.jsonOut:
		if err := encodeJSON(stdout, report, opts.compress); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	default:
		printReport(stderr, report, isTerminal(stderr))
	}

	if report.Failed() {
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fset := flag.NewFlagSet("aot", flag.ContinueOnError)
	fset.SetOutput(stderr)

	opts := &options{}
	fset.StringVar(&opts.configPath, "config", "", "Path to the HCL configuration file (default ./"+config.DefaultFile+" when present)")
	fset.BoolVar(&opts.write, "write", false, "Rewrite modules in place instead of printing them")
	fset.BoolVar(&opts.jsonOut, "json", false, "Emit a JSON report on stdout")
	fset.BoolVar(&opts.compress, "compress", false, "Gzip-compress the JSON report")
	fset.BoolVar(&opts.stripTypes, "strip-types", false, "Strip TypeScript syntax before inlining")
	fset.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fset.StringVar(&opts.logFormat, "log-format", "", "Log format: auto, json or console")

	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	opts.paths = fset.Args()
	if len(opts.paths) == 0 {
		opts.paths = []string{"."}
	}
	return opts, nil
}

// loadConfig reads the configuration file and applies flag overrides. A
// missing default file is not an error.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()

	path := opts.configPath
	if path == "" {
		path = config.DefaultFile
	}

	loaded, err := config.Load(path)
	switch {
	case err == nil:
		cfg = loaded
	case opts.configPath == "" && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if opts.stripTypes {
		cfg.StripTypes = true
	}
	if opts.logLevel != "" {
		level, err := zapcore.ParseLevel(opts.logLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid -log-level: %w", err)
		}
		cfg.LogLevel = level
	}
	if opts.logFormat != "" {
		format, err := config.ParseFormat(opts.logFormat)
		if err != nil {
			return nil, fmt.Errorf("invalid -log-format: %w", err)
		}
		cfg.LogFormat = format
	}
	if opts.compress && !opts.jsonOut {
		return nil, errors.New("-compress requires -json")
	}
	return cfg, cfg.Validate()
}

// newLogger builds a console logger for terminals and a JSON logger
// otherwise, unless the format is forced.
func newLogger(cfg *config.Config, w io.Writer) *zap.Logger {
	format := cfg.LogFormat
	if format == config.FormatAuto {
		format = config.FormatJSON
		if isTerminal(w) {
			format = config.FormatConsole
		}
	}

	var encoder zapcore.Encoder
	if format == config.FormatConsole {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(ec)
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(cfg.LogLevel))
	return zap.New(core)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// collectFiles expands directories into matching modules. Explicit file
// arguments are taken as given.
func collectFiles(paths []string, cfg *config.Config) ([]string, error) {
	var files []string
	for _, p := range paths {
		abs := mustAbs(p)
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, abs)
			continue
		}
		found, err := ast.FindModuleFiles(abs, cfg.Include)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func transformFile(ctx context.Context, tr *ast.Transformer, path string, write bool, stdout io.Writer, quiet bool, logger *zap.Logger) FileReport {
	fr := FileReport{Path: path}

	src, err := os.ReadFile(path)
	if err != nil {
		fr.Error = err.Error()
		return fr
	}

	res, err := tr.Transform(ctx, src, path)
	if err != nil {
		logger.Error("transform failed", zap.String("path", path), zap.Error(err))
		fr.Error = err.Error()
		return fr
	}

	fr.Sites = res.Sites
	fr.Optimized = res.Optimized
	for _, d := range res.Diagnostics {
		fr.Diagnostics = append(fr.Diagnostics, Diagnostic{
			Function: d.Function,
			Line:     d.Line,
			Column:   d.Column,
			Message:  d.Err.Error(),
		})
	}

	switch {
	case write:
		if !res.Changed() {
			break
		}
		info, err := os.Stat(path)
		if err != nil {
			fr.Error = err.Error()
			break
		}
		if err := os.WriteFile(path, []byte(res.Code), info.Mode().Perm()); err != nil {
			fr.Error = err.Error()
		}
	case !quiet:
		fmt.Fprintf(stdout, "// %s\n%s", path, res.Code)
		if !strings.HasSuffix(res.Code, "\n") {
			fmt.Fprintln(stdout)
		}
	}
	return fr
}

var (
	pathStyle  = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// printReport writes a human readable summary. Styles are dropped when w
// is not a terminal.
func printReport(w io.Writer, r *Report, color bool) {
	render := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}

	cwd, _ := os.Getwd()

	var optimized, sites, failed int
	for _, f := range r.Files {
		path := ast.RelativePath(f.Path, cwd)
		sites += f.Sites
		optimized += f.Optimized
		if f.Error != "" {
			failed++
			fmt.Fprintf(w, "%s %s\n", render(errorStyle, "error"), render(pathStyle, path))
			fmt.Fprintf(w, "  %s\n", f.Error)
			continue
		}
		if f.Sites == 0 {
			continue
		}
		fmt.Fprintf(w, "%s %s %s\n",
			render(okStyle, "ok"),
			render(pathStyle, path),
			render(dimStyle, fmt.Sprintf("(%d/%d)", f.Optimized, f.Sites)))
		for _, d := range f.Diagnostics {
			fmt.Fprintf(w, "  %s %d:%d %s: %s\n", render(warnStyle, "warn"), d.Line, d.Column, d.Function, d.Message)
		}
	}

	fmt.Fprintf(w, "%d of %d call sites optimized in %d files", optimized, sites, len(r.Files))
	if failed > 0 {
		fmt.Fprintf(w, ", %s", render(errorStyle, fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintln(w)
}

// encodeJSON serializes output as JSON, gzip-compressed when compress is set.
func encodeJSON(w io.Writer, output any, compress bool) error {
	if compress {
		return writeGzipJSON(w, output)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "")
	if err := enc.Encode(output); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeGzipJSON(w io.Writer, output any) error {
	gz := gzip.NewWriter(w)

	enc := json.NewEncoder(gz)
	enc.SetIndent("", "")
	if err := enc.Encode(output); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

// mustAbs resolves path to an absolute path.
func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic("could not resolve absolute path for " + path + ": " + err.Error())
	}
	return abs
}
