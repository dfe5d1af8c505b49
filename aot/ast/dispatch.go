package ast

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/abiiranathan/rx-aot/aot/compiler"
	"github.com/abiiranathan/rx-aot/aot/errors"
)

// FileReader reads template files referenced by call sites.
type FileReader interface {
	ReadFile(ctx context.Context, path string) (string, error)
}

// OSReader reads templates from the local file system.
type OSReader struct{}

// ReadFile implements FileReader.
func (OSReader) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FSReader reads templates from an fs.FS. Absolute template paths are mapped
// into the file system by stripping Root, or the leading slash when Root is
// empty.
type FSReader struct {
	FS   fs.FS
	Root string
}

// ReadFile implements FileReader.
func (r FSReader) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := filepath.ToSlash(path)
	if r.Root != "" {
		rel, err := filepath.Rel(r.Root, path)
		if err != nil {
			return "", err
		}
		name = filepath.ToSlash(rel)
	}
	name = strings.TrimPrefix(name, "/")

	data, err := fs.ReadFile(r.FS, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// dispatch obtains the compiled expression for a configuration, reading the
// template file first for file-backed sources.
func (tr *Transformer) dispatch(ctx context.Context, cfg *TemplateConfig) (compiler.Lines, *compiler.Symbols, error) {
	html := cfg.Source.HTML
	if cfg.Source.IsFile() {
		text, err := tr.reader.ReadFile(ctx, cfg.Source.File)
		if err != nil {
			return nil, nil, errors.ReadFailed(cfg.Source.File, err)
		}
		html = text
	}

	key := compileKey(html, cfg.CustomElements, cfg.Modifiers)
	if hit, ok := tr.cache.get(key); ok {
		tr.log().Debug("Template compilation cache hit.", zap.Stringer("source", cfg.Source))
		return hit.code, hit.symbols, nil
	}

	code, symbols, err := tr.compiler.Compile(ctx, html, cfg.CustomElements, cfg.Modifiers)
	if err != nil {
		return nil, nil, errors.CompileFailed(err)
	}
	if symbols == nil {
		symbols = compiler.NewSymbols()
	}

	tr.cache.set(key, compiledTemplate{code: code, symbols: symbols})
	return code, symbols, nil
}
