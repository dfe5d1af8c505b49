package ast

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultInclude matches the modules a build pipeline hands to the inliner.
var DefaultInclude = regexp.MustCompile(`\.ts$`)

// declarationFile matches TypeScript declaration files, which hold no code.
var declarationFile = regexp.MustCompile(`\.d\.[cm]?ts$`)

// FindModuleFiles recursively finds the files under root whose path matches
// include. Dependency and hidden directories and declaration files are
// skipped. A root that is a file is returned as is when it matches.
func FindModuleFiles(root string, include *regexp.Regexp) ([]string, error) {
	if include == nil {
		include = DefaultInclude
	}

	var files []string

	err := filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if de.IsDir() {
			if path == root {
				return nil
			}
			name := de.Name()
			if name == "node_modules" || name == "vendor" || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		slashed := filepath.ToSlash(path)
		if include.MatchString(slashed) && !declarationFile.MatchString(slashed) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// RelativePath returns path relative to baseDir for reports, or path itself
// when it is not below baseDir.
func RelativePath(path, baseDir string) string {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
