// Package importer resolves KAML `use` statements against a filesystem
// search path, grounded directly on original_source/kaml/package_import.py
// (there is no teacher-Go analogue to adapt; this is a straight port of
// PackageImporter's algorithm into Go idiom — sentinel errors instead of
// exceptions, an explicit memo set instead of a mutable default argument).
package importer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"kaml/internal/ast"
)

// ErrNotFound is returned when a dotted name can't be resolved against any
// search root.
var ErrNotFound = errors.New("importer: package not found in search paths")

// ErrAlreadyImported is returned when the resolved file was already
// imported earlier in this importer's lifetime (package_import.py raises
// KAMLImportError("Already imported ...") for the same condition).
var ErrAlreadyImported = errors.New("importer: package already imported")

// Importer resolves a dotted `use` path (e.g. "a:b:c" or "a:b:*") to a
// parsed translation unit.
type Importer interface {
	Import(dotted string) (*ast.TranslationUnit, error)
}

// ParseFunc parses KAML source read from a resolved file. Whoever builds
// the FSImporter supplies it (cmd/kaml passes one that runs the lexer,
// shaper and parser); importer never imports parser directly, since
// parser imports importer to resolve use-stmt targets (injecting the
// function avoids the cycle).
type ParseFunc func(source, filename string) (*ast.TranslationUnit, error)

// FSImporter resolves dotted names against an ordered list of filesystem
// search roots, appending the ".kaml" extension to the final path segment
// (package_import.py: `parts[-1] += '.kaml'`).
type FSImporter struct {
	searchPaths []string
	parse       ParseFunc
	memo        map[string]struct{}
}

// NewFSImporter builds an FSImporter. searchPaths are converted to
// absolute paths up front, matching package_import.py's constructor.
func NewFSImporter(searchPaths []string, parse ParseFunc) *FSImporter {
	abs := make([]string, len(searchPaths))
	for i, p := range searchPaths {
		if a, err := filepath.Abs(p); err == nil {
			abs[i] = a
		} else {
			abs[i] = p
		}
	}
	return &FSImporter{
		searchPaths: abs,
		parse:       parse,
		memo:        make(map[string]struct{}),
	}
}

// Import resolves dotted (colon-separated, e.g. "a:b:c" or "a:b:*") against
// each search root in order, returning the first match. A trailing "*"
// segment is dropped before resolution (package_import.py: `if parts[-1]
// == '*': parts = parts[:-1]`) since it names "import everything from b",
// not a file of its own.
func (f *FSImporter) Import(dotted string) (*ast.TranslationUnit, error) {
	parts := strings.Split(dotted, ":")
	if len(parts) > 0 && parts[len(parts)-1] == "*" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return nil, ErrNotFound
	}
	parts[len(parts)-1] += ".kaml"

	for _, root := range f.searchPaths {
		elems := append([]string{root}, parts...)
		filePath := filepath.Join(elems...)

		if _, seen := f.memo[filePath]; seen {
			return nil, ErrAlreadyImported
		}

		data, err := os.ReadFile(filePath)
		if err != nil {
			continue
		}
		f.memo[filePath] = struct{}{}
		return f.parse(string(data), filePath)
	}
	return nil, ErrNotFound
}
