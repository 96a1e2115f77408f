package graph

import (
	"path/filepath"
	"strings"
)

// resolveExtensions are the extensions tried when an import source omits
// one, in priority order.
var resolveExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".py"}

// fileIndex holds the known file paths of one build: a set for exact
// lookups and a sorted slice for deterministic fuzzy scans.
type fileIndex struct {
	known  map[string]struct{}
	sorted []string
}

// newFileIndex builds an index over already-sorted paths.
func newFileIndex(paths []string) *fileIndex {
	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}
	return &fileIndex{known: known, sorted: paths}
}

func (idx *fileIndex) has(path string) bool {
	_, ok := idx.known[path]
	return ok
}

// importResolver is one stage of the resolution pipeline. Stages run in
// order; the first match wins.
type importResolver func(source string, idx *fileIndex) (string, bool)

// importResolvers is the resolution chain: exact path, extension append,
// index file, then the fuzzy last resort. This is a deliberate heuristic
// ordering, not exhaustive module resolution — package.json fields,
// bundler aliases, and the like are out of scope.
var importResolvers = []importResolver{
	resolveExact,
	resolveWithExtension,
	resolveIndexFile,
	resolveFuzzy,
}

// resolveImportTarget locates the known file an import source refers to.
func resolveImportTarget(source string, idx *fileIndex) (string, bool) {
	if source == "" {
		return "", false
	}
	for _, resolve := range importResolvers {
		if target, ok := resolve(source, idx); ok {
			return target, true
		}
	}
	return "", false
}

// resolveExact matches an import source that already names a known file
// verbatim.
func resolveExact(source string, idx *fileIndex) (string, bool) {
	if idx.has(source) {
		return source, true
	}
	return "", false
}

// resolveWithExtension tries each supported extension appended to the
// source path.
func resolveWithExtension(source string, idx *fileIndex) (string, bool) {
	for _, ext := range resolveExtensions {
		if candidate := source + ext; idx.has(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// resolveIndexFile treats the source as a directory and tries its index
// file for each supported extension.
func resolveIndexFile(source string, idx *fileIndex) (string, bool) {
	for _, ext := range resolveExtensions {
		if candidate := filepath.Join(source, "index"+ext); idx.has(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// resolveFuzzy is the substring last resort: the first known path (in
// sorted order) that ends with or contains the literal source string.
// It catches bare specifiers that name a workspace file loosely and is
// intentionally the final stage so precise matches always win.
func resolveFuzzy(source string, idx *fileIndex) (string, bool) {
	for _, path := range idx.sorted {
		if strings.HasSuffix(path, source) || strings.Contains(path, source) {
			return path, true
		}
	}
	return "", false
}
