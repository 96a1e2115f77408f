package graph

import (
	"path/filepath"
	"sort"
	"strconv"

	"github.com/codegraph-dev/codegraph/internal/parsers"
)

// Builder constructs a dependency graph from a snapshot of file records.
//
// A Builder owns its store exclusively: each call to Build resets the
// internal state and rebuilds the graph from scratch, so builds are
// idempotent given identical input. Builds must not run concurrently on
// the same instance; callers are responsible for serializing invocations.
type Builder struct {
	root  string
	store *store
}

// NewBuilder creates a builder for the given workspace root. The root
// bounds the folder-ancestry walk and anchors relative paths.
func NewBuilder(root string) *Builder {
	return &Builder{
		root:  filepath.Clean(root),
		store: newStore(),
	}
}

// Build turns the given path -> record mapping into a graph payload. The
// previous build's state is fully replaced, never merged. Records are
// processed in sorted path order so identical inputs produce identical
// payloads regardless of map iteration order.
//
// Build performs no I/O and never fails: malformed records degrade to
// empty contributions, and unresolvable imports or calls simply produce
// no edge.
func (b *Builder) Build(files map[string]*parsers.FileRecord) *Payload {
	b.store.reset()

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	b.buildFolders(paths)
	b.buildFiles(paths, files)
	b.resolveImports(paths, files)
	b.resolveCalls(paths, files)

	return b.store.payload()
}

// buildFolders registers a folder node for every directory between each
// file and the workspace root (exclusive). The walk stops at the root or
// when a path's parent equals itself, which guards against endless loops
// on the filesystem root and malformed paths.
func (b *Builder) buildFolders(paths []string) {
	for _, path := range paths {
		for dir := filepath.Dir(path); dir != b.root; dir = filepath.Dir(dir) {
			if filepath.Dir(dir) == dir {
				break
			}
			b.store.addNode(Node{
				Type:         NodeFolder,
				Label:        filepath.Base(dir),
				Path:         dir,
				RelativePath: b.relativePath(dir),
			}, dir)
		}
	}
}

// buildFiles creates a file node per record and a function node per
// function. Files link to their parent folder only when that folder node
// exists (files directly at the workspace root have none); functions link
// to their file unconditionally.
func (b *Builder) buildFiles(paths []string, files map[string]*parsers.FileRecord) {
	for _, path := range paths {
		record := files[path]

		fileNode := Node{
			Type:  NodeFile,
			Label: filepath.Base(path),
			Path:  path,
		}
		if record != nil {
			fileNode.Language = record.Language
			fileNode.FunctionCount = len(record.Functions)
			fileNode.ImportCount = len(record.Imports)
			fileNode.ExportCount = len(record.Exports)
		}
		fileID := b.store.addNode(fileNode, path)

		if folderID, ok := b.store.nodeID(NodeFolder, filepath.Dir(path)); ok {
			b.store.addEdge(folderID, fileID, EdgeContains, "")
		}

		if record == nil {
			continue
		}
		for _, fn := range record.Functions {
			fnID := b.store.addNode(Node{
				Type:         NodeFunction,
				Label:        fn.Name,
				Path:         path,
				FunctionType: string(fn.Kind),
				Params:       fn.Params,
				Line:         fn.Line,
				EndLine:      fn.EndLine,
			}, functionKey(path, fn.Name, fn.Line))
			b.store.addEdge(fileID, fnID, EdgeContains, "")
		}
	}
}

// resolveImports adds an imports edge from each importing file to the
// resolved target file. Imports of external packages or unresolvable
// paths contribute no edge; that is expected, not an error.
func (b *Builder) resolveImports(paths []string, files map[string]*parsers.FileRecord) {
	index := newFileIndex(paths)

	for _, path := range paths {
		record := files[path]
		if record == nil {
			continue
		}
		sourceID, ok := b.store.nodeID(NodeFile, path)
		if !ok {
			continue
		}
		for _, imp := range record.Imports {
			target, ok := resolveImportTarget(imp.Source, index)
			if !ok {
				continue
			}
			targetID, ok := b.store.nodeID(NodeFile, target)
			if !ok {
				continue
			}
			label := imp.Imported
			if label == "*" {
				label = ""
			}
			b.store.addEdge(sourceID, targetID, EdgeImports, label)
		}
	}
}

// resolveCalls attributes each raw call site to its enclosing function by
// inclusive line-range containment and links it to a same-named function
// defined in the same file. Cross-file calls and calls outside any
// function body contribute no edge.
func (b *Builder) resolveCalls(paths []string, files map[string]*parsers.FileRecord) {
	for _, path := range paths {
		record := files[path]
		if record == nil {
			continue
		}
		for _, call := range record.Calls {
			caller := enclosingFunction(record.Functions, call.Line)
			if caller == nil {
				continue
			}
			callee := firstFunctionNamed(record.Functions, call.Name)
			if callee == nil || callee == caller {
				continue
			}
			sourceID, ok := b.store.nodeID(NodeFunction, functionKey(path, caller.Name, caller.Line))
			if !ok {
				continue
			}
			targetID, ok := b.store.nodeID(NodeFunction, functionKey(path, callee.Name, callee.Line))
			if !ok {
				continue
			}
			b.store.addEdge(sourceID, targetID, EdgeCalls, call.Name)
		}
	}
}

// enclosingFunction returns the innermost function whose inclusive
// [Line, EndLine] range contains line. Ties on span size break toward the
// earliest start line, keeping attribution independent of record order.
func enclosingFunction(functions []parsers.FunctionInfo, line int) *parsers.FunctionInfo {
	var best *parsers.FunctionInfo
	for i := range functions {
		fn := &functions[i]
		if line < fn.Line || line > fn.EndLine {
			continue
		}
		if best == nil {
			best = fn
			continue
		}
		bestSpan := best.EndLine - best.Line
		span := fn.EndLine - fn.Line
		if span < bestSpan || (span == bestSpan && fn.Line < best.Line) {
			best = fn
		}
	}
	return best
}

// firstFunctionNamed returns the first function in record order with the
// given name. When several same-named functions exist in one file the
// first one wins; the graph does not disambiguate overloads.
func firstFunctionNamed(functions []parsers.FunctionInfo, name string) *parsers.FunctionInfo {
	for i := range functions {
		if functions[i].Name == name {
			return &functions[i]
		}
	}
	return nil
}

// functionKey is the canonical key for a function node. The start line
// disambiguates same-named functions within one file.
func functionKey(path, name string, line int) string {
	return path + ":" + name + ":" + strconv.Itoa(line)
}

// relativePath computes a folder's path relative to the workspace root;
// the root itself maps to ".".
func (b *Builder) relativePath(dir string) string {
	rel, err := filepath.Rel(b.root, dir)
	if err != nil {
		return dir
	}
	return rel
}
