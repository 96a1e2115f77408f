// Package parsers provides per-file extraction of functions, imports,
// exports, and call sites for the supported languages.
//
// Extraction is heuristic (regex and line scanning, not a full AST); the
// graph engine only depends on the FileRecord schema, never on extraction
// fidelity.
package parsers

import (
	"path/filepath"
	"strings"
)

// FunctionKind classifies how a function was declared.
type FunctionKind string

const (
	KindFunction FunctionKind = "function"
	KindVariable FunctionKind = "variable"
	KindMethod   FunctionKind = "method"
)

// FunctionInfo describes one function-like definition in a file.
// Line numbers are 0-based; EndLine may equal Line when the body end
// could not be determined.
type FunctionInfo struct {
	// Name is the function name.
	Name string `json:"name"`

	// Kind is the declaration form (function, variable, method).
	Kind FunctionKind `json:"type"`

	// Line is the 0-based line of the definition.
	Line int `json:"line"`

	// EndLine is the 0-based line on which the body ends.
	EndLine int `json:"endLine"`

	// Params holds the parameter names.
	Params []string `json:"params"`
}

// ImportInfo describes one import binding.
type ImportInfo struct {
	// Source is an absolute file path for relative imports, or the raw
	// module specifier for bare imports.
	Source string `json:"source"`

	// Imported is the imported symbol name, or "*" for wildcard and
	// default imports.
	Imported string `json:"imported"`

	// Local is the local binding name, if it differs from Imported.
	Local string `json:"local,omitempty"`

	// Line is the 0-based line of the import statement.
	Line int `json:"line"`
}

// ExportInfo describes one exported symbol.
type ExportInfo struct {
	// Name is the exported symbol name.
	Name string `json:"name"`

	// Kind is the symbol kind.
	Kind string `json:"type"`

	// Line is the 0-based line of the export.
	Line int `json:"line"`
}

// CallInfo is a raw call site, not yet attributed to an enclosing function.
type CallInfo struct {
	// Name is the called function name.
	Name string `json:"name"`

	// Line is the 0-based line of the call.
	Line int `json:"line"`
}

// FileRecord is the extraction result for one source file. It is the unit
// the graph engine consumes: a map of absolute path to FileRecord is the
// input of every build.
type FileRecord struct {
	// Path is the absolute file path, unique key of the record.
	Path string `json:"path"`

	// Language is the detected language ("javascript", "typescript", "python").
	Language string `json:"language"`

	// Functions are the function-like definitions, in source order.
	Functions []FunctionInfo `json:"functions"`

	// Imports are the import bindings, in source order.
	Imports []ImportInfo `json:"imports"`

	// Exports are the exported symbols, in source order.
	Exports []ExportInfo `json:"exports"`

	// Calls are the raw call sites, in source order.
	Calls []CallInfo `json:"calls"`
}

// Parser defines the interface for language-specific extractors.
type Parser interface {
	// Parse extracts a FileRecord from source content. Path must be
	// absolute; relative import sources are resolved against its directory.
	Parse(path string, content []byte) (*FileRecord, error)

	// Language returns the language this parser handles.
	Language() string
}

// Supported file extensions and their languages.
var supportedExtensions = map[string]string{
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
	".py":  "python",
}

// LanguageForFile returns the language for a file name, or "" when the
// extension is not supported.
func LanguageForFile(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedExtensions[ext]
}

// ForLanguage returns a parser for the given language, or nil when the
// language is not supported.
func ForLanguage(language string) Parser {
	switch language {
	case "javascript":
		return NewJavaScriptParser()
	case "typescript":
		return NewTypeScriptParser()
	case "python":
		return NewPythonParser()
	default:
		return nil
	}
}

// resolveImportSource turns a relative import specifier into an absolute
// path anchored at the importing file's directory. Bare specifiers pass
// through untouched; target lookup happens later in the graph engine.
func resolveImportSource(filePath, source string) string {
	if strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../") || source == "." || source == ".." {
		return filepath.Clean(filepath.Join(filepath.Dir(filePath), source))
	}
	return source
}
