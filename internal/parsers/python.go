package parsers

import (
	"path/filepath"
	"regexp"
	"strings"
)

// PythonParser parses Python source code using line and regex heuristics.
// Function bodies end where indentation falls back to the definition level.
type PythonParser struct {
	functionRegex *regexp.Regexp
	lambdaRegex   *regexp.Regexp
	importRegex   *regexp.Regexp
	callRegex     *regexp.Regexp
}

// NewPythonParser creates a new Python parser.
func NewPythonParser() *PythonParser {
	return &PythonParser{
		functionRegex: regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(([^)]*)\)`),
		lambdaRegex:   regexp.MustCompile(`^(\s*)(\w+)\s*=\s*lambda\s*([^:]*):`),
		importRegex:   regexp.MustCompile(`^(?:from\s+([\w.]+|\.+[\w.]*)\s+)?import\s+(.+)`),
		callRegex:     regexp.MustCompile(`(\w+)\s*\(`),
	}
}

// Language returns the language this parser handles.
func (p *PythonParser) Language() string {
	return "python"
}

var pyKeywords = map[string]bool{
	"def": true, "class": true, "if": true, "elif": true, "for": true,
	"while": true, "with": true, "except": true, "return": true,
	"lambda": true, "assert": true, "del": true, "raise": true,
	"yield": true, "await": true, "import": true, "not": true,
	"and": true, "or": true, "in": true, "is": true,
}

// Parse extracts functions, imports, exports, and call sites. Line numbers
// in the resulting record are 0-based.
func (p *PythonParser) Parse(path string, content []byte) (*FileRecord, error) {
	record := &FileRecord{
		Path:      path,
		Language:  "python",
		Functions: []FunctionInfo{},
		Imports:   []ImportInfo{},
		Exports:   []ExportInfo{},
		Calls:     []CallInfo{},
	}

	lines := strings.Split(string(content), "\n")
	classIndent := -1

	for lineNum, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := indentWidth(line)

		if strings.HasPrefix(trimmed, "class ") {
			classIndent = indent
			continue
		}
		if classIndent >= 0 && indent <= classIndent {
			classIndent = -1
		}

		if m := p.functionRegex.FindStringSubmatch(line); m != nil {
			kind := KindFunction
			if classIndent >= 0 && indent > classIndent {
				kind = KindMethod
			}
			fn := FunctionInfo{
				Name:    m[2],
				Kind:    kind,
				Line:    lineNum,
				EndLine: findIndentEnd(lines, lineNum, indent),
				Params:  pythonParams(m[3]),
			}
			record.Functions = append(record.Functions, fn)
			// Module-level defs not prefixed with underscore count as exports.
			if indent == 0 && !strings.HasPrefix(fn.Name, "_") {
				record.Exports = append(record.Exports, ExportInfo{Name: fn.Name, Kind: "function", Line: lineNum})
			}
			continue
		}

		if m := p.lambdaRegex.FindStringSubmatch(line); m != nil {
			record.Functions = append(record.Functions, FunctionInfo{
				Name:    m[2],
				Kind:    KindVariable,
				Line:    lineNum,
				EndLine: lineNum,
				Params:  pythonParams(m[3]),
			})
			continue
		}

		if m := p.importRegex.FindStringSubmatch(trimmed); m != nil {
			record.Imports = append(record.Imports, p.parseImport(path, m[1], m[2], lineNum)...)
			continue
		}

		for _, m := range p.callRegex.FindAllStringSubmatch(trimmed, -1) {
			if pyKeywords[m[1]] {
				continue
			}
			record.Calls = append(record.Calls, CallInfo{Name: m[1], Line: lineNum})
		}
	}

	return record, nil
}

// parseImport expands one import statement into ImportInfo records.
// module is empty for plain `import X` forms.
func (p *PythonParser) parseImport(path, module, names string, line int) []ImportInfo {
	var imports []ImportInfo

	if module == "" {
		// import a, b as c
		for _, part := range strings.Split(names, ",") {
			name, local := splitAlias(part, " as ")
			if name == "" {
				continue
			}
			imports = append(imports, ImportInfo{
				Source:   pythonModuleSource(path, name),
				Imported: "*",
				Local:    local,
				Line:     line,
			})
		}
		return imports
	}

	// from module import a, b as c
	source := pythonModuleSource(path, module)
	for _, part := range strings.Split(names, ",") {
		name, local := splitAlias(part, " as ")
		if name == "" {
			continue
		}
		imports = append(imports, ImportInfo{
			Source:   source,
			Imported: name,
			Local:    local,
			Line:     line,
		})
	}
	return imports
}

// pythonModuleSource resolves dotted module paths. Relative modules
// (leading dots) become absolute file-system paths anchored at the
// importing file; absolute modules pass through as raw specifiers.
func pythonModuleSource(path, module string) string {
	if !strings.HasPrefix(module, ".") {
		return module
	}
	dir := filepath.Dir(path)
	rest := module
	for strings.HasPrefix(rest, ".") {
		rest = rest[1:]
		if strings.HasPrefix(rest, ".") {
			dir = filepath.Dir(dir)
		}
	}
	if rest == "" {
		return dir
	}
	return filepath.Join(dir, strings.ReplaceAll(rest, ".", string(filepath.Separator)))
}

// findIndentEnd returns the last 0-based line of the block whose header
// sits at startLine with the given indentation.
func findIndentEnd(lines []string, startLine, indent int) int {
	end := startLine
	for i := startLine + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if indentWidth(lines[i]) <= indent {
			break
		}
		end = i
	}
	return end
}

func indentWidth(line string) int {
	width := 0
	for _, c := range line {
		switch c {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}

func pythonParams(raw string) []string {
	params := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if idx := strings.IndexAny(part, ":="); idx >= 0 {
			part = strings.TrimSpace(part[:idx])
		}
		part = strings.TrimLeft(part, "*")
		if part == "" || part == "self" || part == "cls" {
			continue
		}
		params = append(params, part)
	}
	return params
}
