package parsers

import (
	"regexp"
	"strings"
)

// JavaScriptParser extracts FileRecords from JavaScript/JSX source using a
// regex-based, line-oriented approach.
type JavaScriptParser struct {
	language string

	functionRegex *regexp.Regexp
	arrowRegex    *regexp.Regexp
	methodRegex   *regexp.Regexp
	classRegex    *regexp.Regexp
	importRegex   *regexp.Regexp
	requireRegex  *regexp.Regexp
	exportRegex   *regexp.Regexp
	callRegex     *regexp.Regexp
}

// NewJavaScriptParser creates a new JavaScript parser.
func NewJavaScriptParser() *JavaScriptParser {
	return newScriptParser("javascript")
}

func newScriptParser(language string) *JavaScriptParser {
	return &JavaScriptParser{
		language:      language,
		functionRegex: regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(([^)]*)\)`),
		arrowRegex:    regexp.MustCompile(`^(?:export\s+)?(?:const|let|var)\s+(\w+)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:\(([^)]*)\)(?:\s*:[^=]+)?|(\w+))\s*=>`),
		methodRegex:   regexp.MustCompile(`^(?:public\s+|private\s+|protected\s+|static\s+)*(?:async\s+)?(\w+)\s*\(([^)]*)\)\s*(?::\s*[\w<>\[\].| ]+)?\s*{`),
		classRegex:    regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`),
		importRegex:   regexp.MustCompile(`^import\s+(?:(\w+)\s*,\s*)?(?:{([^}]*)}|\*\s+as\s+(\w+)|(\w+))?\s*(?:from\s+)?['"]([^'"]+)['"]`),
		requireRegex:  regexp.MustCompile(`(?:const|let|var)\s+(?:{([^}]*)}|(\w+))\s*=\s*require\s*\(\s*['"]([^'"]+)['"]\s*\)`),
		exportRegex:   regexp.MustCompile(`^export\s+(?:default\s+)?(?:async\s+)?(function\s*\*?|const|let|var|class)\s+(\w+)?`),
		callRegex:     regexp.MustCompile(`(\w+)\s*\(`),
	}
}

// Language returns the language this parser handles.
func (p *JavaScriptParser) Language() string {
	return p.language
}

// jsKeywords are identifiers the call extractor must never treat as calls.
var jsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "function": true, "typeof": true, "new": true,
	"import": true, "export": true, "require": true, "super": true,
	"constructor": true, "await": true, "yield": true, "throw": true,
	"do": true, "else": true, "case": true, "with": true, "delete": true,
	"void": true, "in": true, "of": true, "instanceof": true,
}

// Parse extracts functions, imports, exports, and call sites. Line numbers
// in the resulting record are 0-based.
func (p *JavaScriptParser) Parse(path string, content []byte) (*FileRecord, error) {
	record := &FileRecord{
		Path:      path,
		Language:  p.language,
		Functions: []FunctionInfo{},
		Imports:   []ImportInfo{},
		Exports:   []ExportInfo{},
		Calls:     []CallInfo{},
	}

	lines := strings.Split(string(content), "\n")
	classDepth := -1 // brace depth at which the current class body opened
	depth := 0

	for lineNum, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "/*") {
			depth += braceDelta(trimmed)
			continue
		}

		// Imports
		if m := p.importRegex.FindStringSubmatch(trimmed); m != nil {
			source := resolveImportSource(path, m[5])
			if m[1] != "" || m[4] != "" {
				// default import, possibly alongside a named group
				local := m[1]
				if local == "" {
					local = m[4]
				}
				record.Imports = append(record.Imports, ImportInfo{
					Source: source, Imported: "*", Local: local, Line: lineNum,
				})
			}
			if m[2] != "" {
				for _, part := range strings.Split(m[2], ",") {
					name, local := splitAlias(part, " as ")
					if name == "" {
						continue
					}
					record.Imports = append(record.Imports, ImportInfo{
						Source: source, Imported: name, Local: local, Line: lineNum,
					})
				}
			}
			if m[3] != "" {
				record.Imports = append(record.Imports, ImportInfo{
					Source: source, Imported: "*", Local: m[3], Line: lineNum,
				})
			}
			if m[1] == "" && m[2] == "" && m[3] == "" && m[4] == "" {
				// side-effect import: import './styles.css'
				record.Imports = append(record.Imports, ImportInfo{
					Source: source, Imported: "*", Line: lineNum,
				})
			}
			continue
		}

		// CommonJS require
		if m := p.requireRegex.FindStringSubmatch(trimmed); m != nil {
			source := resolveImportSource(path, m[3])
			if m[1] != "" {
				for _, part := range strings.Split(m[1], ",") {
					name, local := splitAlias(part, ":")
					if name == "" {
						continue
					}
					record.Imports = append(record.Imports, ImportInfo{
						Source: source, Imported: name, Local: local, Line: lineNum,
					})
				}
			} else {
				record.Imports = append(record.Imports, ImportInfo{
					Source: source, Imported: "*", Local: m[2], Line: lineNum,
				})
			}
		}

		// Exports
		if m := p.exportRegex.FindStringSubmatch(trimmed); m != nil && m[2] != "" {
			kind := "variable"
			switch {
			case strings.HasPrefix(m[1], "function"):
				kind = "function"
			case m[1] == "class":
				kind = "class"
			}
			record.Exports = append(record.Exports, ExportInfo{Name: m[2], Kind: kind, Line: lineNum})
		}

		// Class boundary tracking for method detection.
		if p.classRegex.MatchString(trimmed) {
			classDepth = depth
			depth += braceDelta(trimmed)
			continue
		}
		if classDepth >= 0 && depth <= classDepth && strings.Contains(trimmed, "}") {
			classDepth = -1
		}

		switch {
		case p.functionRegex.MatchString(trimmed):
			m := p.functionRegex.FindStringSubmatch(trimmed)
			record.Functions = append(record.Functions, FunctionInfo{
				Name:    m[1],
				Kind:    KindFunction,
				Line:    lineNum,
				EndLine: findBlockEnd(lines, lineNum),
				Params:  splitParams(m[2]),
			})

		case p.arrowRegex.MatchString(trimmed):
			m := p.arrowRegex.FindStringSubmatch(trimmed)
			params := m[2]
			if params == "" {
				params = m[3]
			}
			record.Functions = append(record.Functions, FunctionInfo{
				Name:    m[1],
				Kind:    KindVariable,
				Line:    lineNum,
				EndLine: findBlockEnd(lines, lineNum),
				Params:  splitParams(params),
			})

		case classDepth >= 0 && depth == classDepth+1 && p.methodRegex.MatchString(trimmed):
			m := p.methodRegex.FindStringSubmatch(trimmed)
			if !jsKeywords[m[1]] {
				record.Functions = append(record.Functions, FunctionInfo{
					Name:    m[1],
					Kind:    KindMethod,
					Line:    lineNum,
					EndLine: findBlockEnd(lines, lineNum),
					Params:  splitParams(m[2]),
				})
			}
		}

		// Call sites on non-definition lines.
		for _, m := range p.callRegex.FindAllStringSubmatch(trimmed, -1) {
			name := m[1]
			if jsKeywords[name] || isDefinitionOf(record, name, lineNum) {
				continue
			}
			record.Calls = append(record.Calls, CallInfo{Name: name, Line: lineNum})
		}

		depth += braceDelta(trimmed)
	}

	return record, nil
}

// braceDelta counts net `{` minus `}` on a line, ignoring braces inside
// string literals on a best-effort basis.
func braceDelta(line string) int {
	delta := 0
	inString := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString != 0 {
			if c == '\\' {
				i++
			} else if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			inString = c
		case '{':
			delta++
		case '}':
			delta--
		}
	}
	return delta
}

// findBlockEnd returns the 0-based line where the brace block opened at
// startLine closes. When no block opens on startLine (single-line arrow
// bodies, unresolved bodies) it returns startLine.
func findBlockEnd(lines []string, startLine int) int {
	depth := 0
	opened := false
	for i := startLine; i < len(lines); i++ {
		d := braceDelta(strings.TrimSpace(lines[i]))
		if !opened {
			if d <= 0 {
				return startLine
			}
			opened = true
		}
		depth += d
		if opened && depth <= 0 {
			return i
		}
	}
	return startLine
}

// splitParams breaks a parameter list into bare names, dropping type
// annotations and default values.
func splitParams(raw string) []string {
	params := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.IndexAny(part, ":="); idx >= 0 {
			part = strings.TrimSpace(part[:idx])
		}
		part = strings.TrimPrefix(part, "...")
		if part != "" {
			params = append(params, part)
		}
	}
	return params
}

// splitAlias parses "name sep alias" bindings; local is empty when the
// binding is not aliased.
func splitAlias(part, sep string) (name, local string) {
	part = strings.TrimSpace(part)
	if idx := strings.Index(part, sep); idx >= 0 {
		return strings.TrimSpace(part[:idx]), strings.TrimSpace(part[idx+len(sep):])
	}
	return part, ""
}

// isDefinitionOf reports whether name was just recorded as a function
// definition on the given line, so the definition itself is not counted
// as a call site.
func isDefinitionOf(record *FileRecord, name string, line int) bool {
	for i := len(record.Functions) - 1; i >= 0; i-- {
		fn := record.Functions[i]
		if fn.Line < line {
			break
		}
		if fn.Line == line && fn.Name == name {
			return true
		}
	}
	return false
}
