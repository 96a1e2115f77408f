package parsers

// TypeScriptParser parses TypeScript/TSX source code. The extraction rules
// are shared with the JavaScript parser; the regexes already tolerate type
// annotations on parameters, return positions, and const declarations.
type TypeScriptParser struct {
	*JavaScriptParser
}

// NewTypeScriptParser creates a new TypeScript parser.
func NewTypeScriptParser() *TypeScriptParser {
	return &TypeScriptParser{JavaScriptParser: newScriptParser("typescript")}
}
