// Package graph provides the dependency graph engine.
//
// It turns a collection of per-file extraction results (functions, imports,
// exports, calls) into a deduplicated node/edge graph with stable
// identities, resolved cross-file import targets, and intra-file
// call-to-definition linking. Folders contain files, files contain
// functions, and edges capture import and call relationships.
package graph

// NodeType represents the type of a graph node.
type NodeType string

const (
	NodeFolder   NodeType = "folder"
	NodeFile     NodeType = "file"
	NodeFunction NodeType = "function"
)

// EdgeType represents the type of a graph edge.
type EdgeType string

const (
	EdgeContains EdgeType = "contains"
	EdgeImports  EdgeType = "imports"
	EdgeCalls    EdgeType = "calls"
)

// Node represents a node in the dependency graph. Exactly one node exists
// per (type, canonical key) pair within a build: the canonical key is the
// absolute path for folders and files, and (path, name, start line) for
// functions.
type Node struct {
	// ID is the generated identifier, unique within one build.
	ID string `json:"id"`

	// Label is the display name (base name for folders and files,
	// function name for functions).
	Label string `json:"label"`

	// Type is the node type.
	Type NodeType `json:"type"`

	// Path is the absolute path of the folder, file, or enclosing file.
	Path string `json:"path"`

	// RelativePath is the path relative to the workspace root (folders only;
	// the root itself maps to ".").
	RelativePath string `json:"relativePath,omitempty"`

	// Language is the source language (files only).
	Language string `json:"language,omitempty"`

	// FunctionCount, ImportCount, and ExportCount summarize a file's record
	// (files only).
	FunctionCount int `json:"functionCount,omitempty"`
	ImportCount   int `json:"importCount,omitempty"`
	ExportCount   int `json:"exportCount,omitempty"`

	// FunctionType is the declaration form: function, variable, or method
	// (functions only).
	FunctionType string `json:"functionType,omitempty"`

	// Params holds parameter names (functions only).
	Params []string `json:"params,omitempty"`

	// Line and EndLine delimit the function body, 0-based inclusive
	// (functions only).
	Line    int `json:"line,omitempty"`
	EndLine int `json:"endLine,omitempty"`
}

// Edge represents a directed edge in the dependency graph. At most one edge
// exists per (source, target, type) triple within a build.
type Edge struct {
	// ID is the generated identifier, unique within one build.
	ID string `json:"id"`

	// Source is the source node id.
	Source string `json:"source"`

	// Target is the target node id.
	Target string `json:"target"`

	// Type is the edge type.
	Type EdgeType `json:"type"`

	// Label carries the imported symbol name for import edges and the
	// called name for call edges; empty otherwise.
	Label string `json:"label,omitempty"`
}

// NodeTypeCounts breaks the node total down by type.
type NodeTypeCounts struct {
	Folder   int `json:"folder"`
	File     int `json:"file"`
	Function int `json:"function"`
}

// EdgeTypeCounts breaks the edge total down by type.
type EdgeTypeCounts struct {
	Contains int `json:"contains"`
	Imports  int `json:"imports"`
	Calls    int `json:"calls"`
}

// Stats summarizes a graph payload.
type Stats struct {
	TotalNodes  int            `json:"totalNodes"`
	TotalEdges  int            `json:"totalEdges"`
	NodesByType NodeTypeCounts `json:"nodesByType"`
	EdgesByType EdgeTypeCounts `json:"edgesByType"`
}

// Payload is the finished graph handed to consumers. It is a self-contained
// snapshot: it holds no references back into engine state and is safe to
// serialize across a process boundary.
type Payload struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Stats Stats  `json:"stats"`
}

// computeStats recounts nodes and edges by type.
func computeStats(nodes []Node, edges []Edge) Stats {
	stats := Stats{TotalNodes: len(nodes), TotalEdges: len(edges)}
	for _, n := range nodes {
		switch n.Type {
		case NodeFolder:
			stats.NodesByType.Folder++
		case NodeFile:
			stats.NodesByType.File++
		case NodeFunction:
			stats.NodesByType.Function++
		}
	}
	for _, e := range edges {
		switch e.Type {
		case EdgeContains:
			stats.EdgesByType.Contains++
		case EdgeImports:
			stats.EdgesByType.Imports++
		case EdgeCalls:
			stats.EdgesByType.Calls++
		}
	}
	return stats
}
