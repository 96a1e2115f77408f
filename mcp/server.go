// Package mcp provides the MCP (Model Context Protocol) server for
// codegraph, exposing the stored graph to agent clients over stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codegraph-dev/codegraph/internal/graph"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

// GraphStore is the slice of the storage backend the MCP server needs.
type GraphStore interface {
	LoadGraph(ctx context.Context) (*graph.Payload, *storage.Meta, error)
	Stats(ctx context.Context) (*graph.Stats, error)
	FindNodes(ctx context.Context, query string, limit int) ([]graph.Node, error)
}

// Server represents the MCP server.
type Server struct {
	store  GraphStore
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server reading graphs from store.
func NewServer(store GraphStore) *Server {
	s := &Server{store: store}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "codegraph",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "get_graph_stats",
			Description: "Get node and edge counts for the current dependency graph, broken down by type.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "filter_graph",
			Description: "Return the graph reduced to the given node types (folder, file, function) as JSON. Edges survive only when both endpoints survive.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"types": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "string"},
						Description: "Allowed node types: folder, file, function",
					},
				},
				Required: []string{"types"},
			},
		},
		{
			Name:        "find_node",
			Description: "Find graph nodes whose name or path contains the query.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Substring to match against node labels and paths"},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "node_neighbors",
			Description: "List every edge touching a node, with the node on the other end.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"id": {Type: "string", Description: "Node id, e.g. file-3"},
				},
				Required: []string{"id"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "codegraph://overview",
			Name:        "Graph Overview",
			Description: "High-level statistics about the current dependency graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "codegraph://schema",
			Name:        "Graph Schema",
			Description: "Description of node and edge types in the dependency graph",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "get_graph_stats":
		return s.handleStats(ctx)
	case "filter_graph":
		typesArg, _ := args["types"].([]any)
		types := make([]string, 0, len(typesArg))
		for _, t := range typesArg {
			if str, ok := t.(string); ok {
				types = append(types, str)
			}
		}
		return s.handleFilter(ctx, types)
	case "find_node":
		query, _ := args["query"].(string)
		limit, _ := args["limit"].(float64)
		if limit == 0 {
			limit = 20
		}
		return s.handleFind(ctx, query, int(limit))
	case "node_neighbors":
		id, _ := args["id"].(string)
		return s.handleNeighbors(ctx, id)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "codegraph://overview":
		return s.getOverview(ctx), nil
	case "codegraph://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

const noGraphMessage = "No graph built yet. Run `codegraph build` first."

// Tool handlers

func (s *Server) handleStats(ctx context.Context) (string, error) {
	stats, err := s.store.Stats(ctx)
	if errors.Is(err, storage.ErrNoGraph) {
		return noGraphMessage, nil
	}
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("## Graph Stats\n\n")
	sb.WriteString(fmt.Sprintf("**Nodes:** %d (folders: %d, files: %d, functions: %d)\n",
		stats.TotalNodes, stats.NodesByType.Folder, stats.NodesByType.File, stats.NodesByType.Function))
	sb.WriteString(fmt.Sprintf("**Edges:** %d (contains: %d, imports: %d, calls: %d)\n",
		stats.TotalEdges, stats.EdgesByType.Contains, stats.EdgesByType.Imports, stats.EdgesByType.Calls))

	return sb.String(), nil
}

func (s *Server) handleFilter(ctx context.Context, types []string) (string, error) {
	if len(types) == 0 {
		return "No node types provided. Allowed: folder, file, function.", nil
	}

	allowed := make([]graph.NodeType, 0, len(types))
	for _, t := range types {
		switch nt := graph.NodeType(strings.TrimSpace(t)); nt {
		case graph.NodeFolder, graph.NodeFile, graph.NodeFunction:
			allowed = append(allowed, nt)
		default:
			return fmt.Sprintf("Unknown node type '%s'. Allowed: folder, file, function.", t), nil
		}
	}

	payload, _, err := s.store.LoadGraph(ctx)
	if errors.Is(err, storage.ErrNoGraph) {
		return noGraphMessage, nil
	}
	if err != nil {
		return "", err
	}

	filtered := graph.Filter(payload, allowed...)
	data, err := json.Marshal(filtered)
	if err != nil {
		return "", fmt.Errorf("marshaling filtered graph: %w", err)
	}
	return string(data), nil
}

func (s *Server) handleFind(ctx context.Context, query string, limit int) (string, error) {
	if query == "" {
		return "No query provided", nil
	}

	nodes, err := s.store.FindNodes(ctx, query, limit)
	if errors.Is(err, storage.ErrNoGraph) {
		return noGraphMessage, nil
	}
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return fmt.Sprintf("No nodes match '%s'.", query), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d node(s) for '%s':\n\n", len(nodes), query))
	for i, n := range nodes {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s, id: %s)\n", i+1, n.Label, n.Type, n.ID))
		sb.WriteString(fmt.Sprintf("   Path: %s\n", n.Path))
	}
	sb.WriteString("\nNext: Use `node_neighbors` with a node id to explore its edges.")

	return sb.String(), nil
}

func (s *Server) handleNeighbors(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "No node id provided", nil
	}

	payload, _, err := s.store.LoadGraph(ctx)
	if errors.Is(err, storage.ErrNoGraph) {
		return noGraphMessage, nil
	}
	if err != nil {
		return "", err
	}

	byID := make(map[string]*graph.Node, len(payload.Nodes))
	for i := range payload.Nodes {
		byID[payload.Nodes[i].ID] = &payload.Nodes[i]
	}

	node, ok := byID[id]
	if !ok {
		return fmt.Sprintf("Node '%s' not found.", id), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Neighbors of **%s** (%s, id: %s):\n\n", node.Label, node.Type, node.ID))

	count := 0
	for _, e := range payload.Edges {
		var direction, otherID string
		switch id {
		case e.Source:
			direction = "→"
			otherID = e.Target
		case e.Target:
			direction = "←"
			otherID = e.Source
		default:
			continue
		}

		label := ""
		if other, ok := byID[otherID]; ok {
			label = other.Label
		}
		sb.WriteString(fmt.Sprintf("- %s %s **%s** (%s)", direction, e.Type, label, otherID))
		if e.Label != "" {
			sb.WriteString(fmt.Sprintf(" [%s]", e.Label))
		}
		sb.WriteString("\n")
		count++
	}

	if count == 0 {
		sb.WriteString("No edges touch this node.\n")
	}

	return sb.String(), nil
}

// Resource handlers

func (s *Server) getOverview(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("# Codegraph Overview\n\n")

	payload, meta, err := s.store.LoadGraph(ctx)
	if err != nil {
		sb.WriteString(noGraphMessage + "\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("**Workspace:** %s\n", meta.Root))
	sb.WriteString(fmt.Sprintf("**Built:** %s\n", meta.BuiltAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Files:** %d\n", meta.Files))
	sb.WriteString(fmt.Sprintf("**Nodes:** %d\n", payload.Stats.TotalNodes))
	sb.WriteString(fmt.Sprintf("**Edges:** %d\n", payload.Stats.TotalEdges))

	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Codegraph Schema\n\n")
	sb.WriteString("## Node Types\n\n")
	sb.WriteString("| Type | Description | Key Properties |\n")
	sb.WriteString("|------|-------------|----------------|\n")
	sb.WriteString("| `folder` | Directory | path, relativePath |\n")
	sb.WriteString("| `file` | Source file | path, language, functionCount, importCount, exportCount |\n")
	sb.WriteString("| `function` | Function definition | path, functionType, params, line, endLine |\n")
	sb.WriteString("\n## Edge Types\n\n")
	sb.WriteString("| Type | Source → Target | Label |\n")
	sb.WriteString("|------|-----------------|-------|\n")
	sb.WriteString("| `contains` | folder → file, file → function | - |\n")
	sb.WriteString("| `imports` | file → file | imported symbol |\n")
	sb.WriteString("| `calls` | function → function | called name |\n")

	return sb.String()
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "codegraph",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
