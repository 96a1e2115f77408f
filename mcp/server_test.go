package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/graph"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

func testPayload() *graph.Payload {
	return &graph.Payload{
		Nodes: []graph.Node{
			{ID: "folder-1", Label: "src", Type: graph.NodeFolder, Path: "/ws/src"},
			{ID: "file-1", Label: "a.js", Type: graph.NodeFile, Path: "/ws/src/a.js", Language: "javascript"},
			{ID: "function-1", Label: "foo", Type: graph.NodeFunction, Path: "/ws/src/a.js"},
		},
		Edges: []graph.Edge{
			{ID: "edge-1", Source: "folder-1", Target: "file-1", Type: graph.EdgeContains},
			{ID: "edge-2", Source: "file-1", Target: "function-1", Type: graph.EdgeContains},
		},
		Stats: graph.Stats{
			TotalNodes:  3,
			TotalEdges:  2,
			NodesByType: graph.NodeTypeCounts{Folder: 1, File: 1, Function: 1},
			EdgesByType: graph.EdgeTypeCounts{Contains: 2},
		},
	}
}

func newTestServer(t *testing.T, save bool) *Server {
	t.Helper()
	backend := storage.NewMemoryBackend()
	if save {
		meta := storage.Meta{Root: "/ws", BuiltAt: time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC), Files: 1}
		require.NoError(t, backend.SaveGraph(context.Background(), testPayload(), meta))
	}
	return NewServer(backend)
}

func TestListTools(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, false)
	tools := s.ListTools()

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		require.NotNil(t, tool.InputSchema, tool.Name)
	}
	assert.Equal(t, []string{"get_graph_stats", "filter_graph", "find_node", "node_neighbors"}, names)
}

func TestCallTool(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestServer(t, true)

	t.Run("GetGraphStats", func(t *testing.T) {
		out, err := s.CallTool(ctx, "get_graph_stats", nil)
		require.NoError(t, err)
		assert.Contains(t, out, "**Nodes:** 3")
		assert.Contains(t, out, "contains: 2")
	})

	t.Run("FilterGraph", func(t *testing.T) {
		out, err := s.CallTool(ctx, "filter_graph", map[string]any{
			"types": []any{"file", "folder"},
		})
		require.NoError(t, err)

		var payload graph.Payload
		require.NoError(t, json.Unmarshal([]byte(out), &payload))
		assert.Len(t, payload.Nodes, 2)
		assert.Len(t, payload.Edges, 1)
		assert.Equal(t, 0, payload.Stats.NodesByType.Function)
	})

	t.Run("FilterGraphUnknownType", func(t *testing.T) {
		out, err := s.CallTool(ctx, "filter_graph", map[string]any{
			"types": []any{"widget"},
		})
		require.NoError(t, err)
		assert.Contains(t, out, "Unknown node type")
	})

	t.Run("FindNode", func(t *testing.T) {
		out, err := s.CallTool(ctx, "find_node", map[string]any{"query": "foo"})
		require.NoError(t, err)
		assert.Contains(t, out, "**foo**")
		assert.Contains(t, out, "function-1")
	})

	t.Run("FindNodeNoMatch", func(t *testing.T) {
		out, err := s.CallTool(ctx, "find_node", map[string]any{"query": "zzz"})
		require.NoError(t, err)
		assert.Contains(t, out, "No nodes match")
	})

	t.Run("NodeNeighbors", func(t *testing.T) {
		out, err := s.CallTool(ctx, "node_neighbors", map[string]any{"id": "file-1"})
		require.NoError(t, err)
		assert.Contains(t, out, "← contains **src** (folder-1)")
		assert.Contains(t, out, "→ contains **foo** (function-1)")
	})

	t.Run("NodeNeighborsUnknownID", func(t *testing.T) {
		out, err := s.CallTool(ctx, "node_neighbors", map[string]any{"id": "file-99"})
		require.NoError(t, err)
		assert.Contains(t, out, "not found")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		_, err := s.CallTool(ctx, "bogus", nil)
		require.Error(t, err)
	})
}

func TestCallTool_NoGraph(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestServer(t, false)

	for _, tc := range []struct {
		name string
		args map[string]any
	}{
		{"get_graph_stats", nil},
		{"filter_graph", map[string]any{"types": []any{"file"}}},
		{"find_node", map[string]any{"query": "x"}},
		{"node_neighbors", map[string]any{"id": "file-1"}},
	} {
		out, err := s.CallTool(ctx, tc.name, tc.args)
		require.NoError(t, err, tc.name)
		assert.Contains(t, out, "No graph built yet", tc.name)
	}
}

func TestReadResource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestServer(t, true)

	overview, err := s.ReadResource(ctx, "codegraph://overview")
	require.NoError(t, err)
	assert.Contains(t, overview, "**Workspace:** /ws")
	assert.Contains(t, overview, "**Nodes:** 3")

	schema, err := s.ReadResource(ctx, "codegraph://schema")
	require.NoError(t, err)
	assert.Contains(t, schema, "`folder`")
	assert.Contains(t, schema, "`imports`")

	_, err = s.ReadResource(ctx, "codegraph://bogus")
	require.Error(t, err)
}

func TestHandleRequest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestServer(t, true)

	t.Run("Initialize", func(t *testing.T) {
		resp := s.handleRequest(ctx, map[string]any{"method": "initialize", "id": float64(1)})
		result, ok := resp["result"].(map[string]any)
		require.True(t, ok)
		info := result["serverInfo"].(map[string]any)
		assert.Equal(t, "codegraph", info["name"])
	})

	t.Run("ToolsList", func(t *testing.T) {
		resp := s.handleRequest(ctx, map[string]any{"method": "tools/list", "id": float64(2)})
		result := resp["result"].(map[string]any)
		tools := result["tools"].([]map[string]any)
		assert.Len(t, tools, 4)
	})

	t.Run("ToolsCall", func(t *testing.T) {
		resp := s.handleRequest(ctx, map[string]any{
			"method": "tools/call",
			"id":     float64(3),
			"params": map[string]any{
				"name":      "get_graph_stats",
				"arguments": map[string]any{},
			},
		})
		result := resp["result"].(map[string]any)
		content := result["content"].([]map[string]any)
		require.Len(t, content, 1)
		assert.Contains(t, content[0]["text"].(string), "**Nodes:** 3")
	})

	t.Run("UnknownMethod", func(t *testing.T) {
		resp := s.handleRequest(ctx, map[string]any{"method": "nope", "id": float64(4)})
		_, hasErr := resp["error"]
		assert.True(t, hasErr)
	})
}

func TestRun_Stdio(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, true)

	input := `{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n"
	var out bytes.Buffer

	err := s.Run(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, float64(1), first["id"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	result := second["result"].(map[string]any)
	assert.Len(t, result["tools"], 4)
}

func TestRun_NilStreams(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, false)
	require.Error(t, s.Run(context.Background(), nil, nil))
}
