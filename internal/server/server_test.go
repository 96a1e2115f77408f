package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-dev/codegraph/internal/graph"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

func testPayload() *graph.Payload {
	return &graph.Payload{
		Nodes: []graph.Node{
			{ID: "folder-1", Label: "src", Type: graph.NodeFolder, Path: "/ws/src"},
			{ID: "file-1", Label: "a.js", Type: graph.NodeFile, Path: "/ws/src/a.js"},
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

func newTestServer(t *testing.T, save bool) (*Server, *httptest.Server) {
	t.Helper()

	backend := storage.NewMemoryBackend()
	if save {
		require.NoError(t, backend.SaveGraph(context.Background(), testPayload(), storage.Meta{Root: "/ws"}))
	}

	srv := New(backend, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestHandleGraph(t *testing.T) {
	t.Parallel()

	t.Run("FullPayload", func(t *testing.T) {
		t.Parallel()
		_, ts := newTestServer(t, true)

		resp, err := http.Get(ts.URL + "/graph")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var payload graph.Payload
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Len(t, payload.Nodes, 3)
		assert.Len(t, payload.Edges, 2)
		assert.Equal(t, 3, payload.Stats.TotalNodes)
	})

	t.Run("TypeFilter", func(t *testing.T) {
		t.Parallel()
		_, ts := newTestServer(t, true)

		resp, err := http.Get(ts.URL + "/graph?types=file,folder")
		require.NoError(t, err)
		defer resp.Body.Close()

		var payload graph.Payload
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Len(t, payload.Nodes, 2)
		require.Len(t, payload.Edges, 1)
		assert.Equal(t, "edge-1", payload.Edges[0].ID)
		assert.Equal(t, 0, payload.Stats.NodesByType.Function)
	})

	t.Run("UnknownType", func(t *testing.T) {
		t.Parallel()
		_, ts := newTestServer(t, true)

		resp, err := http.Get(ts.URL + "/graph?types=widget")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("NoGraphYet", func(t *testing.T) {
		t.Parallel()
		_, ts := newTestServer(t, false)

		resp, err := http.Get(ts.URL + "/graph")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestWebSocket(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t, true)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The current snapshot arrives on connect.
	var initial graph.Payload
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, 3, initial.Stats.TotalNodes)

	// Broadcasts push the fresh payload. Registration races the dial
	// returning, so retry briefly.
	rebuilt := testPayload()
	rebuilt.Nodes = rebuilt.Nodes[:1]
	rebuilt.Edges = nil
	rebuilt.Stats = graph.Stats{TotalNodes: 1, NodesByType: graph.NodeTypeCounts{Folder: 1}}

	received := make(chan graph.Payload, 1)
	go func() {
		var p graph.Payload
		if err := conn.ReadJSON(&p); err == nil {
			received <- p
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		srv.Broadcast(rebuilt)
		select {
		case p := <-received:
			assert.Equal(t, 1, p.Stats.TotalNodes)
			return
		case <-deadline:
			t.Fatal("broadcast payload never arrived")
		case <-time.After(100 * time.Millisecond):
		}
	}
}
