package storage

import (
	"context"
	"sync"

	"github.com/codegraph-dev/codegraph/internal/graph"
)

// MemoryBackend keeps the snapshot in process memory. It backs tests and
// the serve hot path, where the payload is rebuilt in-process anyway.
type MemoryBackend struct {
	mu      sync.RWMutex
	payload *graph.Payload
	meta    *Meta
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Initialize is a no-op; the path and readOnly flag are ignored.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	return nil
}

// Close drops the stored snapshot.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = nil
	m.meta = nil
	return nil
}

// SaveGraph replaces the stored snapshot with the given payload.
func (m *MemoryBackend) SaveGraph(ctx context.Context, payload *graph.Payload, meta Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = copyPayload(payload)
	m.meta = &meta
	return nil
}

// LoadGraph returns the stored snapshot.
func (m *MemoryBackend) LoadGraph(ctx context.Context) (*graph.Payload, *Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.payload == nil {
		return nil, nil, ErrNoGraph
	}
	meta := *m.meta
	return copyPayload(m.payload), &meta, nil
}

// Stats returns the stored snapshot's stats.
func (m *MemoryBackend) Stats(ctx context.Context) (*graph.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.payload == nil {
		return nil, ErrNoGraph
	}
	stats := m.payload.Stats
	return &stats, nil
}

// FindNodes returns nodes whose label or path contains the query.
func (m *MemoryBackend) FindNodes(ctx context.Context, query string, limit int) ([]graph.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.payload == nil {
		return nil, ErrNoGraph
	}

	var matches []graph.Node
	for i := range m.payload.Nodes {
		if limit > 0 && len(matches) >= limit {
			break
		}
		if matchNode(&m.payload.Nodes[i], query) {
			matches = append(matches, m.payload.Nodes[i])
		}
	}
	return matches, nil
}

// copyPayload clones slices so callers never alias stored state.
func copyPayload(p *graph.Payload) *graph.Payload {
	return &graph.Payload{
		Nodes: append([]graph.Node(nil), p.Nodes...),
		Edges: append([]graph.Edge(nil), p.Edges...),
		Stats: p.Stats,
	}
}
