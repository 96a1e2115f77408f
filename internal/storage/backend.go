// Package storage persists graph payloads between builds.
//
// It defines the Backend protocol that all storage implementations must
// satisfy, along with the metadata stored beside each snapshot.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/codegraph-dev/codegraph/internal/graph"
)

// ErrNoGraph is returned when no graph snapshot has been saved yet.
var ErrNoGraph = errors.New("storage: no graph saved")

// Meta describes the snapshot currently held by a backend.
type Meta struct {
	// Root is the workspace root the graph was built from.
	Root string `json:"root"`

	// BuiltAt is when the snapshot was produced.
	BuiltAt time.Time `json:"builtAt"`

	// Files is the number of file records that entered the build.
	Files int `json:"files"`
}

// Backend defines the interface for storage implementations.
//
// Implementations must be thread-safe. Saves replace the whole snapshot;
// there are no partial updates, the graph lifecycle is full rebuild.
type Backend interface {
	// Initialize opens or creates the backend at the given path.
	// If readOnly is true, the backend is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// SaveGraph replaces the stored snapshot with the given payload.
	SaveGraph(ctx context.Context, payload *graph.Payload, meta Meta) error

	// LoadGraph returns the stored snapshot, or ErrNoGraph when none
	// has been saved.
	LoadGraph(ctx context.Context) (*graph.Payload, *Meta, error)

	// Stats returns the stored snapshot's stats without loading the
	// full payload.
	Stats(ctx context.Context) (*graph.Stats, error)

	// FindNodes returns up to limit nodes whose label or path contains
	// the query, case-insensitively. limit <= 0 means no limit.
	FindNodes(ctx context.Context, query string, limit int) ([]graph.Node, error)
}

// matchNode reports whether a node matches a find query.
func matchNode(node *graph.Node, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(node.Label), q) ||
		strings.Contains(strings.ToLower(node.Path), q) ||
		strings.Contains(strings.ToLower(node.RelativePath), q)
}
