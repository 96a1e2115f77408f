package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/codegraph-dev/codegraph/internal/graph"
)

// Key prefixes for different data types. Node and edge keys carry the
// payload position so iteration order matches build order.
const (
	prefixNode = "n:" // node data
	prefixEdge = "e:" // edge data
	keyStats   = "m:stats"
	keyMeta    = "m:meta"
)

// BadgerBackend is a BadgerDB-backed storage implementation.
type BadgerBackend struct {
	mu sync.RWMutex
	db *badger.DB
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// SaveGraph replaces the stored snapshot with the given payload.
func (b *BadgerBackend) SaveGraph(ctx context.Context, payload *graph.Payload, meta Meta) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return fmt.Errorf("backend not initialized")
	}
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range payload.Nodes {
		data, err := json.Marshal(&payload.Nodes[i])
		if err != nil {
			return fmt.Errorf("marshaling node: %w", err)
		}
		if err := wb.Set(orderedKey(prefixNode, i), data); err != nil {
			return fmt.Errorf("setting node: %w", err)
		}
	}

	for i := range payload.Edges {
		data, err := json.Marshal(&payload.Edges[i])
		if err != nil {
			return fmt.Errorf("marshaling edge: %w", err)
		}
		if err := wb.Set(orderedKey(prefixEdge, i), data); err != nil {
			return fmt.Errorf("setting edge: %w", err)
		}
	}

	stats, err := json.Marshal(payload.Stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	if err := wb.Set([]byte(keyStats), stats); err != nil {
		return fmt.Errorf("setting stats: %w", err)
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	if err := wb.Set([]byte(keyMeta), metaData); err != nil {
		return fmt.Errorf("setting meta: %w", err)
	}

	return wb.Flush()
}

// LoadGraph returns the stored snapshot.
func (b *BadgerBackend) LoadGraph(ctx context.Context) (*graph.Payload, *Meta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, nil, fmt.Errorf("backend not initialized")
	}

	payload := &graph.Payload{Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	var meta Meta

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyMeta))
		if err == badger.ErrKeyNotFound {
			return ErrNoGraph
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return fmt.Errorf("unmarshaling meta: %w", err)
		}

		item, err = txn.Get([]byte(keyStats))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &payload.Stats)
		}); err != nil {
			return fmt.Errorf("unmarshaling stats: %w", err)
		}

		if err := iterate(txn, prefixNode, func(val []byte) error {
			var node graph.Node
			if err := json.Unmarshal(val, &node); err != nil {
				return err
			}
			payload.Nodes = append(payload.Nodes, node)
			return nil
		}); err != nil {
			return err
		}

		return iterate(txn, prefixEdge, func(val []byte) error {
			var edge graph.Edge
			if err := json.Unmarshal(val, &edge); err != nil {
				return err
			}
			payload.Edges = append(payload.Edges, edge)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}

	return payload, &meta, nil
}

// Stats returns the stored snapshot's stats.
func (b *BadgerBackend) Stats(ctx context.Context) (*graph.Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, fmt.Errorf("backend not initialized")
	}

	var stats graph.Stats
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyStats))
		if err == badger.ErrKeyNotFound {
			return ErrNoGraph
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stats)
		})
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// FindNodes returns nodes whose label or path contains the query.
func (b *BadgerBackend) FindNodes(ctx context.Context, query string, limit int) ([]graph.Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, fmt.Errorf("backend not initialized")
	}

	var matches []graph.Node
	err := b.db.View(func(txn *badger.Txn) error {
		return iterate(txn, prefixNode, func(val []byte) error {
			if limit > 0 && len(matches) >= limit {
				return nil
			}
			var node graph.Node
			if err := json.Unmarshal(val, &node); err != nil {
				return err
			}
			if matchNode(&node, query) {
				matches = append(matches, node)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// iterate visits every value under a key prefix in key order.
func iterate(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// orderedKey builds a prefix key whose lexicographic order matches the
// payload position.
func orderedKey(prefix string, i int) []byte {
	return []byte(fmt.Sprintf("%s%08d", prefix, i))
}
