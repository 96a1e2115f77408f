package graph

import "strconv"

// identityKey is the composite registry key. Including the node type means
// entities of different types can never collide on the same raw key.
type identityKey struct {
	nodeType NodeType
	key      string
}

// registry assigns and deduplicates stable node identifiers across one
// build: one generated id per distinct (type, canonical key) pair. The
// counter is monotonic within a build and resets with the registry, so
// rebuilding from identical input reproduces identical ids.
type registry struct {
	ids  map[identityKey]string
	next int
}

func newRegistry() *registry {
	return &registry{ids: make(map[identityKey]string)}
}

// getOrAssign returns the id already recorded for (nodeType, key), or
// generates and records a new one. existed reports whether the mapping was
// already present.
func (r *registry) getOrAssign(nodeType NodeType, key string) (id string, existed bool) {
	k := identityKey{nodeType: nodeType, key: key}
	if id, ok := r.ids[k]; ok {
		return id, true
	}
	id = string(nodeType) + "-" + strconv.Itoa(r.next)
	r.next++
	r.ids[k] = id
	return id, false
}

// lookup returns the id recorded for (nodeType, key) without assigning.
func (r *registry) lookup(nodeType NodeType, key string) (string, bool) {
	id, ok := r.ids[identityKey{nodeType: nodeType, key: key}]
	return id, ok
}

// reset clears all mappings and restarts the counter.
func (r *registry) reset() {
	r.ids = make(map[identityKey]string)
	r.next = 0
}
