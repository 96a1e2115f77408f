package graph

import "strconv"

// edgeKey identifies an edge for deduplication: duplicate structural
// relationships between the same two nodes collapse into one edge.
type edgeKey struct {
	source   string
	target   string
	edgeType EdgeType
}

// store accumulates the node and edge collections for one graph build.
// It enforces the no-duplicate invariants: one node per (type, canonical
// key), one edge per (source, target, type). It is not safe for concurrent
// use; a Builder owns its store exclusively for the duration of a build.
type store struct {
	nodes []Node
	edges []Edge

	reg      *registry
	edgeSeen map[edgeKey]struct{}
	edgeSeq  int
}

func newStore() *store {
	s := &store{reg: newRegistry()}
	s.reset()
	return s
}

// reset clears nodes, edges, and identity mappings. Called at the start of
// every build.
func (s *store) reset() {
	s.nodes = s.nodes[:0]
	s.edges = s.edges[:0]
	s.edgeSeen = make(map[edgeKey]struct{})
	s.edgeSeq = 0
	s.reg.reset()
}

// addNode inserts a node under the given canonical key, assigning its id.
// The insert is idempotent: a repeated (type, key) returns the existing
// node's id without inserting a duplicate.
func (s *store) addNode(node Node, key string) string {
	id, existed := s.reg.getOrAssign(node.Type, key)
	if existed {
		return id
	}
	node.ID = id
	s.nodes = append(s.nodes, node)
	return id
}

// nodeID returns the id of the node registered under (nodeType, key), if any.
func (s *store) nodeID(nodeType NodeType, key string) (string, bool) {
	return s.reg.lookup(nodeType, key)
}

// addEdge inserts an edge unless an edge with the same (source, target,
// type) already exists; the first occurrence's label wins.
func (s *store) addEdge(source, target string, edgeType EdgeType, label string) {
	k := edgeKey{source: source, target: target, edgeType: edgeType}
	if _, ok := s.edgeSeen[k]; ok {
		return
	}
	s.edgeSeen[k] = struct{}{}
	s.edges = append(s.edges, Edge{
		ID:     "edge-" + strconv.Itoa(s.edgeSeq),
		Source: source,
		Target: target,
		Type:   edgeType,
		Label:  label,
	})
	s.edgeSeq++
}

// payload snapshots the accumulated graph. The returned slices are copies,
// so later resets cannot reach into a payload already handed out.
func (s *store) payload() *Payload {
	nodes := make([]Node, len(s.nodes))
	copy(nodes, s.nodes)
	edges := make([]Edge, len(s.edges))
	copy(edges, s.edges)

	return &Payload{
		Nodes: nodes,
		Edges: edges,
		Stats: computeStats(nodes, edges),
	}
}
