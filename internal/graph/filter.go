package graph

// Filter returns the subgraph induced by the allowed node types: nodes of
// those types plus only edges whose both endpoints survive, with stats
// recomputed independently. It never mutates the input payload, so views
// can be filtered without re-running the build.
func Filter(payload *Payload, allowed ...NodeType) *Payload {
	allowedSet := make(map[NodeType]struct{}, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = struct{}{}
	}

	nodes := []Node{}
	kept := make(map[string]struct{})
	for _, n := range payload.Nodes {
		if _, ok := allowedSet[n.Type]; ok {
			nodes = append(nodes, n)
			kept[n.ID] = struct{}{}
		}
	}

	edges := []Edge{}
	for _, e := range payload.Edges {
		if _, ok := kept[e.Source]; !ok {
			continue
		}
		if _, ok := kept[e.Target]; !ok {
			continue
		}
		edges = append(edges, e)
	}

	return &Payload{
		Nodes: nodes,
		Edges: edges,
		Stats: computeStats(nodes, edges),
	}
}
