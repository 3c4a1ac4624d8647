package expertise

// Metrics computes the statistics of an assignment over the given edges.
// A nil subset uses every edge of the graph. Edges with an unknown value
// are ignored, and a statistic without edges is 0.
func (g *Graph) Metrics(a Assignment, subset []Edge) Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metricsLocked(a, g.scope(subset))
}

// scope returns the edge set analysis is restricted to.
func (g *Graph) scope(subset []Edge) map[edgeKey]Edge {
	if subset == nil {
		return g.edges
	}
	out := make(map[edgeKey]Edge, len(subset))
	for _, e := range subset {
		// The graph's own value wins over a stale copy.
		if cur, ok := g.edges[e.key()]; ok {
			out[e.key()] = cur
		}
	}
	return out
}

func (g *Graph) metricsLocked(a Assignment, edges map[edgeKey]Edge) Stats {
	var s Stats
	if n, ok := g.nodes[a.Source]; ok {
		s = n.stats[a.Concept]
	}
	var (
		cpt, spt, vst float64
		nJ, nS, nC    int
	)
	for _, e := range edges {
		if e.From != a || e.Value < 0 {
			continue
		}
		switch e.Type() {
		case Join:
			cpt += float64(e.Value)
			nJ++
		case Subset:
			spt += float64(e.Value - s.Count)
			nS++
		case Containment:
			vst += float64(e.Value)
			nC++
		}
	}
	s.CPT = safeDiv(cpt, float64(nJ))
	s.SPT = safeDiv(spt, float64(nS))
	s.VST = safeDiv(vst, float64(nC))
	return s
}

// FullAnalysis recomputes the statistics of every node's concepts over the
// given edges, or over every edge when subset is nil. Running it twice over
// the same edges yields the same statistics.
//
// The pass holds the write lock, so a concurrent Consult lands either
// before or after it and every node is replaced by one computed from the
// current edges. Readers see a node either wholly before or wholly after.
func (g *Graph) FullAnalysis(subset []Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	edges := g.scope(subset)
	for source, n := range g.nodes {
		next := &Node{source: n.source, stats: make(map[string]Stats, len(n.stats))}
		for concept := range n.stats {
			next.stats[concept] = g.metricsLocked(Assignment{Source: n.source, Concept: concept}, edges)
		}
		for _, e := range edges {
			if e.From.Source == n.source && e.Value >= 0 {
				next.degree++
			}
		}
		g.nodes[source] = next
	}
}

// Consult records that a concept of a source was used to answer a query.
func (g *Graph) Consult(a Assignment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[a.Source]
	if !ok {
		return
	}
	s, ok := n.stats[a.Concept]
	if !ok {
		return
	}
	s.Consulted++
	g.nodes[a.Source] = n.with(a.Concept, s)
}
