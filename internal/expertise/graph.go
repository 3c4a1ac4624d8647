package expertise

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Assignment pairs a source with one of its concepts.
type Assignment struct {
	Source  string `json:"source" yaml:"source"`
	Concept string `json:"concept" yaml:"concept"`
}

func (a Assignment) String() string { return a.Source + "/" + a.Concept }

// EdgeType classifies an edge by what its endpoints share.
type EdgeType int

const (
	// Containment edges join two concepts of the same source.
	Containment EdgeType = iota + 1
	// Subset edges join the same concept at two sources.
	Subset
	// Join edges join different concepts at different sources.
	Join
)

// String returns the single-letter edge code C, S or J.
func (t EdgeType) String() string {
	switch t {
	case Containment:
		return "C"
	case Subset:
		return "S"
	case Join:
		return "J"
	default:
		return "?"
	}
}

// Edge is a directed, weighted edge between two assignments. Value counts
// the entities the endpoints have in common; -1 means not computed.
type Edge struct {
	From  Assignment `json:"from" yaml:"from"`
	To    Assignment `json:"to" yaml:"to"`
	Value int        `json:"value" yaml:"value"`
}

// NewEdge returns an edge with an unknown value.
func NewEdge(from, to Assignment) Edge {
	return Edge{From: from, To: to, Value: -1}
}

// Type derives the edge type from its endpoints.
func (e Edge) Type() EdgeType {
	switch {
	case e.From.Source == e.To.Source:
		return Containment
	case e.From.Concept == e.To.Concept:
		return Subset
	default:
		return Join
	}
}

// Reverse returns the edge in the other direction with the same value.
func (e Edge) Reverse() Edge {
	return Edge{From: e.To, To: e.From, Value: e.Value}
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -%s(%d)-> %s", e.From, e.Type(), e.Value, e.To)
}

type edgeKey struct {
	from, to Assignment
}

func (e Edge) key() edgeKey { return edgeKey{from: e.From, to: e.To} }

// Stats holds the per-concept statistics of one node.
//
// CPT is the connectivity of the concept towards other concepts at other
// sources (average J-edge value), SPT the average surplus of the same concept
// at other sources over this one (S edges), and VST the versatility within
// the source (average C-edge value).
type Stats struct {
	Count     int     `json:"count"`
	Consulted int     `json:"consulted"`
	CPT       float64 `json:"cpt"`
	SPT       float64 `json:"spt"`
	VST       float64 `json:"vst"`
}

// NCPT is CPT normalised by the concept count.
func (s Stats) NCPT() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.CPT / float64(s.Count)
}

// NVST is VST normalised by the concept count.
func (s Stats) NVST() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.VST / float64(s.Count)
}

// Node is one source in the graph. A published Node is never mutated; the
// graph swaps in a new Node when statistics change.
type Node struct {
	source string
	stats  map[string]Stats
	degree int
}

// Source returns the source id.
func (n *Node) Source() string { return n.source }

// Stat returns the statistics of a concept.
func (n *Node) Stat(concept string) (Stats, bool) {
	s, ok := n.stats[concept]
	return s, ok
}

// Count returns the entity count of a concept, 0 when unknown.
func (n *Node) Count(concept string) int { return n.stats[concept].Count }

// Concepts returns the node's concepts sorted.
func (n *Node) Concepts() []string {
	out := make([]string, 0, len(n.stats))
	for c := range n.stats {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// TotalCount sums the counts of every concept.
func (n *Node) TotalCount() int {
	total := 0
	for _, s := range n.stats {
		total += s.Count
	}
	return total
}

// Degree returns the number of outgoing edges at the last analysis.
func (n *Node) Degree() int { return n.degree }

func (n *Node) with(concept string, s Stats) *Node {
	next := &Node{source: n.source, degree: n.degree, stats: make(map[string]Stats, len(n.stats)+1)}
	for k, v := range n.stats {
		next.stats[k] = v
	}
	next.stats[concept] = s
	return next
}

// Graph is the expertise graph of a federation.
//
// Graph is safe for concurrent use. Readers see each Node either entirely
// before or entirely after an analysis.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[edgeKey]Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: map[string]*Node{}, edges: map[edgeKey]Edge{}}
}

// AddNode adds or replaces the node of a source with the given concept
// counts. Statistics other than the counts start at zero.
func (g *Graph) AddNode(source string, counts map[string]int) {
	n := &Node{source: source, stats: make(map[string]Stats, len(counts))}
	for c, count := range counts {
		n.stats[c] = Stats{Count: count}
	}
	g.mu.Lock()
	g.nodes[source] = n
	g.mu.Unlock()
}

// AddEdge adds e and its reverse, replacing earlier edges between the same
// assignments.
func (g *Graph) AddEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[e.key()] = e
	r := e.Reverse()
	g.edges[r.key()] = r
}

// Node returns the node of a source.
func (g *Graph) Node(source string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[source]
	return n, ok
}

// Sources returns every source id sorted.
func (g *Graph) Sources() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sourcesLocked()
}

func (g *Graph) sourcesLocked() []string {
	out := make([]string, 0, len(g.nodes))
	for s := range g.nodes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Nodes returns every node ordered by source.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, s := range g.sourcesLocked() {
		out = append(out, g.nodes[s])
	}
	return out
}

// Edges returns every edge in a stable order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filterLocked(func(Edge) bool { return true })
}

func (g *Graph) filterLocked(keep func(Edge) bool) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	sortEdges(out)
	return out
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From != b.From {
			return a.From.String() < b.From.String()
		}
		return a.To.String() < b.To.String()
	})
}

// EdgesOf returns the edges leaving any concept of source.
func (g *Graph) EdgesOf(source string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filterLocked(func(e Edge) bool { return e.From.Source == source })
}

// EdgesFrom returns the edges leaving an assignment.
func (g *Graph) EdgesFrom(a Assignment) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filterLocked(func(e Edge) bool { return e.From == a })
}

// Capables returns the nodes holding at least one entity of concept.
func (g *Graph) Capables(concept string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node
	for _, s := range g.sourcesLocked() {
		if n := g.nodes[s]; n.Count(concept) > 0 {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of nodes and edges.
func (g *Graph) Len() (nodes, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes), len(g.edges)
}

// EdgeOfMaxValue returns the edge leaving a whose target concept is concept
// with the highest value.
func (g *Graph) EdgeOfMaxValue(a Assignment, concept string) (Edge, bool) {
	var best Edge
	found := false
	for _, e := range g.EdgesFrom(a) {
		if e.To.Concept != concept {
			continue
		}
		if !found || e.Value > best.Value {
			best, found = e, true
		}
	}
	return best, found
}

// AssignmentEdges returns the edges whose endpoints are both in list.
func (g *Graph) AssignmentEdges(list []Assignment) []Edge {
	in := make(map[Assignment]bool, len(list))
	for _, a := range list {
		in[a] = true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filterLocked(func(e Edge) bool { return in[e.From] && in[e.To] })
}

// NodeOfMaxCPT returns the capable node with the highest CPT for concept.
func (g *Graph) NodeOfMaxCPT(concept string) (*Node, bool) {
	return g.best(concept, func(s Stats) float64 { return s.CPT }, true)
}

// NodeOfMaxVST returns the capable node with the highest VST for concept.
func (g *Graph) NodeOfMaxVST(concept string) (*Node, bool) {
	return g.best(concept, func(s Stats) float64 { return s.VST }, true)
}

// NodeOfLeastSPT returns the capable node with the lowest SPT for concept.
func (g *Graph) NodeOfLeastSPT(concept string) (*Node, bool) {
	return g.best(concept, func(s Stats) float64 { return s.SPT }, false)
}

// NodeOfHIP returns the capable node with the highest count for concept.
func (g *Graph) NodeOfHIP(concept string) (*Node, bool) {
	return g.best(concept, func(s Stats) float64 { return float64(s.Count) }, true)
}

// best scans the capable nodes in source order; the first of equal scores wins.
func (g *Graph) best(concept string, score func(Stats) float64, highest bool) (*Node, bool) {
	var (
		out   *Node
		value float64
	)
	for _, n := range g.Capables(concept) {
		v := score(n.stats[concept])
		if out == nil || (highest && v > value) || (!highest && v < value) {
			out, value = n, v
		}
	}
	return out, out != nil
}

// Summary describes the size of the graph.
func (g *Graph) Summary() string {
	nodes, edges := g.Len()
	return fmt.Sprintf("Expertise graph has %d nodes and %d edges.", nodes, edges)
}

const tableRow = "%-10s | %5s | %10s | %10s | %10s | %10s | %10s | %6s | %10s | %10s | %10s\n"

// Table renders per-node averages of counts, edge values and statistics,
// followed by an average over every node.
func (g *Graph) Table() string {
	var b strings.Builder
	header := fmt.Sprintf(tableRow, "Agent ID", "#Caps", "Tot Count", "Avg Count",
		"Avg J-edge", "Avg C-edge", "Avg S-edge", "Degree", "Avg CPT", "Avg VST", "Avg SPT")
	b.WriteString(header)
	b.WriteString(strings.Repeat("=", len(header)-1) + "\n")

	nodes := g.Nodes()
	var sum [10]float64
	for _, n := range nodes {
		cols := g.nodeColumns(n)
		for i, v := range cols {
			sum[i] += v
		}
		writeColumns(&b, n.source, cols)
	}
	b.WriteString(strings.Repeat("-", len(header)-1) + "\n")
	if len(nodes) > 0 {
		for i := range sum {
			sum[i] /= float64(len(nodes))
		}
	}
	writeColumns(&b, "Average", sum)
	return b.String()
}

func (g *Graph) nodeColumns(n *Node) [10]float64 {
	caps := float64(len(n.stats))
	total := float64(n.TotalCount())
	var cpt, vst, spt float64
	for _, s := range n.stats {
		cpt += s.CPT
		vst += s.VST
		spt += s.SPT
	}
	edges := g.EdgesOf(n.source)
	return [10]float64{
		caps,
		total,
		safeDiv(total, caps),
		averageOf(edges, Join),
		averageOf(edges, Containment),
		averageOf(edges, Subset),
		float64(n.degree),
		safeDiv(cpt, caps),
		safeDiv(vst, caps),
		safeDiv(spt, caps),
	}
}

func writeColumns(b *strings.Builder, name string, c [10]float64) {
	f := func(v float64) string { return fmt.Sprintf("%.2f", v) }
	fmt.Fprintf(b, tableRow, name,
		fmt.Sprintf("%.0f", c[0]), fmt.Sprintf("%.0f", c[1]), f(c[2]),
		f(c[3]), f(c[4]), f(c[5]), fmt.Sprintf("%.0f", c[6]),
		f(c[7]), f(c[8]), f(c[9]))
}

// averageOf is the mean value over edges of type t with a non-zero value.
func averageOf(edges []Edge, t EdgeType) float64 {
	sum, n := 0, 0
	for _, e := range edges {
		if e.Type() == t && e.Value != 0 {
			sum += e.Value
			n++
		}
	}
	return safeDiv(float64(sum), float64(n))
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
