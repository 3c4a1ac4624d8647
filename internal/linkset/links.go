package linkset

import (
	"sort"

	"github.com/goldenagents/gafed/internal/rdf"
)

// OWLSameAs links two identifiers of the same entity.
var OWLSameAs = rdf.IRI("http://www.w3.org/2002/07/owl#sameAs")

// Links groups entity identifiers that denote the same thing.
//
// Linking is transitive: adding a-b and b-c places a, b and c in one group.
// Links is not safe for concurrent mutation.
type Links struct {
	parent map[string]string
}

// NewLinks returns an empty set of links.
func NewLinks() *Links {
	return &Links{parent: map[string]string{}}
}

func (l *Links) find(x string) string {
	root := x
	for {
		p, ok := l.parent[root]
		if !ok || p == root {
			break
		}
		root = p
	}
	// Path compression.
	for x != root {
		next := l.parent[x]
		l.parent[x] = root
		x = next
	}
	return root
}

// Add links a and b.
func (l *Links) Add(a, b string) {
	for _, x := range []string{a, b} {
		if _, ok := l.parent[x]; !ok {
			l.parent[x] = x
		}
	}
	ra, rb := l.find(a), l.find(b)
	if ra == rb {
		return
	}
	// The smaller root wins so groups do not depend on insertion order.
	if rb < ra {
		ra, rb = rb, ra
	}
	l.parent[rb] = ra
}

// AddGraph links subject and object of every owl:sameAs statement in g and
// returns the number of statements used.
func (l *Links) AddGraph(g *rdf.Graph) int {
	n := 0
	for _, t := range g.Match(rdf.Triple{Predicate: OWLSameAs}) {
		l.Add(t.Subject.Value, t.Object.Value)
		n++
	}
	return n
}

// Linked reports whether a and b are in the same group.
func (l *Links) Linked(a, b string) bool {
	if a == b {
		return true
	}
	if _, ok := l.parent[a]; !ok {
		return false
	}
	if _, ok := l.parent[b]; !ok {
		return false
	}
	return l.find(a) == l.find(b)
}

// Groups returns every group with its members sorted, ordered by first member.
func (l *Links) Groups() [][]string {
	byRoot := map[string][]string{}
	for x := range l.parent {
		r := l.find(x)
		byRoot[r] = append(byRoot[r], x)
	}
	out := make([][]string, 0, len(byRoot))
	for _, members := range byRoot {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Len returns the number of linked identifiers.
func (l *Links) Len() int { return len(l.parent) }

// Joint returns the members of base that are linked to some member of other
// but are not themselves in other. Together with the plain intersection of
// both sets it counts the entities the two sets share.
func (l *Links) Joint(base, other []string) []string {
	if l == nil || len(l.parent) == 0 {
		return nil
	}
	roots := map[string]bool{}
	in := map[string]bool{}
	for _, o := range other {
		in[o] = true
		if _, ok := l.parent[o]; ok {
			roots[l.find(o)] = true
		}
	}
	var out []string
	for _, b := range base {
		if in[b] {
			continue
		}
		if _, ok := l.parent[b]; !ok {
			continue
		}
		if roots[l.find(b)] {
			out = append(out, b)
		}
	}
	sort.Strings(out)
	return out
}
