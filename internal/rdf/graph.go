package rdf

import (
	"fmt"
	"sort"
	"strings"
)

// Triple is a subject, predicate, object statement or pattern.
type Triple struct {
	Subject   Term `json:"subject" yaml:"subject"`
	Predicate Term `json:"predicate" yaml:"predicate"`
	Object    Term `json:"object" yaml:"object"`
}

// NewTriple builds a triple.
func NewTriple(s, p, o Term) Triple {
	return Triple{Subject: s, Predicate: p, Object: o}
}

// IsGround reports whether the triple contains no variables.
func (t Triple) IsGround() bool {
	return !t.Subject.IsVariable() && !t.Predicate.IsVariable() && !t.Object.IsVariable()
}

// Validate checks that the triple is a legal data statement.
func (t Triple) Validate() error {
	if !t.IsGround() {
		return fmt.Errorf("triple contains variables: %s", t)
	}
	if t.Subject.Kind == KindLiteral {
		return fmt.Errorf("literal in subject position: %s", t)
	}
	if t.Predicate.Kind != KindIRI {
		return fmt.Errorf("predicate must be an IRI: %s", t)
	}
	if t.Subject.IsZero() || t.Object.IsZero() {
		return fmt.Errorf("incomplete triple: %s", t)
	}
	return nil
}

// Signature is a sortable key for the triple.
func (t Triple) Signature() string {
	return t.Subject.Signature() + " " + t.Predicate.Signature() + " " + t.Object.Signature()
}

// String renders the triple in N-Triples form.
func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s .", t.Subject, t.Predicate, t.Object)
}

// Graph is an in-memory set of ground triples.
//
// Adding is idempotent and order independent, so merging partial graphs in
// any order yields the same set. Graph is not safe for concurrent mutation.
type Graph struct {
	triples map[Triple]struct{}
}

// NewGraph returns an empty graph holding the given triples.
func NewGraph(triples ...Triple) *Graph {
	g := &Graph{triples: make(map[Triple]struct{}, len(triples))}
	for _, t := range triples {
		g.triples[t] = struct{}{}
	}
	return g
}

// Add inserts a triple and reports whether it was new.
func (g *Graph) Add(t Triple) bool {
	if _, ok := g.triples[t]; ok {
		return false
	}
	g.triples[t] = struct{}{}
	return true
}

// Merge adds every triple of other and returns the number of new triples.
func (g *Graph) Merge(other *Graph) int {
	if other == nil {
		return 0
	}
	added := 0
	for t := range other.triples {
		if g.Add(t) {
			added++
		}
	}
	return added
}

// Contains reports membership.
func (g *Graph) Contains(t Triple) bool {
	_, ok := g.triples[t]
	return ok
}

// Len returns the number of triples.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.triples)
}

// Triples returns the triples sorted by signature.
func (g *Graph) Triples() []Triple {
	out := make([]Triple, 0, len(g.triples))
	for t := range g.triples {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Signature() < out[j].Signature()
	})
	return out
}

// Match returns the triples matching the pattern. Variable or zero terms
// act as wildcards.
func (g *Graph) Match(pattern Triple) []Triple {
	var out []Triple
	for t := range g.triples {
		if matchTerm(pattern.Subject, t.Subject) &&
			matchTerm(pattern.Predicate, t.Predicate) &&
			matchTerm(pattern.Object, t.Object) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Signature() < out[j].Signature()
	})
	return out
}

// Equal reports whether two graphs hold the same triples.
func (g *Graph) Equal(other *Graph) bool {
	if g.Len() != other.Len() {
		return false
	}
	for t := range g.triples {
		if !other.Contains(t) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	c.Merge(g)
	return c
}

// NTriples renders the graph, one sorted statement per line.
func (g *Graph) NTriples() string {
	var b strings.Builder
	for _, t := range g.Triples() {
		b.WriteString(t.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func matchTerm(pattern, value Term) bool {
	if pattern.IsZero() || pattern.IsVariable() {
		return true
	}
	return pattern == value
}
