package expertise

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/goldenagents/gafed/internal/linkset"
)

// Builder grows an expertise graph as sources advertise their expertise.
//
// Every new source gets a node with its concept counts, containment edges
// between its own concepts, and edges to the concepts of every source added
// before it. The whole graph is analysed again after each addition.
type Builder struct {
	graph   *Graph
	experts map[string]*Expertise
	links   *linkset.Links
	logger  *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLinks sets the entity links used to count shared entities across
// sources.
func WithLinks(l *linkset.Links) BuilderOption {
	return func(b *Builder) {
		b.links = l
	}
}

// WithLogger sets the builder logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder returns a builder over an empty graph.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		graph:   NewGraph(),
		experts: map[string]*Expertise{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Graph returns the graph being built.
func (b *Builder) Graph() *Graph { return b.graph }

// Experts returns the expertise of every added source.
func (b *Builder) Experts() map[string]*Expertise {
	out := make(map[string]*Expertise, len(b.experts))
	for k, v := range b.experts {
		out[k] = v
	}
	return out
}

// AddSource adds a source and its advertised expertise.
func (b *Builder) AddSource(source string, e *Expertise) error {
	if source == "" {
		return fmt.Errorf("source id is empty")
	}
	if e == nil {
		return fmt.Errorf("source %s: no expertise", source)
	}
	if _, ok := b.experts[source]; ok {
		return fmt.Errorf("source %s already added", source)
	}

	counts := make(map[string]int, e.Len())
	for _, c := range e.concepts {
		counts[c.Label] = c.Count
	}
	b.graph.AddNode(source, counts)
	b.addSelfEdges(source, e)

	others := make([]string, 0, len(b.experts))
	for id := range b.experts {
		others = append(others, id)
	}
	sort.Strings(others)
	for _, other := range others {
		b.discoverEdges(source, e, other, b.experts[other])
	}
	b.experts[source] = e

	b.graph.FullAnalysis(nil)
	nodes, edges := b.graph.Len()
	b.logger.Debug("expertise source added",
		"source", source,
		"concepts", e.Len(),
		"nodes", nodes,
		"edges", edges)
	return nil
}

// addSelfEdges adds a containment edge for every advertised combination.
func (b *Builder) addSelfEdges(source string, e *Expertise) {
	for _, c := range e.concepts {
		from := Assignment{Source: source, Concept: c.Label}
		for other, comb := range c.Combinations {
			if !e.IsCapable(other) {
				continue
			}
			b.graph.AddEdge(Edge{From: from, To: Assignment{Source: source, Concept: other}, Value: comb})
		}
	}
}

// discoverEdges connects every concept of a newcomer with every concept of
// an existing source. The same concept at both is a subset edge worth the
// entities of either; different concepts form a join edge worth the
// entities they share directly or through links.
func (b *Builder) discoverEdges(source string, e *Expertise, other string, o *Expertise) {
	for _, c1 := range e.concepts {
		from := Assignment{Source: source, Concept: c1.Label}
		for _, c2 := range o.concepts {
			to := Assignment{Source: other, Concept: c2.Label}
			var value int
			if c1.Label == c2.Label {
				value = len(union(c1.Entities, c2.Entities))
			} else {
				shared := intersect(c1.Entities, c2.Entities)
				shared = union(shared, b.links.Joint(c1.Entities, c2.Entities))
				value = len(shared)
			}
			b.graph.AddEdge(Edge{From: from, To: to, Value: value})
		}
	}
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func intersect(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	var out []string
	for _, s := range a {
		if in[s] {
			out = append(out, s)
			delete(in, s)
		}
	}
	return out
}
