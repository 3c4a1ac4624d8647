// Package decompose splits a query over the sources of a federation.
//
// A query is first turned into an inventory (QueryInfo) of triple patterns,
// binds and filters. A strategy then decides which source answers which
// triple, and every source with work to do gets an AgentQuery holding its
// patterns together with the binds and filters that only use variables
// those patterns bind.
package decompose

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/goldenagents/gafed/internal/expertise"
	"github.com/goldenagents/gafed/internal/linkset"
)

// Strategy names a decomposition strategy.
type Strategy string

const (
	// StrategyCapabilities sends a triple to every source advertising one of
	// the concepts it mentions.
	StrategyCapabilities Strategy = "capabilities"
	// StrategyExpertise selects sources with the SourceMatcher.
	StrategyExpertise Strategy = "expertise"
	// StrategyGraph selects sources with the ComplexSourceMatcher.
	StrategyGraph Strategy = "graph"
	// StrategyLinkset prunes sub-queries against the linkset.
	StrategyLinkset Strategy = "linkset"
)

// Strategies lists every strategy.
var Strategies = []Strategy{StrategyCapabilities, StrategyExpertise, StrategyGraph, StrategyLinkset}

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(s)
	if slices.Contains(Strategies, st) {
		return st, nil
	}
	return "", fmt.Errorf("unknown decomposition strategy %q", s)
}

// Federation is what the decomposer knows about the sources.
type Federation struct {
	Experts map[string]*expertise.Expertise
	Graph   *expertise.Graph
	Linkset linkset.Table
	Policy  Policy
}

// Sources returns the source ids sorted.
func (f Federation) Sources() []string {
	out := make([]string, 0, len(f.Experts))
	for s := range f.Experts {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Restrict keeps only the selected sources. An empty selection keeps all.
func (f Federation) Restrict(selected []string) Federation {
	if len(selected) == 0 {
		return f
	}
	out := f
	out.Experts = make(map[string]*expertise.Expertise, len(selected))
	for _, s := range selected {
		if e, ok := f.Experts[s]; ok {
			out.Experts[s] = e
		}
	}
	return out
}

// Capabilities returns the advertised concepts per source.
func (f Federation) Capabilities() map[string][]string {
	out := make(map[string][]string, len(f.Experts))
	for s, e := range f.Experts {
		out[s] = e.Capabilities()
	}
	return out
}

// Plan is the result of a decomposition.
type Plan struct {
	Strategy Strategy
	// Inventory is the annotated copy of the decomposed query.
	Inventory *QueryInfo
	Queries   []*AgentQuery
}

// Sources returns the owners of the sub-queries in order.
func (p *Plan) Sources() []string {
	out := make([]string, len(p.Queries))
	for i, q := range p.Queries {
		out[i] = q.Owner
	}
	return out
}

// Unapplied returns the filters of the inventory that no sub-query carries,
// in inventory order. Such a filter mentions variables that no single source
// binds, so no source evaluates it.
func (p *Plan) Unapplied() []string {
	carried := map[string]bool{}
	for _, q := range p.Queries {
		for _, f := range q.Filters {
			carried[f] = true
		}
	}
	var out []string
	for _, f := range p.Inventory.Filters {
		if !carried[f.Expression] {
			out = append(out, f.Expression)
		}
	}
	return out
}

// For returns the sub-query of a source.
func (p *Plan) For(source string) (*AgentQuery, bool) {
	for _, q := range p.Queries {
		if q.Owner == source {
			return q, true
		}
	}
	return nil, false
}

// Decomposer splits queries. It holds no per-query state, so one Decomposer
// serves any number of concurrent calls.
type Decomposer struct {
	logger *slog.Logger
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithLogger sets the decomposer logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decomposer) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a Decomposer.
func New(opts ...Option) *Decomposer {
	d := &Decomposer{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose splits qi with the given strategy.
func (d *Decomposer) Decompose(qi *QueryInfo, strategy Strategy, fed Federation) (*Plan, error) {
	var (
		plan *Plan
		err  error
	)
	switch strategy {
	case StrategyCapabilities:
		plan, err = d.FromCapabilities(qi, fed.Capabilities())
	case StrategyExpertise:
		plan, err = d.FromMatcher(qi, NewSourceMatcher(fed.Experts, d.logger), fed.Sources())
	case StrategyGraph:
		if fed.Graph == nil {
			return nil, fmt.Errorf("strategy %s needs an expertise graph", strategy)
		}
		m := NewComplexSourceMatcher(fed.Experts, fed.Graph, fed.Policy, d.logger)
		plan, err = d.FromMatcher(qi, m, fed.Sources())
	case StrategyLinkset:
		plan, err = d.FromLinkset(qi, fed.Sources(), fed.Linkset)
	default:
		return nil, fmt.Errorf("unknown decomposition strategy %q", strategy)
	}
	if err != nil {
		d.logger.Info("decomposition failed", "strategy", string(strategy), "error", err)
		return nil, err
	}
	plan.Strategy = strategy
	if unapplied := plan.Unapplied(); len(unapplied) > 0 {
		d.logger.Warn("filters applied by no source",
			"strategy", string(strategy),
			"query", plan.Inventory.ID(),
			"filters", unapplied)
	}
	d.logger.Debug("query decomposed",
		"strategy", string(strategy),
		"query", plan.Inventory.ID(),
		"subqueries", len(plan.Queries))
	return plan, nil
}

// FromCapabilities sends every triple to each source that advertises a
// concept the triple mentions.
func (d *Decomposer) FromCapabilities(qi *QueryInfo, capabilities map[string][]string) (*Plan, error) {
	if err := qi.Validate(); err != nil {
		return nil, err
	}
	inv := qi.Clone()
	sources := make([]string, 0, len(capabilities))
	for s := range capabilities {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	plan := &Plan{Strategy: StrategyCapabilities, Inventory: inv}
	for _, s := range sources {
		var triples []*TripleInfo
		for _, t := range inv.Triples {
			for _, c := range capabilities[s] {
				if t.Contains(c) {
					t.addPossible(s)
					triples = append(triples, t)
					break
				}
			}
		}
		plan.add(finalize(newAgentQuery(s, inv), inv, triples))
	}

	var unmatched []*TripleInfo
	for _, t := range inv.Triples {
		if len(t.possible) == 0 {
			unmatched = append(unmatched, t)
		}
	}
	if len(unmatched) > 0 {
		return nil, missingExpert("no expert could be found for the following triples", unmatched)
	}
	return plan, nil
}

// FromMatcher lets m choose sources and gives every source the triples it
// was chosen for.
func (d *Decomposer) FromMatcher(qi *QueryInfo, m Matcher, sources []string) (*Plan, error) {
	if err := qi.Validate(); err != nil {
		return nil, err
	}
	inv := qi.Clone()
	if err := m.Analyze(inv); err != nil {
		return nil, err
	}
	plan := &Plan{Inventory: inv}
	for _, s := range sources {
		var triples []*TripleInfo
		for _, t := range inv.Triples {
			if t.IsChosen(s) {
				triples = append(triples, t)
			}
		}
		plan.add(finalize(newAgentQuery(s, inv), inv, triples))
	}
	if len(plan.Queries) == 0 {
		return nil, missingExpert("no sources are expert on this query", inv.Triples)
	}
	return plan, nil
}

// FromLinkset builds, per source, a sub-query restricted to the entities and
// properties the linkset records for that source.
//
// For every variable typed by an rdf:type pattern, each linkset entry that
// provides all the variable's predicates for that type contributes the
// source's URI as a value of the variable, and patterns using properties
// the source does not provide for the type are dropped.
func (d *Decomposer) FromLinkset(qi *QueryInfo, sources []string, table linkset.Table) (*Plan, error) {
	if err := qi.Validate(); err != nil {
		return nil, err
	}
	inv := qi.Clone()

	varType := map[string]string{}
	var typeTriple *TripleInfo
	for _, t := range inv.Triples {
		if t.IsTypeTriple() && t.SubjectType == NodeVariable {
			varType[t.Subject] = t.Object
			typeTriple = t
		}
	}
	vars := make([]string, 0, len(varType))
	for v := range varType {
		vars = append(vars, v)
	}
	sort.Strings(vars)

	plan := &Plan{Strategy: StrategyLinkset, Inventory: inv}
	for _, s := range sources {
		triples := slices.Clone(inv.Triples)
		values := map[string][]string{}
		for _, v := range vars {
			typ := varType[v]
			values[v] = nil
			predicates := nonTypePredicates(inv.TriplesOf(v))
			for _, entry := range table.Entries {
				props := entry.AllProperties(typ)
				if len(props) == 0 || !containsAll(props, predicates) {
					continue
				}
				info, ok := entry.Source(s)
				if !ok {
					continue
				}
				values[v] = insertSorted(values[v], info.URI)
				match, _ := info.Match(typ)
				triples = slices.DeleteFunc(triples, func(t *TripleInfo) bool {
					return !t.Predicate.IsSimple() || !match.HasProperty(t.Predicate.Steps[0].IRI)
				})
			}
		}
		if unlinked := unlinkedVariables(vars, values); len(unlinked) > 0 {
			// An empty VALUES block would match nothing at the source.
			d.logger.Debug("source skipped, no linked entities",
				"source", s,
				"variables", unlinked)
			continue
		}
		if typeTriple != nil && !slices.Contains(triples, typeTriple) {
			triples = append(triples, typeTriple)
		}
		for _, t := range triples {
			t.addPossible(s)
		}

		aq := finalize(newAgentQuery(s, inv), inv, triples)
		if len(values) > 0 {
			aq.Values = values
		}
		plan.add(aq)
	}
	if len(plan.Queries) == 0 {
		return nil, missingExpert("no database agents are expert on this query", inv.Triples)
	}
	return plan, nil
}

func unlinkedVariables(vars []string, values map[string][]string) []string {
	var out []string
	for _, v := range vars {
		if len(values[v]) == 0 {
			out = append(out, v)
		}
	}
	return out
}

func nonTypePredicates(triples []*TripleInfo) []string {
	var out []string
	for _, t := range triples {
		if t.IsTypeTriple() {
			continue
		}
		for _, p := range t.Predicate.Predicates() {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

func containsAll(set, items []string) bool {
	for _, it := range items {
		if !slices.Contains(set, it) {
			return false
		}
	}
	return true
}

func (p *Plan) add(aq *AgentQuery) {
	if !aq.IsEmpty() {
		p.Queries = append(p.Queries, aq)
	}
}

// finalize sets the triples of aq and pulls in the binds and filters those
// triples make answerable. A bind joins once it shares a variable with the
// sub-query, making all of its variables known; this repeats until no bind
// is added. A filter joins when all of its variables are known.
func finalize(aq *AgentQuery, qi *QueryInfo, triples []*TripleInfo) *AgentQuery {
	aq.Triples = triples
	known := map[string]bool{}
	for _, v := range aq.Variables() {
		known[v] = true
	}
	if len(triples) == 0 {
		return aq
	}

	included := make([]bool, len(qi.Binds))
	for changed := true; changed; {
		changed = false
		for i, b := range qi.Binds {
			if included[i] || !anyKnown(known, b.Variables) {
				continue
			}
			included[i] = true
			changed = true
			for _, v := range b.Variables {
				known[v] = true
			}
		}
	}
	for i, b := range qi.Binds {
		if included[i] {
			aq.Binds = append(aq.Binds, b.Expression)
		}
	}
	for _, f := range qi.Filters {
		if allKnown(known, f.Variables) {
			aq.Filters = append(aq.Filters, f.Expression)
		}
	}
	return aq
}

func anyKnown(known map[string]bool, vars []string) bool {
	for _, v := range vars {
		if known[v] {
			return true
		}
	}
	return false
}

func allKnown(known map[string]bool, vars []string) bool {
	for _, v := range vars {
		if !known[v] {
			return false
		}
	}
	return true
}
