package decompose

import (
	"io"
	"log/slog"
	"sort"

	"github.com/goldenagents/gafed/internal/expertise"
)

// Matcher annotates the triples of a query with the sources that can and
// the sources that will answer them.
type Matcher interface {
	Analyze(qi *QueryInfo) error
}

// SourceMatch is a candidate source for a non-key triple, found through a
// key triple sharing its variable.
type SourceMatch struct {
	Source string
	// KeyConcepts counts the key triples of the variable that only this
	// source can answer.
	KeyConcepts int
	// Ratio is the fraction of the key concept's entities that also carry
	// the non-key concept at the source.
	Ratio float64
	// Count is the number of entities of the non-key concept at the source.
	Count int
}

// Perfect reports whether every key entity carries the non-key concept.
func (m SourceMatch) Perfect() bool { return m.Ratio == 1 }

// SourceMatcher selects sources by advertised expertise.
//
// A source can answer a triple when it advertises every concept the triple
// mentions. A triple with exactly one such source is a key triple of its
// variables. Other simple triples of the same variable are then sent to a
// key source whose entities all carry the triple's concept, so that the
// variable can be joined within one source.
type SourceMatcher struct {
	experts map[string]*expertise.Expertise
	sources []string
	logger  *slog.Logger
}

// NewSourceMatcher returns a matcher over the given expertise per source.
func NewSourceMatcher(experts map[string]*expertise.Expertise, logger *slog.Logger) *SourceMatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sources := make([]string, 0, len(experts))
	for s := range experts {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return &SourceMatcher{experts: experts, sources: sources, logger: logger}
}

// Analyze annotates qi.
func (m *SourceMatcher) Analyze(qi *QueryInfo) error {
	m.matchSources(qi)
	if err := checkTriples(qi); err != nil {
		return err
	}
	keys, importance := findKeyConstraints(qi)
	m.selectSources(qi, keys, importance)
	return nil
}

func (m *SourceMatcher) matchSources(qi *QueryInfo) {
	for _, t := range qi.Triples {
		concepts := t.Concepts()
		if len(concepts) == 0 {
			continue
		}
		for _, s := range m.sources {
			if m.capable(s, concepts) {
				t.addPossible(s)
			}
		}
	}
}

func (m *SourceMatcher) capable(source string, concepts []string) bool {
	e := m.experts[source]
	for _, c := range concepts {
		if !e.IsCapable(c) {
			return false
		}
	}
	return true
}

// checkTriples fails when some triple mentions no concept, or when no source
// can answer it.
func checkTriples(qi *QueryInfo) error {
	var unmapped, unavailable []*TripleInfo
	for _, t := range qi.Triples {
		switch {
		case len(t.Concepts()) == 0:
			unmapped = append(unmapped, t)
		case len(t.possible) == 0:
			unavailable = append(unavailable, t)
		}
	}
	if len(unmapped) > 0 {
		return &DecompositionError{
			Code:    ErrCodeBadQuery,
			Message: "could not be mapped to sources, none of the used concepts occur in any mapping",
			Triples: tripleStrings(unmapped),
		}
	}
	if len(unavailable) > 0 {
		return missingExpert("no expert could be found for the following triples", unavailable)
	}
	return nil
}

// findKeyConstraints collects, per variable, the triples only one source
// can answer, and counts per variable how many of them each source holds.
func findKeyConstraints(qi *QueryInfo) (map[string][]*TripleInfo, map[string]map[string]int) {
	keys := map[string][]*TripleInfo{}
	importance := map[string]map[string]int{}
	for _, v := range qi.Variables() {
		importance[v] = map[string]int{}
		for _, t := range qi.TriplesOf(v) {
			if len(t.possible) != 1 {
				continue
			}
			keys[v] = append(keys[v], t)
			importance[v][t.possible[0]]++
		}
	}
	return keys, importance
}

func (m *SourceMatcher) selectSources(qi *QueryInfo, keys map[string][]*TripleInfo, importance map[string]map[string]int) {
	for _, v := range qi.Variables() {
		key := keys[v]
		for _, t := range qi.TriplesOf(v) {
			if len(t.possible) == 1 {
				t.choose(t.possible[0])
				continue
			}
			if len(key) == 0 || !t.Predicate.IsSimple() {
				continue
			}
			perfect := m.perfectMatches(t, key, importance[v])
			if len(perfect) == 0 {
				continue
			}
			t.choose(perfect[0].Source)
			m.logger.Debug("source selected through key triple",
				"triple", t.String(),
				"variable", v,
				"source", perfect[0].Source,
				"key_concepts", perfect[0].KeyConcepts)
		}
	}
}

// perfectMatches returns the perfect matches of t against the key triples,
// most important source first.
func (m *SourceMatcher) perfectMatches(t *TripleInfo, key []*TripleInfo, importance map[string]int) []SourceMatch {
	var out []SourceMatch
	for _, concept := range t.Concepts() {
		for _, k := range key {
			source := k.possible[0]
			if !t.IsPossible(source) {
				continue
			}
			e := m.experts[source]
			match := SourceMatch{
				Source:      source,
				KeyConcepts: importance[source],
				Ratio:       e.CombinationRatio(k.Concepts()[0], concept),
				Count:       e.Count(concept),
			}
			if match.Perfect() {
				out = append(out, match)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].KeyConcepts > out[j].KeyConcepts })
	return out
}

// Policy names how the graph matcher ranks candidate sources of a concept.
type Policy string

const (
	// PolicyMostConnective picks the source with the highest CPT.
	PolicyMostConnective Policy = "most-connective"
	// PolicyHighestPerforming picks the source with the most entities.
	PolicyHighestPerforming Policy = "highest-performing"
	// PolicyMostVersatile picks the source with the highest VST.
	PolicyMostVersatile Policy = "most-versatile"
)

func (p Policy) score(s expertise.Stats) float64 {
	switch p {
	case PolicyHighestPerforming:
		return float64(s.Count)
	case PolicyMostVersatile:
		return s.VST
	default:
		return s.CPT
	}
}

// ComplexSourceMatcher selects sources by their statistics in the
// expertise graph. For every concept of a triple the best ranked possible
// source under the policy answers it.
type ComplexSourceMatcher struct {
	base   *SourceMatcher
	graph  *expertise.Graph
	policy Policy
}

// NewComplexSourceMatcher returns a graph matcher. An empty policy means
// PolicyMostConnective.
func NewComplexSourceMatcher(experts map[string]*expertise.Expertise, graph *expertise.Graph, policy Policy, logger *slog.Logger) *ComplexSourceMatcher {
	if policy == "" {
		policy = PolicyMostConnective
	}
	return &ComplexSourceMatcher{
		base:   NewSourceMatcher(experts, logger),
		graph:  graph,
		policy: policy,
	}
}

// Policy returns the ranking policy.
func (m *ComplexSourceMatcher) Policy() Policy { return m.policy }

// Analyze annotates qi.
func (m *ComplexSourceMatcher) Analyze(qi *QueryInfo) error {
	m.base.matchSources(qi)
	if err := checkTriples(qi); err != nil {
		return err
	}
	for _, t := range qi.Triples {
		for _, concept := range t.Concepts() {
			if source, ok := m.bestSource(t, concept); ok {
				t.choose(source)
			}
		}
	}
	return nil
}

func (m *ComplexSourceMatcher) bestSource(t *TripleInfo, concept string) (string, bool) {
	var (
		best  string
		value float64
		found bool
	)
	for _, s := range t.possible {
		n, ok := m.graph.Node(s)
		if !ok {
			continue
		}
		stat, ok := n.Stat(concept)
		if !ok {
			continue
		}
		if v := m.policy.score(stat); !found || v > value {
			best, value, found = s, v, true
		}
	}
	if found {
		m.base.logger.Debug("source assigned",
			"triple", t.String(),
			"concept", concept,
			"source", best,
			"policy", string(m.policy))
	}
	return best, found
}
