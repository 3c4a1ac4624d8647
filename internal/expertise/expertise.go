// Package expertise models what data sources know about.
//
// An Expertise is the advertisement of a single source: for every concept
// (a class or a property of the shared ontology) how many entities it holds
// and how often the concept co-occurs with every other concept on the same
// entity. A Graph combines the expertise of every source of a federation
// into nodes and typed edges that the source matchers rank by.
package expertise

import (
	"fmt"
	"strings"
)

// ConceptInfo is what a source knows about one concept.
type ConceptInfo struct {
	Label   string `json:"label" yaml:"label"`
	Count   int    `json:"count" yaml:"count"`
	IsClass bool   `json:"is_class" yaml:"is_class"`
	// Combinations counts the entities of this concept that also carry the
	// keyed concept.
	Combinations map[string]int `json:"combinations,omitempty" yaml:"combinations,omitempty"`
	// Entities holds the identifiers of the entities behind Count. It is
	// only needed to discover edges and may be empty.
	Entities []string `json:"entities,omitempty" yaml:"entities,omitempty"`
}

// Combination returns the number of entities carrying both this concept and
// other, or 0 when unknown.
func (c ConceptInfo) Combination(other string) int {
	return c.Combinations[other]
}

// Ratio returns the fraction of this concept's entities that also carry
// other. It is 1 for the concept itself, even when no count was advertised,
// 0 when the combination is unknown, and never exceeds 1.
func (c ConceptInfo) Ratio(other string) float64 {
	if other == c.Label {
		return 1
	}
	if c.Count <= 0 {
		return 0
	}
	comb, ok := c.Combinations[other]
	if !ok || comb <= 0 {
		return 0
	}
	if comb >= c.Count {
		return 1
	}
	return float64(comb) / float64(c.Count)
}

func (c ConceptInfo) clone() ConceptInfo {
	out := c
	if c.Combinations != nil {
		out.Combinations = make(map[string]int, len(c.Combinations))
		for k, v := range c.Combinations {
			out.Combinations[k] = v
		}
	}
	out.Entities = append([]string(nil), c.Entities...)
	return out
}

// Expertise is the advertised knowledge of one source. Concepts keep the
// order in which they were added.
type Expertise struct {
	concepts []ConceptInfo
	index    map[string]int
}

// New builds an expertise from concept infos. A later info for the same
// label replaces the earlier one.
func New(infos ...ConceptInfo) *Expertise {
	e := &Expertise{index: map[string]int{}}
	for _, info := range infos {
		e.Add(info)
	}
	return e
}

// FromCapabilities builds an expertise that only lists concepts, for sources
// that advertise capabilities without statistics.
func FromCapabilities(labels ...string) *Expertise {
	e := New()
	for _, l := range labels {
		e.Add(ConceptInfo{Label: l})
	}
	return e
}

// Add inserts or replaces the info for info.Label.
func (e *Expertise) Add(info ConceptInfo) {
	info = info.clone()
	if i, ok := e.index[info.Label]; ok {
		e.concepts[i] = info
		return
	}
	e.index[info.Label] = len(e.concepts)
	e.concepts = append(e.concepts, info)
}

// Len returns the number of concepts.
func (e *Expertise) Len() int { return len(e.concepts) }

// Concept looks up a concept.
func (e *Expertise) Concept(label string) (ConceptInfo, bool) {
	i, ok := e.index[label]
	if !ok {
		return ConceptInfo{}, false
	}
	return e.concepts[i].clone(), true
}

// Concepts returns every concept in insertion order.
func (e *Expertise) Concepts() []ConceptInfo {
	out := make([]ConceptInfo, len(e.concepts))
	for i, c := range e.concepts {
		out[i] = c.clone()
	}
	return out
}

// Capabilities returns the concept labels in insertion order.
func (e *Expertise) Capabilities() []string {
	out := make([]string, len(e.concepts))
	for i, c := range e.concepts {
		out[i] = c.Label
	}
	return out
}

// IsCapable reports whether the source advertises label.
func (e *Expertise) IsCapable(label string) bool {
	_, ok := e.index[label]
	return ok
}

// Count returns the number of entities of label, 0 when unknown.
func (e *Expertise) Count(label string) int {
	if i, ok := e.index[label]; ok {
		return e.concepts[i].Count
	}
	return 0
}

// CombinationRatio returns, for base, the fraction of its entities that also
// carry other. It is 0 when base is unknown.
func (e *Expertise) CombinationRatio(base, other string) float64 {
	i, ok := e.index[base]
	if !ok {
		return 0
	}
	return e.concepts[i].Ratio(other)
}

// Summary is a one-line description of the advertised concepts.
func (e *Expertise) Summary() string {
	return "Summary of expertise is " + strings.Join(e.Capabilities(), ", ")
}

// Table renders the expertise as a fixed-width table: one column per
// concept, rows for class flag and count, then one row per concept holding
// the combination ratio with every column concept as a percentage.
func (e *Expertise) Table() string {
	header := []string{"CONCEPT", "IS CLASS?", "COUNT"}
	first := 0
	for _, h := range header {
		first = max(first, len(h))
	}
	for _, c := range e.concepts {
		first = max(first, len(c.Label))
	}
	first += 2

	var b strings.Builder
	row := func(head string, cell func(c ConceptInfo) string) {
		var line strings.Builder
		fmt.Fprintf(&line, "%-*s", first, head)
		for _, c := range e.concepts {
			fmt.Fprintf(&line, "%-*s", len(c.Label)+2, cell(c))
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}

	row(header[0], func(c ConceptInfo) string { return c.Label })
	row(header[1], func(c ConceptInfo) string { return fmt.Sprintf("%t", c.IsClass) })
	row(header[2], func(c ConceptInfo) string { return fmt.Sprintf("%d", c.Count) })
	for _, base := range e.concepts {
		row(base.Label, func(c ConceptInfo) string {
			return fmt.Sprintf("%.2f", base.Ratio(c.Label)*100)
		})
	}
	return b.String()
}

// ConceptModel is the advertisement form of a concept.
type ConceptModel struct {
	Label        string         `json:"label" yaml:"label"`
	Count        int            `json:"count" yaml:"count"`
	IsClass      bool           `json:"is_class" yaml:"is_class"`
	Combinations []ConceptModel `json:"combinations,omitempty" yaml:"combinations,omitempty"`
}

// NetModel returns the advertisement payload. Every concept lists its
// combination count with every concept of the expertise, including itself.
func (e *Expertise) NetModel() []ConceptModel {
	out := make([]ConceptModel, 0, len(e.concepts))
	for _, c := range e.concepts {
		m := ConceptModel{Label: c.Label, Count: c.Count, IsClass: c.IsClass}
		for _, other := range e.concepts {
			comb := c.Combination(other.Label)
			if other.Label == c.Label && comb == 0 {
				comb = c.Count
			}
			m.Combinations = append(m.Combinations, ConceptModel{
				Label:   other.Label,
				Count:   comb,
				IsClass: other.IsClass,
			})
		}
		out = append(out, m)
	}
	return out
}

// FromNetModel rebuilds an expertise from its advertisement payload.
// Combinations with a zero count are dropped.
func FromNetModel(models []ConceptModel) *Expertise {
	e := New()
	for _, m := range models {
		info := ConceptInfo{Label: m.Label, Count: m.Count, IsClass: m.IsClass}
		for _, comb := range m.Combinations {
			if comb.Count == 0 {
				continue
			}
			if info.Combinations == nil {
				info.Combinations = map[string]int{}
			}
			info.Combinations[comb.Label] = comb.Count
		}
		e.Add(info)
	}
	return e
}
