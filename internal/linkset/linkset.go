// Package linkset describes how entities and vocabularies of different
// sources correspond to each other.
//
// Two views are kept. A Table is the detailed linkset: each Entry names, per
// source, the URI of a shared entity together with the properties that source
// can provide for a given type. Links is the plain equivalence view built from
// owl:sameAs statements, used to count entities two sources share.
package linkset

import (
	"slices"
	"sort"
)

// Match lists the properties a source provides for one type.
type Match struct {
	Type       string   `json:"type" yaml:"type"`
	Properties []string `json:"properties" yaml:"properties"`
}

// HasProperty reports whether property is provided for the match type.
func (m Match) HasProperty(property string) bool {
	return slices.Contains(m.Properties, property)
}

// SourceInfo is one source's view of a linked entity.
type SourceInfo struct {
	Name    string  `json:"name" yaml:"name"`
	URI     string  `json:"uri" yaml:"uri"`
	Matches []Match `json:"matches,omitempty" yaml:"matches,omitempty"`
}

// Match returns the match for typ.
func (s SourceInfo) Match(typ string) (Match, bool) {
	for _, m := range s.Matches {
		if m.Type == typ {
			return m, true
		}
	}
	return Match{}, false
}

// Entry is one linked entity across sources.
type Entry struct {
	ID      int          `json:"id" yaml:"id"`
	Sources []SourceInfo `json:"sources" yaml:"sources"`
}

// AllProperties collects the properties that any source of the entry
// provides for typ, in first-seen order without duplicates.
func (e Entry) AllProperties(typ string) []string {
	var out []string
	for _, s := range e.Sources {
		m, ok := s.Match(typ)
		if !ok {
			continue
		}
		for _, p := range m.Properties {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// Source returns the entry's information for the named source.
func (e Entry) Source(name string) (SourceInfo, bool) {
	for _, s := range e.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceInfo{}, false
}

// Table is a detailed linkset.
type Table struct {
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Len returns the number of entries.
func (t Table) Len() int { return len(t.Entries) }

// SourceNames returns every source named by some entry, sorted.
func (t Table) SourceNames() []string {
	seen := map[string]bool{}
	for _, e := range t.Entries {
		for _, s := range e.Sources {
			seen[s.Name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
