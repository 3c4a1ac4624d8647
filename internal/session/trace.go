package session

import (
	"slices"

	"github.com/goldenagents/gafed/internal/decompose"
)

// Provenance maps each query variable to the sources that provide its
// values.
type Provenance map[string][]string

// Trace computes the provenance of every variable of qi from the sources
// chosen for its triples. Variables introduced by a BIND take the sources of
// the known variables the bind reads.
func Trace(qi *decompose.QueryInfo) Provenance {
	p := Provenance{}
	for _, v := range qi.Variables() {
		var sources []string
		for _, t := range qi.TriplesOf(v) {
			sources = appendNew(sources, t.ChosenSources()...)
		}
		p[v] = sources
	}

	for _, b := range qi.Binds {
		var known, unknown []string
		for _, v := range b.Variables {
			if _, ok := p[v]; ok {
				known = append(known, v)
			} else {
				unknown = append(unknown, v)
			}
		}
		for _, v := range unknown {
			var sources []string
			for _, k := range known {
				sources = appendNew(sources, p[k]...)
			}
			p[v] = sources
		}
	}
	return p
}

// Sources returns the sources of v, or nil when v is untraced.
func (p Provenance) Sources(v string) []string {
	return slices.Clone(p[v])
}

func appendNew(list []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(list, it) {
			list = append(list, it)
		}
	}
	return list
}
