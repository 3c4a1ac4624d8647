package decompose

import (
	"strings"

	"github.com/goldenagents/gafed/internal/algebra"
	"github.com/goldenagents/gafed/internal/rdf"
)

// InventorySpec is the file form of a query inventory, as read by the CLI
// and the scenario harness.
//
//	prefixes:
//	  ex: http://example.org/
//	triples:
//	  - ?book a ga:Book
//	  - ?book ga:title ?title
//	filters:
//	  - FILTER(?title != "")
type InventorySpec struct {
	Prefixes map[string]string `yaml:"prefixes,omitempty" json:"prefixes,omitempty"`
	Triples  []string          `yaml:"triples" json:"triples"`
	Binds    []string          `yaml:"binds,omitempty" json:"binds,omitempty"`
	Filters  []string          `yaml:"filters,omitempty" json:"filters,omitempty"`
	// Select lists the projected variables; empty projects all.
	Select []string `yaml:"select,omitempty" json:"select,omitempty"`
}

// Build parses the spec into an inventory. The aggregation query evaluates
// the triple patterns over the merged data; binds and filters are left to
// the sources. A filter no source can evaluate is reported by
// Plan.Unapplied and carried to the session result.
func (s InventorySpec) Build() (*QueryInfo, error) {
	prefixes := rdf.DefaultPrefixes()
	for p, ns := range s.Prefixes {
		prefixes[p] = ns
	}
	qi := NewQueryInfo(prefixes)

	var bgp algebra.BGP
	evaluable := true
	for _, line := range s.Triples {
		fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(line), " ."))
		if len(fields) < 3 {
			return nil, badQuery("triple pattern needs subject, predicate and object: %q", line)
		}
		subject, predicate := fields[0], fields[1]
		object := strings.Join(fields[2:], " ")
		t, err := qi.AddTriple(subject, predicate, object)
		if err != nil {
			return nil, err
		}
		if !evaluable || !t.Predicate.IsSimple() {
			evaluable = false
			continue
		}
		triple, err := parsePattern(prefixes, subject, t.Predicate.Steps[0].IRI, object)
		if err != nil {
			return nil, err
		}
		bgp.Triples = append(bgp.Triples, triple)
	}
	for _, b := range s.Binds {
		if err := qi.AddBind(b); err != nil {
			return nil, err
		}
	}
	for _, f := range s.Filters {
		if err := qi.AddFilter(f); err != nil {
			return nil, err
		}
	}
	if err := qi.Validate(); err != nil {
		return nil, err
	}

	if evaluable {
		vars := make([]string, len(s.Select))
		for i, v := range s.Select {
			vars[i] = strings.TrimPrefix(v, "?")
		}
		qi.Select = &algebra.Select{Vars: vars, Distinct: true, Where: bgp}
	}
	return qi, nil
}

func parsePattern(prefixes rdf.PrefixMap, s, p, o string) (rdf.Triple, error) {
	var terms [3]rdf.Term
	for i, text := range []string{s, p, o} {
		t, err := prefixes.ParseTerm(text)
		if err != nil {
			return rdf.Triple{}, badQuery("%v", err)
		}
		terms[i] = t
	}
	return rdf.NewTriple(terms[0], terms[1], terms[2]), nil
}
