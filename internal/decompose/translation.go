package decompose

import (
	"fmt"
	"strings"

	"github.com/goldenagents/gafed/internal/algebra"
	"github.com/goldenagents/gafed/internal/aql"
	"github.com/goldenagents/gafed/internal/rdf"
)

// FromTranslation builds the inventory of a compiled AQL query.
func FromTranslation(tr *aql.Translation) (*QueryInfo, error) {
	prefixes := rdf.DefaultPrefixes()
	for p, ns := range tr.Prefixes {
		prefixes[p] = ns
	}
	return FromSelect(tr.Select, prefixes)
}

// FromSelect builds the inventory of an algebra query. Terms are written
// with the given prefixes so that ontology concepts can be recognised.
//
// Unions cannot be split over sources and are rejected. A NOT EXISTS
// condition becomes a filter over the variables it shares with the rest of
// the query, so every source evaluates it against its own data.
func FromSelect(sel algebra.Select, prefixes rdf.PrefixMap) (*QueryInfo, error) {
	qi := NewQueryInfo(prefixes)
	w := &selectWalker{qi: qi, prefixes: prefixes}
	if err := w.walk(sel.Where); err != nil {
		return nil, err
	}
	for _, nf := range w.negations {
		var shared []string
		for _, v := range algebra.Variables(nf.Pattern) {
			if _, ok := qi.index["?"+v]; ok {
				shared = append(shared, "?"+v)
			}
		}
		qi.Filters = append(qi.Filters, FilterInfo{
			Expression: renderNotExists(nf, prefixes),
			Variables:  shared,
		})
	}
	qi.Select = &sel
	if err := qi.Validate(); err != nil {
		return nil, err
	}
	return qi, nil
}

type selectWalker struct {
	qi        *QueryInfo
	prefixes  rdf.PrefixMap
	negations []algebra.NotExists
}

func (w *selectWalker) walk(e algebra.Expr) error {
	switch v := e.(type) {
	case nil, algebra.Empty:
		return nil
	case algebra.BGP:
		for _, t := range v.Triples {
			_, err := w.qi.AddTriple(
				w.prefixes.Format(t.Subject),
				w.prefixes.Format(t.Predicate),
				w.prefixes.Format(t.Object))
			if err != nil {
				return err
			}
		}
		return nil
	case algebra.Join:
		if err := w.walk(v.Left); err != nil {
			return err
		}
		return w.walk(v.Right)
	case algebra.Filter:
		if err := w.walk(v.Inner); err != nil {
			return err
		}
		return w.condition(v.Cond)
	case algebra.Union:
		return badQuery("a union cannot be split over sources")
	default:
		return badQuery("unsupported expression %T", e)
	}
}

func (w *selectWalker) condition(c algebra.Condition) error {
	switch v := c.(type) {
	case algebra.In:
		values := make([]string, len(v.Values))
		for i, t := range v.Values {
			values[i] = w.prefixes.Format(t)
		}
		w.qi.Filters = append(w.qi.Filters, FilterInfo{
			Expression: fmt.Sprintf("FILTER(?%s IN (%s))", v.Var, strings.Join(values, ", ")),
			Variables:  []string{"?" + v.Var},
		})
		return nil
	case algebra.NotExists:
		// Shared variables are only known once every pattern is collected.
		w.negations = append(w.negations, v)
		return nil
	default:
		return badQuery("unsupported condition %T", c)
	}
}

func renderNotExists(nf algebra.NotExists, prefixes rdf.PrefixMap) string {
	var parts []string
	for _, line := range strings.Split(algebra.Render(nf.Pattern, prefixes), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return "FILTER NOT EXISTS { " + strings.Join(parts, " ") + " }"
}
