package decompose

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"slices"
	"strings"

	"github.com/goldenagents/gafed/internal/algebra"
	"github.com/goldenagents/gafed/internal/rdf"
)

var variablePattern = regexp.MustCompile(`\?[a-zA-Z]*`)

// expressionVariables extracts the ?variables of an expression in order of
// first occurrence.
func expressionVariables(expr string) []string {
	var out []string
	for _, v := range variablePattern.FindAllString(expr, -1) {
		if v != "?" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func checkBalanced(expr string) error {
	depth := 0
	for _, r := range expr {
		switch r {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		}
		if depth < 0 {
			return badQuery("unbalanced expression: %s", expr)
		}
	}
	if depth != 0 {
		return badQuery("unbalanced expression: %s", expr)
	}
	return nil
}

// BindInfo is a BIND expression of a query.
type BindInfo struct {
	Expression string
	Variables  []string
}

// NewBindInfo parses a bind expression such as BIND(?a AS ?b).
func NewBindInfo(expr string) (BindInfo, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return BindInfo{}, badQuery("empty bind expression")
	}
	if err := checkBalanced(expr); err != nil {
		return BindInfo{}, err
	}
	return BindInfo{Expression: expr, Variables: expressionVariables(expr)}, nil
}

// FilterInfo is a FILTER expression of a query.
type FilterInfo struct {
	Expression string
	Variables  []string
}

// NewFilterInfo parses a filter expression such as FILTER(?a > 3).
func NewFilterInfo(expr string) (FilterInfo, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return FilterInfo{}, badQuery("empty filter expression")
	}
	if err := checkBalanced(expr); err != nil {
		return FilterInfo{}, err
	}
	return FilterInfo{Expression: expr, Variables: expressionVariables(expr)}, nil
}

// QueryInfo is the inventory of a query: its triple patterns, binds and
// filters, the prefixes they are written with, and an index from variables
// to the patterns that mention them.
//
// Decomposition never mutates a QueryInfo; every call annotates a copy.
type QueryInfo struct {
	Prefixes rdf.PrefixMap
	Triples  []*TripleInfo
	Binds    []BindInfo
	Filters  []FilterInfo
	// Select is the query the merged data is finally evaluated with.
	Select *algebra.Select

	vars  []string
	index map[string][]int
}

// NewQueryInfo returns an empty inventory.
func NewQueryInfo(prefixes rdf.PrefixMap) *QueryInfo {
	if prefixes == nil {
		prefixes = rdf.DefaultPrefixes()
	}
	return &QueryInfo{Prefixes: prefixes.Clone(), index: map[string][]int{}}
}

// AddTriple parses and adds a triple pattern.
func (q *QueryInfo) AddTriple(subject, predicate, object string) (*TripleInfo, error) {
	t, err := NewTripleInfo(subject, predicate, object)
	if err != nil {
		return nil, err
	}
	q.add(t)
	return t, nil
}

func (q *QueryInfo) add(t *TripleInfo) {
	i := len(q.Triples)
	q.Triples = append(q.Triples, t)
	for _, v := range t.Variables() {
		if _, ok := q.index[v]; !ok {
			q.vars = append(q.vars, v)
		}
		q.index[v] = append(q.index[v], i)
	}
}

// AddBind parses and adds a bind expression.
func (q *QueryInfo) AddBind(expr string) error {
	b, err := NewBindInfo(expr)
	if err != nil {
		return err
	}
	q.Binds = append(q.Binds, b)
	return nil
}

// AddFilter parses and adds a filter expression.
func (q *QueryInfo) AddFilter(expr string) error {
	f, err := NewFilterInfo(expr)
	if err != nil {
		return err
	}
	q.Filters = append(q.Filters, f)
	return nil
}

// Variables returns the triple variables in order of first occurrence.
func (q *QueryInfo) Variables() []string {
	return slices.Clone(q.vars)
}

// TriplesOf returns the patterns mentioning variable v.
func (q *QueryInfo) TriplesOf(v string) []*TripleInfo {
	idx := q.index[v]
	out := make([]*TripleInfo, len(idx))
	for i, j := range idx {
		out[i] = q.Triples[j]
	}
	return out
}

// ID is a stable hash of the query text.
func (q *QueryInfo) ID() string {
	h := fnv.New64a()
	for _, t := range q.Triples {
		h.Write([]byte(t.String()))
		h.Write([]byte{'\n'})
	}
	for _, b := range q.Binds {
		h.Write([]byte(b.Expression))
		h.Write([]byte{'\n'})
	}
	for _, f := range q.Filters {
		h.Write([]byte(f.Expression))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Validate checks the inventory can be decomposed.
func (q *QueryInfo) Validate() error {
	if len(q.Triples) == 0 {
		return badQuery("query has no triple patterns")
	}
	return nil
}

// Clone returns a copy whose triples can be annotated independently.
func (q *QueryInfo) Clone() *QueryInfo {
	c := NewQueryInfo(q.Prefixes)
	for _, t := range q.Triples {
		c.add(t.clone())
	}
	c.Binds = slices.Clone(q.Binds)
	c.Filters = slices.Clone(q.Filters)
	c.Select = q.Select
	return c
}

var prefixedName = regexp.MustCompile(`(^|[^\w<?:#.-])([A-Za-z][\w-]*):`)

// RelevantPrefixes returns the prefixes used anywhere in the query.
func (q *QueryInfo) RelevantPrefixes() rdf.PrefixMap {
	var text strings.Builder
	for _, t := range q.Triples {
		text.WriteString(t.String())
		text.WriteByte('\n')
	}
	for _, b := range q.Binds {
		text.WriteString(b.Expression)
		text.WriteByte('\n')
	}
	for _, f := range q.Filters {
		text.WriteString(f.Expression)
		text.WriteByte('\n')
	}
	out := rdf.PrefixMap{}
	for _, m := range prefixedName.FindAllStringSubmatch(text.String(), -1) {
		if ns, ok := q.Prefixes[m[2]]; ok {
			out[m[2]] = ns
		}
	}
	return out
}
