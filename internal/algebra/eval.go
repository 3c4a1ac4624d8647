package algebra

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goldenagents/gafed/internal/rdf"
)

// Binding maps variable names to terms for one solution.
type Binding map[string]rdf.Term

// clone copies the binding so extensions do not alias.
func (b Binding) clone() Binding {
	out := make(Binding, len(b)+2)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Signature returns a stable key over the given variables.
func (b Binding) Signature(vars []string) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		if t, ok := b[v]; ok {
			parts[i] = v + "=" + t.Signature()
		} else {
			parts[i] = v + "="
		}
	}
	return strings.Join(parts, "|")
}

// Result is the projected answer of a Select.
type Result struct {
	Vars []string  `json:"vars"`
	Rows []Binding `json:"rows"`
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Table renders the result as a tab separated table with a header row.
func (r *Result) Table(prefixes rdf.PrefixMap) string {
	var b strings.Builder
	for i, v := range r.Vars {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString("?" + v)
	}
	b.WriteByte('\n')
	for _, row := range r.Rows {
		for i, v := range r.Vars {
			if i > 0 {
				b.WriteByte('\t')
			}
			if t, ok := row[v]; ok {
				b.WriteString(prefixes.Format(t))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Evaluate runs a Select over an in-memory graph.
//
// Evaluation is a straightforward nested-loop interpretation: each operand is
// evaluated under the bindings produced so far. Rows are sorted by their
// signature over the projected variables so results are deterministic, and
// DISTINCT removes rows with equal signatures.
func Evaluate(g *rdf.Graph, s Select) (*Result, error) {
	if g == nil {
		g = rdf.NewGraph()
	}
	where := s.Where
	if where == nil {
		where = Empty{}
	}
	solutions, err := eval(g, where, Binding{})
	if err != nil {
		return nil, err
	}

	vars := s.Vars
	if len(vars) == 0 {
		vars = Variables(where)
	}

	rows := make([]Binding, 0, len(solutions))
	for _, sol := range solutions {
		row := make(Binding, len(vars))
		for _, v := range vars {
			if t, ok := sol[v]; ok {
				row[v] = t
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Signature(vars) < rows[j].Signature(vars)
	})
	if s.Distinct {
		rows = distinct(rows, vars)
	}
	return &Result{Vars: vars, Rows: rows}, nil
}

func distinct(rows []Binding, vars []string) []Binding {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		sig := r.Signature(vars)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, r)
	}
	return out
}

func eval(g *rdf.Graph, e Expr, seed Binding) ([]Binding, error) {
	switch v := e.(type) {
	case nil, Empty:
		return []Binding{seed}, nil
	case BGP:
		solutions := []Binding{seed}
		for _, pattern := range v.Triples {
			var next []Binding
			for _, sol := range solutions {
				next = append(next, matchPattern(g, pattern, sol)...)
			}
			solutions = next
			if len(solutions) == 0 {
				break
			}
		}
		return solutions, nil
	case Join:
		left, err := eval(g, v.Left, seed)
		if err != nil {
			return nil, err
		}
		var out []Binding
		for _, l := range left {
			right, err := eval(g, v.Right, l)
			if err != nil {
				return nil, err
			}
			out = append(out, right...)
		}
		return out, nil
	case Union:
		left, err := eval(g, v.Left, seed)
		if err != nil {
			return nil, err
		}
		right, err := eval(g, v.Right, seed)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case Filter:
		inner, err := eval(g, v.Inner, seed)
		if err != nil {
			return nil, err
		}
		var out []Binding
		for _, sol := range inner {
			ok, err := holds(g, v.Cond, sol)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, sol)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", e)
	}
}

func holds(g *rdf.Graph, c Condition, sol Binding) (bool, error) {
	switch v := c.(type) {
	case In:
		t, ok := sol[v.Var]
		if !ok {
			return false, nil
		}
		for _, candidate := range v.Values {
			if candidate == t {
				return true, nil
			}
		}
		return false, nil
	case NotExists:
		inner, err := eval(g, v.Pattern, sol)
		if err != nil {
			return false, err
		}
		return len(inner) == 0, nil
	default:
		return false, fmt.Errorf("unsupported condition type: %T", c)
	}
}

func matchPattern(g *rdf.Graph, pattern rdf.Triple, sol Binding) []Binding {
	bound := rdf.NewTriple(substitute(pattern.Subject, sol), substitute(pattern.Predicate, sol), substitute(pattern.Object, sol))
	var out []Binding
	for _, t := range g.Match(bound) {
		ext := sol.clone()
		if bind(ext, bound.Subject, t.Subject) &&
			bind(ext, bound.Predicate, t.Predicate) &&
			bind(ext, bound.Object, t.Object) {
			out = append(out, ext)
		}
	}
	return out
}

func substitute(t rdf.Term, sol Binding) rdf.Term {
	if t.IsVariable() {
		if v, ok := sol[t.Value]; ok {
			return v
		}
	}
	return t
}

// bind extends sol with pattern := value. It fails when a variable repeated
// within one pattern would need two different values.
func bind(sol Binding, pattern, value rdf.Term) bool {
	if !pattern.IsVariable() {
		return true
	}
	if existing, ok := sol[pattern.Value]; ok {
		return existing == value
	}
	sol[pattern.Value] = value
	return true
}
