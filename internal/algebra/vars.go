package algebra

import (
	"strconv"

	"github.com/goldenagents/gafed/internal/rdf"
)

// Variables returns the variables that occur in an expression, in order of
// first occurrence. Variables that only occur inside a NotExists pattern are
// not bound by the expression and are excluded.
func Variables(e Expr) []string {
	c := &varCollector{seen: map[string]bool{}}
	c.walk(e)
	return c.order
}

type varCollector struct {
	seen  map[string]bool
	order []string
}

func (c *varCollector) add(t rdf.Term) {
	if t.IsVariable() && !c.seen[t.Value] {
		c.seen[t.Value] = true
		c.order = append(c.order, t.Value)
	}
}

func (c *varCollector) walk(e Expr) {
	switch v := e.(type) {
	case nil, Empty:
	case BGP:
		for _, t := range v.Triples {
			c.add(t.Subject)
			c.add(t.Predicate)
			c.add(t.Object)
		}
	case Join:
		c.walk(v.Left)
		c.walk(v.Right)
	case Union:
		c.walk(v.Left)
		c.walk(v.Right)
	case Filter:
		c.walk(v.Inner)
	}
}

// Rename returns a copy of e with variables renamed through fn.
func Rename(e Expr, fn func(string) string) Expr {
	switch v := e.(type) {
	case nil:
		return nil
	case Empty:
		return v
	case BGP:
		out := make([]rdf.Triple, len(v.Triples))
		for i, t := range v.Triples {
			out[i] = rdf.NewTriple(renameTerm(t.Subject, fn), renameTerm(t.Predicate, fn), renameTerm(t.Object, fn))
		}
		return BGP{Triples: out}
	case Join:
		return Join{Left: Rename(v.Left, fn), Right: Rename(v.Right, fn)}
	case Union:
		return Union{Left: Rename(v.Left, fn), Right: Rename(v.Right, fn)}
	case Filter:
		return Filter{Cond: renameCond(v.Cond, fn), Inner: Rename(v.Inner, fn)}
	default:
		return e
	}
}

func renameCond(c Condition, fn func(string) string) Condition {
	switch v := c.(type) {
	case In:
		return In{Var: fn(v.Var), Values: v.Values}
	case NotExists:
		return NotExists{Pattern: Rename(v.Pattern, fn)}
	default:
		return c
	}
}

func renameTerm(t rdf.Term, fn func(string) string) rdf.Term {
	if t.IsVariable() {
		return rdf.Var(fn(t.Value))
	}
	return t
}

// Canonical renames variables to v0, v1, ... in order of first occurrence in
// the rendered form, including variables that only occur in conditions.
func Canonical(e Expr) Expr {
	names := map[string]string{}
	var visit func(Expr)
	note := func(name string) {
		if _, ok := names[name]; !ok {
			names[name] = "v" + strconv.Itoa(len(names))
		}
	}
	noteTerm := func(t rdf.Term) {
		if t.IsVariable() {
			note(t.Value)
		}
	}
	visit = func(e Expr) {
		switch v := e.(type) {
		case BGP:
			for _, t := range v.Triples {
				noteTerm(t.Subject)
				noteTerm(t.Predicate)
				noteTerm(t.Object)
			}
		case Join:
			visit(v.Left)
			visit(v.Right)
		case Union:
			visit(v.Left)
			visit(v.Right)
		case Filter:
			visit(v.Inner)
			switch c := v.Cond.(type) {
			case In:
				note(c.Var)
			case NotExists:
				visit(c.Pattern)
			}
		}
	}
	visit(e)
	return Rename(e, func(name string) string { return names[name] })
}

// Isomorphic reports whether two expressions are equal up to a consistent
// renaming of variables.
func Isomorphic(a, b Expr) bool {
	return Render(Canonical(a), nil) == Render(Canonical(b), nil)
}
