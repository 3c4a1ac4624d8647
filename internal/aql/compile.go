package aql

import (
	"fmt"

	"github.com/goldenagents/gafed/internal/algebra"
	"github.com/goldenagents/gafed/internal/rdf"
)

// fragment is the compiled form of a subtree before it is closed.
//
// guards are conditions that constrain the enclosing group rather than the
// fragment itself. Exclusion produces a guard because NOT EXISTS must be
// evaluated against the solutions of everything it is intersected with,
// which is not reachable from the exclusion node. Guards travel upwards
// until a node that owns a complete group closes them: a crossing (whose
// group includes the crossed triple), each side of a union, or the root.
type fragment struct {
	expr   algebra.Expr // nil when the subtree contributes no pattern
	guards []algebra.Condition
}

// close applies pending guards and returns the resulting expression, which
// is nil only when there was neither a pattern nor a guard.
func (f fragment) close() algebra.Expr {
	e := f.expr
	for _, g := range f.guards {
		e = algebra.NewFilter(g, e)
	}
	return e
}

// Compiler translates AQL subtrees to algebra expressions.
type Compiler struct {
	tree  *Tree
	namer *VariableNamer
	focus ID

	mostGeneralAtFocus bool
}

// NewCompiler creates a compiler for one pass over tree. The namer must be
// fresh for this pass; focus may be empty.
func NewCompiler(tree *Tree, namer *VariableNamer, focus ID) *Compiler {
	return &Compiler{tree: tree, namer: namer, focus: focus}
}

// MostGeneralAtFocus reports whether the focus node compiled was a wildcard.
func (c *Compiler) MostGeneralAtFocus() bool { return c.mostGeneralAtFocus }

// ToAlgebra compiles the subtree at id with its current-node variable bound
// to v. The result is nil when the subtree contributes no pattern (a lone
// named resource or literal, whose constraint is registered on the namer).
func (c *Compiler) ToAlgebra(id ID, v string) (algebra.Expr, error) {
	f, err := c.compile(id, v)
	if err != nil {
		return nil, err
	}
	return f.close(), nil
}

func (c *Compiler) compile(id ID, v string) (fragment, error) {
	n, ok := c.tree.nodes[id]
	if !ok {
		return fragment{}, invalidTree(id, "node referenced in tree does not exist")
	}
	if len(n.Children) != n.Kind.Arity() {
		return fragment{}, invalidTree(id, "%s has %d children, want %d", n.Kind, len(n.Children), n.Kind.Arity())
	}
	if id == c.focus {
		c.namer.SetFocusVar(v)
		if n.Kind == KindMostGeneral {
			c.mostGeneralAtFocus = true
		}
	}
	bound := rdf.Var(v)

	switch n.Kind {
	case KindMostGeneral:
		return fragment{expr: algebra.Empty{}}, nil

	case KindType:
		return fragment{expr: algebra.Triple(bound, rdf.RDFType, n.Resource)}, nil

	case KindNamedResource, KindNamedLiteral:
		c.namer.AddFilter(v, n.Resource)
		return fragment{}, nil

	case KindCrossForward, KindCrossBackward:
		fresh := c.namer.ForNode(id, n.Label)
		var triple algebra.BGP
		if n.Kind == KindCrossForward {
			triple = algebra.Triple(rdf.Var(fresh), n.Resource, bound)
		} else {
			triple = algebra.Triple(bound, n.Resource, rdf.Var(fresh))
		}
		child, err := c.compile(n.Children[0], fresh)
		if err != nil {
			return fragment{}, err
		}
		// The crossing owns the group for the fresh variable, so guards
		// raised in the child are closed over the triple joined with it.
		return fragment{expr: fragment{expr: algebra.NewJoin(triple, child.expr), guards: child.guards}.close()}, nil

	case KindIntersection:
		left, err := c.compile(n.Children[0], v)
		if err != nil {
			return fragment{}, err
		}
		right, err := c.compile(n.Children[1], v)
		if err != nil {
			return fragment{}, err
		}
		guards := append(append([]algebra.Condition(nil), left.guards...), right.guards...)
		return fragment{expr: algebra.NewJoin(left.expr, right.expr), guards: guards}, nil

	case KindUnion:
		left, err := c.compile(n.Children[0], v)
		if err != nil {
			return fragment{}, err
		}
		right, err := c.compile(n.Children[1], v)
		if err != nil {
			return fragment{}, err
		}
		return fragment{expr: algebra.NewUnion(left.close(), right.close())}, nil

	case KindExclusion:
		c.namer.openScope()
		child, err := c.compile(n.Children[0], v)
		scoped := c.namer.closeScope()
		if err != nil {
			return fragment{}, err
		}
		pattern := child.close()
		for _, f := range scoped {
			pattern = algebra.NewFilter(algebra.In{Var: f.Var, Values: f.Values}, pattern)
		}
		if pattern == nil {
			pattern = algebra.Empty{}
		}
		return fragment{guards: []algebra.Condition{algebra.NotExists{Pattern: pattern}}}, nil

	default:
		return fragment{}, invalidTree(id, "unsupported node kind %s", n.Kind)
	}
}

// Translation is a query compiled for execution.
type Translation struct {
	Select   algebra.Select
	FocusVar string
	Prefixes rdf.PrefixMap
}

// SPARQL renders the translation as query text.
func (tr *Translation) SPARQL() string {
	return algebra.RenderSelect(tr.Select, tr.Prefixes)
}

// Translate compiles a whole tree from its root.
//
// The root variable is named after the first resource label in the tree.
// Registered value filters are applied at the top as FILTER(?v IN (...)),
// except on the focus variable when the focus is a wildcard: the focus then
// stands for "anything" regardless of values named elsewhere on it.
func Translate(tree *Tree, focus ID, prefixes rdf.PrefixMap) (*Translation, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	namer := NewVariableNamer()
	var first string
	if label := tree.FirstResourceLabel(tree.Root()); label != "" {
		first = namer.ForLabel(label)
	} else {
		first = namer.Fresh()
	}

	c := NewCompiler(tree, namer, focus)
	expr, err := c.ToAlgebra(tree.Root(), first)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	if expr == nil {
		expr = algebra.Empty{}
	}

	focusVar := namer.FocusVar()
	for _, f := range namer.Filters() {
		if c.MostGeneralAtFocus() && f.Var == focusVar {
			continue
		}
		expr = algebra.NewFilter(algebra.In{Var: f.Var, Values: f.Values}, expr)
	}

	return &Translation{
		Select:   algebra.Select{Distinct: true, Where: expr},
		FocusVar: focusVar,
		Prefixes: prefixes,
	}, nil
}
