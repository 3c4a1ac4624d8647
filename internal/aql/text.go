package aql

import (
	"sort"
	"strings"

	"github.com/goldenagents/gafed/internal/rdf"
)

// String renders the subtree at id in AQL text form.
//
//	?                      most general query
//	a Book                 type specification
//	authorOf of ?          forward crossing
//	authorOf : ?           backward crossing
//	(x) and (y), x or y    binary operators, complex operands bracketed
//	not ( x )              exclusion
//
// An intersection with a wildcard operand renders only the other operand.
func (t *Tree) String(id ID) string {
	n, ok := t.nodes[id]
	if !ok {
		return ""
	}
	switch n.Kind {
	case KindMostGeneral:
		return "?"
	case KindType:
		return "a " + n.Label
	case KindNamedResource, KindNamedLiteral:
		return n.Label
	case KindCrossForward:
		return n.Label + " of " + t.String(n.Children[0])
	case KindCrossBackward:
		return n.Label + " : " + t.String(n.Children[0])
	case KindExclusion:
		return "not ( " + t.String(n.Children[0]) + " )"
	case KindIntersection:
		left, right := n.Children[0], n.Children[1]
		if t.nodes[left].Kind == KindMostGeneral {
			return t.String(right)
		}
		if t.nodes[right].Kind == KindMostGeneral {
			return t.String(left)
		}
		return t.infix(n)
	case KindUnion:
		return t.infix(n)
	default:
		return ""
	}
}

func (t *Tree) infix(n *Node) string {
	return strings.TrimSpace(t.bracket(n.Children[0]) + n.Label + t.bracket(n.Children[1]))
}

func (t *Tree) bracket(id ID) string {
	if t.nodes[id].Kind.Arity() > 1 {
		return " (" + t.String(id) + ") "
	}
	return " " + t.String(id) + " "
}

// Describe renders the subtree at id as an English phrase for display next
// to the query builder, such as "a Author and things with authorOf a Book".
func (t *Tree) Describe(id ID) string {
	n, ok := t.nodes[id]
	if !ok {
		return ""
	}
	switch n.Kind {
	case KindMostGeneral:
		return "anything"
	case KindType:
		return "a " + n.Label
	case KindNamedResource, KindNamedLiteral:
		return n.Label
	case KindCrossForward:
		return "the " + n.Label + " of " + t.Describe(n.Children[0])
	case KindCrossBackward:
		return "things with " + n.Label + " " + t.Describe(n.Children[0])
	case KindExclusion:
		return "not " + t.Describe(n.Children[0])
	case KindIntersection:
		left, right := n.Children[0], n.Children[1]
		if t.nodes[left].Kind == KindMostGeneral {
			return t.Describe(right)
		}
		if t.nodes[right].Kind == KindMostGeneral {
			return t.Describe(left)
		}
		return t.Describe(left) + " and " + t.Describe(right)
	case KindUnion:
		return t.Describe(n.Children[0]) + " or " + t.Describe(n.Children[1])
	default:
		return ""
	}
}

// FirstResourceLabel returns the label of the first feature or crossing
// found in a pre-order walk, or "" when the subtree has none.
func (t *Tree) FirstResourceLabel(id ID) string {
	n, ok := t.nodes[id]
	if !ok {
		return ""
	}
	if n.Kind.IsFeature() || n.Kind.IsCrossing() {
		return n.Label
	}
	for _, c := range n.Children {
		if label := t.FirstResourceLabel(c); label != "" {
			return label
		}
	}
	return ""
}

// Resources returns the distinct IRIs referenced by the subtree at id:
// classes, named resources, crossed properties and literal datatypes.
func (t *Tree) Resources(id ID) []rdf.Term {
	seen := map[rdf.Term]bool{}
	var out []rdf.Term
	for _, nid := range t.Walk(id) {
		n := t.nodes[nid]
		var r rdf.Term
		switch {
		case n.Resource.Kind == rdf.KindIRI:
			r = n.Resource
		case n.Resource.Kind == rdf.KindLiteral && n.Resource.Datatype != "":
			r = rdf.IRI(n.Resource.Datatype)
		default:
			continue
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
