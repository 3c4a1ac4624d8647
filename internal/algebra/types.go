package algebra

import "github.com/goldenagents/gafed/internal/rdf"

// Expr is a graph pattern expression in the query algebra.
//
// This is a sealed interface - only types in this package implement it.
// The marker method keeps type switches in the renderer and evaluator
// exhaustive.
//
// Expression types:
//   - Empty: the unit pattern, matches once with no bindings
//   - BGP: a basic graph pattern (conjunction of triple patterns)
//   - Join: both operands must match with compatible bindings
//   - Union: either operand matches
//   - Filter: restricts the solutions of an inner pattern by a Condition
//
// A nil Expr means "no pattern contributed" and is distinct from Empty. The
// constructors NewJoin and NewUnion treat nil operands as absent.
type Expr interface {
	expr() // Marker method - seals interface to this package
}

// Condition is a filter condition applied by Filter.
//
// This is a sealed interface. Condition types:
//   - In: variable value is one of a fixed set of terms
//   - NotExists: the nested pattern has no solution under the current bindings
type Condition interface {
	condition() // Marker method - seals interface to this package
}

// Empty is the unit pattern.
//
// SPARQL MAPPING:
//
//	{ }
type Empty struct{}

func (Empty) expr() {}

// BGP is a conjunction of triple patterns.
//
// SPARQL MAPPING:
//
//	?a rdf:type ga:Book .
//	?author ga:authorOf ?a .
type BGP struct {
	Triples []rdf.Triple
}

func (BGP) expr() {}

// Join requires both operands to match with compatible bindings.
//
// SPARQL MAPPING: both operands are written into the same group.
type Join struct {
	Left  Expr
	Right Expr
}

func (Join) expr() {}

// Union matches either operand.
//
// SPARQL MAPPING:
//
//	{ <left> } UNION { <right> }
type Union struct {
	Left  Expr
	Right Expr
}

func (Union) expr() {}

// Filter keeps the solutions of Inner for which Cond holds.
//
// SPARQL MAPPING: Inner's group plus a FILTER clause.
type Filter struct {
	Cond  Condition
	Inner Expr
}

func (Filter) expr() {}

// In holds when Var is bound to one of Values.
//
// SPARQL MAPPING:
//
//	FILTER(?v IN (<a>, "b"))
type In struct {
	Var    string
	Values []rdf.Term
}

func (In) condition() {}

// NotExists holds when Pattern has no solution after substituting the
// bindings of the current solution.
//
// SPARQL MAPPING:
//
//	FILTER NOT EXISTS { <pattern> }
type NotExists struct {
	Pattern Expr
}

func (NotExists) condition() {}

// Select projects the solutions of Where.
//
// A nil Vars projects every variable that occurs in Where ("SELECT *").
type Select struct {
	Vars     []string
	Distinct bool
	Where    Expr
}

// NewJoin joins two expressions, dropping absent (nil) or Empty operands
// and merging adjacent basic graph patterns.
func NewJoin(left, right Expr) Expr {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	if isEmpty(left) {
		return right
	}
	if isEmpty(right) {
		return left
	}
	lb, lok := left.(BGP)
	rb, rok := right.(BGP)
	if lok && rok {
		triples := make([]rdf.Triple, 0, len(lb.Triples)+len(rb.Triples))
		triples = append(triples, lb.Triples...)
		triples = append(triples, rb.Triples...)
		return BGP{Triples: triples}
	}
	return Join{Left: left, Right: right}
}

// NewUnion unions two expressions. When only one operand is present it is
// returned unchanged; when neither is, the result is nil.
func NewUnion(left, right Expr) Expr {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	}
	return Union{Left: left, Right: right}
}

// NewFilter wraps inner with a condition. A nil inner is filtered as Empty.
func NewFilter(cond Condition, inner Expr) Expr {
	if inner == nil {
		inner = Empty{}
	}
	return Filter{Cond: cond, Inner: inner}
}

// Triple is a convenience constructor for a single-pattern BGP.
func Triple(s, p, o rdf.Term) BGP {
	return BGP{Triples: []rdf.Triple{rdf.NewTriple(s, p, o)}}
}

func isEmpty(e Expr) bool {
	switch v := e.(type) {
	case Empty:
		return true
	case BGP:
		return len(v.Triples) == 0
	}
	return false
}
