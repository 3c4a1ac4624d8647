package aql

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/goldenagents/gafed/internal/rdf"
)

// VariableNamer issues collision-free variable names for one compile pass.
//
// Names derived from a label are the bare label first, then label_b,
// label_c, ... (the suffix is a letter followed by a counter once the
// alphabet wraps, so index 27 gives label_b1). Unlabeled names run a, b, c,
// ... in the same scheme. A name is never issued twice by one namer; asking
// for the variable of the same node twice returns the same name.
//
// The namer also records value filters registered on variables by named
// resource and literal constraints. Filters are tracked per scope so that
// constraints inside a negated subtree stay inside it.
//
// A VariableNamer must not be shared between independent compiles.
type VariableNamer struct {
	labels    map[string]int
	unlabeled int
	used      map[string]bool
	byNode    map[ID]string
	focusVar  string
	scopes    []*filterScope
}

// VarFilter is the set of values a variable is restricted to.
type VarFilter struct {
	Var    string
	Values []rdf.Term
}

type filterScope struct {
	order  []string
	values map[string][]rdf.Term
}

func newFilterScope() *filterScope {
	return &filterScope{values: map[string][]rdf.Term{}}
}

// NewVariableNamer creates a namer with an empty outermost filter scope.
func NewVariableNamer() *VariableNamer {
	return &VariableNamer{
		labels: map[string]int{},
		used:   map[string]bool{},
		byNode: map[ID]string{},
		scopes: []*filterScope{newFilterScope()},
	}
}

// ForLabel allocates the next variable for a label. An empty or
// unusable label falls back to Fresh.
func (n *VariableNamer) ForLabel(label string) string {
	base := sanitizeVarName(label)
	if base == "" {
		return n.Fresh()
	}
	for {
		idx := n.labels[base]
		n.labels[base] = idx + 1
		name := base
		if idx > 0 {
			name = fmt.Sprintf("%s_%s", base, indexToVariable(idx))
		}
		if !n.used[name] {
			n.used[name] = true
			return name
		}
	}
}

// Fresh allocates the next unlabeled variable.
func (n *VariableNamer) Fresh() string {
	for {
		name := indexToVariable(n.unlabeled)
		n.unlabeled++
		if !n.used[name] {
			n.used[name] = true
			return name
		}
	}
}

// ForNode returns the variable bound to a node, allocating it from label on
// first use.
func (n *VariableNamer) ForNode(id ID, label string) string {
	if v, ok := n.byNode[id]; ok {
		return v
	}
	v := n.ForLabel(label)
	n.byNode[id] = v
	return v
}

// SetFocusVar records the variable bound at the query focus.
func (n *VariableNamer) SetFocusVar(v string) { n.focusVar = v }

// FocusVar returns the variable bound at the query focus.
func (n *VariableNamer) FocusVar() string { return n.focusVar }

// AddFilter restricts a variable to a value in the current scope.
func (n *VariableNamer) AddFilter(v string, value rdf.Term) {
	s := n.scopes[len(n.scopes)-1]
	existing, ok := s.values[v]
	if !ok {
		s.order = append(s.order, v)
	}
	for _, e := range existing {
		if e == value {
			return
		}
	}
	s.values[v] = append(existing, value)
}

// Filters returns the filters of the outermost scope in registration order.
func (n *VariableNamer) Filters() []VarFilter {
	return n.scopes[0].filters()
}

func (n *VariableNamer) openScope() {
	n.scopes = append(n.scopes, newFilterScope())
}

func (n *VariableNamer) closeScope() []VarFilter {
	s := n.scopes[len(n.scopes)-1]
	n.scopes = n.scopes[:len(n.scopes)-1]
	return s.filters()
}

func (s *filterScope) filters() []VarFilter {
	out := make([]VarFilter, 0, len(s.order))
	for _, v := range s.order {
		out = append(out, VarFilter{Var: v, Values: append([]rdf.Term(nil), s.values[v]...)})
	}
	return out
}

// indexToVariable maps 0 -> a, 25 -> z, 26 -> a1, 27 -> b1.
func indexToVariable(index int) string {
	letter := rune('a' + index%26)
	number := index / 26
	if number > 0 {
		return fmt.Sprintf("%c%d", letter, number)
	}
	return string(letter)
}

// sanitizeVarName turns a label into a SPARQL variable name.
func sanitizeVarName(label string) string {
	label = norm.NFC.String(strings.TrimSpace(label))
	var b strings.Builder
	for _, r := range label {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
