package aql

import (
	"io"
	"log/slog"

	"github.com/goldenagents/gafed/internal/rdf"
)

// Query is an editable AQL query: one tree, a focus, and the prefixes known
// to the user interface.
//
// Every edit is centred on the focus. Invariant: the focus always resolves
// to a node reachable from the root.
type Query struct {
	tree     *Tree
	focus    ID
	prefixes rdf.PrefixMap
	logger   *slog.Logger
}

// QueryOption configures a Query.
type QueryOption func(*Query)

// WithLogger sets the logger used to trace edits.
func WithLogger(l *slog.Logger) QueryOption {
	return func(q *Query) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithIDGenerator sets the generator for focus identities.
func WithIDGenerator(g IDGenerator) QueryOption {
	return func(q *Query) {
		if g != nil {
			q.tree.ids = g
		}
	}
}

// NewQuery creates a query holding only the most general query.
func NewQuery(prefixes rdf.PrefixMap, opts ...QueryOption) *Query {
	q := &Query{
		tree:     NewTree(nil),
		prefixes: prefixes.Clone(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.reset()
	return q
}

// FromTree wraps an existing tree. The focus must resolve in the tree.
func FromTree(tree *Tree, focus ID, prefixes rdf.PrefixMap, opts ...QueryOption) (*Query, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	q := &Query{
		tree:     tree,
		prefixes: prefixes.Clone(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	if focus == "" {
		focus = tree.Root()
	}
	if err := q.SetFocus(focus); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Query) reset() {
	ids := q.tree.ids
	q.tree = NewTree(ids)
	root := q.tree.NewMostGeneral()
	// A fresh leaf is always detached.
	_ = q.tree.SetRoot(root)
	q.focus = root
}

// Tree returns the query tree. Callers must not mutate it directly.
func (q *Query) Tree() *Tree { return q.tree }

// Root returns the root identity.
func (q *Query) Root() ID { return q.tree.Root() }

// Focus returns the focus identity.
func (q *Query) Focus() ID { return q.focus }

// FocusNode returns the node at the focus.
func (q *Query) FocusNode() Node {
	n, _ := q.tree.Node(q.focus)
	return n
}

// Node looks up a node by identity.
func (q *Query) Node(id ID) (Node, bool) { return q.tree.Node(id) }

// Foci returns every focus identity of the query.
func (q *Query) Foci() []ID { return q.tree.IDs() }

// SetFocus moves the focus. It fails with INVALID_FOCUS when id is unknown.
func (q *Query) SetFocus(id ID) error {
	if !q.tree.Has(id) {
		return &TreeError{Code: ErrCodeInvalidFocus, Message: "focus does not exist in query", Node: id}
	}
	q.focus = id
	return nil
}

// String renders the query in AQL text form.
func (q *Query) String() string { return q.tree.String(q.tree.Root()) }

// Intersect intersects the focus with a leaf feature and moves the focus to
// the new feature.
func (q *Query) Intersect(f Feature) error {
	if !f.Kind.IsFeature() {
		return &TreeError{Code: ErrCodeInvalidOperation, Message: "do not intersect with complex trees, features only: " + f.Kind.String()}
	}
	feature, err := q.tree.NewFeature(f)
	if err != nil {
		return err
	}
	if err := q.intersectFocusWith(feature); err != nil {
		return err
	}
	q.focus = feature
	return nil
}

// Cross intersects the focus with a crossing over property and moves the
// focus to the wildcard at the far end of the crossing.
func (q *Query) Cross(property rdf.Term, label string, forward bool) error {
	end := q.tree.NewMostGeneral()
	crossing, err := q.tree.NewCrossing(forward, property, label, end)
	if err != nil {
		return err
	}
	if err := q.intersectFocusWith(crossing); err != nil {
		return err
	}
	q.focus = end
	return nil
}

func (q *Query) intersectFocusWith(node ID) error {
	_, err := q.tree.Wrap(q.focus, func(focus ID) (ID, error) {
		return q.tree.NewIntersection(focus, node)
	})
	if err != nil {
		q.tree.Remove(node)
		return err
	}
	q.logger.Debug("query intersected", "aql", q.String())
	return nil
}

// Union wraps the focus in a union with a new wildcard. The focus stays on
// its node.
func (q *Query) Union() error {
	alt := q.tree.NewMostGeneral()
	_, err := q.tree.Wrap(q.focus, func(focus ID) (ID, error) {
		return q.tree.NewUnion(focus, alt)
	})
	if err != nil {
		q.tree.Remove(alt)
		return err
	}
	q.logger.Debug("query union", "aql", q.String())
	return nil
}

// Exclude intersects the focus with the negation of a new wildcard and moves
// the focus into the negation, so subsequent edits describe what to exclude.
func (q *Query) Exclude() error {
	inner := q.tree.NewMostGeneral()
	exclusion, err := q.tree.NewExclusion(inner)
	if err != nil {
		return err
	}
	if err := q.intersectFocusWith(exclusion); err != nil {
		return err
	}
	q.focus = inner
	return nil
}

// Delete replaces the focus with a wildcard and moves the focus there. When
// that leaves a binary parent with two wildcard operands, the parent is
// deleted as well. Deleting the root resets the query.
func (q *Query) Delete() error {
	for {
		parent := q.tree.Parent(q.focus)
		if parent == "" {
			q.reset()
			q.logger.Debug("query reset")
			return nil
		}

		old := q.focus
		replacement := q.tree.NewMostGeneral()
		if err := q.tree.ReplaceChild(parent, old, replacement); err != nil {
			return err
		}
		if _, err := q.tree.Remove(old); err != nil {
			return err
		}
		q.focus = replacement

		p := q.tree.nodes[parent]
		if !p.Kind.IsBinary() || !q.allMostGeneral(p.Children) {
			q.logger.Debug("query deleted", "aql", q.String())
			return nil
		}
		q.logger.Debug("removing parent as well", "parent", string(parent))
		q.focus = parent
	}
}

// DeleteAt moves the focus to id and deletes it.
func (q *Query) DeleteAt(id ID) error {
	if err := q.SetFocus(id); err != nil {
		return err
	}
	return q.Delete()
}

func (q *Query) allMostGeneral(ids []ID) bool {
	for _, id := range ids {
		if q.tree.nodes[id].Kind != KindMostGeneral {
			return false
		}
	}
	return true
}

// Copy returns an identity-preserving deep copy with the same focus.
func (q *Query) Copy() *Query {
	return &Query{
		tree:     q.tree.Copy(),
		focus:    q.focus,
		prefixes: q.prefixes.Clone(),
		logger:   q.logger,
	}
}

// Equal reports whether two queries have structurally equal trees and
// structurally equal foci on structurally equal branches up to the root.
func (q *Query) Equal(other *Query) bool {
	if !q.tree.Equal(other.tree) {
		return false
	}
	a, b := q.focus, other.focus
	for {
		if !EqualAt(q.tree, a, other.tree, b) {
			return false
		}
		pa, pb := q.tree.Parent(a), other.tree.Parent(b)
		if pa == "" || pb == "" {
			return pa == pb
		}
		a, b = pa, pb
	}
}

// PrefixMap returns the prefixes for namespaces actually used by the tree.
func (q *Query) PrefixMap() rdf.PrefixMap {
	var namespaces []string
	usesType := false
	for _, id := range q.tree.Walk(q.tree.Root()) {
		if q.tree.nodes[id].Kind == KindType {
			usesType = true
		}
	}
	if usesType {
		namespaces = append(namespaces, rdf.RDFNamespace)
	}
	for _, r := range q.tree.Resources(q.tree.Root()) {
		namespaces = append(namespaces, r.Namespace())
	}
	return q.prefixes.Restrict(namespaces)
}

// Translate compiles the query from its root.
func (q *Query) Translate() (*Translation, error) {
	tr, err := Translate(q.tree, q.focus, q.PrefixMap())
	if err != nil {
		return nil, err
	}
	q.logger.Debug("query translated", "focus_var", tr.FocusVar)
	return tr, nil
}
