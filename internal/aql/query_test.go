package aql

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenagents/gafed/internal/rdf"
)

func findNode(t *testing.T, q *Query, kind Kind, resource rdf.Term) ID {
	t.Helper()
	for _, id := range q.Tree().Walk(q.Root()) {
		n, _ := q.Node(id)
		if n.Kind == kind && n.Resource == resource {
			return id
		}
	}
	t.Fatalf("no %s node for %s", kind, resource)
	return ""
}

func TestQuery_StartsAsMostGeneral(t *testing.T) {
	q := NewQuery(rdf.DefaultPrefixes())
	assert.Equal(t, "?", q.String())
	assert.Equal(t, q.Root(), q.Focus())
	assert.Equal(t, KindMostGeneral, q.FocusNode().Kind)
	assert.Len(t, q.Foci(), 1)
}

func TestQuery_Sample(t *testing.T) {
	q, err := SampleQuery(WithIDGenerator(NewSequenceGenerator("s")))
	require.NoError(t, err)

	assert.Equal(t, "(a Author and hasName : ?) and authorOf : a Book and hasPublished : ?", q.String())
	assert.Equal(t, KindMostGeneral, q.FocusNode().Kind)
	assert.Equal(t, ID("s12"), q.Focus())
	assert.Len(t, q.Foci(), 14)
	require.NoError(t, q.Tree().Validate())

	// The identity map and the nodes reachable from the root contain each other.
	assert.ElementsMatch(t, q.Tree().Walk(q.Root()), q.Foci())
}

func TestQuery_IntersectRejectsComplexTrees(t *testing.T) {
	q := NewQuery(rdf.DefaultPrefixes())
	err := q.Intersect(Feature{Kind: KindUnion})
	require.Error(t, err)
	assert.True(t, IsInvalidOperation(err))
	assert.Equal(t, "?", q.String())
	assert.Len(t, q.Foci(), 1)
}

func TestQuery_SetFocusUnknown(t *testing.T) {
	q := NewQuery(rdf.DefaultPrefixes())
	err := q.SetFocus("missing")
	assert.True(t, IsInvalidFocus(err))
}

func TestQuery_Union(t *testing.T) {
	q := NewQuery(rdf.DefaultPrefixes())
	require.NoError(t, q.Intersect(TypeFeature(ga("Author"), "")))
	focus := q.Focus()
	require.NoError(t, q.Union())
	assert.Equal(t, focus, q.Focus())
	assert.Equal(t, "a Author or ?", q.String())

	parent, _ := q.Node(q.Tree().Parent(focus))
	assert.Equal(t, KindUnion, parent.Kind)
}

func TestQuery_DeleteLeafKeepsStructure(t *testing.T) {
	q, err := SampleQuery(WithIDGenerator(NewSequenceGenerator("s")))
	require.NoError(t, err)

	book := findNode(t, q, KindType, ga("Book"))
	require.NoError(t, q.DeleteAt(book))

	assert.Equal(t, "(a Author and hasName : ?) and authorOf : hasPublished : ?", q.String())
	assert.Equal(t, KindMostGeneral, q.FocusNode().Kind)
	assert.False(t, q.Tree().Has(book))
	require.NoError(t, q.Tree().Validate())
}

func TestQuery_DeleteCollapsesParents(t *testing.T) {
	q := NewQuery(rdf.DefaultPrefixes())
	require.NoError(t, q.Intersect(TypeFeature(ga("Author"), "")))
	require.NoError(t, q.Delete())

	// Both operands of the intersection became wildcards, so the
	// intersection went too and, being the root, reset the query.
	assert.Equal(t, "?", q.String())
	assert.Len(t, q.Foci(), 1)
	assert.Equal(t, q.Root(), q.Focus())
}

func TestQuery_DeleteCrossingSubtree(t *testing.T) {
	q, err := SampleQuery(WithIDGenerator(NewSequenceGenerator("s")))
	require.NoError(t, err)

	hasName := findNode(t, q, KindCrossBackward, ga("hasName"))
	before := q.Tree().Len()
	require.NoError(t, q.DeleteAt(hasName))

	// Removing hasName leaves "a Author and ?", which is not collapsed
	// because the Author operand is still constrained.
	assert.Equal(t, "(a Author) and authorOf : a Book and hasPublished : ?", q.String())
	assert.Equal(t, before-1, q.Tree().Len())
	require.NoError(t, q.Tree().Validate())
}

func TestQuery_DeleteRootResets(t *testing.T) {
	q, err := SampleQuery()
	require.NoError(t, err)
	require.NoError(t, q.DeleteAt(q.Root()))
	assert.Equal(t, "?", q.String())
	assert.Len(t, q.Foci(), 1)
}

func TestQuery_CopyAndEqual(t *testing.T) {
	q1, err := SampleQuery(WithIDGenerator(NewSequenceGenerator("a")))
	require.NoError(t, err)
	q2, err := SampleQuery(WithIDGenerator(NewSequenceGenerator("b")))
	require.NoError(t, err)

	assert.True(t, q1.Equal(q2), "same edits give equal queries regardless of identity")

	c := q1.Copy()
	assert.True(t, q1.Equal(c))
	assert.Equal(t, q1.Focus(), c.Focus())
	assert.ElementsMatch(t, q1.Foci(), c.Foci())

	// Moving the focus onto a different branch breaks equality.
	book := findNode(t, c, KindType, ga("Book"))
	require.NoError(t, c.SetFocus(book))
	assert.False(t, q1.Equal(c))

	// Editing the copy leaves the original alone.
	require.NoError(t, c.Delete())
	assert.NotEqual(t, q1.String(), c.String())
	assert.Equal(t, "(a Author and hasName : ?) and authorOf : a Book and hasPublished : ?", q1.String())
}

func TestQuery_EqualComparesFocusBranch(t *testing.T) {
	q1 := NewQuery(rdf.DefaultPrefixes())
	require.NoError(t, q1.Intersect(TypeFeature(ga("Author"), "")))
	q2 := q1.Copy()
	require.NoError(t, q2.SetFocus(q2.Root()))
	assert.False(t, q1.Equal(q2))
}

func TestQuery_PrefixMap(t *testing.T) {
	q, err := SampleQuery()
	require.NoError(t, err)
	assert.Equal(t, rdf.PrefixMap{
		"ga":  rdf.GANamespace,
		"rdf": rdf.RDFNamespace,
	}, q.PrefixMap())

	named := NewQuery(rdf.DefaultPrefixes())
	require.NoError(t, named.Intersect(ResourceFeature(rdf.IRI("http://example.org/x"), "x")))
	assert.Empty(t, named.PrefixMap())
}

func TestQuery_LogsEdits(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	q := NewQuery(rdf.DefaultPrefixes(), WithLogger(logger))
	require.NoError(t, q.Intersect(TypeFeature(ga("Author"), "")))
	_, err := q.Translate()
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "query intersected")
	assert.Contains(t, buf.String(), "query translated")
}

func TestFromTree(t *testing.T) {
	tree := newTestTree()
	root := buildAuthorTree(t, tree)

	q, err := FromTree(tree, "", rdf.DefaultPrefixes())
	require.NoError(t, err)
	assert.Equal(t, root, q.Focus())

	_, err = FromTree(tree, "nope", rdf.DefaultPrefixes())
	assert.True(t, IsInvalidFocus(err))
}
