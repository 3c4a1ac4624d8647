package aql

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenagents/gafed/internal/algebra"
	"github.com/goldenagents/gafed/internal/rdf"
)

func v(name string) rdf.Term { return rdf.Var(name) }

func sampleGraph() *rdf.Graph {
	g := rdf.NewGraph()
	add := func(s, p, o rdf.Term) { g.Add(rdf.NewTriple(s, p, o)) }
	vondel := ga("vondel")
	hooft := ga("hooft")
	gijsbrecht := ga("gijsbrecht")
	add(vondel, rdf.RDFType, ga("Author"))
	add(hooft, rdf.RDFType, ga("Author"))
	add(gijsbrecht, rdf.RDFType, ga("Book"))
	add(vondel, ga("authorOf"), gijsbrecht)
	add(gijsbrecht, ga("hasPublished"), ga("blaeu"))
	add(vondel, ga("hasName"), rdf.Literal("Joost van den Vondel"))
	add(hooft, ga("hasName"), rdf.Literal("P.C. Hooft"))
	return g
}

func TestVariableNamer(t *testing.T) {
	n := NewVariableNamer()
	assert.Equal(t, "author", n.ForLabel("author"))
	assert.Equal(t, "author_b", n.ForLabel("author"))
	assert.Equal(t, "author_c", n.ForLabel("author"))
	assert.Equal(t, "has_name", n.ForLabel(" has name "))

	assert.Equal(t, "a", n.Fresh())
	assert.Equal(t, "b", n.Fresh())

	// A label equal to an already issued name is skipped past.
	assert.Equal(t, "a_b", n.ForLabel("a"))

	first := n.ForNode("x", "book")
	assert.Equal(t, first, n.ForNode("x", "book"))
	assert.NotEqual(t, first, n.ForNode("y", "book"))
}

func TestIndexToVariable(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "a"},
		{25, "z"},
		{26, "a1"},
		{27, "b1"},
		{53, "b2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, indexToVariable(tt.index))
	}
}

func TestVariableNamer_FiltersAreScoped(t *testing.T) {
	n := NewVariableNamer()
	n.AddFilter("x", ga("vondel"))
	n.AddFilter("x", ga("vondel"))
	n.openScope()
	n.AddFilter("y", ga("hooft"))
	scoped := n.closeScope()
	n.AddFilter("x", ga("hooft"))

	assert.Equal(t, []VarFilter{{Var: "y", Values: []rdf.Term{ga("hooft")}}}, scoped)
	assert.Equal(t, []VarFilter{{Var: "x", Values: []rdf.Term{ga("vondel"), ga("hooft")}}}, n.Filters())
}

func TestTranslate_TypeSpecification(t *testing.T) {
	tree := newTestTree()
	book, _ := tree.NewFeature(TypeFeature(ga("Book"), ""))
	require.NoError(t, tree.SetRoot(book))

	tr, err := Translate(tree, book, rdf.DefaultPrefixes())
	require.NoError(t, err)
	assert.Equal(t, algebra.Triple(v("Book"), rdf.RDFType, ga("Book")), tr.Select.Where)
	assert.True(t, tr.Select.Distinct)
	assert.Equal(t, "Book", tr.FocusVar)
}

func TestTranslate_CrossingDirections(t *testing.T) {
	tree := newTestTree()
	author, _ := tree.NewFeature(TypeFeature(ga("Author"), ""))
	fwd, _ := tree.NewCrossing(true, ga("authorOf"), "", author)
	book, _ := tree.NewFeature(TypeFeature(ga("Book"), ""))
	root, _ := tree.NewIntersection(book, fwd)
	require.NoError(t, tree.SetRoot(root))

	tr, err := Translate(tree, author, rdf.DefaultPrefixes())
	require.NoError(t, err)
	want := algebra.BGP{Triples: []rdf.Triple{
		rdf.NewTriple(v("Book"), rdf.RDFType, ga("Book")),
		rdf.NewTriple(v("authorOf"), ga("authorOf"), v("Book")),
		rdf.NewTriple(v("authorOf"), rdf.RDFType, ga("Author")),
	}}
	assert.Equal(t, want, tr.Select.Where)
	assert.Equal(t, "authorOf", tr.FocusVar)

	// A backward crossing swaps subject and object.
	back := newTestTree()
	end := back.NewMostGeneral()
	bwd, _ := back.NewCrossing(false, ga("authorOf"), "", end)
	require.NoError(t, back.SetRoot(bwd))

	tr, err = Translate(back, end, rdf.DefaultPrefixes())
	require.NoError(t, err)
	assert.Equal(t, algebra.Triple(v("authorOf"), ga("authorOf"), v("authorOf_b")), tr.Select.Where)
	assert.Equal(t, "authorOf_b", tr.FocusVar)
}

func TestTranslate_NamedResourceBecomesValueFilter(t *testing.T) {
	tree := newTestTree()
	author, _ := tree.NewFeature(TypeFeature(ga("Author"), ""))
	vondel, _ := tree.NewFeature(ResourceFeature(ga("vondel"), ""))
	root, _ := tree.NewIntersection(author, vondel)
	require.NoError(t, tree.SetRoot(root))

	tr, err := Translate(tree, author, rdf.DefaultPrefixes())
	require.NoError(t, err)
	want := algebra.Filter{
		Cond:  algebra.In{Var: "Author", Values: []rdf.Term{ga("vondel")}},
		Inner: algebra.Triple(v("Author"), rdf.RDFType, ga("Author")),
	}
	assert.Equal(t, want, tr.Select.Where)

	res, err := algebra.Evaluate(sampleGraph(), tr.Select)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, ga("vondel"), res.Rows[0]["Author"])
}

func TestTranslate_WildcardFocusIgnoresItsValueFilter(t *testing.T) {
	tree := newTestTree()
	focus := tree.NewMostGeneral()
	vondel, _ := tree.NewFeature(ResourceFeature(ga("vondel"), ""))
	root, _ := tree.NewIntersection(focus, vondel)
	require.NoError(t, tree.SetRoot(root))

	tr, err := Translate(tree, focus, rdf.DefaultPrefixes())
	require.NoError(t, err)
	assert.Equal(t, algebra.Empty{}, tr.Select.Where)
	assert.Equal(t, "vondel", tr.FocusVar)
}

func TestTranslate_Union(t *testing.T) {
	tree := newTestTree()
	author, _ := tree.NewFeature(TypeFeature(ga("Author"), ""))
	book, _ := tree.NewFeature(TypeFeature(ga("Book"), ""))
	root, _ := tree.NewUnion(author, book)
	require.NoError(t, tree.SetRoot(root))

	tr, err := Translate(tree, root, rdf.DefaultPrefixes())
	require.NoError(t, err)
	want := algebra.Union{
		Left:  algebra.Triple(v("Author"), rdf.RDFType, ga("Author")),
		Right: algebra.Triple(v("Author"), rdf.RDFType, ga("Book")),
	}
	assert.Equal(t, want, tr.Select.Where)

	res, err := algebra.Evaluate(sampleGraph(), tr.Select)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Len())
}

// Exclusion is compiled as NOT EXISTS over the negated subtree, evaluated
// against the same current-node variable. This is a deliberate semantic
// choice: "not ( authorOf : ? )" means "has no authorOf at all", not "has
// some value other than an authorOf".
func TestTranslate_ExclusionCompilesToNotExists(t *testing.T) {
	q := NewQuery(rdf.DefaultPrefixes(), WithIDGenerator(NewSequenceGenerator("q")))
	require.NoError(t, q.Intersect(TypeFeature(ga("Author"), "")))
	require.NoError(t, q.Exclude())
	require.NoError(t, q.Cross(ga("authorOf"), "", false))

	assert.Equal(t, "a Author and not ( authorOf : ? )", q.String())

	tr, err := q.Translate()
	require.NoError(t, err)
	want := algebra.Filter{
		Cond:  algebra.NotExists{Pattern: algebra.Triple(v("Author"), ga("authorOf"), v("authorOf"))},
		Inner: algebra.Triple(v("Author"), rdf.RDFType, ga("Author")),
	}
	assert.Equal(t, want, tr.Select.Where)

	res, err := algebra.Evaluate(sampleGraph(), tr.Select)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, ga("hooft"), res.Rows[0]["Author"])
}

func TestTranslate_ValueFilterInsideExclusionStaysInside(t *testing.T) {
	q := NewQuery(rdf.DefaultPrefixes(), WithIDGenerator(NewSequenceGenerator("q")))
	require.NoError(t, q.Intersect(TypeFeature(ga("Author"), "")))
	require.NoError(t, q.Exclude())
	require.NoError(t, q.Intersect(ResourceFeature(ga("vondel"), "")))

	tr, err := q.Translate()
	require.NoError(t, err)
	want := algebra.Filter{
		Cond: algebra.NotExists{Pattern: algebra.Filter{
			Cond:  algebra.In{Var: "Author", Values: []rdf.Term{ga("vondel")}},
			Inner: algebra.Empty{},
		}},
		Inner: algebra.Triple(v("Author"), rdf.RDFType, ga("Author")),
	}
	assert.Equal(t, want, tr.Select.Where)

	res, err := algebra.Evaluate(sampleGraph(), tr.Select)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, ga("hooft"), res.Rows[0]["Author"])
}

func TestTranslate_IsDeterministic(t *testing.T) {
	q1, err := SampleQuery(WithIDGenerator(NewSequenceGenerator("a")))
	require.NoError(t, err)
	q2, err := SampleQuery()
	require.NoError(t, err)

	t1, err := q1.Translate()
	require.NoError(t, err)
	t2, err := q2.Translate()
	require.NoError(t, err)

	assert.Equal(t, t1.SPARQL(), t2.SPARQL())
	assert.True(t, algebra.Isomorphic(t1.Select.Where, t2.Select.Where))
}

func TestTranslate_InvalidTree(t *testing.T) {
	tree := newTestTree()
	_, err := Translate(tree, "", nil)
	require.Error(t, err)
	assert.True(t, IsInvalidTree(err))
}

func TestTranslate_SampleQueryGolden(t *testing.T) {
	q, err := SampleQuery(WithIDGenerator(NewSequenceGenerator("s")))
	require.NoError(t, err)
	tr, err := q.Translate()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "sample_query", []byte(tr.SPARQL()))

	res, err := algebra.Evaluate(sampleGraph(), tr.Select)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, ga("vondel"), res.Rows[0]["Author"])
	assert.Equal(t, rdf.Literal("Joost van den Vondel"), res.Rows[0][tr.FocusVar])
}
