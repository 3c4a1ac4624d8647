package decompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenagents/gafed/internal/rdf"
)

func TestParseNodeType(t *testing.T) {
	tests := []struct {
		in   string
		want NodeType
	}{
		{"?x", NodeVariable},
		{"$x", NodeVariable},
		{"_:b0", NodeBlank},
		{"<http://example.org/a>", NodeURI},
		{"ga:Book", NodeURI},
		{`"Vondel"`, NodeLiteral},
		{`"12:30"`, NodeLiteral},
		{"42", NodeLiteral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseNodeType(tt.in), tt.in)
	}
	assert.Equal(t, "PATH", NodePath.String())
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("a")
	require.NoError(t, err)
	assert.True(t, p.IsSimple())
	assert.Equal(t, "rdf:type", p.String())

	p, err = ParsePath("ga:authorOf/^ga:publishedBy")
	require.NoError(t, err)
	assert.False(t, p.IsSimple())
	assert.Equal(t, []string{"ga:authorOf", "ga:publishedBy"}, p.Predicates())
	assert.True(t, p.Steps[1].Inverse)
	assert.Equal(t, "ga:authorOf/^ga:publishedBy", p.String())

	p, err = ParsePath("(ga:a|ga:b)+")
	require.NoError(t, err)
	assert.Equal(t, []string{"ga:a", "ga:b"}, p.Predicates())
	assert.Equal(t, []string{"|"}, p.Separators)

	p, err = ParsePath("<http://example.org/ns/p>")
	require.NoError(t, err)
	assert.True(t, p.IsSimple(), "slashes in an IRI do not split")

	p, err = ParsePath("ga:knows*")
	require.NoError(t, err)
	assert.False(t, p.IsSimple())
	assert.Equal(t, "*", p.Steps[0].Modifier)

	_, err = ParsePath("")
	assert.True(t, IsBadQuery(err))
	_, err = ParsePath("ga:a//ga:b")
	assert.True(t, IsBadQuery(err))
}

func TestTripleInfo(t *testing.T) {
	ti, err := NewTripleInfo("?book", "a", "ga:Book")
	require.NoError(t, err)
	assert.Equal(t, "?book rdf:type ga:Book", ti.String())
	assert.True(t, ti.IsTypeTriple())
	assert.Equal(t, []string{"ga:Book"}, ti.Concepts())
	assert.True(t, ti.Contains("ga:Book"))
	assert.True(t, ti.Contains("rdf:type"))
	assert.False(t, ti.Contains("ga:Author"))
	assert.Equal(t, []string{"?book"}, ti.Variables())

	ti, err = NewTripleInfo("?a", "ga:authorOf/ga:hasTitle", "?t")
	require.NoError(t, err)
	assert.Equal(t, []string{"ga:authorOf", "ga:hasTitle"}, ti.Concepts())
	assert.Equal(t, []string{"?a", "?t"}, ti.Variables())

	_, err = NewTripleInfo(`"x"`, "ga:p", "?o")
	assert.True(t, IsBadQuery(err))
	_, err = NewTripleInfo("", "ga:p", "?o")
	assert.True(t, IsBadQuery(err))
}

func TestTripleInfo_ChosenFallsBackToPossible(t *testing.T) {
	ti, err := NewTripleInfo("?b", "ga:title", "?t")
	require.NoError(t, err)
	ti.addPossible("s2")
	ti.addPossible("s1")
	ti.addPossible("s2")

	assert.Equal(t, []string{"s1", "s2"}, ti.PossibleSources())
	assert.Equal(t, []string{"s1", "s2"}, ti.ChosenSources())

	ti.choose("s2")
	assert.Equal(t, []string{"s2"}, ti.ChosenSources())
	assert.True(t, ti.IsChosen("s2"))
	assert.False(t, ti.IsChosen("s1"))
	assert.True(t, ti.IsPossible("s1"))
}

func TestExpressionVariables(t *testing.T) {
	b, err := NewBindInfo(`BIND(CONCAT(?first, " ", ?last) AS ?name)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"?first", "?last", "?name"}, b.Variables)

	f, err := NewFilterInfo("FILTER(?year > 1600 && ?year < 1700)")
	require.NoError(t, err)
	assert.Equal(t, []string{"?year"}, f.Variables)

	_, err = NewBindInfo("BIND(?a AS ?b")
	assert.True(t, IsBadQuery(err))
	_, err = NewFilterInfo("  ")
	assert.True(t, IsBadQuery(err))
}

func TestQueryInfo_Index(t *testing.T) {
	qi := NewQueryInfo(nil)
	_, err := qi.AddTriple("?b", "a", "ga:Book")
	require.NoError(t, err)
	_, err = qi.AddTriple("?a", "ga:authorOf", "?b")
	require.NoError(t, err)

	assert.Equal(t, []string{"?b", "?a"}, qi.Variables())
	assert.Len(t, qi.TriplesOf("?b"), 2)
	assert.Len(t, qi.TriplesOf("?a"), 1)
	assert.Empty(t, qi.TriplesOf("?none"))

	assert.Equal(t, rdf.PrefixMap{"ga": rdf.GANamespace, "rdf": rdf.RDFNamespace}, qi.RelevantPrefixes())
	assert.Len(t, qi.ID(), 16)

	c := qi.Clone()
	assert.Equal(t, qi.ID(), c.ID())
	c.Triples[0].addPossible("s1")
	assert.Empty(t, qi.Triples[0].PossibleSources(), "clones annotate independently")

	assert.True(t, IsBadQuery(NewQueryInfo(nil).Validate()))
}

func TestInventorySpec_Build(t *testing.T) {
	spec := InventorySpec{
		Prefixes: map[string]string{"ex": "http://example.org/"},
		Triples: []string{
			"?b a ga:Book .",
			`?b ga:title "Gijsbrecht van Aemstel"`,
		},
		Filters: []string{"FILTER(?b != ex:none)"},
		Select:  []string{"?b"},
	}
	qi, err := spec.Build()
	require.NoError(t, err)
	require.Len(t, qi.Triples, 2)
	assert.Equal(t, `"Gijsbrecht van Aemstel"`, qi.Triples[1].Object)
	require.NotNil(t, qi.Select)
	assert.Equal(t, []string{"b"}, qi.Select.Vars)
	assert.Contains(t, qi.RelevantPrefixes(), "ex")

	_, err = InventorySpec{Triples: []string{"?b ga:title"}}.Build()
	assert.True(t, IsBadQuery(err))

	qi, err = InventorySpec{Triples: []string{"?a ga:authorOf/ga:title ?t"}}.Build()
	require.NoError(t, err)
	assert.Nil(t, qi.Select, "property paths are left to the sources")
}
