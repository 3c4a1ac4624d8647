package rdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTerm(t *testing.T) {
	p := DefaultPrefixes()

	tests := []struct {
		in   string
		want Term
	}{
		{"?book", Var("book")},
		{"$x", Var("x")},
		{"_:b0", Blank("b0")},
		{"<http://example.org/a>", IRI("http://example.org/a")},
		{"ga:Book", IRI(GANamespace + "Book")},
		{"a", RDFType},
		{`"Vondel"`, Literal("Vondel")},
		{`"Vondel"@NL`, LangLiteral("Vondel", "nl")},
		{`"1650"^^xsd:integer`, TypedLiteral("1650", XSDNamespace+"integer")},
		{"plain", Literal("plain")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := p.ParseTerm(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTerm_Errors(t *testing.T) {
	p := DefaultPrefixes()

	_, err := p.ParseTerm("")
	assert.Error(t, err)

	_, err = p.ParseTerm("nope:Thing")
	assert.ErrorContains(t, err, "unknown prefix")

	_, err = p.ParseTerm(`"open`)
	assert.Error(t, err)
}

func TestLiteral_NFCNormalized(t *testing.T) {
	// "é" as e + combining acute accent versus the precomposed rune.
	decomposed := Literal("Cafe\u0301")
	composed := Literal("Caf\u00e9")
	assert.Equal(t, composed, decomposed)
}

func TestPrefixMap_ShortenAndFormat(t *testing.T) {
	p := DefaultPrefixes()

	s, ok := p.Shorten(GANamespace + "authorOf")
	require.True(t, ok)
	assert.Equal(t, "ga:authorOf", s)

	_, ok = p.Shorten("http://unknown.org/x")
	assert.False(t, ok)

	assert.Equal(t, "rdf:type", p.Format(RDFType))
	assert.Equal(t, "<http://unknown.org/x>", p.Format(IRI("http://unknown.org/x")))
	assert.Equal(t, `"3"^^xsd:integer`, p.Format(TypedLiteral("3", XSDNamespace+"integer")))
}

func TestPrefixMap_Restrict(t *testing.T) {
	p := DefaultPrefixes()
	r := p.Restrict([]string{GANamespace, "http://unknown.org/"})
	assert.Equal(t, PrefixMap{"ga": GANamespace}, r)
}

func TestTerm_LocalName(t *testing.T) {
	assert.Equal(t, "Book", IRI(GANamespace+"Book").LocalName())
	assert.Equal(t, "person", IRI("http://example.org/person").LocalName())
	assert.Equal(t, GANamespace, IRI(GANamespace+"Book").Namespace())
	assert.Equal(t, "", Literal("x").Namespace())
}

func TestGraph_MergeIsCommutative(t *testing.T) {
	a := IRI("http://e.org/a")
	b := IRI("http://e.org/b")
	p := IRI("http://e.org/p")

	g1 := NewGraph(NewTriple(a, p, b), NewTriple(a, RDFType, IRI(GANamespace+"Book")))
	g2 := NewGraph(NewTriple(b, p, a), NewTriple(a, p, b))

	left := NewGraph()
	assert.Equal(t, 2, left.Merge(g1))
	assert.Equal(t, 1, left.Merge(g2))

	right := NewGraph()
	right.Merge(g2)
	right.Merge(g1)

	assert.True(t, left.Equal(right))
	assert.Equal(t, 3, left.Len())
	assert.Equal(t, left.NTriples(), right.NTriples())
}

func TestGraph_Match(t *testing.T) {
	a := IRI("http://e.org/a")
	p := IRI("http://e.org/p")
	g := NewGraph(
		NewTriple(a, p, Literal("1")),
		NewTriple(a, p, Literal("2")),
		NewTriple(a, RDFType, IRI(GANamespace+"Book")),
	)

	got := g.Match(NewTriple(Var("s"), p, Term{}))
	require.Len(t, got, 2)
	assert.Equal(t, Literal("1"), got[0].Object)
}

func TestTriple_Validate(t *testing.T) {
	a := IRI("http://e.org/a")
	assert.NoError(t, NewTriple(a, RDFType, a).Validate())
	assert.Error(t, NewTriple(Var("x"), RDFType, a).Validate())
	assert.Error(t, NewTriple(Literal("x"), RDFType, a).Validate())
	assert.Error(t, NewTriple(a, Literal("p"), a).Validate())
}
