package fedspec

import (
	"errors"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenagents/gafed/internal/decompose"
)

func TestLoadFile_Library(t *testing.T) {
	spec, err := LoadFile("testdata/library.cue")
	require.NoError(t, err)

	assert.Equal(t, "library", spec.Name)
	assert.Equal(t, decompose.PolicyMostVersatile, spec.Policy)
	require.Len(t, spec.Sources, 2)
	assert.Equal(t, "books", spec.Sources[0].Name)
	assert.Equal(t, "people", spec.Sources[1].Name)
	assert.Equal(t, "http://books.example/sparql", spec.Sources[0].Endpoint)

	book, ok := spec.Sources[0].Expertise.Concept("ga:Book")
	require.True(t, ok)
	assert.Equal(t, 4, book.Count)
	assert.True(t, book.IsClass)
	assert.Equal(t, 3, book.Combination("ga:title"))
	assert.Len(t, book.Entities, 4)

	title, ok := spec.Sources[0].Expertise.Concept("ga:title")
	require.True(t, ok)
	assert.False(t, title.IsClass)

	assert.Equal(t, [][2]string{{"http://books.example/b1", "http://people.example/p1"}}, spec.SameAs)
	require.Equal(t, 1, spec.Linkset.Len())
	assert.Equal(t, []string{"books", "people"}, spec.Linkset.SourceNames())
	assert.Equal(t, []string{"ga:title"}, spec.Linkset.Entries[0].AllProperties("ga:Book"))
}

func TestSpec_Build(t *testing.T) {
	spec, err := LoadFile("testdata/library.cue")
	require.NoError(t, err)

	fed, err := spec.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"books", "people"}, fed.Sources())
	assert.Equal(t, decompose.PolicyMostVersatile, fed.Policy)
	nodes, _ := fed.Graph.Len()
	assert.Equal(t, 2, nodes)
	assert.True(t, fed.Links.Linked("http://books.example/b1", "http://people.example/p1"))
	assert.Equal(t, 1, fed.SameAs.Len())
	assert.Equal(t, map[string]string{"books": "http://books.example/sparql"}, fed.Endpoints)
	assert.Equal(t, []string{"ga:Person", "ga:hasName"}, fed.Capabilities()["people"])
}

func TestLoadFile_SchemaViolations(t *testing.T) {
	for _, file := range []string{"testdata/negative.cue", "testdata/policy.cue"} {
		t.Run(file, func(t *testing.T) {
			_, err := LoadFile(file)
			require.Error(t, err)
			var le *LoadError
			require.True(t, errors.As(err, &le), "got %T", err)
			assert.Equal(t, "cue", le.Field)
		})
	}
}

func TestLoadFile_NoSources(t *testing.T) {
	_, err := LoadFile("testdata/empty.cue")
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "source", le.Field)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("testdata/nope.cue")
	assert.Error(t, err)
}

func TestCompile_RequiresFederation(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)
	_, err := Compile(v)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "federation", le.Field)
}

func TestLoadDir_UnifiesPackageFiles(t *testing.T) {
	spec, err := LoadDir("testdata/pkg")
	require.NoError(t, err)
	require.Len(t, spec.Sources, 2)
	assert.Equal(t, "books", spec.Sources[0].Name)
	assert.Equal(t, 2, spec.Sources[1].Expertise.Count("ga:Person"))
	assert.Equal(t, decompose.PolicyMostConnective, spec.Policy)
}
