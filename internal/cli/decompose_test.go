package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testFederation = filepath.Join("testdata", "federation.cue")
	testQuery      = filepath.Join("testdata", "query.yaml")
)

func TestDecomposeCommand_Capabilities(t *testing.T) {
	out, err := execute(t, NewDecomposeCommand(testRoot("json")), testFederation, testQuery)
	require.NoError(t, err)

	var result DecompositionResult
	decodeData(t, out, &result)
	assert.Equal(t, "capabilities", result.Strategy)
	assert.NotEmpty(t, result.QueryID)
	require.Len(t, result.Queries, 2)

	assert.Equal(t, "books", result.Queries[0].Source)
	assert.ElementsMatch(t, []string{"?b rdf:type ga:Book", "?b ga:title ?t"}, result.Queries[0].Triples)
	assert.Contains(t, result.Queries[0].Construct, "CONSTRUCT")
	assert.Equal(t, "catalog", result.Queries[1].Source)
	assert.Equal(t, []string{"?b ga:title ?t"}, result.Queries[1].Triples)
}

func TestDecomposeCommand_TextOutput(t *testing.T) {
	out, err := execute(t, NewDecomposeCommand(testRoot("text")), testFederation, testQuery)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Decomposed over 2 source(s) with strategy capabilities")
	assert.Contains(t, out, "books (2 triple patterns):")
	assert.Contains(t, out, "# Generated construct query")
}

func TestDecomposeCommand_SourceRestriction(t *testing.T) {
	out, err := execute(t, NewDecomposeCommand(testRoot("json")), testFederation, testQuery, "--sources", "books")
	require.NoError(t, err)

	var result DecompositionResult
	decodeData(t, out, &result)
	require.Len(t, result.Queries, 1)
	assert.Equal(t, "books", result.Queries[0].Source)
}

func TestDecomposeCommand_AQLQuery(t *testing.T) {
	out, err := execute(t, NewDecomposeCommand(testRoot("json")),
		testFederation, filepath.Join("testdata", "authors.yaml"), "--aql")
	require.NoError(t, err)

	var result DecompositionResult
	decodeData(t, out, &result)
	sources := make([]string, len(result.Queries))
	for i, q := range result.Queries {
		sources[i] = q.Source
	}
	assert.ElementsMatch(t, []string{"books", "people"}, sources)
}

func TestDecomposeCommand_MissingExpert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte("triples:\n  - ?p a ga:Person\n"), 0644))

	out, err := execute(t, NewDecomposeCommand(testRoot("json")), testFederation, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMissingExpert, resp.Error.Code)
}

func TestDecomposeCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown strategy", []string{testFederation, testQuery, "--strategy", "random"}, ErrCodeInvalidInput},
		{"missing federation", []string{filepath.Join("testdata", "absent.cue"), testQuery}, ErrCodeNotFound},
		{"missing query", []string{testFederation, filepath.Join("testdata", "absent.yaml")}, ErrCodeNotFound},
		{"federation is not cue", []string{testQuery, testQuery}, ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewDecomposeCommand(testRoot("json")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
