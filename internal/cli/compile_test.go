package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeData unmarshals the data of an ok CLIResponse into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestCompileCommand_SampleQuery(t *testing.T) {
	out, err := execute(t, NewCompileCommand(testRoot("text")))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled")
	assert.Contains(t, out, "Focus: hasName")
	assert.Contains(t, out, "SELECT DISTINCT *")
	assert.Contains(t, out, "?authorOf ga:hasPublished ?hasPublished .")
	assert.Contains(t, out, "Triple patterns (5):")
	assert.Contains(t, out, "  ?Author rdf:type ga:Author")
}

func TestCompileCommand_AQLFileJSON(t *testing.T) {
	out, err := execute(t, NewCompileCommand(testRoot("json")), filepath.Join("testdata", "authors.yaml"))
	require.NoError(t, err)

	var result CompilationResult
	decodeData(t, out, &result)
	assert.Equal(t, "hasName", result.FocusVar)
	assert.Contains(t, result.Description, "hasName")
	assert.Contains(t, result.SPARQL, "?Author ga:authorOf ?authorOf .")
	assert.Contains(t, result.SPARQL, "?authorOf rdf:type ga:Book .")
	assert.Len(t, result.Triples, 4)
	assert.Empty(t, result.Unsplittable)
}

func TestCompileCommand_UnionIsNotDecomposable(t *testing.T) {
	out, err := execute(t, NewCompileCommand(testRoot("text")), filepath.Join("testdata", "union.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "UNION")
	assert.Contains(t, out, "Not decomposable: BAD_QUERY")
}

func TestCompileCommand_WritesOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.rq")
	out, err := execute(t, NewCompileCommand(testRoot("text")), "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote SPARQL to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SELECT DISTINCT *")
}

func TestCompileCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing file", filepath.Join(dir, "absent.yaml"), ErrCodeNotFound},
		{"unknown key", write("unknown.yaml", "steps: [{intersect: {type: ga:Book}}]\nfocus: x\n"), ErrCodeInvalidInput},
		{"no steps", write("empty.yaml", "prefixes: {}\n"), ErrCodeInvalidInput},
		{"unknown mark", write("mark.yaml", "steps: [{focus: nowhere}]\n"), ErrCodeInvalidQuery},
		{"two edits", write("two.yaml", "steps: [{union: true, delete: true}]\n"), ErrCodeInvalidQuery},
		{"unknown prefix", write("prefix.yaml", "steps: [{intersect: {type: zz:Book}}]\n"), ErrCodeInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewCompileCommand(testRoot("json")), tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
