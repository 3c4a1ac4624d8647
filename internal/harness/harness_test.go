package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenagents/gafed/internal/aql"
	"github.com/goldenagents/gafed/internal/metrics"
	"github.com/goldenagents/gafed/internal/session"
	"github.com/goldenagents/gafed/internal/store"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_GoldenScenarios(t *testing.T) {
	for _, name := range []string{
		"join_two_sources",
		"join_with_linkset",
		"unreachable_source",
		"suggestions_round",
		"merge_failure",
		"missing_expert",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_JoinPlan(t *testing.T) {
	result, err := Run(loadScenario(t, "join_two_sources"))
	require.NoError(t, err)

	require.Len(t, result.Dispatched, 2)
	assert.Equal(t, "books", result.Dispatched[0].Source)
	assert.Equal(t, 2, result.Dispatched[0].Triples)
	assert.Contains(t, result.Dispatched[0].Construct, "CONSTRUCT")
	assert.False(t, result.Dispatched[1].Failed)

	require.NotNil(t, result.Outcome)
	assert.Equal(t, []string{"books", "catalog"}, result.Outcome.Provenance.Sources("?t"))
	assert.Nil(t, result.Suggestions)
	assert.Nil(t, result.DecompositionError)
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	scenario := loadScenario(t, "join_two_sources")
	rows, count := 7, 3
	scenario.Assertions = []Assertion{
		{Type: AssertResult, Rows: &rows},
		{Type: AssertRejected, Count: &count},
		{Type: AssertDispatched, Sources: []string{"catalog"}},
		{Type: AssertRow, Row: map[string]string{"t": "Nope"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "7 rows")
	assert.Contains(t, result.Errors[1], "3 rejected replies")
	assert.Contains(t, result.Errors[2], "[catalog]")
	assert.Contains(t, result.Errors[3], "none of 2 rows matched")
}

func TestRun_SourceRestriction(t *testing.T) {
	scenario := loadScenario(t, "join_two_sources")
	scenario.Sources = []string{"books"}
	scenario.Flow = scenario.Flow[:2]
	rows := 1
	scenario.Assertions = []Assertion{
		{Type: AssertDispatched, Sources: []string{"books"}},
		{Type: AssertResult, Rows: &rows},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
	assert.Len(t, result.Rejected, 0)
}

func TestRun_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("gafed", reg)

	_, err := Run(loadScenario(t, "unreachable_source"), WithMetrics(m))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decompositions.WithLabelValues("capabilities", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Responses.WithLabelValues("partial", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Finalized.WithLabelValues("false")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OpenSessions))
}

func TestRun_MissingFederation(t *testing.T) {
	scenario := loadScenario(t, "join_two_sources")
	scenario.Federation = filepath.Join(t.TempDir(), "absent.cue")

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load federation")
}

func TestParseTriple(t *testing.T) {
	scenario := loadScenario(t, "join_two_sources")
	qi, err := scenario.Query.Build()
	require.NoError(t, err)

	tr, err := parseTriple(qi.Prefixes, `<http://books.example/b1> ga:title "Dune and more" .`)
	require.NoError(t, err)
	assert.Equal(t, "http://books.example/b1", tr.Subject.Value)
	assert.Equal(t, "Dune and more", tr.Object.Value)

	_, err = parseTriple(qi.Prefixes, "<http://books.example/b1> a")
	assert.Error(t, err)
}

func TestRun_WithStoreRecordsSession(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	scenario := loadScenario(t, "unreachable_source")
	scenario.Conversation = "conv-stored"
	_, err = Run(scenario, WithStore(st), WithIDGenerator(aql.NewSequenceGenerator("ignored-")))
	require.NoError(t, err)

	rec, ok, err := st.Session(context.Background(), "conv-stored")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "capabilities", rec.Strategy)
	assert.Equal(t, []string{"books", "catalog"}, rec.Sources)
	assert.Equal(t, "FINALIZED", rec.State)
	assert.False(t, rec.Complete)
	assert.Equal(t, []string{"catalog"}, rec.Failed)
	assert.Equal(t, 1, rec.Rows)

	n, err := st.CountProgress(context.Background(), session.ProgressDatabaseError)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_IDGeneratorWithoutFixedConversation(t *testing.T) {
	result, err := Run(loadScenario(t, "missing_expert"), WithIDGenerator(aql.NewSequenceGenerator("conv-")))
	require.NoError(t, err)
	assert.Equal(t, "conv-1", result.Conversation)
}
