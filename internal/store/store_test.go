package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenagents/gafed/internal/session"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gafed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was created")

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.RecordProgress(context.Background(), "c", session.Progress{QueryID: "q", Type: session.ProgressQuerySent})
	require.NoError(t, err)
}

func TestStore_ProgressIsOrderedPerConversation(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	events := []session.Progress{
		{QueryID: "q", Type: session.ProgressQuerySent},
		{QueryID: "q", Type: session.ProgressSubquerySent, Value: "A"},
		{QueryID: "q", Type: session.ProgressDataCollected, Value: 3,
			Subresults: []session.SubResult{{Source: "A", Items: 3}}},
		{QueryID: "q", Type: session.ProgressQueryExecuted, Finished: true},
	}
	for i, p := range events {
		seq, err := s.RecordProgress(ctx, "c1", p)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}
	seq, err := s.RecordProgress(ctx, "c2", events[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq, "sequences are per conversation")

	got, err := s.ProgressFor(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, rec := range got {
		assert.Equal(t, events[i].Type, rec.Type)
		assert.Equal(t, int64(i+1), rec.Seq)
	}
	assert.JSONEq(t, `"A"`, string(got[1].Value))
	assert.JSONEq(t, `3`, string(got[2].Value))
	assert.Equal(t, []session.SubResult{{Source: "A", Items: 3}}, got[2].Subresults)
	assert.JSONEq(t, `null`, string(got[0].Value))
	assert.Nil(t, got[0].Subresults)
	assert.True(t, got[3].Finished)

	n, err := s.CountProgress(ctx, session.ProgressQuerySent)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_ProgressForUnknownConversation(t *testing.T) {
	got, err := openTest(t).ProgressFor(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_PublishKeepsSPARQLReadable(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	var sink session.ProgressSink = s

	text := "SELECT ?x WHERE { ?x <http://example.org/p> \"a<b\" . }"
	require.NoError(t, sink.Publish(ctx, "c", session.Progress{QueryID: "q", Type: session.ProgressQueryTranslated, Value: text}))

	got, err := s.ProgressFor(ctx, "c")
	require.NoError(t, err)
	require.Len(t, got, 1)
	var decoded string
	require.NoError(t, json.Unmarshal(got[0].Value, &decoded))
	assert.Equal(t, text, decoded)
	assert.NotContains(t, string(got[0].Value), `\u003c`)
}

func TestStore_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	_, ok, err := s.Session(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RecordSession(ctx, SessionRecord{
		Conversation: "c",
		QueryID:      "q",
		Strategy:     "capabilities",
		Sources:      []string{"A", "B"},
		State:        session.StateOpen.String(),
	}))
	require.NoError(t, s.RecordResult(ctx, &session.Result{
		Conversation: "c",
		QueryID:      "q",
		Failed:       []string{"B"},
		Size:         7,
	}))

	rec, ok, err := s.Session(ctx, "c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, SessionRecord{
		Conversation: "c",
		QueryID:      "q",
		Strategy:     "capabilities",
		Sources:      []string{"A", "B"},
		State:        "FINALIZED",
		Complete:     false,
		Failed:       []string{"B"},
		Size:         7,
	}, rec)
}

func TestStore_SessionsSorted(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	for _, c := range []string{"c3", "c1", "c2"} {
		require.NoError(t, s.RecordResult(ctx, &session.Result{Conversation: c, QueryID: "q", Complete: true}))
	}

	got, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c1", got[0].Conversation)
	assert.Equal(t, "c3", got[2].Conversation)
	assert.True(t, got[0].Complete)
	assert.Empty(t, got[0].Strategy)
}
