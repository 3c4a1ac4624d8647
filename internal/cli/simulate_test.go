package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScenarios = filepath.Join("testdata", "scenarios")

func TestSimulateCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewSimulateCommand(testRoot("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestSimulateCommandNonExistentPath(t *testing.T) {
	_, err := execute(t, NewSimulateCommand(testRoot("text")), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestSimulateCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewSimulateCommand(testRoot("text")), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestSimulateCommandSingleFile(t *testing.T) {
	out, err := execute(t, NewSimulateCommand(testRoot("text")), filepath.Join(testScenarios, "join.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ join")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestSimulateCommandReportsFailures(t *testing.T) {
	out, err := execute(t, NewSimulateCommand(testRoot("text")), testScenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 scenario(s) failed")

	assert.Contains(t, out, "✓ join")
	assert.Contains(t, out, "✗ silent_catalog")
	assert.Contains(t, out, "session never finalized")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestSimulateCommandFilterJSON(t *testing.T) {
	out, err := execute(t, NewSimulateCommand(testRoot("json")), testScenarios, "--filter", "join*")
	require.NoError(t, err)

	var result SimulateResult
	decodeData(t, out, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "join", result.Scenarios[0].Name)
	assert.Equal(t, "test-conversation-default", result.Scenarios[0].Conversation)
}

func TestSimulateCommandInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, err := execute(t, NewSimulateCommand(testRoot("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "invalid scenario")
}

func TestSimulateCommandMetrics(t *testing.T) {
	errBuf := &bytes.Buffer{}
	cmd := NewSimulateCommand(testRoot("text"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{filepath.Join(testScenarios, "join.yaml"), "--metrics"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "# TYPE gafed_session_finalized_total counter")
	assert.Contains(t, errBuf.String(), `gafed_session_finalized_total{complete="true"} 1`)
	assert.Contains(t, errBuf.String(), `gafed_broker_decompositions_total{outcome="ok",strategy="capabilities"} 1`)
}

func TestSimulateCommandRecordsInStore(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "gafed.db")
	cfg := filepath.Join(dir, "broker.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(fmt.Sprintf("[store]\npath = %q\n", db)), 0644))

	out, err := execute(t, NewRootCommand(), "--config", cfg, "--format", "json",
		"simulate", filepath.Join(testScenarios, "join.yaml"))
	require.NoError(t, err)

	var result SimulateResult
	decodeData(t, out, &result)
	require.Len(t, result.Scenarios, 1)
	conv := result.Scenarios[0].Conversation
	assert.Len(t, conv, 36, "conversation ids are UUIDs when a store is configured")

	out, err = execute(t, NewRootCommand(), "--format", "json", "sessions", "--db", db)
	require.NoError(t, err)
	var sessions []SessionSummary
	decodeData(t, out, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, conv, sessions[0].Conversation)
	assert.Equal(t, "FINALIZED", sessions[0].State)
	assert.True(t, sessions[0].Complete)
	assert.Equal(t, 1, sessions[0].Rows)
}
