package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")

func runTestCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeTempScenario writes a scenario into <tmp>/scenarios and returns
// that directory.
func writeTempScenario(t *testing.T, name, body string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
	return dir
}

func absSunspot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(sunspotDir)
	require.NoError(t, err)
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCmd(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCmd(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := runTestCmd(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := runTestCmd(t, "text", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ button-click")
	assert.Contains(t, out, "✓ identity-reset")
	assert.Contains(t, out, "Test Summary: 5 passed, 0 failed, 5 total")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := runTestCmd(t, "json", "--filter", "identity-*", harnessScenarios)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "identity-reset", resp.Data.Scenarios[0].Name)
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := writeTempScenario(t, "wrong-count", `
name: wrong-count
description: "asserts one node too many"
schema: `+absSunspot(t)+`
steps:
  - guest:
      - create: {widget: Text, as: t}
      - insert: {node: t, index: 0}
assertions:
  - type: node_count
    count: 2
`)

	out, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong-count")
	assert.Contains(t, out, "Assertion failed: node_count")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := writeTempScenario(t, "broken", "name: broken\n")

	out, err := runTestCmd(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Data  TestResult `json:"data"`
		Error *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "broken.yaml", resp.Data.Scenarios[0].Name)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "failed to load scenario")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := writeTempScenario(t, "one-text", `
name: one-text
description: "a single label"
schema: `+absSunspot(t)+`
steps:
  - guest:
      - create: {widget: Text, as: t}
      - set: {node: t, property: text, value: "x"}
      - insert: {node: t, index: 0}
`)

	out, err := runTestCmd(t, "text", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ one-text (golden updated)")

	goldenPath := filepath.Join(filepath.Dir(dir), "golden", "one-text.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), "Text#1 text=\"x\"")

	_, err = runTestCmd(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("stale\n"), 0o644))
	out, err = runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestGoldenFilePath(t *testing.T) {
	got := goldenFilePath(filepath.Join("testdata", "scenarios", "button-click.yaml"))
	assert.Equal(t, filepath.Join("testdata", "golden", "button-click.golden"), got)
}
