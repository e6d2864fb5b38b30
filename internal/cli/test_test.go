package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const soloScenario = `name: solo
description: a lone task never switches
program: solo
seeds: [1, 2]
assertions:
  - type: reason
    reason: SUCCESS
  - type: replays
`

const failingScenario = `name: wrong
description: expects a deadlock that cannot happen
program: solo
seeds: [1]
assertions:
  - type: finds
    reason: RSRC_DEADLOCK
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
	}
	return dir
}

func TestTestCommand_Passing(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"solo.yaml": soloScenario, "notes.txt": "ignored"})

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ solo (2 runs)")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_Failing(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"solo.yaml": soloScenario, "wrong.yaml": failingScenario})

	resp, data, err := executeJSON(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, float64(1), data["passed"])
	assert.Equal(t, float64(1), data["failed"])
}

func TestTestCommand_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"solo.yaml": soloScenario, "wrong.yaml": failingScenario})

	out, err := execute(t, "test", dir, "--filter", "so*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")

	_, err = execute(t, "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_Golden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"solo.yaml": soloScenario})

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	data, err := os.ReadFile(filepath.Join(dir, "golden", "solo.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"solo"`)

	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "golden", "solo.golden"), `{"runs":[],"scenario_name":"solo"}`)
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "do not match golden file")
}

func TestTestCommand_BadInputs(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	dir := scenarioDir(t, map[string]string{"broken.yaml": "name: broken\nprogram: solo\n"})
	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "failed to load scenario")

	empty := t.TempDir()
	out, err = execute(t, "test", empty)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
