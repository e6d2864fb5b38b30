package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Counter(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/counter.yaml")
	require.NoError(t, err)

	assert.Equal(t, "counter", s.Program)
	assert.Equal(t, 3, s.Params.Int("workers", 0))
	assert.Equal(t, []uint64{1, 2, 3, 4}, s.Seeds)
	assert.True(t, s.replays())
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asertions")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.Error(t, err)
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no name", "program: solo\nseeds: [1]\nassertions: [{type: replays}]\n", "name is required"},
		{"no program", "name: x\nseeds: [1]\nassertions: [{type: replays}]\n", "program is required"},
		{"unknown program", "name: x\nprogram: nope\nseeds: [1]\nassertions: [{type: replays}]\n", "nope"},
		{"no seeds", "name: x\nprogram: solo\nassertions: [{type: replays}]\n", "seeds"},
		{"zero seed", "name: x\nprogram: solo\nseeds: [0]\nassertions: [{type: replays}]\n", "non-zero"},
		{"no assertions", "name: x\nprogram: solo\nseeds: [1]\n", "assertions list"},
		{"exit code without code", "name: x\nprogram: solo\nseeds: [1]\nassertions: [{type: exit_code}]\n", "code is required"},
		{"bad reason", "name: x\nprogram: solo\nseeds: [1]\nassertions: [{type: reason, reason: MAYBE}]\n", "assertions[0]"},
		{"finds without reason", "name: x\nprogram: solo\nseeds: [1]\nassertions: [{type: finds}]\n", "reason is required"},
		{"zero count", "name: x\nprogram: solo\nseeds: [1]\nassertions: [{type: max_decisions}]\n", "count must be positive"},
		{"unknown type", "name: x\nprogram: solo\nseeds: [1]\nassertions: [{type: eventually}]\n", "unknown assertion type"},
		{"bad config", "name: x\nprogram: solo\nconfig: {strategy: greedy}\nseeds: [1]\nassertions: [{type: replays}]\n", "scenario config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScenario_BuildConfig(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/pct_counter.yaml")
	require.NoError(t, err)

	cfg, err := s.BuildConfig()
	require.NoError(t, err)
	assert.Equal(t, "pct", cfg.Strategy)
	assert.Equal(t, uint64(2), cfg.PCTDepth)
	assert.Equal(t, "chpt", cfg.Granularity)
}

func TestLoadScenarios_SortedByFile(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"counter", "lock-order", "lost-update", "pct-counter"}, names)
}

func TestLoadScenarios_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	doc := []byte("name: dup\nprogram: solo\nseeds: [1]\nassertions: [{type: replays}]\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), doc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), doc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined in both")
}

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			require.Len(t, result.Runs, len(s.Seeds))
			for i, r := range result.Runs {
				assert.Equal(t, s.Seeds[i], r.Seed)
				assert.True(t, r.Replayed)
			}
		})
	}
}

func TestRun_RunIDsFollowScenarioAndSeed(t *testing.T) {
	s := &Scenario{
		Name:       "ids",
		Program:    "solo",
		Seeds:      []uint64{3, 9},
		Assertions: []Assertion{{Type: AssertReason, Reason: "SUCCESS"}},
	}
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, result.Runs, 2)
	assert.Equal(t, "ids/3", result.Runs[0].RunID)
	assert.Equal(t, "ids/9", result.Runs[1].RunID)
	assert.False(t, result.Runs[0].Replayed)
}
