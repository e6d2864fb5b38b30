package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/lockstep/internal/ir"
)

// Snapshot is the golden rendering of a scenario's runs.
type Snapshot struct {
	ScenarioName string
	Runs         []RunResult
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// Run ids and errors are left out; they are not part of the schedule.
func (s *Snapshot) toCanonicalMap() map[string]any {
	runs := make([]any, len(s.Runs))
	for i, r := range s.Runs {
		schedule := make([]any, len(r.Schedule))
		for j, d := range r.Schedule {
			schedule[j] = d.String()
		}
		runs[i] = map[string]any{
			"seed":      r.Seed,
			"exit_code": r.ExitCode,
			"reason":    r.Reason.String(),
			"schedule":  schedule,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"runs":          runs,
	}
}

// Marshal renders the snapshot as canonical JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its schedules against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check assertions as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file named
// after scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{ScenarioName: scenarioName, Runs: result.Runs}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
