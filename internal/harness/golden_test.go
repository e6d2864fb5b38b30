package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/ir"
)

func TestGolden_Solo(t *testing.T) {
	// A lone task is always its own successor, so no decision is recorded.
	result, err := RunWithGolden(t, &Scenario{
		Name:       "solo",
		Program:    "solo",
		Params:     Params{"yields": 2},
		Seeds:      []uint64{1, 2},
		Assertions: []Assertion{{Type: AssertReason, Reason: "SUCCESS"}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_Marshal(t *testing.T) {
	s := Snapshot{
		ScenarioName: "x",
		Runs: []RunResult{{
			Seed:     7,
			RunID:    "x/7",
			ExitCode: 2,
			Reason:   ir.ReasonRsrcDeadlock,
			Schedule: []Decision{{3, 2, ir.CatMutexAcquire}},
		}},
	}
	data, err := s.Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"runs":[{"exit_code":2,"reason":"RSRC_DEADLOCK","schedule":["3:2:MUTEX_ACQUIRE"],"seed":7}],"scenario_name":"x"}`,
		string(data))
}
