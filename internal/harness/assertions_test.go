package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/ir"
)

func intPtr(v int) *int { return &v }

func sampleRuns() []RunResult {
	return []RunResult{
		{Seed: 1, ExitCode: 0, Reason: ir.ReasonSuccess, Replayed: true,
			Schedule: []Decision{{2, 2, ir.CatUserYield}}},
		{Seed: 2, ExitCode: 1, Reason: ir.ReasonAssertFail, Replayed: true,
			Schedule: []Decision{{2, 2, ir.CatUserYield}, {4, 1, ir.CatJoin}, {6, 3, ir.CatUserYield}}},
	}
}

func TestEvaluateAssertions_Holding(t *testing.T) {
	errs := EvaluateAssertions(sampleRuns(), []Assertion{
		{Type: AssertFinds, Reason: "ASSERT_FAIL"},
		{Type: AssertNever, Reason: "RSRC_DEADLOCK"},
		{Type: AssertReplays},
		{Type: AssertMaxDecisions, Count: 3},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failing(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"exit code", Assertion{Type: AssertExitCode, Code: intPtr(0)}, "seed 2: exit code 1"},
		{"reason", Assertion{Type: AssertReason, Reason: "SUCCESS"}, "seed 2: reason ASSERT_FAIL"},
		{"never", Assertion{Type: AssertNever, Reason: "ASSERT_FAIL"}, "seed 2"},
		{"finds", Assertion{Type: AssertFinds, Reason: "RSRC_DEADLOCK"}, "none of 2 runs"},
		{"max decisions", Assertion{Type: AssertMaxDecisions, Count: 2}, "seed 2: 3 decisions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleRuns(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "Assertion failed: "+tt.assertion.Type)
			assert.Contains(t, errs[0], tt.want)
			assert.Contains(t, errs[0], "seed=1 exit=0 reason=SUCCESS decisions=1")
		})
	}
}

func TestEvaluateAssertions_Replays(t *testing.T) {
	runs := sampleRuns()
	runs[0].Replayed = false
	errs := EvaluateAssertions(runs, []Assertion{{Type: AssertReplays}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "seed 1: not replayed")

	runs = sampleRuns()
	runs[1].Replay = errors.New("schedules differ")
	errs = EvaluateAssertions(runs, []Assertion{{Type: AssertReplays}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "seed 2: schedules differ")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(sampleRuns(), []Assertion{{Type: "eventually"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "unknown assertion type")
}

func TestReplayError(t *testing.T) {
	rec := sampleRuns()[1]

	assert.NoError(t, replayError(rec, &Outcome{Reason: ir.ReasonAssertFail}, rec.Schedule))

	err := replayError(rec, &Outcome{Reason: ir.ReasonSuccess}, rec.Schedule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay ended with SUCCESS")

	err = replayError(rec, &Outcome{Reason: ir.ReasonAssertFail}, rec.Schedule[:1])
	var mm *MismatchError
	assert.ErrorAs(t, err, &mm)

	err = replayError(rec, &Outcome{Err: errors.New("diverged")}, rec.Schedule)
	assert.ErrorContains(t, err, "replay failed: diverged")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
