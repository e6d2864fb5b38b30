package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

func TestTrimCommand_Clock(t *testing.T) {
	path := writeSampleTrace(t)

	out, err := execute(t, "trim", path, "--clock", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Trimmed 6 -> 4 records, last clock 5")

	tr, err := trace.OpenFlat(path)
	require.NoError(t, err)
	assert.Equal(t, 4, tr.Len())
}

func TestTrimCommand_Schedule(t *testing.T) {
	path := writeSampleTrace(t)

	_, data, err := executeJSON(t, "trim", path, "--kinds", "sched", "--schedule", "3")
	require.NoError(t, err)
	assert.Equal(t, float64(6), data["records_before"])
	assert.Equal(t, float64(4), data["records_after"])
	assert.Equal(t, "3", data["forced_task"])

	tr, err := trace.OpenFlat(path)
	require.NoError(t, err)
	last := tr.Last()
	assert.Equal(t, trace.KindForce, last.Kind)
	assert.Equal(t, ir.TaskID(3), last.ID)
	assert.Equal(t, ir.Clk(5), last.Clk)
}

func TestTrimCommand_GoalAndCategory(t *testing.T) {
	path := writeSampleTrace(t)

	_, err := execute(t, "trim", path, "--goal", "6", "--category", "MUTEX_ACQUIRE")
	require.NoError(t, err)

	tr, err := trace.OpenFlat(path)
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, ir.CatMutexAcquire, tr.Last().Cat)
}

func TestTrimCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"goal past end", []string{"--goal", "100"}},
		{"bad category", []string{"--category", "NOPE"}},
		{"bad kinds", []string{"--kinds", "NOPE"}},
		{"sentinel task", []string{"--schedule", "18446744073709551615"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"trim", writeSampleTrace(t)}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}
