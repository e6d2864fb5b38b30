package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/ir"
)

func TestTrimToClock_Idempotent(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []ir.Clk{0, 1, 4, 9, 20} {
				once := b.create()
				require.NoError(t, once.Clear())
				fill(t, once, 10)
				TrimToClock(once, k)
				first := All(once)

				TrimToClock(once, k)
				assert.Equal(t, first, All(once), "clk %d", k)

				for _, r := range first {
					assert.LessOrEqual(t, r.Clk, k)
				}
			}
		})
	}
}

func TestTrimToGoal(t *testing.T) {
	tr := NewFlat("")
	fill(t, tr, 5)
	require.NoError(t, tr.Append(&Record{Kind: KindConfig, Clk: 4}))

	require.NoError(t, TrimToGoal(tr, 4, false))
	assert.Equal(t, KindConfig, tr.Last().Kind)

	require.NoError(t, TrimToGoal(tr, 4, true))
	assert.Equal(t, KindSched, tr.Last().Kind)
	assert.Equal(t, ir.Clk(4), tr.Last().Clk)

	assert.Error(t, TrimToGoal(tr, 40, false))
	assert.Error(t, TrimToGoal(NewFlat(""), 0, false))
}

func TestTrimToCategoryAndKind(t *testing.T) {
	tr := NewFlat("")
	require.NoError(t, tr.Append(&Record{Kind: KindStart}))
	require.NoError(t, tr.Append(&Record{Kind: KindSched, Clk: 1, Cat: ir.CatMutexAcquire}))
	require.NoError(t, tr.Append(&Record{Kind: KindSched, Clk: 2, Cat: ir.CatUserYield}))
	require.NoError(t, tr.Append(&Record{Kind: KindExit, Clk: 3}))

	TrimToKind(tr, KindSched)
	assert.Equal(t, ir.Clk(2), tr.Last().Clk)

	TrimToCategory(tr, ir.CatMutexAcquire)
	assert.Equal(t, ir.Clk(1), tr.Last().Clk)

	TrimToCategory(tr, ir.CatJoin)
	assert.Equal(t, 0, tr.Len())
}

func TestScheduleTask_ReplacesFinalDecision(t *testing.T) {
	tr := NewFlat("")
	fill(t, tr, 4)
	require.NoError(t, tr.Append(&Record{Kind: KindForce, Clk: 3, ID: 2}))

	require.NoError(t, ScheduleTask(tr, 9))

	assert.Equal(t, 4, tr.Len())
	last := tr.Last()
	assert.Equal(t, KindForce, last.Kind)
	assert.Equal(t, ir.TaskID(9), last.ID)
	assert.Equal(t, ir.Clk(3), last.Clk)

	assert.Error(t, ScheduleTask(NewFlat(""), 1))
}
