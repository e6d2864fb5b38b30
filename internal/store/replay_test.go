package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/ir"
)

func TestGetRunState_Aggregates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, createTestTrace(t, "run-1", 3, []ir.TaskID{1, 2, 1, 3}, ir.ReasonSuccess))
	require.NoError(t, err)

	state, err := s.GetRunState(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", state.RunID)
	assert.Equal(t, ir.Clk(4), state.LastClock)
	assert.Equal(t, 4, state.Decisions)
	assert.Equal(t, 3, state.Tasks)
	assert.True(t, state.Finished())
}

func TestGetRunState_NoDecisions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, createTestTrace(t, "run-1", 3, nil, ir.ReasonUnknown))
	require.NoError(t, err)

	state, err := s.GetRunState(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, ir.Clk(0), state.LastClock)
	assert.Zero(t, state.Decisions)
	assert.Zero(t, state.Tasks)
}

func TestGetRunState_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRunState(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFindUnfinishedRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs := []struct {
		id     string
		reason ir.Reason
	}{
		{"run-b", ir.ReasonUnknown},
		{"run-a", ir.ReasonSuccess},
		{"run-d", ir.ReasonImpasse},
		{"run-c", ir.ReasonUnknown},
	}
	for _, r := range runs {
		_, err := s.WriteRun(ctx, createTestTrace(t, r.id, 1, []ir.TaskID{1, 2}, r.reason))
		require.NoError(t, err)
	}

	unfinished, err := s.FindUnfinishedRuns(ctx)
	require.NoError(t, err)

	var ids []string
	for _, r := range unfinished {
		ids = append(ids, r.RunID)
	}
	assert.Equal(t, []string{"run-b", "run-c"}, ids)
}
