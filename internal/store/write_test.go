package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

func TestWriteRun_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tr := createTestTrace(t, "run-1", 42, []ir.TaskID{1, 2, 1}, ir.ReasonSuccess)
	run, err := s.WriteRun(ctx, tr)
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, uint64(42), run.Seed)
	assert.Equal(t, "random", run.Strategy)
	assert.Equal(t, ir.EngineVersion, run.EngineVersion)
	assert.Equal(t, ir.TraceFormatVersion, run.FormatVersion)
	assert.Equal(t, "cfg-hash", run.ConfigHash)
	assert.Equal(t, 6, run.Records)
	assert.True(t, run.Finished())
	assert.Equal(t, "SUCCESS", run.FinalReason)
	assert.Equal(t, int64(engine.ExitOK), run.ExitCode.Int64)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM records WHERE run_id = ?", "run-1").Scan(&count))
	assert.Equal(t, 6, count)
}

func TestWriteRun_ExitCodeFromReason(t *testing.T) {
	s := createTestStore(t)

	run, err := s.WriteRun(context.Background(),
		createTestTrace(t, "run-dl", 1, []ir.TaskID{1, 2}, ir.ReasonRsrcDeadlock))
	require.NoError(t, err)

	assert.Equal(t, "RSRC_DEADLOCK", run.FinalReason)
	assert.Equal(t, int64(engine.ExitDeadlock), run.ExitCode.Int64)
}

func TestWriteRun_Unfinished(t *testing.T) {
	s := createTestStore(t)

	run, err := s.WriteRun(context.Background(),
		createTestTrace(t, "run-open", 1, []ir.TaskID{1}, ir.ReasonUnknown))
	require.NoError(t, err)

	assert.False(t, run.Finished())
	assert.False(t, run.ExitCode.Valid)

	read, err := s.ReadRun(context.Background(), "run-open")
	require.NoError(t, err)
	assert.False(t, read.Finished())
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.WriteRun(ctx, createTestTrace(t, "run-1", 7, []ir.TaskID{1, 2}, ir.ReasonSuccess))
	require.NoError(t, err)

	// A different trace under the same run id leaves the archive untouched.
	second, err := s.WriteRun(ctx, createTestTrace(t, "run-1", 7, []ir.TaskID{1, 2, 2, 2}, ir.ReasonSuccess))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	records, err := s.ReadRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, records, first.Records)
}

func TestReplaceRun_OverwritesRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, createTestTrace(t, "run-1", 7, []ir.TaskID{1, 2}, ir.ReasonUnknown))
	require.NoError(t, err)

	run, err := s.ReplaceRun(ctx, createTestTrace(t, "run-1", 7, []ir.TaskID{1, 2, 2, 2}, ir.ReasonSuccess))
	require.NoError(t, err)
	assert.Equal(t, 7, run.Records)

	records, err := s.ReadRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, records, 7)
	assert.Equal(t, trace.KindExit, records[len(records)-1].Kind)
}

func TestWriteRun_RequiresHeader(t *testing.T) {
	s := createTestStore(t)

	tr := trace.NewFlat("")
	require.NoError(t, tr.Append(&trace.Record{ID: 1, Clk: 1, Kind: trace.KindSched}))

	_, err := s.WriteRun(context.Background(), tr)
	assert.Error(t, err)

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWriteRun_UnsignedValuesRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tr := createTestTrace(t, "run-big", ^uint64(0), []ir.TaskID{1}, ir.ReasonSuccess)
	require.NoError(t, tr.Append(&trace.Record{
		ID:     ir.AnyTask,
		Clk:    ir.Clk(^uint64(0) >> 1),
		Reason: ir.ReasonDiverged,
		Kind:   trace.KindForce,
		PC:     ^uint64(0) - 1,
		Data:   []byte{0, 1, 2},
	}))

	run, err := s.WriteRun(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), run.Seed)

	read, err := s.ReadRun(ctx, "run-big")
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), read.Seed)

	records, err := s.ReadRecords(ctx, "run-big")
	require.NoError(t, err)
	last := records[len(records)-1]
	assert.Equal(t, ir.AnyTask, last.ID)
	assert.Equal(t, ir.Clk(^uint64(0)>>1), last.Clk)
	assert.Equal(t, ir.ReasonDiverged, last.Reason)
	assert.Equal(t, ^uint64(0)-1, last.PC)
	assert.Equal(t, []byte{0, 1, 2}, last.Data)
}

func TestDeleteRun_CascadesRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, createTestTrace(t, "run-1", 1, []ir.TaskID{1, 2}, ir.ReasonSuccess))
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(ctx, "run-1"))
	require.NoError(t, s.DeleteRun(ctx, "run-1"))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count))
	assert.Zero(t, count)

	_, err = s.ReadRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
