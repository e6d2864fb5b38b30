package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// createTestStore opens a fresh archive in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTrace builds an in-memory trace with a START header, a CONFIG
// record, one SCHED record per entry of tasks (clocks 1, 2, ...) and, when
// reason is not ReasonUnknown, a closing EXIT record.
func createTestTrace(t *testing.T, runID string, seed uint64, tasks []ir.TaskID, reason ir.Reason) *trace.Flat {
	t.Helper()

	h := engine.Header{
		FormatVersion: ir.TraceFormatVersion,
		EngineVersion: ir.EngineVersion,
		Seed:          seed,
		Strategy:      "random",
		RunID:         runID,
		ConfigHash:    "cfg-hash",
	}
	payload, err := h.Payload()
	require.NoError(t, err)

	tr := trace.NewFlat("")
	require.NoError(t, tr.Append(&trace.Record{Kind: trace.KindStart, Data: payload}))
	require.NoError(t, tr.Append(&trace.Record{Kind: trace.KindConfig, Data: []byte(`{"strategy":"random"}`)}))
	for i, id := range tasks {
		require.NoError(t, tr.Append(&trace.Record{
			ID:     id,
			Clk:    ir.Clk(i + 1),
			Cat:    ir.CatMutexAcquire,
			Reason: ir.ReasonDeterministic,
			Kind:   trace.KindSched,
			PC:     0x4000 + uint64(i),
		}))
	}
	if reason != ir.ReasonUnknown {
		require.NoError(t, tr.Append(&trace.Record{
			ID:     ir.MainThread,
			Clk:    ir.Clk(len(tasks) + 1),
			Cat:    ir.CatExit,
			Reason: reason,
			Kind:   trace.KindExit,
		}))
	}
	return tr
}
