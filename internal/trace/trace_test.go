package trace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/ir"
)

// backends returns a constructor per backend. Each call makes a fresh
// trace in its own temporary location; reopen loads a second handle on
// the same storage.
func backends(t *testing.T) map[string]struct {
	create func() Trace
	reopen func() Trace
} {
	t.Helper()
	dir := t.TempDir()
	flatPath := filepath.Join(dir, "run.trace")
	chunkDir := filepath.Join(dir, "chunks")

	return map[string]struct {
		create func() Trace
		reopen func() Trace
	}{
		"flat": {
			create: func() Trace { return NewFlat(flatPath) },
			reopen: func() Trace {
				tr, err := OpenFlat(flatPath)
				require.NoError(t, err)
				return tr
			},
		},
		"chunked": {
			create: func() Trace { return NewChunked(chunkDir, 3) },
			reopen: func() Trace {
				tr, err := OpenChunked(chunkDir, 3)
				require.NoError(t, err)
				return tr
			},
		},
	}
}

func sched(clk ir.Clk, id ir.TaskID) *Record {
	return &Record{ID: id, Clk: clk, Cat: ir.CatUserYield, Reason: ir.ReasonDeterministic, Kind: KindSched}
}

func fill(t *testing.T, tr Trace, n int) {
	t.Helper()
	require.NoError(t, tr.Append(&Record{Kind: KindStart, Data: []byte(`{"seed":1}`)}))
	for i := 1; i < n; i++ {
		require.NoError(t, tr.Append(sched(ir.Clk(i), ir.TaskID(i%3+1))))
	}
}

func TestTrace_AppendNextAdvance(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := b.create()
			fill(t, tr, 8)
			assert.Equal(t, 8, tr.Len())

			// Next peeks without consuming.
			r := tr.Next(KindSched)
			require.NotNil(t, r)
			assert.Equal(t, ir.Clk(1), r.Clk)
			assert.Same(t, r, tr.Next(KindSched))

			var clks []ir.Clk
			for r := tr.Next(KindSched); r != nil; r = tr.Next(KindSched) {
				clks = append(clks, r.Clk)
				tr.Advance()
			}
			assert.Equal(t, []ir.Clk{1, 2, 3, 4, 5, 6, 7}, clks)
			assert.Nil(t, tr.Next(KindAny))
		})
	}
}

func TestTrace_NextSkipsNonMatching(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := b.create()
			require.NoError(t, tr.Append(&Record{Kind: KindStart}))
			require.NoError(t, tr.Append(&Record{Kind: KindInfo, Clk: 1}))
			require.NoError(t, tr.Append(sched(2, 1)))

			r := tr.Next(KindSched | KindExit)
			require.NotNil(t, r)
			assert.Equal(t, ir.Clk(2), r.Clk)

			// The skipped records stay skipped.
			assert.Equal(t, KindSched, tr.Next(KindAny).Kind)
		})
	}
}

func TestTrace_SaveLoadRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := b.create()
			fill(t, tr, 10)
			require.NoError(t, tr.Save())

			loaded := b.reopen()
			assert.Equal(t, All(tr), All(loaded))
			assert.Equal(t, ir.Clk(9), LastClock(loaded))
		})
	}
}

func TestTrace_ForgetDropsLast(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := b.create()
			fill(t, tr, 7)
			require.NoError(t, tr.Save())
			tr = b.reopen()

			tr.Forget()
			tr.Forget()
			tr.Forget()
			assert.Equal(t, 4, tr.Len())
			assert.Equal(t, ir.Clk(3), tr.Last().Clk)

			require.NoError(t, tr.Save())
			assert.Equal(t, 4, b.reopen().Len())
		})
	}
}

func TestTrace_ForgetEmptyIsNoop(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := b.create()
			tr.Forget()
			assert.Nil(t, tr.Last())
			assert.Equal(t, 0, tr.Len())
		})
	}
}

func TestTrace_ClearRemovesPersisted(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := b.create()
			fill(t, tr, 5)
			require.NoError(t, tr.Save())
			require.NoError(t, tr.Clear())
			assert.Equal(t, 0, tr.Len())
			require.NoError(t, tr.Save())
			assert.Equal(t, 0, b.reopen().Len())
		})
	}
}

func TestTrace_AppendSafeUsesReservedCapacity(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := b.create()
			fill(t, tr, 2)
			tr.Reserve(1)

			exit := &Record{Kind: KindExit, Clk: 9, Reason: ir.ReasonSuccess}
			allocs := testing.AllocsPerRun(10, func() {
				if err := tr.AppendSafe(exit); err != nil {
					panic(err)
				}
				tr.Forget()
			})
			assert.Zero(t, allocs)

			require.NoError(t, tr.AppendSafe(exit))
			assert.Equal(t, KindExit, tr.Last().Kind)
		})
	}
}

func TestFlat_AppendSafeWithoutReserve(t *testing.T) {
	tr := NewFlat("")
	assert.ErrorIs(t, tr.AppendSafe(sched(1, 1)), ErrNoCapacity)
}

func TestChunked_WritesWholeChunks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "c")
	tr := NewChunked(dir, 4)
	fill(t, tr, 10)
	require.NoError(t, tr.Save())

	files, err := tr.chunkFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"000000.trace", "000001.trace", "000002.trace"}, files)

	// Trimming below a chunk boundary drops the later files on save.
	TrimToClock(tr, 3)
	require.NoError(t, tr.Save())
	files, err = tr.chunkFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"000000.trace"}, files)
}

func TestChunked_LoadRejectsGaps(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "c")
	tr := NewChunked(dir, 2)
	fill(t, tr, 6)
	require.NoError(t, tr.Save())
	require.NoError(t, removeFile(filepath.Join(dir, "000001.trace")))

	_, err := OpenChunked(dir, 2)
	assert.Error(t, err)
}

func TestOpen_DetectsBackend(t *testing.T) {
	dir := t.TempDir()

	flat := NewFlat(filepath.Join(dir, "f.trace"))
	fill(t, flat, 3)
	require.NoError(t, flat.Save())

	chunked := NewChunked(filepath.Join(dir, "c"), 2)
	fill(t, chunked, 3)
	require.NoError(t, chunked.Save())

	a, err := Open(filepath.Join(dir, "f.trace"), 2)
	require.NoError(t, err)
	assert.IsType(t, &Flat{}, a)

	b, err := Open(filepath.Join(dir, "c"), 2)
	require.NoError(t, err)
	assert.IsType(t, &Chunked{}, b)
	assert.Equal(t, All(a), All(b))

	_, err = Open(filepath.Join(dir, "missing"), 2)
	assert.Error(t, err)
}

func TestCreate_UnknownBackend(t *testing.T) {
	_, err := Create("tape", filepath.Join(t.TempDir(), "x"), 0)
	assert.Error(t, err)
}

func TestCopy(t *testing.T) {
	src := NewFlat("")
	fill(t, src, 4)
	dst := NewChunked(filepath.Join(t.TempDir(), "c"), 3)
	require.NoError(t, Copy(dst, src))
	assert.Equal(t, All(src), All(dst))
}
