// Package instr runs Go functions as controlled tasks of an engine.
//
// A controlled program is written against Thread instead of the go
// statement and sync primitives:
//
//	code, err := rt.Run(ctx, func(t *instr.Thread) {
//		mu := rt.NewMutex()
//		child := t.Go(func(t *instr.Thread) {
//			t.Lock(mu)
//			defer t.Unlock(mu)
//		})
//		t.Join(child)
//	})
//
// Every Thread method is a capture point. Only one task runs at a time;
// the others are parked until the engine picks them, so a run is fully
// determined by its seed and can be replayed from its trace.
//
// When the run ends every task unwinds with runtime.Goexit, running its
// deferred calls. Tasks must not block outside the engine except inside
// Call or Block.
package instr
