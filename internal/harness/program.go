package harness

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/lockstep/internal/instr"
	"github.com/roach88/lockstep/internal/ir"
)

// Params are the integer knobs of a program, e.g. the number of workers.
type Params map[string]int

// Int returns the named parameter or def when it is not set.
func (p Params) Int(name string, def int) int {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Program is a registered instrumented program.
type Program struct {
	Name        string
	Description string

	// Build allocates the shared state of one run and returns its main
	// task. It is called once per run, before the engine starts.
	Build func(rt *instr.Runtime, p Params) func(*instr.Thread)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Program{}
)

// Register adds p to the registry. It panics on a duplicate name.
func Register(p Program) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[p.Name]; ok {
		panic(fmt.Sprintf("harness: program %q registered twice", p.Name))
	}
	registry[p.Name] = p
}

// Lookup returns the program called name.
func Lookup(name string) (Program, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return Program{}, fmt.Errorf("unknown program %q", name)
	}
	return p, nil
}

// Programs returns every registered program sorted by name.
func Programs() []Program {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Program, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func init() {
	Register(Program{
		Name:        "solo",
		Description: "main task yields alone; no other task exists",
		Build: func(_ *instr.Runtime, p Params) func(*instr.Thread) {
			n := p.Int("yields", 3)
			return func(t *instr.Thread) {
				for i := 0; i < n; i++ {
					t.Yield()
				}
			}
		},
	})
	Register(Program{
		Name:        "counter",
		Description: "workers increment a shared counter under a mutex",
		Build: func(rt *instr.Runtime, p Params) func(*instr.Thread) {
			return incrementers(rt, p, true)
		},
	})
	Register(Program{
		Name:        "lost-update",
		Description: "workers increment a shared counter without a mutex",
		Build: func(rt *instr.Runtime, p Params) func(*instr.Thread) {
			return incrementers(rt, p, false)
		},
	})
	Register(Program{
		Name:        "lock-order",
		Description: "two workers take two mutexes in opposite order; barrier=1 makes both hold their first mutex before either takes the second",
		Build: func(rt *instr.Runtime, p Params) func(*instr.Thread) {
			a, b := rt.NewMutex(), rt.NewMutex()
			barrier := p.Int("barrier", 0) != 0
			held := 0
			worker := func(first, second *instr.Mutex) func(*instr.Thread) {
				return func(t *instr.Thread) {
					t.Lock(first)
					held++
					for barrier && held < 2 {
						t.Yield()
					}
					t.Yield()
					t.Lock(second)
					t.Unlock(second)
					t.Unlock(first)
				}
			}
			return func(t *instr.Thread) {
				x := t.Go(worker(a, b))
				y := t.Go(worker(b, a))
				_ = t.Join(x)
				_ = t.Join(y)
			}
		},
	})
	Register(Program{
		Name:        "philosophers",
		Description: "dining philosophers taking the left fork first",
		Build: func(rt *instr.Runtime, p Params) func(*instr.Thread) {
			n := p.Int("philosophers", 3)
			meals := p.Int("meals", 1)
			forks := make([]*instr.Mutex, n)
			for i := range forks {
				forks[i] = rt.NewMutex()
			}
			return func(t *instr.Thread) {
				ids := make([]ir.TaskID, 0, n)
				for i := 0; i < n; i++ {
					left, right := forks[i], forks[(i+1)%n]
					ids = append(ids, t.Go(func(t *instr.Thread) {
						for m := 0; m < meals; m++ {
							lockPair(t, left, right)
						}
					}))
				}
				for _, id := range ids {
					_ = t.Join(id)
				}
			}
		},
	})
	Register(Program{
		Name:        "trylock",
		Description: "workers spin on a trylock, yielding between attempts",
		Build: func(rt *instr.Runtime, p Params) func(*instr.Thread) {
			n := p.Int("workers", 2)
			mu := rt.NewMutex()
			var held int64
			return func(t *instr.Thread) {
				ids := make([]ir.TaskID, 0, n)
				for i := 0; i < n; i++ {
					ids = append(ids, t.Go(func(t *instr.Thread) {
						for !t.TryLock(mu) {
							t.Yield()
						}
						t.Store(&held, t.Load(&held)+1)
						t.Assert(t.Load(&held) == 1, "two holders of the lock")
						t.Store(&held, t.Load(&held)-1)
						t.Unlock(mu)
					}))
				}
				for _, id := range ids {
					_ = t.Join(id)
				}
			}
		},
	})
}

// incrementers starts workers that each add one to a shared counter
// iterations times, yielding between the read and the write. main asserts
// that no increment was lost.
func incrementers(rt *instr.Runtime, p Params, locked bool) func(*instr.Thread) {
	workers := p.Int("workers", 2)
	iterations := p.Int("iterations", 1)
	mu := rt.NewMutex()
	var total int64
	return func(t *instr.Thread) {
		ids := make([]ir.TaskID, 0, workers)
		for i := 0; i < workers; i++ {
			ids = append(ids, t.Go(func(t *instr.Thread) {
				for j := 0; j < iterations; j++ {
					if locked {
						t.Lock(mu)
					}
					v := t.Load(&total)
					t.Yield()
					t.Store(&total, v+1)
					if locked {
						t.Unlock(mu)
					}
				}
			}))
		}
		for _, id := range ids {
			_ = t.Join(id)
		}
		want := int64(workers * iterations)
		got := t.Load(&total)
		t.Assert(got == want, "counter is %d, want %d", got, want)
	}
}

func lockPair(t *instr.Thread, first, second *instr.Mutex) {
	t.Lock(first)
	t.Yield()
	t.Lock(second)
	t.Unlock(second)
	t.Unlock(first)
}
