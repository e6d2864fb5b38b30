package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/lockstep/internal/ir"
)

func TestClock_StartsAtZero(t *testing.T) {
	c := NewClock()
	assert.Equal(t, ir.Clk(0), c.Current())
}

func TestClock_NewClockAt(t *testing.T) {
	c := NewClockAt(100)
	assert.Equal(t, ir.Clk(100), c.Current())
	assert.Equal(t, ir.Clk(101), c.Next())
}

func TestClock_NextIsStrictlyIncreasing(t *testing.T) {
	c := NewClock()

	assert.Equal(t, ir.Clk(1), c.Next())
	assert.Equal(t, ir.Clk(2), c.Next())
	assert.Equal(t, ir.Clk(3), c.Next())
	assert.Equal(t, ir.Clk(3), c.Current())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const perGoroutine = 100

	var mu sync.Mutex
	seen := make(map[ir.Clk]bool)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				v := c.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine, "every tick should be unique")
	assert.Equal(t, ir.Clk(goroutines*perGoroutine), c.Current())
}
