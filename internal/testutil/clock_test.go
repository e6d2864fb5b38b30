package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_Advance(t *testing.T) {
	c := NewFakeClock()
	start := c.Now()

	c.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.Now().Sub(start))
}

func TestFakeClock_SleepDoesNotBlock(t *testing.T) {
	c := NewFakeClock()
	start := c.Now()

	c.Sleep(time.Hour)
	c.Sleep(time.Minute)

	assert.Equal(t, time.Hour+time.Minute, c.Now().Sub(start))
	assert.Equal(t, []time.Duration{time.Hour, time.Minute}, c.Slept())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	c := NewFakeClock()
	start := c.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50*time.Millisecond, c.Now().Sub(start))
}

func TestFixedRunIDGenerator(t *testing.T) {
	gen := NewFixedRunIDGenerator("run-123")
	assert.Equal(t, "run-123", gen.Generate())
	assert.Equal(t, "run-123", gen.Generate())

	assert.Equal(t, "test-run-default", NewFixedRunIDGenerator("").Generate())
}
