package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/handlers"
	"github.com/roach88/lockstep/internal/prng"
	"github.com/roach88/lockstep/internal/strategy"
)

// Scheduler builds the configured strategy.
func (c Config) Scheduler() (engine.Scheduler, error) {
	return strategy.New(c.Strategy, strategy.Options{
		PCTDepth:     c.PCTDepth,
		PCTLength:    c.PCTLength,
		POSThreshold: c.POSThreshold,
		POSDivisor:   c.POSDivisor,
	})
}

// Handlers converts the handler settings.
func (c Config) Handlers() (handlers.Config, error) {
	addr, err := handlers.ParseAddressMethod(c.StableAddress)
	if err != nil {
		return handlers.Config{}, err
	}
	term, err := handlers.ParseTerminationMode(c.Termination)
	if err != nil {
		return handlers.Config{}, err
	}
	return handlers.Config{
		StableAddress:  addr,
		DeadlockCheck:  c.DeadlockCheck,
		Termination:    term,
		Limit:          c.Limit,
		WatchdogBudget: c.Watchdog,
		SpinBudget:     c.SpinBudget,
	}, nil
}

// PRNG returns a generator seeded with Seed, or with the wall clock when
// Seed is zero. Replay overrides the seed with the recorded one.
func (c Config) PRNG() *prng.PRNG {
	seed := c.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return prng.New(seed)
}

// EngineOptions returns the engine options for the configuration,
// including the CONFIG record payload.
func (c Config) EngineOptions(logger *slog.Logger) ([]engine.Option, error) {
	g, err := engine.ParseGranularity(c.Granularity)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithGranularity(g),
		engine.WithSlack(c.Slack),
		engine.WithAltExitCodes(c.ReturnCode == ReturnAlt),
		engine.WithConfig(c.Payload()),
	}
	if logger != nil {
		opts = append(opts, engine.WithLogger(logger))
	}
	return opts, nil
}

// Payload is the CONFIG record content: every setting that changes the
// decisions of a run. The seed travels in the START header instead.
func (c Config) Payload() map[string]any {
	return map[string]any{
		"strategy":       c.Strategy,
		"pct_depth":      c.PCTDepth,
		"pct_length":     c.PCTLength,
		"pos_threshold":  c.POSThreshold,
		"pos_divisor":    c.POSDivisor,
		"granularity":    c.Granularity,
		"stable_address": c.StableAddress,
		"termination":    c.Termination,
		"limit":          c.Limit,
		"spin_budget":    c.SpinBudget,
		"deadlock_check": c.DeadlockCheck,
		"return_code":    c.ReturnCode,
	}
}

// String renders the configuration on one line for logs.
func (c Config) String() string {
	return fmt.Sprintf("strategy=%s seed=%d granularity=%s termination=%s/%d backend=%s",
		c.Strategy, c.Seed, c.Granularity, c.Termination, c.Limit, c.Backend)
}
