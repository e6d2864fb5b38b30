package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/lockstep/internal/dispatch"
)

// Result codes written back into Args[1] by the mutex and join handlers.
// The non-zero values follow the POSIX errno numbering.
const (
	ResultOK      uint64 = 0
	ResultGranted uint64 = 1
	ResultNoTask  uint64 = 3
	ResultBusy    uint64 = 16
	ResultInvalid uint64 = 22
	ResultDeadlk  uint64 = 35
)

// Registrar installs a handler in a dispatcher slot. *engine.Engine
// satisfies it.
type Registrar interface {
	Register(slot dispatch.Slot, h dispatch.Handler)
}

// Config selects and tunes the standard handlers.
type Config struct {
	// StableAddress masks the call site addresses stored in records.
	StableAddress AddressMethod
	// DeadlockCheck walks the mutex wait-for graph on every wait.
	DeadlockCheck bool
	// Termination ends the run once Limit is exceeded.
	Termination TerminationMode
	Limit       uint64
	// WatchdogBudget is how long the run may go without a capture. Zero
	// disables the stall watchdog.
	WatchdogBudget time.Duration
	// SpinBudget is how many consecutive captures one task may make
	// before it is preempted. Zero disables preemption.
	SpinBudget uint64
}

// DefaultConfig returns the configuration used by the CLI.
func DefaultConfig() Config {
	return Config{
		StableAddress:  AddressNone,
		DeadlockCheck:  true,
		Termination:    TerminateNone,
		WatchdogBudget: 10 * time.Second,
		SpinBudget:     4096,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Termination != TerminateNone && c.Limit == 0 {
		return fmt.Errorf("termination %s needs a limit", c.Termination)
	}
	if c.WatchdogBudget < 0 {
		return fmt.Errorf("negative watchdog budget %s", c.WatchdogBudget)
	}
	return nil
}

// Set holds the installed handlers that expose state beyond Handle.
type Set struct {
	Mutex       *Mutex
	Join        *Join
	Impasse     *Impasse
	Termination *Termination
	Watchdog    *Watchdog
}

// Install registers the standard handlers on r.
func Install(r Registrar, cfg Config, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Set{
		Mutex:       NewMutex(cfg.DeadlockCheck, cfg.StableAddress, logger),
		Join:        NewJoin(),
		Impasse:     NewImpasse(logger),
		Termination: NewTermination(cfg.Termination, cfg.Limit),
		Watchdog:    NewWatchdog(cfg.WatchdogBudget, cfg.SpinBudget, WithWatchdogLogger(logger)),
	}

	r.Register(dispatch.SlotCreation, dispatch.HandlerFunc(Creation))
	r.Register(dispatch.SlotBlocking, dispatch.HandlerFunc(Blocking))
	r.Register(dispatch.SlotJoin, s.Join)
	r.Register(dispatch.SlotMutex, s.Mutex)
	r.Register(dispatch.SlotAvailable, dispatch.HandlerFunc(ChangePoints))
	r.Register(dispatch.SlotWatchdog, s.Watchdog)
	r.Register(dispatch.SlotYield, dispatch.HandlerFunc(Yield))
	if cfg.StableAddress != AddressNone {
		r.Register(dispatch.SlotAddress, NewAddress(cfg.StableAddress))
	}
	if cfg.Termination != TerminateNone {
		r.Register(dispatch.SlotTermination, s.Termination)
	}
	r.Register(dispatch.SlotDeadlock, s.Impasse)
	return s
}
