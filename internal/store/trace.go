package store

import (
	"context"
	"fmt"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/trace"
)

// BackendSQLite is the backend name the CLI uses for archive traces.
const BackendSQLite = "sqlite"

// Trace is a trace.Trace backed by one run of the archive. Records live in
// memory between Load and Save like the flat backend; Save replaces the
// archived copy of the run.
type Trace struct {
	*trace.Flat

	store *Store
	runID string
}

var _ trace.Trace = (*Trace)(nil)

// NewTrace returns an empty archive trace. With an empty runID the run id
// is taken from the START record on Save.
func (s *Store) NewTrace(runID string) *Trace {
	return &Trace{Flat: trace.NewFlat(""), store: s, runID: runID}
}

// OpenTrace loads an archived run.
func (s *Store) OpenTrace(runID string) (*Trace, error) {
	t := s.NewTrace(runID)
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

// RunID returns the run this trace is stored under, empty until the first
// Save or Load.
func (t *Trace) RunID() string {
	return t.runID
}

// Save replaces the archived run with the in-memory records. The run id
// comes from the START record and must match the one the trace was
// opened with.
func (t *Trace) Save() error {
	if t.Len() == 0 {
		return nil
	}
	h, _, err := engine.ReadHeader(t.Flat)
	if err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	if t.runID != "" && t.runID != h.RunID {
		return fmt.Errorf("save trace: START record names run %s, trace is %s", h.RunID, t.runID)
	}
	if _, err := t.store.ReplaceRun(context.Background(), t.Flat); err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	t.runID = h.RunID
	return nil
}

// Load reads the archived run into memory.
func (t *Trace) Load() error {
	if t.runID == "" {
		return fmt.Errorf("load trace: no run id")
	}
	records, err := t.store.ReadRecords(context.Background(), t.runID)
	if err != nil {
		return fmt.Errorf("load trace: %w", err)
	}
	flat := trace.NewFlat("")
	for _, r := range records {
		if err := flat.Append(r); err != nil {
			return fmt.Errorf("load trace: %w", err)
		}
	}
	t.Flat = flat
	return nil
}

// Clear drops the records and deletes the archived run.
func (t *Trace) Clear() error {
	if err := t.Flat.Clear(); err != nil {
		return err
	}
	if t.runID == "" {
		return nil
	}
	return t.store.DeleteRun(context.Background(), t.runID)
}
