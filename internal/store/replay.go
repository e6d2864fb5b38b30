package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// RunState summarizes an archived run for replay decisions.
type RunState struct {
	Run

	// LastClock is the highest clock of any SCHED or FORCE record.
	LastClock ir.Clk

	// Decisions counts SCHED and FORCE records.
	Decisions int

	// Tasks counts distinct tasks chosen by those decisions.
	Tasks int
}

// GetRunState retrieves a run with the aggregates replay needs to judge
// whether a trace is worth replaying.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}
	state := RunState{Run: run}

	var lastClock sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT MAX(clk), COUNT(*), COUNT(DISTINCT task_id)
		FROM records
		WHERE run_id = ? AND (kind & ?) != 0
	`, runID, int64(trace.KindSched|trace.KindForce)).Scan(&lastClock, &state.Decisions, &state.Tasks)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state %s: %w", runID, err)
	}
	if lastClock.Valid {
		state.LastClock = ir.Clk(fromInt64(lastClock.Int64))
	}
	return state, nil
}

// FindUnfinishedRuns returns runs whose trace has no EXIT record: the
// recording process died before Fini. Ordered by run id.
func (s *Store) FindUnfinishedRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRun+`
		WHERE final_reason IS NULL
		ORDER BY run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find unfinished runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("find unfinished runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find unfinished runs: %w", err)
	}
	return runs, nil
}
