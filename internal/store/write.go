package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/trace"
)

// WriteRun archives every record of t under the run id of its START header.
// Uses ON CONFLICT(run_id) DO NOTHING for idempotency - exporting the same
// run twice leaves the first copy untouched and returns it.
//
// The whole run is written in one transaction, so a reader never sees a
// partially exported trace.
func (s *Store) WriteRun(ctx context.Context, t trace.Trace) (Run, error) {
	return s.writeRun(ctx, t, false)
}

// ReplaceRun archives t like WriteRun, discarding any records previously
// stored under the same run id.
func (s *Store) ReplaceRun(ctx context.Context, t trace.Trace) (Run, error) {
	return s.writeRun(ctx, t, true)
}

func (s *Store) writeRun(ctx context.Context, t trace.Trace, replace bool) (Run, error) {
	h, _, err := engine.ReadHeader(t)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	if h.RunID == "" {
		return Run{}, fmt.Errorf("write run: START header has no run id")
	}

	records := trace.All(t)
	run := runFromHeader(h)
	run.Records = len(records)
	exitOf(&run, t.Last())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, run.RunID); err != nil {
			return Run{}, fmt.Errorf("write run: replace %s: %w", run.RunID, err)
		}
	}

	var reason sql.NullString
	if run.FinalReason != "" {
		reason = sql.NullString{String: run.FinalReason, Valid: true}
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, seed, strategy, engine_version, format_version, config_hash, record_count, final_reason, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		run.RunID,
		toInt64(run.Seed),
		run.Strategy,
		run.EngineVersion,
		run.FormatVersion,
		run.ConfigHash,
		run.Records,
		reason,
		run.ExitCode,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	} else if n == 0 {
		// Already archived.
		existing, err := scanRun(tx.QueryRowContext(ctx, selectRun+` WHERE run_id = ?`, run.RunID))
		if err != nil {
			return Run{}, fmt.Errorf("write run: read existing %s: %w", run.RunID, err)
		}
		return existing, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records
		(run_id, seq, task_id, clk, category, reason, kind, pc, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Run{}, fmt.Errorf("write run: prepare: %w", err)
	}
	defer stmt.Close()

	for seq, r := range records {
		_, err := stmt.ExecContext(ctx,
			run.RunID,
			seq,
			toInt64(uint64(r.ID)),
			toInt64(uint64(r.Clk)),
			int64(r.Cat),
			toInt64(uint64(r.Reason)),
			int64(r.Kind),
			toInt64(r.PC),
			r.Data,
		)
		if err != nil {
			return Run{}, fmt.Errorf("write run: record %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	return run, nil
}

// DeleteRun removes a run and, through the foreign key cascade, its
// records. Deleting an unknown run is not an error.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}
