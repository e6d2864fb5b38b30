package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/lockstep/internal/trace"
)

// ErrRunNotFound is returned when no run is archived under the given id.
var ErrRunNotFound = errors.New("run not found")

const selectRun = `
	SELECT run_id, seed, strategy, engine_version, format_version, config_hash,
	       record_count, final_reason, exit_code
	FROM runs`

// ReadRun returns the archive row of one run.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns every archived run ordered by run id. Run ids are
// UUIDv7, so this is also creation order.
//
// Returns an empty slice (not nil) when the archive is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY run_id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRecords returns the records of a run in their original order.
// Results are ordered by seq, the position the record had in the trace.
func (s *Store) ReadRecords(ctx context.Context, runID string) ([]*trace.Record, error) {
	if _, err := s.ReadRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, clk, category, reason, kind, pc, data
		FROM records
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []*trace.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// ImportRun appends the records of an archived run to dst and saves it.
func (s *Store) ImportRun(ctx context.Context, runID string, dst trace.Trace) error {
	records, err := s.ReadRecords(ctx, runID)
	if err != nil {
		return fmt.Errorf("import run: %w", err)
	}
	for _, r := range records {
		if err := dst.Append(r); err != nil {
			return fmt.Errorf("import run %s: %w", runID, err)
		}
	}
	if err := dst.Save(); err != nil {
		return fmt.Errorf("import run %s: %w", runID, err)
	}
	return nil
}
