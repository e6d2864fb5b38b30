package store

import (
	"database/sql"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// SQLite integers are signed; unsigned engine values round-trip through
// their bit patterns.
func toInt64(v uint64) int64 { return int64(v) }

func fromInt64(v int64) uint64 { return uint64(v) }

// Run is the archive row describing one recorded trace.
type Run struct {
	RunID         string
	Seed          uint64
	Strategy      string
	EngineVersion string
	FormatVersion int
	ConfigHash    string
	Records       int

	// FinalReason and ExitCode are empty when the trace has no EXIT
	// record, i.e. the run did not finish.
	FinalReason string
	ExitCode    sql.NullInt64
}

// Finished reports whether the run ended with an EXIT record.
func (r Run) Finished() bool {
	return r.FinalReason != ""
}

func runFromHeader(h engine.Header) Run {
	return Run{
		RunID:         h.RunID,
		Seed:          h.Seed,
		Strategy:      h.Strategy,
		EngineVersion: h.EngineVersion,
		FormatVersion: h.FormatVersion,
		ConfigHash:    h.ConfigHash,
	}
}

// exitOf fills the final reason and standard exit code from the last
// record when it is an EXIT.
func exitOf(run *Run, last *trace.Record) {
	if last == nil || last.Kind != trace.KindExit {
		return
	}
	run.FinalReason = last.Reason.String()
	run.ExitCode = sql.NullInt64{Int64: int64(engine.ExitCodeFor(last.Reason, false)), Valid: true}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run    Run
		seed   int64
		reason sql.NullString
	)
	err := row.Scan(&run.RunID, &seed, &run.Strategy, &run.EngineVersion,
		&run.FormatVersion, &run.ConfigHash, &run.Records, &reason, &run.ExitCode)
	if err != nil {
		return Run{}, err
	}
	run.Seed = fromInt64(seed)
	run.FinalReason = reason.String
	return run, nil
}

func scanRecord(row scanner) (*trace.Record, error) {
	var (
		id, clk, reason, pc int64
		cat, kind           int64
		data                []byte
	)
	if err := row.Scan(&id, &clk, &cat, &reason, &kind, &pc, &data); err != nil {
		return nil, err
	}
	return &trace.Record{
		ID:     ir.TaskID(fromInt64(id)),
		Clk:    ir.Clk(fromInt64(clk)),
		Cat:    ir.Category(cat),
		Reason: ir.Reason(fromInt64(reason)),
		Kind:   trace.Kind(kind),
		PC:     fromInt64(pc),
		Data:   data,
	}, nil
}
