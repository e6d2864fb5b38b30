package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Source TraceSource
	Kinds  string // optional - filter to record kinds
	Task   uint64 // optional - filter to one task
}

// TraceRecord is one record of the timeline.
type TraceRecord struct {
	Clk    uint64 `json:"clk"`
	Kind   string `json:"kind"`
	Task   string `json:"task"`
	Cat    string `json:"category"`
	Reason string `json:"reason"`
	PC     uint64 `json:"pc,omitempty"`
	Data   string `json:"data,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Records     int    `json:"records"`
	Decisions   int    `json:"decisions"`
	Tasks       int    `json:"tasks"`
	LastClock   uint64 `json:"last_clock"`
	FinalReason string `json:"final_reason,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Header   engine.Header  `json:"header"`
	Config   map[string]any `json:"config,omitempty"`
	Timeline []TraceRecord  `json:"timeline"`
	Stats    TraceStats     `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [trace]",
		Short: "Show the records of a trace",
		Long: `Show the header, records and statistics of a trace.

The trace is a flat file, a chunk directory, or a run of a SQLite archive
(--db with --run). Records can be filtered by kind and by task; the
statistics always cover the whole trace.

Examples:
  lockstep trace run.trace
  lockstep trace run.trace --kinds sched,force
  lockstep trace --db lockstep.db --run 0192a4c8-... --task 2 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runTrace(opts, path, cmd)
		},
	}

	opts.Source.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Kinds, "kinds", "any", "record kinds to show, e.g. sched,force")
	cmd.Flags().Uint64Var(&opts.Task, "task", 0, "show only records of this task")

	return cmd
}

func runTrace(opts *TraceOptions, path string, cmd *cobra.Command) error {
	kinds, err := trace.ParseKinds(opts.Kinds)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --kinds", err)
	}

	in, err := opts.Source.open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	result, err := buildTraceResult(in, kinds, ir.TaskID(opts.Task))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: result.Header.RunID})
	}
	writeTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// buildTraceResult reads the header and the records of t matching kinds
// and, when task is not NoTask, task.
func buildTraceResult(t trace.Trace, kinds trace.Kind, task ir.TaskID) (TraceResult, error) {
	hdr, cfg, err := engine.ReadHeader(t)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{Header: hdr, Config: cfg, Timeline: []TraceRecord{}}
	tasks := map[ir.TaskID]bool{}
	for _, r := range trace.All(t) {
		result.Stats.Records++
		if r.Kind&(trace.KindSched|trace.KindForce) != 0 {
			result.Stats.Decisions++
			tasks[r.ID] = true
		}
		if r.Kind == trace.KindExit {
			result.Stats.FinalReason = r.Reason.String()
		}
		result.Stats.LastClock = uint64(r.Clk)

		if r.Kind&kinds == 0 || (task != ir.NoTask && r.ID != task) {
			continue
		}
		tr := TraceRecord{
			Clk:    uint64(r.Clk),
			Kind:   r.Kind.String(),
			Task:   r.ID.String(),
			Cat:    r.Cat.String(),
			Reason: r.Reason.String(),
			PC:     r.PC,
		}
		if r.Kind&(trace.KindStart|trace.KindConfig|trace.KindInfo) != 0 {
			tr.Data = string(r.Data)
		}
		result.Timeline = append(result.Timeline, tr)
	}
	result.Stats.Tasks = len(tasks)
	return result, nil
}

func writeTraceText(w io.Writer, r TraceResult, verbose bool) {
	h := r.Header
	fmt.Fprintf(w, "Trace: %s\n", h.RunID)
	fmt.Fprintf(w, "Seed: %d  Strategy: %s  Format: %d  Engine: %s\n",
		h.Seed, h.Strategy, h.FormatVersion, h.EngineVersion)
	if h.ConfigHash != "" {
		fmt.Fprintf(w, "Config: %s\n", h.ConfigHash)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Timeline (%d records):\n", len(r.Timeline))
	for _, rec := range r.Timeline {
		fmt.Fprintf(w, "  %6d  %-13s %-8s %-18s %s\n", rec.Clk, rec.Kind, rec.Task, rec.Cat, rec.Reason)
		if verbose && rec.Data != "" {
			fmt.Fprintf(w, "          %s\n", rec.Data)
		}
	}
	fmt.Fprintln(w)

	s := r.Stats
	fmt.Fprintf(w, "Stats:\n")
	fmt.Fprintf(w, "  Records:    %d\n", s.Records)
	fmt.Fprintf(w, "  Decisions:  %d\n", s.Decisions)
	fmt.Fprintf(w, "  Tasks:      %d\n", s.Tasks)
	fmt.Fprintf(w, "  Last clock: %d\n", s.LastClock)
	if s.FinalReason != "" {
		fmt.Fprintf(w, "  Final:      %s\n", s.FinalReason)
	}
}
