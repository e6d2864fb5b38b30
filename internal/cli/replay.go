package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/harness"
	"github.com/roach88/lockstep/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Source TraceSource
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	Program     string `json:"program"`
	RunID       string `json:"run_id"`
	Seed        uint64 `json:"seed"`
	Decisions   int    `json:"decisions"`
	Recorded    string `json:"recorded_reason"`
	Reason      string `json:"reason"`
	ExitCode    int    `json:"exit_code"`
	Identical   bool   `json:"identical"`
	Mismatch    string `json:"mismatch,omitempty"`
	ReplayError string `json:"error,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [trace]",
		Short: "Replay a trace and verify it reproduces",
		Long: `Replay a recorded trace and verify that the replay makes the same
scheduling decisions: every SCHED and FORCE record must come back with
the same clock, task and category.

The program, its parameters and the configuration are read from the
trace itself.

Exit codes:
  0    - replay identical, run succeeded
  1-4  - engine exit code of the replayed run
  3    - replay diverged from the trace
  64   - command error (trace not found, etc.)

Examples:
  lockstep replay lockstep-cs1rj0d2nq5g.trace
  lockstep replay --db lockstep.db --run 0192a4c8-...
  lockstep replay run.trace --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runReplay(opts, path, cmd)
		},
	}

	opts.Source.addFlags(cmd)
	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	in, err := opts.Source.open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	cfg, prog, params, err := harness.Recorded(in)
	if err != nil {
		return WrapExitError(ExitCommandError, "trace cannot be replayed", err)
	}
	hdr, _, err := engine.ReadHeader(in)
	if err != nil {
		return WrapExitError(ExitCommandError, "trace cannot be replayed", err)
	}
	want := harness.Schedule(in)
	recorded := in.Last()
	formatter.VerboseLog("replaying %s: %s, seed %d, %d decisions", hdr.RunID, prog.Name, hdr.Seed, len(want))

	out := trace.NewFlat("")
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := harness.Execute(ctx, harness.Spec{
		Config:  cfg,
		Program: prog,
		Params:  params,
		Input:   in,
		Output:  out,
		Logger:  newLogger(opts.RootOptions, cmd),
		RunIDs:  engine.NewFixedGenerator(hdr.RunID),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start replay", err)
	}

	result := ReplayResult{
		Program:   prog.Name,
		RunID:     hdr.RunID,
		Seed:      outcome.Seed,
		Decisions: len(want),
		Reason:    outcome.Reason.String(),
		ExitCode:  outcome.ExitCode,
		Identical: true,
	}
	if recorded != nil && recorded.Kind == trace.KindExit {
		result.Recorded = recorded.Reason.String()
	}
	if outcome.Err != nil {
		result.ReplayError = outcome.Err.Error()
	}
	if err := harness.CompareSchedules(want, harness.Schedule(out)); err != nil {
		result.Identical = false
		result.Mismatch = err.Error()
	}
	if engine.IsDivergence(outcome.Err) {
		result.Identical = false
	}

	if err := writeReplayResult(formatter, result); err != nil {
		return err
	}
	if !result.Identical {
		code := outcome.ExitCode
		if code == engine.ExitOK {
			code = engine.ExitDiverged
		}
		return NewExitError(code, "replay differs from the trace")
	}
	return runExit(outcome.ExitCode, outcome.Reason)
}

func writeReplayResult(f *OutputFormatter, r ReplayResult) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: r, RunID: r.RunID}
		if !r.Identical {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeReplay, Message: "replay differs from the trace"}
		}
		return f.encode(resp)
	}

	w := f.Writer
	status := "✓"
	if !r.Identical {
		status = "✗"
	}
	fmt.Fprintf(w, "%s %s run %s (seed %d)\n", status, r.Program, r.RunID, r.Seed)
	fmt.Fprintf(w, "  decisions: %d\n", r.Decisions)
	if r.Recorded != "" {
		fmt.Fprintf(w, "  recorded:  %s\n", r.Recorded)
	}
	fmt.Fprintf(w, "  replayed:  %s (exit %d)\n", r.Reason, r.ExitCode)
	if r.Mismatch != "" {
		fmt.Fprintf(w, "  %s\n", r.Mismatch)
	}
	if r.ReplayError != "" {
		fmt.Fprintf(w, "  error: %s\n", r.ReplayError)
	}
	if r.Identical {
		fmt.Fprintln(w, "✓ Replay identical")
	} else {
		fmt.Fprintln(w, "✗ Replay differs from the trace")
	}
	return nil
}
