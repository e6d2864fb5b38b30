package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// TrimOptions holds flags for the trim command.
type TrimOptions struct {
	*RootOptions
	Source     TraceSource
	Clock      uint64
	Goal       uint64
	DropConfig bool
	Kinds      string
	Category   string
	Schedule   uint64
}

// TrimResult reports what trim did.
type TrimResult struct {
	Before    int    `json:"records_before"`
	After     int    `json:"records_after"`
	LastClock uint64 `json:"last_clock"`
	Forced    string `json:"forced_task,omitempty"`
}

// NewTrimCommand creates the trim command.
func NewTrimCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrimOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trim [trace]",
		Short: "Cut a trace back and optionally force a decision",
		Long: `Drop trailing records of a trace in place.

Trimming runs in this order: --clock, --goal, --kinds, --category. Then
--schedule replaces the final decision with a FORCE record choosing the
given task, so that replay explores a different interleaving from there.

Examples:
  lockstep trim run.trace --clock 120
  lockstep trim run.trace --kinds sched --schedule 3
  lockstep trim --db lockstep.db --run 0192a4c8-... --goal 40 --drop-config`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runTrim(opts, path, cmd)
		},
	}

	opts.Source.addFlags(cmd)
	cmd.Flags().Uint64Var(&opts.Clock, "clock", 0, "drop records past this clock")
	cmd.Flags().Uint64Var(&opts.Goal, "goal", 0, "drop records past this clock, which must exist")
	cmd.Flags().BoolVar(&opts.DropConfig, "drop-config", false, "with --goal, also drop CONFIG records at the goal")
	cmd.Flags().StringVar(&opts.Kinds, "kinds", "", "drop trailing records until one of these kinds")
	cmd.Flags().StringVar(&opts.Category, "category", "", "drop trailing records until one of this category")
	cmd.Flags().Uint64Var(&opts.Schedule, "schedule", 0, "force this task at the final decision")

	return cmd
}

func runTrim(opts *TrimOptions, path string, cmd *cobra.Command) error {
	flags := cmd.Flags()
	var kinds trace.Kind
	if opts.Kinds != "" {
		k, err := trace.ParseKinds(opts.Kinds)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --kinds", err)
		}
		kinds = k
	}
	var cat ir.Category
	if opts.Category != "" {
		c, err := ir.ParseCategory(opts.Category)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --category", err)
		}
		cat = c
	}

	t, err := opts.Source.open(path)
	if err != nil {
		return err
	}
	defer t.Close()

	result := TrimResult{Before: t.Len()}
	if flags.Changed("clock") {
		trace.TrimToClock(t, ir.Clk(opts.Clock))
	}
	if flags.Changed("goal") {
		if err := trace.TrimToGoal(t, ir.Clk(opts.Goal), opts.DropConfig); err != nil {
			return WrapExitError(ExitCommandError, "failed to trim", err)
		}
	}
	if opts.Kinds != "" {
		trace.TrimToKind(t, kinds)
	}
	if opts.Category != "" {
		trace.TrimToCategory(t, cat)
	}
	if flags.Changed("schedule") {
		task := ir.TaskID(opts.Schedule)
		if task.IsSentinel() {
			return NewExitError(ExitCommandError, fmt.Sprintf("cannot schedule %s", task))
		}
		if err := trace.ScheduleTask(t, task); err != nil {
			return WrapExitError(ExitCommandError, "failed to schedule task", err)
		}
		result.Forced = task.String()
	}

	if err := t.Save(); err != nil {
		return WrapExitError(ExitCommandError, "failed to save trace", err)
	}
	result.After = t.Len()
	result.LastClock = uint64(trace.LastClock(t))

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result})
	}
	fmt.Fprintf(formatter.Writer, "Trimmed %d -> %d records, last clock %d\n", result.Before, result.After, result.LastClock)
	if result.Forced != "" {
		fmt.Fprintf(formatter.Writer, "Forced task %s at clock %d\n", result.Forced, result.LastClock)
	}
	return nil
}
