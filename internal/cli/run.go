package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/roach88/lockstep/internal/config"
	"github.com/roach88/lockstep/internal/harness"
	"github.com/roach88/lockstep/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Seed     uint64
	Strategy string
	Backend  string
	Record     string
	RecordAuto bool
	Metrics    string
	Params   map[string]int
}

// RunOutcome is the result of one run.
type RunOutcome struct {
	Program  string `json:"program"`
	RunID    string `json:"run_id"`
	Seed     uint64 `json:"seed"`
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
	ExitCode int    `json:"exit_code"`
	Trace    string `json:"trace,omitempty"`
	Metrics  string `json:"metrics,omitempty"`
	Captures uint64 `json:"captures"`
	Switches uint64 `json:"switches"`
	Clock    uint64 `json:"clock"`
	Error    string `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a program under the scheduler",
		Long: `Run a registered program once under the configured strategy.

With --record PATH the run is recorded to a trace that replay reproduces.
The trace backend comes from the configuration (flat, chunked or sqlite).
--record-auto records under a fresh name in the current directory.

The command exits with the engine exit code of the run:
  0 - success or shutdown
  1 - abort (assertion failure, task panic)
  2 - deadlock or impasse
  3 - trace diverged
  4 - watchdog
  240 - any abort, with return_code: alt

Examples:
  lockstep run counter --seed 42
  lockstep run lost-update --param workers=3 --record-auto
  lockstep run philosophers --config pct.yaml --record run.trace`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "configuration file")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "PRNG seed (overrides the configuration)")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "scheduling strategy (overrides the configuration)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "trace backend (overrides the configuration)")
	cmd.Flags().StringVar(&opts.Record, "record", "", "record the run to this trace")
	cmd.Flags().BoolVar(&opts.RecordAuto, "record-auto", false, "record the run to a freshly named trace")
	cmd.MarkFlagsMutuallyExclusive("record", "record-auto")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "write the engine metrics to this file in Prometheus text format")
	cmd.Flags().StringToIntVarP(&opts.Params, "param", "p", nil, "program parameter name=value")

	return cmd
}

func runProgram(opts *RunOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd)

	prog, err := harness.Lookup(name)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown program", err)
	}
	cfg, err := runConfig(opts, cmd)
	if err != nil {
		return err
	}
	formatter.VerboseLog("config: %s", cfg)

	spec := harness.Spec{
		Config:  cfg,
		Program: prog,
		Params:  harness.Params(opts.Params),
		Logger:  logger,
	}

	path := opts.Record
	if opts.RecordAuto {
		path = traceName(cfg.Backend, xid.New().String())
	}
	if path != "" {
		out, err := createTrace(cfg.Backend, path, cfg.ChunkSize)
		if err != nil {
			return err
		}
		defer out.Close()
		spec.Output = out
		formatter.VerboseLog("recording to %s (%s)", path, cfg.Backend)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := harness.Execute(ctx, spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start run", err)
	}

	result := RunOutcome{
		Program:  prog.Name,
		RunID:    outcome.RunID,
		Seed:     outcome.Seed,
		Strategy: cfg.Strategy,
		Reason:   outcome.Reason.String(),
		ExitCode: outcome.ExitCode,
		Trace:    path,
		Captures: outcome.Stats.Captures,
		Switches: outcome.Stats.Switches,
		Clock:    uint64(outcome.Stats.Clock),
	}
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
	}
	if opts.Metrics != "" {
		if err := outcome.Metrics.WriteTextfile(opts.Metrics); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		result.Metrics = opts.Metrics
	}
	if err := writeRunOutcome(formatter, result); err != nil {
		return err
	}
	return runExit(outcome.ExitCode, outcome.Reason)
}

// runConfig loads the configuration and applies the command-line
// overrides on top of it.
func runConfig(opts *RunOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = opts.Seed
	}
	if opts.Strategy != "" {
		cfg.Strategy = opts.Strategy
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

func writeRunOutcome(f *OutputFormatter, r RunOutcome) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: r, RunID: r.RunID})
	}
	w := f.Writer
	fmt.Fprintf(w, "%s: %s (exit %d)\n", r.Program, r.Reason, r.ExitCode)
	fmt.Fprintf(w, "  run:      %s\n", r.RunID)
	fmt.Fprintf(w, "  seed:     %d\n", r.Seed)
	fmt.Fprintf(w, "  strategy: %s\n", r.Strategy)
	fmt.Fprintf(w, "  clock:    %d (%d captures, %d switches)\n", r.Clock, r.Captures, r.Switches)
	if r.Trace != "" {
		fmt.Fprintf(w, "  trace:    %s\n", r.Trace)
	}
	if r.Metrics != "" {
		fmt.Fprintf(w, "  metrics:  %s\n", r.Metrics)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error:    %s\n", r.Error)
	}
	return nil
}

// runExit turns the engine exit code into the command result.
func runExit(code int, reason ir.Reason) error {
	if code == 0 {
		return nil
	}
	return NewExitError(code, fmt.Sprintf("run ended with %s", reason))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
