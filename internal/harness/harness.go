package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/lockstep/internal/config"
	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/handlers"
	"github.com/roach88/lockstep/internal/instr"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// Spec describes one run of a program.
type Spec struct {
	Config  config.Config
	Program Program
	Params  Params

	// Input is replayed when set. Output receives the new recording and
	// is saved when the run ends.
	Input  trace.Trace
	Output trace.Trace

	Logger *slog.Logger

	// RunIDs replaces the UUIDv7 run ids, for reproducible recordings.
	RunIDs engine.RunIDGenerator
}

// Outcome is what a run ended with.
type Outcome struct {
	RunID    string
	Seed     uint64
	ExitCode int
	Reason   ir.Reason
	Stats    engine.Stats

	// Metrics holds the collectors of the run's engine.
	Metrics *engine.Metrics

	// Err holds task panics and engine failures such as divergence. The
	// run itself still has an exit code.
	Err error
}

// Execute runs spec.Program once. The returned error covers setup only;
// failures during the run are reported in Outcome.Err.
func Execute(ctx context.Context, spec Spec) (*Outcome, error) {
	logger := spec.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if spec.Program.Build == nil {
		return nil, fmt.Errorf("execute: program %q has no body", spec.Program.Name)
	}

	sched, err := spec.Config.Scheduler()
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	hc, err := spec.Config.Handlers()
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	opts, err := spec.Config.EngineOptions(logger)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	opts = append(opts, engine.WithConfig(spec.payload()))
	if spec.RunIDs != nil {
		opts = append(opts, engine.WithRunIDGenerator(spec.RunIDs))
	}

	eng := engine.New(spec.Config.PRNG(), sched, opts...)
	hs := handlers.Install(eng, hc, logger)
	if err := eng.Init(spec.Input, spec.Output); err != nil {
		return nil, fmt.Errorf("execute: init engine: %w", err)
	}

	rt := instr.New(eng, hs, instr.WithLogger(logger))
	main := spec.Program.Build(rt, spec.Params)

	logger.Debug("executing program",
		"program", spec.Program.Name,
		"run_id", eng.RunID(),
		"replay", spec.Input != nil,
	)
	code, runErr := rt.Run(ctx, main)

	return &Outcome{
		RunID:    eng.RunID(),
		Seed:     eng.Seed(),
		ExitCode: code,
		Reason:   eng.FinalReason(),
		Stats:    eng.Stats(),
		Metrics:  eng.Metrics(),
		Err:      runErr,
	}, nil
}

// payload extends the CONFIG record with the program and its parameters,
// so a trace carries everything needed to replay it.
func (s Spec) payload() map[string]any {
	m := s.Config.Payload()
	m[payloadProgram] = s.Program.Name
	if len(s.Params) > 0 {
		params := make(map[string]any, len(s.Params))
		for k, v := range s.Params {
			params[k] = v
		}
		m[payloadParams] = params
	}
	return m
}

const (
	payloadProgram = "program"
	payloadParams  = "params"
)

// Recorded returns what a trace written by Execute was recorded with: the
// configuration, including the seed, the program and its parameters.
func Recorded(t trace.Trace) (config.Config, Program, Params, error) {
	hdr, m, err := engine.ReadHeader(t)
	if err != nil {
		return config.Config{}, Program{}, nil, err
	}
	name, _ := m[payloadProgram].(string)
	if name == "" {
		return config.Config{}, Program{}, nil, fmt.Errorf("trace %s names no program", hdr.RunID)
	}
	prog, err := Lookup(name)
	if err != nil {
		return config.Config{}, Program{}, nil, err
	}
	cfg, err := config.FromPayload(m, hdr.Seed)
	if err != nil {
		return config.Config{}, Program{}, nil, err
	}

	var params Params
	if raw, ok := m[payloadParams].(map[string]any); ok {
		params = make(Params, len(raw))
		for k, v := range raw {
			n, ok := v.(json.Number)
			if !ok {
				return config.Config{}, Program{}, nil, fmt.Errorf("trace %s: param %s is not a number", hdr.RunID, k)
			}
			i, err := n.Int64()
			if err != nil {
				return config.Config{}, Program{}, nil, fmt.Errorf("trace %s: param %s: %w", hdr.RunID, k, err)
			}
			params[k] = int(i)
		}
	}
	return cfg, prog, params, nil
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger of every run. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) {
		o.logger = l
	}
}

// Run executes a scenario: one recorded run per seed, then one replay per
// recording when the scenario asserts replays, then the assertions.
//
// Run ids are derived from the scenario name and seed, so recordings of
// the same scenario are identical between invocations.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	prog, err := Lookup(scenario.Program)
	if err != nil {
		return nil, err
	}
	base, err := scenario.BuildConfig()
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for _, seed := range scenario.Seeds {
		cfg := base
		cfg.Seed = seed
		rec := trace.NewFlat("")
		out, err := Execute(ctx, Spec{
			Config:  cfg,
			Program: prog,
			Params:  scenario.Params,
			Output:  rec,
			Logger:  o.logger,
			RunIDs:  engine.NewFixedGenerator(fmt.Sprintf("%s/%d", scenario.Name, seed)),
		})
		if err != nil {
			return nil, fmt.Errorf("scenario %s seed %d: %w", scenario.Name, seed, err)
		}
		result.Runs = append(result.Runs, RunResult{
			Seed:      seed,
			RunID:     out.RunID,
			ExitCode:  out.ExitCode,
			Reason:    out.Reason,
			Schedule:  Schedule(rec),
			Err:       out.Err,
			recording: rec,
		})
	}

	if scenario.replays() {
		for i := range result.Runs {
			r := &result.Runs[i]
			replayed := trace.NewFlat("")
			out, err := Execute(ctx, Spec{
				Config:  base,
				Program: prog,
				Params:  scenario.Params,
				Input:   r.recording,
				Output:  replayed,
				Logger:  o.logger,
				RunIDs:  engine.NewFixedGenerator(r.RunID),
			})
			if err != nil {
				return nil, fmt.Errorf("scenario %s replay of seed %d: %w", scenario.Name, r.Seed, err)
			}
			r.Replayed = true
			r.Replay = replayError(*r, out, Schedule(replayed))
		}
	}

	for _, msg := range EvaluateAssertions(result.Runs, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
