package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lockstep/internal/store"
	"github.com/roach88/lockstep/internal/trace"
)

// ArchiveOptions holds flags shared by export, import and runs.
type ArchiveOptions struct {
	*RootOptions
	Database   string
	RunID      string
	Replace    bool
	Backend    string
	ChunkSize  int
	Unfinished bool
}

// ArchivedRun is one run of the archive.
type ArchivedRun struct {
	RunID       string `json:"run_id"`
	Seed        uint64 `json:"seed"`
	Strategy    string `json:"strategy"`
	Records     int    `json:"records"`
	Decisions   int    `json:"decisions"`
	Tasks       int    `json:"tasks"`
	LastClock   uint64 `json:"last_clock"`
	FinalReason string `json:"final_reason,omitempty"`
	ExitCode    *int64 `json:"exit_code,omitempty"`
}

func archivedRun(st store.RunState) ArchivedRun {
	r := ArchivedRun{
		RunID:       st.RunID,
		Seed:        st.Seed,
		Strategy:    st.Strategy,
		Records:     st.Records,
		Decisions:   st.Decisions,
		Tasks:       st.Tasks,
		LastClock:   uint64(st.LastClock),
		FinalReason: st.FinalReason,
	}
	if st.ExitCode.Valid {
		code := st.ExitCode.Int64
		r.ExitCode = &code
	}
	return r
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <trace>",
		Short: "Archive a trace in a SQLite database",
		Long: `Store a flat or chunked trace in a SQLite archive, under the run id of
its START record. The archive is created if it does not exist.

Exporting a run that is already archived keeps the archived copy unless
--replace is given.

Examples:
  lockstep export run.trace --db lockstep.db
  lockstep export ./lockstep-cs1rj0d2nq5g --db lockstep.db --replace`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "overwrite an archived run with the same id")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", trace.DefaultChunkSize, "records per chunk file of chunked traces")

	return cmd
}

func runExport(opts *ArchiveOptions, path string, cmd *cobra.Command) error {
	src := TraceSource{ChunkSize: opts.ChunkSize}
	in, err := src.open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer st.Close()

	ctx := commandContext(cmd)
	write := st.WriteRun
	if opts.Replace {
		write = st.ReplaceRun
	}
	run, err := write(ctx, in)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to archive trace", err)
	}
	state, err := st.GetRunState(ctx, run.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read archived run", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	result := archivedRun(state)
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}
	fmt.Fprintf(formatter.Writer, "Archived run %s (%d records, %d decisions) in %s\n",
		result.RunID, result.Records, result.Decisions, opts.Database)
	return nil
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <trace>",
		Short: "Write an archived run out as a trace",
		Long: `Write the records of an archived run to a flat file or chunk directory.
Whatever is stored at the destination is discarded.

Examples:
  lockstep import run.trace --db lockstep.db --run 0192a4c8-...
  lockstep import ./run --backend chunked --db lockstep.db --run 0192a4c8-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to import (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Backend, "backend", trace.BackendFlat, "destination backend (flat|chunked)")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", trace.DefaultChunkSize, "records per chunk file of chunked traces")

	return cmd
}

func runImport(opts *ArchiveOptions, path string, cmd *cobra.Command) error {
	if opts.Backend == store.BackendSQLite {
		return NewExitError(ExitCommandError, "import writes flat or chunked traces; use export to copy between archives")
	}
	st, err := openArchive(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	state, err := st.GetRunState(ctx, opts.RunID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to read archived run", err)
	}

	dst, err := trace.Create(opts.Backend, path, opts.ChunkSize)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create trace", err)
	}
	if err := st.ImportRun(ctx, opts.RunID, dst); err != nil {
		return WrapExitError(ExitCommandError, "failed to import run", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	result := archivedRun(state)
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}
	fmt.Fprintf(formatter.Writer, "Imported run %s (%d records) to %s\n", result.RunID, result.Records, path)
	return nil
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs of a SQLite archive",
		Long: `List the archived runs, ordered by run id.

With --unfinished only runs without an EXIT record are listed: their
recording process died before the run ended.

Examples:
  lockstep runs --db lockstep.db
  lockstep runs --db lockstep.db --unfinished --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Unfinished, "unfinished", false, "list only runs that did not finish")

	return cmd
}

func runRuns(opts *ArchiveOptions, cmd *cobra.Command) error {
	st, err := openArchive(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	runs, err := listRuns(ctx, st, opts.Unfinished)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: runs})
	}
	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in archive.")
		return nil
	}
	for _, r := range runs {
		final := "unfinished"
		if r.FinalReason != "" && r.ExitCode != nil {
			final = fmt.Sprintf("%s (exit %d)", r.FinalReason, *r.ExitCode)
		}
		fmt.Fprintf(w, "%s  seed=%d strategy=%s records=%d decisions=%d  %s\n",
			r.RunID, r.Seed, r.Strategy, r.Records, r.Decisions, final)
	}
	return nil
}

func listRuns(ctx context.Context, st *store.Store, unfinished bool) ([]ArchivedRun, error) {
	var runs []store.Run
	var err error
	if unfinished {
		runs, err = st.FindUnfinishedRuns(ctx)
	} else {
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := make([]ArchivedRun, 0, len(runs))
	for _, r := range runs {
		state, err := st.GetRunState(ctx, r.RunID)
		if err != nil {
			return nil, err
		}
		out = append(out, archivedRun(state))
	}
	return out, nil
}
