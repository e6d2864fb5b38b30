package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/lockstep/internal/store"
	"github.com/roach88/lockstep/internal/trace"
)

// TraceSource locates an existing trace: a flat file, a chunk directory,
// or a run of a SQLite archive.
type TraceSource struct {
	Database  string
	RunID     string
	ChunkSize int
}

func (s *TraceSource) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.Database, "db", "", "read the trace from this SQLite archive")
	cmd.Flags().StringVar(&s.RunID, "run", "", "run id of the trace in the archive (with --db)")
	cmd.Flags().IntVar(&s.ChunkSize, "chunk-size", trace.DefaultChunkSize, "records per chunk file of chunked traces")
}

// openedTrace is a loaded trace and whatever must be closed with it.
type openedTrace struct {
	trace.Trace
	store *store.Store
}

func (o *openedTrace) Close() error {
	if o.store == nil {
		return nil
	}
	return o.store.Close()
}

// open loads the trace named by path, or by --db and --run when path is
// empty.
func (s *TraceSource) open(path string) (*openedTrace, error) {
	if s.Database != "" {
		if path != "" {
			return nil, NewExitError(ExitCommandError, "give either a trace path or --db, not both")
		}
		if s.RunID == "" {
			return nil, NewExitError(ExitCommandError, "--run is required with --db")
		}
		st, err := openArchive(s.Database)
		if err != nil {
			return nil, err
		}
		t, err := st.OpenTrace(s.RunID)
		if err != nil {
			st.Close()
			if errors.Is(err, store.ErrRunNotFound) {
				return nil, WrapExitError(ExitCommandError, "run not found", err)
			}
			return nil, WrapExitError(ExitCommandError, "failed to read archived trace", err)
		}
		return &openedTrace{Trace: t, store: st}, nil
	}

	if path == "" {
		return nil, NewExitError(ExitCommandError, "a trace path or --db is required")
	}
	t, err := trace.Open(path, s.ChunkSize)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, WrapExitError(ExitCommandError, "trace not found", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to open trace", err)
	}
	return &openedTrace{Trace: t}, nil
}

// openArchive opens an existing SQLite archive. store.Open would create a
// missing one, which is never what a reader wants.
func openArchive(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "archive not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	return st, nil
}

// createTrace makes the output trace of a recording. Flat and chunked
// traces are written at path; sqlite traces go into the archive at path
// under the run id of their START record.
func createTrace(backend, path string, chunkSize int) (*openedTrace, error) {
	if backend == store.BackendSQLite {
		st, err := store.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open archive", err)
		}
		return &openedTrace{Trace: st.NewTrace(""), store: st}, nil
	}
	t, err := trace.Create(backend, path, chunkSize)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create trace", err)
	}
	return &openedTrace{Trace: t}, nil
}

// traceName is the default output name of a recording.
func traceName(backend, id string) string {
	switch backend {
	case store.BackendSQLite:
		return "lockstep.db"
	case trace.BackendChunked:
		return fmt.Sprintf("lockstep-%s", id)
	}
	return fmt.Sprintf("lockstep-%s.trace", id)
}
