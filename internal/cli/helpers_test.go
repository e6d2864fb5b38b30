package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// executeJSON runs args with --format json and decodes the response.
func executeJSON(t *testing.T, args ...string) (CLIResponse, map[string]any, error) {
	t.Helper()
	out, err := execute(t, append(args, "--format", "json")...)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	data, _ := resp.Data.(map[string]any)
	return resp, data, err
}

// writeSampleTrace writes a small hand-built flat trace and returns its
// path.
func writeSampleTrace(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.trace")

	hdr := engine.Header{
		FormatVersion: ir.TraceFormatVersion,
		EngineVersion: "test",
		Seed:          7,
		Strategy:      "random",
		RunID:         "golden-run",
	}
	payload, err := hdr.Payload()
	require.NoError(t, err)

	tr := trace.NewFlat(path)
	for _, r := range []*trace.Record{
		{ID: ir.MainThread, Kind: trace.KindStart, Data: payload},
		{ID: ir.MainThread, Kind: trace.KindConfig, Data: []byte(`{"program":"solo","strategy":"random"}`)},
		{ID: 2, Clk: 3, Cat: ir.CatMutexAcquire, Reason: ir.ReasonNondeterministic, Kind: trace.KindSched, PC: 0x40},
		{ID: 1, Clk: 5, Cat: ir.CatJoin, Reason: ir.ReasonNondeterministic, Kind: trace.KindSched},
		{ID: 2, Clk: 6, Reason: ir.ReasonUserOrder, Kind: trace.KindForce},
		{ID: 1, Clk: 9, Cat: ir.CatExit, Reason: ir.ReasonSuccess, Kind: trace.KindExit},
	} {
		require.NoError(t, tr.Append(r))
	}
	require.NoError(t, tr.Save())
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
