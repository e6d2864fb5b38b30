package config

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/ir"
)

func decodePayload(t *testing.T, m map[string]any) map[string]any {
	t.Helper()
	data, err := ir.MarshalCanonical(m)
	require.NoError(t, err)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	require.NoError(t, dec.Decode(&out))
	return out
}

func TestFromPayload_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Strategy = "pct"
	cfg.PCTDepth = 4
	cfg.PCTLength = 250
	cfg.Granularity = "chpt"
	cfg.Termination = "clock"
	cfg.Limit = 900
	cfg.DeadlockCheck = false

	payload := decodePayload(t, cfg.Payload())
	payload["program"] = "counter"

	got, err := FromPayload(payload, 77)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), got.Seed)
	assert.Equal(t, "pct", got.Strategy)
	assert.Equal(t, uint64(4), got.PCTDepth)
	assert.Equal(t, uint64(250), got.PCTLength)
	assert.Equal(t, "chpt", got.Granularity)
	assert.Equal(t, "clock", got.Termination)
	assert.Equal(t, uint64(900), got.Limit)
	assert.False(t, got.DeadlockCheck)
	assert.Equal(t, cfg.Payload(), got.Payload())
}

func TestFromPayload_EmptyKeepsDefaults(t *testing.T) {
	got, err := FromPayload(nil, 3)
	require.NoError(t, err)
	want := Default()
	want.Seed = 3
	assert.Equal(t, want, got)
}

func TestFromPayload_Invalid(t *testing.T) {
	_, err := FromPayload(map[string]any{"strategy": "greedy"}, 1)
	assert.Error(t, err)

	_, err = FromPayload(map[string]any{"limit": json.Number("1.5")}, 1)
	assert.Error(t, err)
}
