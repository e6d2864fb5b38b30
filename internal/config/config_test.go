package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/handlers"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/strategy"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, strategy.NameRandom, cfg.Strategy)
	assert.Equal(t, "switch", cfg.Granularity)
	assert.Equal(t, "none", cfg.StableAddress)
	assert.Equal(t, "none", cfg.Termination)
	assert.Equal(t, 10*time.Second, cfg.Watchdog)
	assert.True(t, cfg.DeadlockCheck)
	assert.Equal(t, BackendFlat, cfg.Backend)
	assert.Equal(t, ReturnStd, cfg.ReturnCode)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "pct.yaml"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1234), cfg.Seed)
	assert.Equal(t, strategy.NamePCT, cfg.Strategy)
	assert.Equal(t, uint64(2), cfg.PCTDepth)
	assert.Equal(t, uint64(200), cfg.PCTLength)
	assert.Equal(t, "chpt", cfg.Granularity)
	assert.Equal(t, "mask", cfg.StableAddress)
	assert.Equal(t, "clock", cfg.Termination)
	assert.Equal(t, uint64(5000), cfg.Limit)
	assert.Equal(t, 2*time.Second, cfg.Watchdog)
	assert.Equal(t, time.Millisecond, cfg.Slack)
	assert.Equal(t, BackendChunked, cfg.Backend)
	assert.Equal(t, 64, cfg.ChunkSize)
	assert.Equal(t, ReturnAlt, cfg.ReturnCode)

	// Untouched keys keep their defaults.
	assert.True(t, cfg.DeadlockCheck)
	assert.Equal(t, Default().SpinBudget, cfg.SpinBudget)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("LOCKSTEP_STRATEGY", "pos")
	t.Setenv("LOCKSTEP_SEED", "99")
	t.Setenv("LOCKSTEP_WATCHDOG", "500ms")
	t.Setenv("LOCKSTEP_DEADLOCK_CHECK", "false")

	cfg, err := Load(filepath.Join("testdata", "pct.yaml"))
	require.NoError(t, err)

	assert.Equal(t, strategy.NamePOS, cfg.Strategy)
	assert.Equal(t, uint64(99), cfg.Seed)
	assert.Equal(t, 500*time.Millisecond, cfg.Watchdog)
	assert.False(t, cfg.DeadlockCheck)
	assert.Equal(t, "chpt", cfg.Granularity)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("LOCKSTEP_STRATEGY", "greedy")

	_, err := Load("")
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "colour: blue\n"},
		{"unknown strategy", "strategy: greedy\n"},
		{"negative seed", "seed: -1\n"},
		{"float limit", "limit: 1.5\n"},
		{"zero pct depth", "pct_depth: 0\n"},
		{"bad duration", "watchdog: soon\n"},
		{"bad backend", "backend: s3\n"},
		{"wrong type", "deadlock_check: maybe\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var serr *SchemaError
			assert.ErrorAs(t, err, &serr)
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate_CrossField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"termination without limit", func(c *Config) { c.Termination = "switches" }, "needs a limit"},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "chunk size"},
		{"negative slack", func(c *Config) { c.Slack = -time.Second }, "negative slack"},
		{"pct without length", func(c *Config) { c.Strategy = "pct"; c.PCTLength = 0 }, "pct needs"},
		{"bad return code", func(c *Config) { c.ReturnCode = "posix" }, "return code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestConfig_Handlers(t *testing.T) {
	cfg := Default()
	cfg.StableAddress = "mask"
	cfg.Termination = "clock"
	cfg.Limit = 10

	hc, err := cfg.Handlers()
	require.NoError(t, err)
	assert.Equal(t, handlers.AddressMask, hc.StableAddress)
	assert.Equal(t, handlers.TerminateClock, hc.Termination)
	assert.Equal(t, uint64(10), hc.Limit)
	assert.Equal(t, cfg.Watchdog, hc.WatchdogBudget)
}

func TestConfig_Scheduler(t *testing.T) {
	for _, name := range strategy.Names {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Strategy = name
			s, err := cfg.Scheduler()
			require.NoError(t, err)
			assert.Equal(t, name, s.Name())
		})
	}
}

func TestConfig_PRNGSeed(t *testing.T) {
	cfg := Default()
	cfg.Seed = 42
	assert.Equal(t, uint64(42), cfg.PRNG().Seed())

	cfg.Seed = 0
	assert.NotZero(t, cfg.PRNG().Seed())
}

func TestConfig_PayloadHashStable(t *testing.T) {
	a := Default()
	b := Default()
	b.Seed = 777
	b.Backend = BackendSQLite

	ha, err := ir.ConfigHash(a.Payload())
	require.NoError(t, err)
	hb, err := ir.ConfigHash(b.Payload())
	require.NoError(t, err)
	assert.Equal(t, ha, hb, "seed and backend do not change decisions")

	b.Strategy = strategy.NamePOS
	hc, err := ir.ConfigHash(b.Payload())
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	opts, err := cfg.EngineOptions(nil)
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	cfg.Granularity = "every"
	_, err = cfg.EngineOptions(nil)
	assert.Error(t, err)
}

func TestValidateYAML_File(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "pct.yaml"))
	require.NoError(t, err)
	assert.NoError(t, ValidateYAML(data))
}
