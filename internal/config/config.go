// Package config loads the settings of a lockstep run.
//
// Settings are layered: Default, then a YAML file checked against an
// embedded CUE schema, then LOCKSTEP_* environment variables. The result
// is validated once more as a whole, since env overrides bypass the
// schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/handlers"
	"github.com/roach88/lockstep/internal/strategy"
	"github.com/roach88/lockstep/internal/trace"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LOCKSTEP_"

// Trace backends.
const (
	BackendFlat    = trace.BackendFlat
	BackendChunked = trace.BackendChunked
	BackendSQLite  = "sqlite"
)

// Return code modes.
const (
	ReturnStd = "std"
	ReturnAlt = "alt"
)

// Config holds every setting of a run.
type Config struct {
	// Seed of the PRNG. Zero picks one from the wall clock.
	Seed uint64 `yaml:"seed" env:"SEED"`

	Strategy     string `yaml:"strategy" env:"STRATEGY"`
	PCTDepth     uint64 `yaml:"pct_depth" env:"PCT_DEPTH"`
	PCTLength    uint64 `yaml:"pct_length" env:"PCT_LENGTH"`
	POSThreshold uint64 `yaml:"pos_threshold" env:"POS_THRESHOLD"`
	POSDivisor   uint64 `yaml:"pos_divisor" env:"POS_DIVISOR"`

	Granularity   string `yaml:"granularity" env:"GRANULARITY"`
	StableAddress string `yaml:"stable_address" env:"STABLE_ADDRESS"`

	Termination string `yaml:"termination" env:"TERMINATION"`
	Limit       uint64 `yaml:"limit" env:"LIMIT"`

	Slack         time.Duration `yaml:"slack" env:"SLACK"`
	Watchdog      time.Duration `yaml:"watchdog" env:"WATCHDOG"`
	SpinBudget    uint64        `yaml:"spin_budget" env:"SPIN_BUDGET"`
	DeadlockCheck bool          `yaml:"deadlock_check" env:"DEADLOCK_CHECK"`

	Backend   string `yaml:"backend" env:"BACKEND"`
	ChunkSize int    `yaml:"chunk_size" env:"CHUNK_SIZE"`

	ReturnCode string `yaml:"return_code" env:"RETURN_CODE"`
}

// Default returns the built-in configuration.
func Default() Config {
	so := strategy.DefaultOptions()
	ho := handlers.DefaultConfig()
	return Config{
		Strategy:      strategy.NameRandom,
		PCTDepth:      so.PCTDepth,
		PCTLength:     so.PCTLength,
		POSThreshold:  so.POSThreshold,
		POSDivisor:    so.POSDivisor,
		Granularity:   engine.RecordSwitches.String(),
		StableAddress: ho.StableAddress.String(),
		Termination:   ho.Termination.String(),
		Watchdog:      ho.WatchdogBudget,
		SpinBudget:    ho.SpinBudget,
		DeadlockCheck: ho.DeadlockCheck,
		Backend:       BackendFlat,
		ChunkSize:     trace.DefaultChunkSize,
		ReturnCode:    ReturnStd,
	}
}

// Load reads the configuration at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it.
// Environment overrides are not applied.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if err := ValidateYAML(data); err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from LOCKSTEP_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Validate checks every field and the combinations between them.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Scheduler(); err != nil {
		errs = append(errs, err)
	}
	if c.Strategy == strategy.NamePCT && (c.PCTDepth == 0 || c.PCTLength == 0) {
		errs = append(errs, fmt.Errorf("pct needs a positive depth and length"))
	}
	if c.Strategy == strategy.NamePOS && c.POSDivisor == 0 {
		errs = append(errs, fmt.Errorf("pos needs a positive divisor"))
	}
	if _, err := engine.ParseGranularity(c.Granularity); err != nil {
		errs = append(errs, err)
	}
	hc, err := c.Handlers()
	if err != nil {
		errs = append(errs, err)
	} else if err := hc.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Slack < 0 {
		errs = append(errs, fmt.Errorf("negative slack %s", c.Slack))
	}
	switch c.Backend {
	case BackendFlat, BackendChunked, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown trace backend %q", c.Backend))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize))
	}
	switch c.ReturnCode {
	case ReturnStd, ReturnAlt:
	default:
		errs = append(errs, fmt.Errorf("unknown return code mode %q", c.ReturnCode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
