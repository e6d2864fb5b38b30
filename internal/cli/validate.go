package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/lockstep/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Errors   []string       `json:"errors,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a configuration file",
		Long: `Check a configuration file against the configuration schema and the
rules between settings, and print the resolved settings.

Environment overrides (LOCKSTEP_*) are not applied.

Exit codes:
  0  - configuration valid
  1  - configuration invalid
  64 - file not found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("config file not found: %s", path), nil)
			return WrapExitError(ExitCommandError, "config file not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}

	cfg, err := config.Parse(data)
	if err != nil {
		problems := validationProblems(err)
		if formatter.Format == "json" {
			if err := formatter.encode(CLIResponse{
				Status: "error",
				Data:   ValidationResult{Valid: false, Errors: problems},
				Error:  &CLIError{Code: ErrCodeConfig, Message: "invalid configuration", Details: problems},
			}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %s is invalid:\n", path)
			for _, p := range problems {
				fmt.Fprintf(formatter.Writer, "  - %s\n", p)
			}
		}
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	settings := resolvedSettings(cfg)
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: ValidationResult{Valid: true, Settings: settings}})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(formatter.Writer, "  %-15s %v\n", k+":", settings[k])
	}
	return nil
}

// validationProblems flattens schema violations and joined validation
// errors into one message each.
func validationProblems(err error) []string {
	var serr *config.SchemaError
	if errors.As(err, &serr) {
		return serr.Problems
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func resolvedSettings(cfg config.Config) map[string]any {
	m := cfg.Payload()
	m["seed"] = cfg.Seed
	m["slack"] = cfg.Slack.String()
	m["watchdog"] = cfg.Watchdog.String()
	m["backend"] = cfg.Backend
	m["chunk_size"] = cfg.ChunkSize
	return m
}
