package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the outcome of every run to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Runs     []RunResult // All runs for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nRuns:\n")
	for _, r := range e.Runs {
		fmt.Fprintf(&buf, "  seed=%d exit=%d reason=%s decisions=%d\n",
			r.Seed, r.ExitCode, r.Reason, len(r.Schedule))
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the runs and returns
// one message per failure.
func EvaluateAssertions(runs []RunResult, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(runs, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(runs []RunResult, a Assertion) error {
	switch a.Type {
	case AssertExitCode:
		return assertEvery(runs, a, fmt.Sprintf("exit code %d", *a.Code), func(r RunResult) (bool, string) {
			return r.ExitCode == *a.Code, fmt.Sprintf("exit code %d", r.ExitCode)
		})
	case AssertReason:
		return assertEvery(runs, a, "reason "+a.Reason, func(r RunResult) (bool, string) {
			return r.Reason.String() == a.Reason, "reason " + r.Reason.String()
		})
	case AssertNever:
		return assertEvery(runs, a, "no run ending with "+a.Reason, func(r RunResult) (bool, string) {
			return r.Reason.String() != a.Reason, "reason " + r.Reason.String()
		})
	case AssertFinds:
		for _, r := range runs {
			if r.Reason.String() == a.Reason {
				return nil
			}
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: "some run ending with " + a.Reason,
			Actual:   fmt.Sprintf("none of %d runs", len(runs)),
			Runs:     runs,
		}
	case AssertReplays:
		return assertEvery(runs, a, "identical replay", func(r RunResult) (bool, string) {
			if !r.Replayed {
				return false, "not replayed"
			}
			if r.Replay != nil {
				return false, r.Replay.Error()
			}
			return true, ""
		})
	case AssertMaxDecisions:
		return assertEvery(runs, a, fmt.Sprintf("at most %d decisions", a.Count), func(r RunResult) (bool, string) {
			return len(r.Schedule) <= a.Count, fmt.Sprintf("%d decisions", len(r.Schedule))
		})
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertEvery fails with the first run for which check does not hold.
func assertEvery(runs []RunResult, a Assertion, expected string, check func(RunResult) (bool, string)) error {
	for _, r := range runs {
		if ok, actual := check(r); !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: expected,
				Actual:   fmt.Sprintf("seed %d: %s", r.Seed, actual),
				Runs:     runs,
			}
		}
	}
	return nil
}

// replayError compares a replay against its recording.
func replayError(rec RunResult, replay *Outcome, schedule []Decision) error {
	if replay.Err != nil {
		return fmt.Errorf("replay failed: %w", replay.Err)
	}
	if err := CompareSchedules(rec.Schedule, schedule); err != nil {
		return err
	}
	if replay.Reason != rec.Reason {
		return fmt.Errorf("replay ended with %s, recording with %s", replay.Reason, rec.Reason)
	}
	return nil
}

