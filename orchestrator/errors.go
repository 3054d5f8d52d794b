package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRunAborted is returned by Execute when a critical unit failed.
	ErrRunAborted = errors.New("run aborted")

	// ErrInvalidTransition is returned by the monitor for a status change
	// the unit lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrKeyExists is returned when a store key is written a second time.
	ErrKeyExists = errors.New("store key already written")
)

// ConfigurationError collects every problem found before a run starts.
type ConfigurationError struct {
	Problems []error
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "configuration error: " + e.Problems[0].Error()
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("configuration error: %d problems: %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ConfigurationError) Unwrap() []error {
	return e.Problems
}

// NewConfigurationError returns nil when problems is empty.
func NewConfigurationError(problems ...error) error {
	var kept []error
	for _, p := range problems {
		if p != nil {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &ConfigurationError{Problems: kept}
}

// UnknownDependencyError reports prerequisites that are not units of the graph.
type UnknownDependencyError struct {
	Unit    string
	Missing []string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("unit %q depends on unknown unit(s): %s", e.Unit, strings.Join(e.Missing, ", "))
}

// CircularDependencyError reports a dependency cycle. Cycle starts and ends
// with the same unit.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Cycle, " → ")
}

// UnitExecutionError wraps the failure of a single unit.
type UnitExecutionError struct {
	Unit string
	Err  error
}

func (e *UnitExecutionError) Error() string {
	return fmt.Sprintf("unit %s: %v", e.Unit, e.Err)
}

func (e *UnitExecutionError) Unwrap() error {
	return e.Err
}
