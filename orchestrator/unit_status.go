package orchestrator

import (
	"encoding/json"
	"fmt"
)

// UnitStatus represents the execution state of a unit.
type UnitStatus int

const (
	// NotStarted indicates the unit has not begun execution. Units blocked by
	// a failed or skipped prerequisite stay in this state.
	NotStarted UnitStatus = iota

	// Running indicates the unit is currently executing
	Running

	// Completed indicates the unit finished without error
	Completed

	// Failed indicates the unit returned an error, panicked or timed out
	Failed

	// Skipped indicates the unit was disabled before the run started
	Skipped
)

// String returns a human-readable representation of the UnitStatus
func (s UnitStatus) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if no further transition is possible.
func (s UnitStatus) IsTerminal() bool {
	return s == Completed || s == Failed || s == Skipped
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s UnitStatus) CanTransitionTo(next UnitStatus) bool {
	switch s {
	case NotStarted:
		return next == Running || next == Skipped
	case Running:
		return next == Completed || next == Failed
	default:
		return false
	}
}

// ParseUnitStatus is the inverse of String.
func ParseUnitStatus(s string) (UnitStatus, error) {
	for _, st := range []UnitStatus{NotStarted, Running, Completed, Failed, Skipped} {
		if st.String() == s {
			return st, nil
		}
	}
	return NotStarted, fmt.Errorf("unknown unit status %q", s)
}

// MarshalJSON encodes the status as its string form.
func (s UnitStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form produced by MarshalJSON.
func (s *UnitStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseUnitStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
