package runner

import (
	"time"

	"github.com/nomis52/orderflow/logging"
	"github.com/nomis52/orderflow/orchestrator"
)

// RunState represents whether a pipeline run is in progress.
type RunState int

const (
	// RunStateIdle indicates no run is in progress.
	RunStateIdle RunState = iota
	// RunStateRunning indicates a run is in progress.
	RunStateRunning
)

// Triggers recorded on each run.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	switch s {
	case RunStateIdle:
		return "idle"
	case RunStateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s RunState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// RunSummary is the history entry of a finished run.
type RunSummary struct {
	ID        string                  `json:"id"`
	Trigger   string                  `json:"trigger,omitempty"`
	StartedAt *time.Time              `json:"started_at,omitempty"`
	EndedAt   *time.Time              `json:"ended_at,omitempty"`
	Outcome   orchestrator.RunOutcome `json:"outcome,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// RunRecord is everything stored about a finished run.
type RunRecord struct {
	RunSummary
	Report *orchestrator.Report           `json:"report,omitempty"`
	Logs   map[string][]logging.LogEntry `json:"logs,omitempty"`

	// DroppedLogs counts, per unit, the oldest entries left out of Logs.
	DroppedLogs map[string]int `json:"dropped_logs,omitempty"`
}

// RunStatus contains information about the current or last run.
type RunStatus struct {
	// State is the current state of the run.
	State RunState `json:"state"`
	// RunID identifies the current or last run. Empty if no run has occurred.
	RunID   string `json:"run_id,omitempty"`
	Trigger string `json:"trigger,omitempty"`
	// StartedAt is when the run started. Nil if no run has occurred.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EndedAt is when the run ended. Nil if run is in progress or no run has occurred.
	EndedAt *time.Time `json:"ended_at,omitempty"`
	// Outcome of the last finished run.
	Outcome orchestrator.RunOutcome `json:"outcome,omitempty"`
	// Error contains the error message if the run failed. Empty on success.
	Error string `json:"error,omitempty"`
	// Units holds the live monitoring records while running, and the final
	// ones afterwards.
	Units map[string]orchestrator.MonitoringRecord `json:"units,omitempty"`
}
