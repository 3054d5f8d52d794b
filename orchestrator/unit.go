package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/nomis52/orderflow/activity"
)

// Unit is a single named step of a pipeline.
//
// IMPLEMENTATION CONTRACT:
// - Name() must be stable and match the unit's key in the DependencyGraph
// - Init() is called once before any unit runs; return an error for bad configuration
// - Execute() must report expected failures through Outcome.Err, not panics
// - Execute() must not write to the store; entries in Outcome.Publish are
//   stored by the coordinator once the unit completes
type Unit interface {
	Name() string
	Init() error
	Execute(ctx context.Context, env Env) Outcome
}

// Env is what a unit receives for one execution.
type Env struct {
	// Store gives read access to data published by prerequisites.
	Store StoreReader
	// Logger is tagged with the unit name.
	Logger *slog.Logger
	// Status reports the current operation and progress to the monitor.
	Status *activity.StatusLine
}

// Outcome is the tagged result of Execute. A non-nil Err marks the unit Failed
// and discards Publish.
type Outcome struct {
	Payload map[string]any
	Publish map[string]any
	Outputs []string
	Err     error
}

// Success builds an Outcome without error.
func Success(payload map[string]any, publish map[string]any, outputs ...string) Outcome {
	return Outcome{Payload: payload, Publish: publish, Outputs: outputs}
}

// Failure builds a failed Outcome.
func Failure(err error) Outcome {
	return Outcome{Err: err}
}

// UnitResult is created once when a unit finishes and is never mutated.
type UnitResult struct {
	Name      string         `json:"name"`
	Status    UnitStatus     `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Elapsed   time.Duration  `json:"elapsed"`
	Payload   map[string]any `json:"payload,omitempty"`
	// Error is non-empty iff Status is Failed.
	Error   string   `json:"error,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

// IsSuccess returns true if the unit completed.
func (r UnitResult) IsSuccess() bool {
	return r.Status == Completed
}

// MonitoringRecord is the live state of one unit.
type MonitoringRecord struct {
	Status        UnitStatus `json:"status"`
	StartedAt     time.Time  `json:"started_at,omitzero"`
	LastHeartbeat time.Time  `json:"last_heartbeat,omitzero"`
	Progress      float64    `json:"progress"`
	Operation     string     `json:"operation,omitempty"`
}

// UnitFunc adapts a function to the Unit interface.
type UnitFunc struct {
	UnitName string
	Fn       func(ctx context.Context, env Env) Outcome
}

func (u *UnitFunc) Name() string { return u.UnitName }

func (u *UnitFunc) Init() error { return nil }

func (u *UnitFunc) Execute(ctx context.Context, env Env) Outcome {
	return u.Fn(ctx, env)
}
