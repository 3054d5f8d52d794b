package orchestrator

import (
	"context"
	"errors"
	"time"
)

// RunOutcome summarises how a run ended.
type RunOutcome string

const (
	OutcomeCompleted             RunOutcome = "completed"
	OutcomeCompletedWithFailures RunOutcome = "completed_with_failures"
	OutcomeAborted               RunOutcome = "aborted"
	OutcomeCancelled             RunOutcome = "cancelled"
	OutcomeInvalid               RunOutcome = "invalid"
)

// Report is the JSON-compatible summary of a run.
type Report struct {
	RunID          string       `json:"run_id"`
	Mode           string       `json:"mode,omitempty"`
	Outcome        RunOutcome   `json:"outcome"`
	StartedAt      time.Time    `json:"started_at"`
	EndedAt        time.Time    `json:"ended_at"`
	ElapsedSeconds float64      `json:"elapsed_seconds"`
	Total          int          `json:"total"`
	Completed      int          `json:"completed"`
	Failed         int          `json:"failed"`
	Skipped        int          `json:"skipped"`
	NotStarted     int          `json:"not_started"`
	Units          []UnitReport `json:"units"`
	Outputs        []string     `json:"outputs"`
	Error          string       `json:"error,omitempty"`
}

// UnitReport is the final state of one unit.
type UnitReport struct {
	Name           string         `json:"name"`
	Status         UnitStatus     `json:"status"`
	StartedAt      *time.Time     `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Error          *string        `json:"error"`
	Outputs        []string       `json:"outputs"`
	BlockedBy      []string       `json:"blocked_by,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// Unit returns the report of name.
func (r *Report) Unit(name string) (UnitReport, bool) {
	for _, u := range r.Units {
		if u.Name == name {
			return u, true
		}
	}
	return UnitReport{}, false
}

// Succeeded returns true if every unit completed or was skipped.
func (r *Report) Succeeded() bool {
	return r.Outcome == OutcomeCompleted
}

// FinalizeInput is everything Finalize needs.
type FinalizeInput struct {
	RunID     string
	Mode      string
	Graph     *DependencyGraph
	Results   map[string]UnitResult
	Blocked   map[string][]string
	StartedAt time.Time
	EndedAt   time.Time
	// Err is the error Execute returns, if any.
	Err error
}

// Finalize aggregates per-unit results into a Report. Units without a
// result are NotStarted. It performs no I/O.
func Finalize(in FinalizeInput) Report {
	rep := Report{
		RunID:     in.RunID,
		Mode:      in.Mode,
		StartedAt: in.StartedAt,
		EndedAt:   in.EndedAt,
		Units:     []UnitReport{},
		Outputs:   []string{},
	}
	if !in.EndedAt.IsZero() && !in.StartedAt.IsZero() {
		rep.ElapsedSeconds = in.EndedAt.Sub(in.StartedAt).Seconds()
	}

	var units []string
	if in.Graph != nil {
		units = in.Graph.Units()
	}
	rep.Total = len(units)

	for _, name := range units {
		res, ok := in.Results[name]
		if !ok {
			res = UnitResult{Name: name, Status: NotStarted}
		}
		ur := UnitReport{
			Name:           name,
			Status:         res.Status,
			ElapsedSeconds: res.Elapsed.Seconds(),
			Outputs:        append([]string{}, res.Outputs...),
			Payload:        res.Payload,
		}
		if !res.StartedAt.IsZero() {
			t := res.StartedAt
			ur.StartedAt = &t
		}
		if !res.EndedAt.IsZero() {
			t := res.EndedAt
			ur.EndedAt = &t
		}
		if res.Status == Failed {
			msg := res.Error
			ur.Error = &msg
		}
		if res.Status == NotStarted {
			ur.BlockedBy = in.Blocked[name]
		}

		switch res.Status {
		case Completed:
			rep.Completed++
		case Failed:
			rep.Failed++
		case Skipped:
			rep.Skipped++
		default:
			rep.NotStarted++
		}
		rep.Outputs = append(rep.Outputs, res.Outputs...)
		rep.Units = append(rep.Units, ur)
	}

	rep.Outcome = outcomeOf(rep, in.Err)
	if in.Err != nil {
		rep.Error = in.Err.Error()
	}
	return rep
}

func outcomeOf(rep Report, err error) RunOutcome {
	var cfgErr *ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return OutcomeInvalid
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.Is(err, ErrRunAborted):
		return OutcomeAborted
	case rep.Failed > 0 || rep.NotStarted > 0:
		return OutcomeCompletedWithFailures
	default:
		return OutcomeCompleted
	}
}
