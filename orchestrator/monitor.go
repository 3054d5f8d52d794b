package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/nomis52/orderflow/activity"
)

// StatusSets is a snapshot of the run's status sets.
type StatusSets struct {
	Running   Set
	Completed Set
	Failed    Set
	Skipped   Set
}

// StatusMonitor owns every unit's MonitoringRecord and the status sets.
// A single mutex guards records, sets and store writes.
type StatusMonitor struct {
	mu      sync.Mutex
	records map[string]*MonitoringRecord
	sets    StatusSets
	store   *SharedStore
	now     func() time.Time
}

var _ activity.Handler = (*StatusMonitor)(nil)

// NewStatusMonitor creates NotStarted records for units.
func NewStatusMonitor(units []string, store *SharedStore) *StatusMonitor {
	m := &StatusMonitor{
		records: make(map[string]*MonitoringRecord, len(units)),
		sets: StatusSets{
			Running:   make(Set),
			Completed: make(Set),
			Failed:    make(Set),
			Skipped:   make(Set),
		},
		store: store,
		now:   time.Now,
	}
	for _, u := range units {
		m.records[u] = &MonitoringRecord{Status: NotStarted}
	}
	return m
}

type updateOptions struct {
	progress  *float64
	operation *string
	startedAt time.Time
}

// UpdateOption sets an optional field on Update.
type UpdateOption func(*updateOptions)

// WithProgress sets the progress percentage, clamped to 0-100.
func WithProgress(pct float64) UpdateOption {
	return func(o *updateOptions) {
		p := activity.ClampProgress(pct)
		o.progress = &p
	}
}

// WithOperation sets the current operation text.
func WithOperation(op string) UpdateOption {
	return func(o *updateOptions) {
		o.operation = &op
	}
}

// WithStartTime overrides the start time recorded on entering Running.
func WithStartTime(t time.Time) UpdateOption {
	return func(o *updateOptions) {
		o.startedAt = t
	}
}

// Update overwrites the record of name and moves it between status sets.
// Repeating the current status only refreshes the record.
func (m *StatusMonitor) Update(name string, status UnitStatus, opts ...UpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(name, status, opts...)
}

func (m *StatusMonitor) updateLocked(name string, status UnitStatus, opts ...UpdateOption) error {
	rec, ok := m.records[name]
	if !ok {
		return fmt.Errorf("unknown unit %q", name)
	}
	if rec.Status != status && !rec.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, name, rec.Status, status)
	}

	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	now := m.now()
	if status == Running && rec.Status != Running {
		rec.StartedAt = now
		if !o.startedAt.IsZero() {
			rec.StartedAt = o.startedAt
		}
	}
	if status == Completed {
		rec.Progress = 100
	}
	if o.progress != nil {
		rec.Progress = *o.progress
	}
	if o.operation != nil {
		rec.Operation = *o.operation
	}
	rec.LastHeartbeat = now

	if rec.Status != status {
		m.setFor(rec.Status).Remove(name)
		m.setFor(status).Add(name)
		rec.Status = status
	}
	return nil
}

// setFor returns the set tracking status; NotStarted has none.
func (m *StatusMonitor) setFor(status UnitStatus) Set {
	switch status {
	case Running:
		return m.sets.Running
	case Completed:
		return m.sets.Completed
	case Failed:
		return m.sets.Failed
	case Skipped:
		return m.sets.Skipped
	default:
		return make(Set)
	}
}

// Finish applies the terminal status of result and, for a completed unit,
// writes publish to the store. If any publish key already exists nothing is
// written, the record is left untouched and the error wraps ErrKeyExists.
func (m *StatusMonitor) Finish(result UnitResult, publish map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[result.Name]
	if !ok {
		return fmt.Errorf("unknown unit %q", result.Name)
	}
	if !result.Status.IsTerminal() || !rec.Status.CanTransitionTo(result.Status) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, result.Name, rec.Status, result.Status)
	}
	if result.Status == Completed && len(publish) > 0 {
		if err := m.store.putAll(publish); err != nil {
			return err
		}
	}
	return m.updateLocked(result.Name, result.Status)
}

// Heartbeat refreshes LastHeartbeat of a running unit.
func (m *StatusMonitor) Heartbeat(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[name]; ok && rec.Status == Running {
		rec.LastHeartbeat = m.now()
	}
}

// SetOperation records the current operation of a running unit.
func (m *StatusMonitor) SetOperation(unit, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[unit]; ok && rec.Status == Running {
		rec.Operation = operation
		rec.LastHeartbeat = m.now()
	}
}

// SetProgress records progress and operation of a running unit.
func (m *StatusMonitor) SetProgress(unit string, percent float64, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[unit]; ok && rec.Status == Running {
		rec.Progress = activity.ClampProgress(percent)
		if operation != "" {
			rec.Operation = operation
		}
		rec.LastHeartbeat = m.now()
	}
}

// Record returns a copy of the record for name.
func (m *StatusMonitor) Record(name string) (MonitoringRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		return MonitoringRecord{}, false
	}
	return *rec, true
}

// Records returns copies of all records.
func (m *StatusMonitor) Records() map[string]MonitoringRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]MonitoringRecord, len(m.records))
	for name, rec := range m.records {
		out[name] = *rec
	}
	return out
}

// Sets returns copies of the status sets.
func (m *StatusMonitor) Sets() StatusSets {
	m.mu.Lock()
	defer m.mu.Unlock()
	return StatusSets{
		Running:   m.sets.Running.Clone(),
		Completed: m.sets.Completed.Clone(),
		Failed:    m.sets.Failed.Clone(),
		Skipped:   m.sets.Skipped.Clone(),
	}
}
