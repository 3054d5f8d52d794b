package activity

import "sync"

// Handler receives status updates from StatusLines.
type Handler interface {
	// SetOperation records the free-text current operation of a unit.
	SetOperation(unit, operation string)
	// SetProgress records the progress (0-100) and current operation of a unit.
	SetProgress(unit string, percent float64, operation string)
}

// Status is the last reported state of a unit held by a StatusHandler.
type Status struct {
	Operation string  `json:"operation"`
	Progress  float64 `json:"progress"`
}

// StatusHandler stores unit status updates in memory.
// This is the shared storage that all status lines write to.
type StatusHandler struct {
	statuses map[string]Status
	mu       sync.RWMutex
}

var _ Handler = (*StatusHandler)(nil)

// NewStatusHandler creates a new status handler.
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{
		statuses: make(map[string]Status),
	}
}

// SetOperation updates the current operation for a unit, keeping its progress.
func (sh *StatusHandler) SetOperation(unit, operation string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s := sh.statuses[unit]
	s.Operation = operation
	sh.statuses[unit] = s
}

// SetProgress updates both progress and operation for a unit.
func (sh *StatusHandler) SetProgress(unit string, percent float64, operation string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.statuses[unit] = Status{Operation: operation, Progress: ClampProgress(percent)}
}

// Get returns the status for a specific unit.
func (sh *StatusHandler) Get(unit string) Status {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.statuses[unit]
}

// All returns a copy of all unit statuses.
func (sh *StatusHandler) All() map[string]Status {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	// Return a copy to avoid concurrent map access
	copy := make(map[string]Status, len(sh.statuses))
	for k, v := range sh.statuses {
		copy[k] = v
	}
	return copy
}

// ClampProgress limits a progress percentage to [0, 100].
func ClampProgress(percent float64) float64 {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
