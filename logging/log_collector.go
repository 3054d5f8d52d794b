package logging

import (
	"sync"
	"time"
)

// DefaultMaxEntriesPerUnit bounds how many records a run history keeps for
// one unit.
const DefaultMaxEntriesPerUnit = 1000

// LogEntry represents a single captured log record.
type LogEntry struct {
	Time       time.Time              `json:"time"`
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// unitLog holds the retained entries of one unit and how many were dropped.
type unitLog struct {
	entries []LogEntry
	dropped int
}

// LogCollector stores the records each unit logs during a run. When a unit
// exceeds its cap the oldest entries are dropped and counted.
type LogCollector struct {
	mu      sync.RWMutex
	maxPer  int
	units   map[string]*unitLog
	ordered []string // units in order of first record
}

// CollectorOption configures a LogCollector.
type CollectorOption func(*LogCollector)

// WithMaxEntriesPerUnit caps the entries kept per unit. Zero or less keeps
// everything.
func WithMaxEntriesPerUnit(n int) CollectorOption {
	return func(c *LogCollector) {
		c.maxPer = n
	}
}

// NewLogCollector creates a new LogCollector. Without options nothing is
// dropped.
func NewLogCollector(opts ...CollectorOption) *LogCollector {
	c := &LogCollector{units: make(map[string]*unitLog)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLog appends a log entry for the named unit.
func (c *LogCollector) AddLog(unit string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ul, ok := c.units[unit]
	if !ok {
		ul = &unitLog{}
		c.units[unit] = ul
		c.ordered = append(c.ordered, unit)
	}
	ul.entries = append(ul.entries, entry)
	if c.maxPer > 0 && len(ul.entries) > c.maxPer {
		over := len(ul.entries) - c.maxPer
		ul.entries = append(ul.entries[:0:0], ul.entries[over:]...)
		ul.dropped += over
	}
}

// GetLogs returns a copy of the entries retained for a unit, or nil.
func (c *LogCollector) GetLogs(unit string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ul, ok := c.units[unit]
	if !ok {
		return nil
	}
	return append([]LogEntry(nil), ul.entries...)
}

// GetAllLogs returns a copy of every retained entry grouped by unit.
func (c *LogCollector) GetAllLogs() map[string][]LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string][]LogEntry, len(c.units))
	for unit, ul := range c.units {
		result[unit] = append([]LogEntry(nil), ul.entries...)
	}
	return result
}

// Units returns the units that logged, in order of their first record.
func (c *LogCollector) Units() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.ordered...)
}

// Dropped returns, for every unit that hit the cap, how many entries were
// discarded.
func (c *LogCollector) Dropped() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]int)
	for unit, ul := range c.units {
		if ul.dropped > 0 {
			out[unit] = ul.dropped
		}
	}
	return out
}

// Clear removes all stored logs.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.units = make(map[string]*unitLog)
	c.ordered = nil
}
