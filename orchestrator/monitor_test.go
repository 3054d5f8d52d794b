package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(units ...string) (*StatusMonitor, *SharedStore) {
	store := NewSharedStore(nil)
	m := NewStatusMonitor(units, store)
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	return m, store
}

func TestStatusMonitor_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		steps []UnitStatus
		valid bool
	}{
		{"run to completion", []UnitStatus{Running, Completed}, true},
		{"run to failure", []UnitStatus{Running, Failed}, true},
		{"skip", []UnitStatus{Skipped}, true},
		{"heartbeat while running", []UnitStatus{Running, Running, Completed}, true},
		{"complete without running", []UnitStatus{Completed}, false},
		{"fail without running", []UnitStatus{Failed}, false},
		{"skip while running", []UnitStatus{Running, Skipped}, false},
		{"restart after completion", []UnitStatus{Running, Completed, Running}, false},
		{"back to not started", []UnitStatus{Running, NotStarted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMonitor("reader")
			var err error
			for _, s := range tt.steps {
				if err = m.Update("reader", s); err != nil {
					break
				}
			}
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestStatusMonitor_UpdateUnknownUnit(t *testing.T) {
	m, _ := newTestMonitor("reader")
	err := m.Update("mailer", Running)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit")
}

func TestStatusMonitor_RecordFields(t *testing.T) {
	m, _ := newTestMonitor("reader")
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, m.Update("reader", Running, WithStartTime(start), WithProgress(150), WithOperation("reading rows")))

	rec, ok := m.Record("reader")
	require.True(t, ok)
	assert.Equal(t, Running, rec.Status)
	assert.Equal(t, start, rec.StartedAt)
	assert.Equal(t, m.now(), rec.LastHeartbeat)
	assert.Equal(t, 100.0, rec.Progress)
	assert.Equal(t, "reading rows", rec.Operation)

	require.NoError(t, m.Update("reader", Running, WithProgress(-5)))
	rec, _ = m.Record("reader")
	assert.Equal(t, 0.0, rec.Progress)
	assert.Equal(t, start, rec.StartedAt, "start time kept on repeated Running")
	assert.Equal(t, "reading rows", rec.Operation)

	_, ok = m.Record("mailer")
	assert.False(t, ok)
}

func TestStatusMonitor_Sets(t *testing.T) {
	m, _ := newTestMonitor("reader", "validator", "creator", "summarizer")

	require.NoError(t, m.Update("reader", Running))
	require.NoError(t, m.Update("validator", Running))
	require.NoError(t, m.Update("reader", Completed))
	require.NoError(t, m.Update("validator", Failed))
	require.NoError(t, m.Update("creator", Skipped))
	require.NoError(t, m.Update("summarizer", Running))

	sets := m.Sets()
	assert.Equal(t, NewSet("summarizer"), sets.Running)
	assert.Equal(t, NewSet("reader"), sets.Completed)
	assert.Equal(t, NewSet("validator"), sets.Failed)
	assert.Equal(t, NewSet("creator"), sets.Skipped)

	sets.Running.Add("reader")
	assert.False(t, m.Sets().Running.Has("reader"), "Sets returns copies")

	rec, _ := m.Record("reader")
	assert.Equal(t, 100.0, rec.Progress)
}

func TestStatusMonitor_FinishPublishes(t *testing.T) {
	m, store := newTestMonitor("reader")
	require.NoError(t, m.Update("reader", Running))

	err := m.Finish(UnitResult{Name: "reader", Status: Completed}, map[string]any{"customer_orders": []string{"PO-1"}})
	require.NoError(t, err)

	v, ok := store.Get("customer_orders")
	require.True(t, ok)
	assert.Equal(t, []string{"PO-1"}, v)
	assert.Equal(t, NewSet("reader"), m.Sets().Completed)
}

func TestStatusMonitor_FinishFailedDoesNotPublish(t *testing.T) {
	m, store := newTestMonitor("reader")
	require.NoError(t, m.Update("reader", Running))

	require.NoError(t, m.Finish(UnitResult{Name: "reader", Status: Failed, Error: "boom"}, map[string]any{"customer_orders": 1}))
	assert.Equal(t, 0, store.Len())
}

func TestStatusMonitor_FinishDuplicateKey(t *testing.T) {
	m, store := newTestMonitor("reader", "validator")
	require.NoError(t, m.Update("reader", Running))
	require.NoError(t, m.Update("validator", Running))
	require.NoError(t, m.Finish(UnitResult{Name: "reader", Status: Completed}, map[string]any{"orders": 1}))

	err := m.Finish(UnitResult{Name: "validator", Status: Completed}, map[string]any{"orders": 2, "other": 3})
	require.ErrorIs(t, err, ErrKeyExists)

	v, _ := store.Get("orders")
	assert.Equal(t, 1, v)
	_, ok := store.Get("other")
	assert.False(t, ok, "no partial writes")
	rec, _ := m.Record("validator")
	assert.Equal(t, Running, rec.Status)
}

func TestStatusMonitor_FinishRequiresTerminalStatus(t *testing.T) {
	m, _ := newTestMonitor("reader")
	require.NoError(t, m.Update("reader", Running))
	assert.ErrorIs(t, m.Finish(UnitResult{Name: "reader", Status: Running}, nil), ErrInvalidTransition)
}

func TestStatusMonitor_HandlerUpdatesOnlyRunningUnits(t *testing.T) {
	m, _ := newTestMonitor("reader", "creator")
	require.NoError(t, m.Update("reader", Running))

	m.SetProgress("reader", 40, "parsing")
	m.SetOperation("creator", "ignored")
	m.SetProgress("unknown", 10, "ignored")

	rec, _ := m.Record("reader")
	assert.Equal(t, 40.0, rec.Progress)
	assert.Equal(t, "parsing", rec.Operation)

	m.SetProgress("reader", 60, "")
	rec, _ = m.Record("reader")
	assert.Equal(t, 60.0, rec.Progress)
	assert.Equal(t, "parsing", rec.Operation)

	rec, _ = m.Record("creator")
	assert.Equal(t, NotStarted, rec.Status)
	assert.Empty(t, rec.Operation)
}

func TestStatusMonitor_ConcurrentUpdates(t *testing.T) {
	var units []string
	for i := 0; i < 50; i++ {
		units = append(units, fmt.Sprintf("unit-%d", i))
	}
	m, store := newTestMonitor(units...)

	var wg sync.WaitGroup
	for i, name := range units {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Update(name, Running))
			m.SetProgress(name, 50, "half way")
			assert.NoError(t, m.Finish(UnitResult{Name: name, Status: Completed}, map[string]any{name: i}))
		}()
	}
	wg.Wait()

	assert.Equal(t, len(units), m.Sets().Completed.Len())
	assert.Equal(t, len(units), store.Len())
	assert.Empty(t, m.Sets().Running)
}

func TestSharedStore(t *testing.T) {
	store := NewSharedStore(map[string]any{"seed": "value"})
	require.NoError(t, store.putAll(map[string]any{"customer_orders": 3}))

	assert.Equal(t, []string{"customer_orders", "seed"}, store.Keys())
	err := store.putAll(map[string]any{"seed": "other"})
	assert.True(t, errors.Is(err, ErrKeyExists))

	n, err := Lookup[int](store, "customer_orders")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = Lookup[string](store, "customer_orders")
	assert.ErrorContains(t, err, "holds int")
	_, err = Lookup[int](store, "missing")
	assert.ErrorContains(t, err, "not published")
}
