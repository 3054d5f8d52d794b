package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nomis52/orderflow/logging"
	"github.com/nomis52/orderflow/metrics"
)

// Test units
// ---------------------------------------------------------------------

// testUnit runs fn, or succeeds immediately when fn is nil.
type testUnit struct {
	name     string
	initErr  error
	fn       func(ctx context.Context, env Env) Outcome
	executed atomic.Int32
	inited   atomic.Int32
}

func (u *testUnit) Name() string { return u.name }

func (u *testUnit) Init() error {
	u.inited.Add(1)
	return u.initErr
}

func (u *testUnit) Execute(ctx context.Context, env Env) Outcome {
	u.executed.Add(1)
	if u.fn == nil {
		return Success(nil, nil, u.name+".out")
	}
	return u.fn(ctx, env)
}

// tracker records execution order and the peak number of concurrent units.
type tracker struct {
	mu      sync.Mutex
	running map[string]bool
	peak    int
	starts  []string
	events  []string
	overlap []string
}

func newTracker() *tracker {
	return &tracker{running: make(map[string]bool)}
}

func (tr *tracker) enter(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.running[name] = true
	tr.starts = append(tr.starts, name)
	tr.events = append(tr.events, "start:"+name)
	if len(tr.running) > tr.peak {
		tr.peak = len(tr.running)
	}
	if len(tr.running) > 1 {
		for other := range tr.running {
			if other != name {
				tr.overlap = append(tr.overlap, name+"|"+other)
			}
		}
	}
}

func (tr *tracker) exit(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.running, name)
	tr.events = append(tr.events, "end:"+name)
}

func (tr *tracker) unit(name string, d time.Duration) *testUnit {
	return &testUnit{name: name, fn: func(ctx context.Context, env Env) Outcome {
		tr.enter(name)
		defer tr.exit(name)
		time.Sleep(d)
		return Success(map[string]any{"unit": name}, nil, name+".out")
	}}
}

// pos returns the position of an event such as "start:reader", or -1.
func (tr *tracker) pos(event string) int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for i, e := range tr.events {
		if e == event {
			return i
		}
	}
	return -1
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asUnits(units ...*testUnit) []Unit {
	out := make([]Unit, len(units))
	for i, u := range units {
		out[i] = u
	}
	return out
}

func newTestCoordinator(t *testing.T, entries []GraphEntry, units []Unit, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithPollInterval(5 * time.Millisecond)}, opts...)
	c, err := NewCoordinator(mustGraph(t, entries), units, opts...)
	require.NoError(t, err)
	return c
}

// Tests
// ---------------------------------------------------------------------

func TestCoordinator_PipelineCompletes(t *testing.T) {
	tr := newTracker()
	units := asUnits(
		tr.unit("reader", 5*time.Millisecond),
		tr.unit("validator", 5*time.Millisecond),
		tr.unit("responder", 10*time.Millisecond),
		tr.unit("creator", 10*time.Millisecond),
		tr.unit("summarizer", 5*time.Millisecond),
	)

	c := newTestCoordinator(t, pipelineEntries(), units,
		WithMaxParallel(2),
		WithParallelGroups(map[string][]string{"fulfilment": {"responder", "creator"}}),
		WithRunID("run-e2e"),
		WithMode("coordinated"),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-e2e", rep.RunID)
	assert.Equal(t, OutcomeCompleted, rep.Outcome)
	assert.Equal(t, 5, rep.Total)
	assert.Equal(t, 5, rep.Completed)
	for _, u := range rep.Units {
		assert.Equal(t, Completed, u.Status, u.Name)
		assert.NotNil(t, u.StartedAt, u.Name)
	}
	assert.ElementsMatch(t, []string{"reader.out", "validator.out", "responder.out", "creator.out", "summarizer.out"}, rep.Outputs)

	assert.Less(t, tr.pos("end:reader"), tr.pos("start:validator"))
	for _, branch := range []string{"responder", "creator"} {
		assert.Less(t, tr.pos("end:validator"), tr.pos("start:"+branch))
		assert.Less(t, tr.pos("end:"+branch), tr.pos("start:summarizer"))
	}
	assert.LessOrEqual(t, tr.peak, 2)

	reader, _ := rep.Unit("reader")
	assert.Equal(t, map[string]any{"unit": "reader"}, reader.Payload)
}

func TestCoordinator_ParallelGroupRunsTogether(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	tr := newTracker()
	waitForPeer := func(name string) *testUnit {
		return &testUnit{name: name, fn: func(ctx context.Context, env Env) Outcome {
			tr.enter(name)
			defer tr.exit(name)
			started.Done()
			select {
			case <-allStarted:
				return Success(nil, nil)
			case <-time.After(2 * time.Second):
				return Failure(errors.New("peer never started"))
			}
		}}
	}

	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "A"}, {Unit: "B"}, {Unit: "C", DependsOn: []string{"A", "B"}}},
		asUnits(waitForPeer("A"), waitForPeer("B"), tr.unit("C", 0)),
		WithMaxParallel(2),
		WithParallelGroups(map[string][]string{"g": {"A", "B"}}),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Completed)
	assert.Equal(t, 2, tr.peak)
	assert.Greater(t, tr.pos("start:C"), tr.pos("end:A"))
	assert.Greater(t, tr.pos("start:C"), tr.pos("end:B"))
}

func TestCoordinator_FailureBlocksDependents(t *testing.T) {
	validator := &testUnit{name: "validator", fn: func(ctx context.Context, env Env) Outcome {
		return Failure(errors.New("reference prices missing"))
	}}
	responder := &testUnit{name: "responder"}
	creator := &testUnit{name: "creator"}
	summarizer := &testUnit{name: "summarizer"}

	c := newTestCoordinator(t, pipelineEntries(),
		asUnits(&testUnit{name: "reader"}, validator, responder, creator, summarizer),
		WithParallelGroups(map[string][]string{"fulfilment": {"responder", "creator"}}),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err, "non-critical failures only show in the report")
	assert.Equal(t, OutcomeCompletedWithFailures, rep.Outcome)

	want := map[string]UnitStatus{
		"reader":     Completed,
		"validator":  Failed,
		"responder":  NotStarted,
		"creator":    NotStarted,
		"summarizer": NotStarted,
	}
	for name, status := range want {
		u, ok := rep.Unit(name)
		require.True(t, ok)
		assert.Equal(t, status, u.Status, name)
	}

	v, _ := rep.Unit("validator")
	require.NotNil(t, v.Error)
	assert.Equal(t, "reference prices missing", *v.Error)
	s, _ := rep.Unit("summarizer")
	assert.Equal(t, []string{"validator"}, s.BlockedBy)

	for _, u := range []*testUnit{responder, creator, summarizer} {
		assert.Zero(t, u.executed.Load(), u.name)
	}
	assert.Equal(t, 5, rep.Total)
	assert.Equal(t, 3, rep.NotStarted)
}

func TestCoordinator_CriticalFailureAborts(t *testing.T) {
	slowFinished := atomic.Bool{}
	a := &testUnit{name: "a", fn: func(ctx context.Context, env Env) Outcome {
		return Failure(errors.New("cannot read orders"))
	}}
	b := &testUnit{name: "b", fn: func(ctx context.Context, env Env) Outcome {
		time.Sleep(50 * time.Millisecond)
		slowFinished.Store(true)
		return Success(nil, nil)
	}}
	d := &testUnit{name: "d"}

	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "a"}, {Unit: "b"}, {Unit: "d", DependsOn: []string{"b"}}},
		asUnits(a, b, d),
		WithParallelGroups(map[string][]string{"g": {"a", "b", "d"}}),
		WithCritical("a"),
	)

	rep, err := c.Execute(context.Background())
	require.ErrorIs(t, err, ErrRunAborted)
	assert.Contains(t, err.Error(), `critical unit "a" failed`)
	require.NotNil(t, rep)
	assert.Equal(t, OutcomeAborted, rep.Outcome)

	assert.True(t, slowFinished.Load(), "in-flight units finish before Execute returns")
	bRep, _ := rep.Unit("b")
	assert.Equal(t, Completed, bRep.Status)
	dRep, _ := rep.Unit("d")
	assert.Equal(t, NotStarted, dRep.Status)
	assert.Zero(t, d.executed.Load())
}

func TestCoordinator_PanicBecomesFailure(t *testing.T) {
	boom := &testUnit{name: "creator", fn: func(ctx context.Context, env Env) Outcome {
		panic("nil sales order")
	}}
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "creator"}, {Unit: "summarizer", DependsOn: []string{"creator"}}},
		asUnits(boom, &testUnit{name: "summarizer"}),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)

	u, _ := rep.Unit("creator")
	assert.Equal(t, Failed, u.Status)
	require.NotNil(t, u.Error)
	assert.Equal(t, "panic: nil sales order", *u.Error)
	s, _ := rep.Unit("summarizer")
	assert.Equal(t, NotStarted, s.Status)
}

func TestCoordinator_DisabledUnits(t *testing.T) {
	responder := &testUnit{name: "responder"}
	summarizer := &testUnit{name: "summarizer"}
	c := newTestCoordinator(t, pipelineEntries(),
		asUnits(&testUnit{name: "reader"}, &testUnit{name: "validator"}, responder, &testUnit{name: "creator"}, summarizer),
		WithDisabled("responder"),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)

	r, _ := rep.Unit("responder")
	assert.Equal(t, Skipped, r.Status)
	assert.Zero(t, responder.executed.Load())
	assert.Zero(t, responder.inited.Load(), "disabled units are not initialized")

	s, _ := rep.Unit("summarizer")
	assert.Equal(t, NotStarted, s.Status, "skipped prerequisite blocks dependents")
	assert.Equal(t, []string{"responder"}, s.BlockedBy)

	cr, _ := rep.Unit("creator")
	assert.Equal(t, Completed, cr.Status)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 3, rep.Completed)
	assert.Equal(t, 1, rep.NotStarted)
}

func TestCoordinator_InitFailure(t *testing.T) {
	reader := &testUnit{name: "reader"}
	validator := &testUnit{name: "validator", initErr: errors.New("tolerance must be positive")}

	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "reader"}, {Unit: "validator", DependsOn: []string{"reader"}}},
		asUnits(reader, validator),
	)

	rep, err := c.Execute(context.Background())
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "tolerance must be positive")

	assert.Equal(t, OutcomeInvalid, rep.Outcome)
	assert.Equal(t, 2, rep.NotStarted)
	assert.Zero(t, reader.executed.Load())
}

func TestNewCoordinator_Validation(t *testing.T) {
	entries := []GraphEntry{{Unit: "reader"}, {Unit: "validator", DependsOn: []string{"reader"}}}

	tests := []struct {
		name  string
		units []Unit
		opts  []Option
		want  string
	}{
		{
			name:  "missing implementation",
			units: asUnits(&testUnit{name: "reader"}),
			want:  `no implementation for unit "validator"`,
		},
		{
			name:  "unit outside graph",
			units: asUnits(&testUnit{name: "reader"}, &testUnit{name: "validator"}, &testUnit{name: "mailer"}),
			want:  `unit "mailer" is not in the dependency graph`,
		},
		{
			name:  "duplicate unit",
			units: asUnits(&testUnit{name: "reader"}, &testUnit{name: "reader"}, &testUnit{name: "validator"}),
			want:  "registered more than once",
		},
		{
			name:  "unknown parallel group member",
			units: asUnits(&testUnit{name: "reader"}, &testUnit{name: "validator"}),
			opts:  []Option{WithParallelGroups(map[string][]string{"g": {"creator"}})},
			want:  `parallel group references unknown unit "creator"`,
		},
		{
			name:  "unknown critical unit",
			units: asUnits(&testUnit{name: "reader"}, &testUnit{name: "validator"}),
			opts:  []Option{WithCritical("summarizer")},
			want:  `critical references unknown unit "summarizer"`,
		},
		{
			name:  "unknown timeout",
			units: asUnits(&testUnit{name: "reader"}, &testUnit{name: "validator"}),
			opts:  []Option{WithTimeouts(map[string]time.Duration{"x": time.Second})},
			want:  `timeout references unknown unit "x"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCoordinator(mustGraph(t, entries), tt.units, tt.opts...)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := NewCoordinator(nil, nil)
	assert.Error(t, err)
}

func TestCoordinator_SequentialNeverOverlaps(t *testing.T) {
	tr := newTracker()
	c := newTestCoordinator(t, pipelineEntries(),
		asUnits(
			tr.unit("reader", time.Millisecond),
			tr.unit("validator", time.Millisecond),
			tr.unit("responder", 5*time.Millisecond),
			tr.unit("creator", 5*time.Millisecond),
			tr.unit("summarizer", time.Millisecond),
		),
		WithMaxParallel(1),
		WithParallelGroups(map[string][]string{"fulfilment": {"responder", "creator"}}),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Completed)
	assert.Equal(t, 1, tr.peak)
	assert.Empty(t, tr.overlap)
}

func TestCoordinator_ExclusiveUnitsRunAlone(t *testing.T) {
	tr := newTracker()
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "p1"}, {Unit: "x1"}, {Unit: "p2"}, {Unit: "x2"}, {Unit: "p3"}},
		asUnits(
			tr.unit("p1", 10*time.Millisecond),
			tr.unit("x1", 10*time.Millisecond),
			tr.unit("p2", 10*time.Millisecond),
			tr.unit("x2", 10*time.Millisecond),
			tr.unit("p3", 10*time.Millisecond),
		),
		WithMaxParallel(3),
		WithParallelGroups(map[string][]string{"g": {"p1", "p2", "p3"}}),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Completed)

	for _, pair := range tr.overlap {
		assert.NotContains(t, pair, "x", "exclusive unit overlapped: %s", pair)
	}
}

func TestCoordinator_PriorityOrder(t *testing.T) {
	tr := newTracker()
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "a"}, {Unit: "b"}, {Unit: "c"}},
		asUnits(tr.unit("a", 0), tr.unit("b", 0), tr.unit("c", 0)),
		WithMaxParallel(1),
		WithPriorities(map[string]int{"c": 5, "b": 1}),
	)

	_, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, tr.starts)
}

func TestCoordinator_EnforcedTimeout(t *testing.T) {
	slow := &testUnit{name: "slow", fn: func(ctx context.Context, env Env) Outcome {
		<-ctx.Done()
		time.Sleep(200 * time.Millisecond)
		return Success(nil, map[string]any{"late": true})
	}}
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "slow"}, {Unit: "after", DependsOn: []string{"slow"}}},
		asUnits(slow, &testUnit{name: "after"}),
		WithTimeouts(map[string]time.Duration{"slow": 20 * time.Millisecond}),
		WithEnforcedTimeouts(true),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)

	u, _ := rep.Unit("slow")
	assert.Equal(t, Failed, u.Status)
	require.NotNil(t, u.Error)
	assert.Equal(t, "timed out after 20ms", *u.Error)

	after, _ := rep.Unit("after")
	assert.Equal(t, NotStarted, after.Status)

	_, published := c.Store().Get("late")
	assert.False(t, published, "late outcome is discarded")
}

func TestCoordinator_TimedOutUnitKeepsExclusiveSlot(t *testing.T) {
	tr := newTracker()
	stuck := &testUnit{name: "stuck", fn: func(ctx context.Context, env Env) Outcome {
		tr.enter("stuck")
		defer tr.exit("stuck")
		time.Sleep(150 * time.Millisecond) // ignores ctx
		return Success(nil, nil)
	}}
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "stuck"}, {Unit: "next"}},
		asUnits(stuck, tr.unit("next", 20*time.Millisecond)),
		WithMaxParallel(2),
		WithTimeouts(map[string]time.Duration{"stuck": 20 * time.Millisecond}),
		WithEnforcedTimeouts(true),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)

	u, _ := rep.Unit("stuck")
	assert.Equal(t, Failed, u.Status)
	next, _ := rep.Unit("next")
	assert.Equal(t, Completed, next.Status)

	assert.Equal(t, 1, tr.peak, "exclusive units must never overlap")
	assert.Empty(t, tr.overlap)
	assert.Greater(t, tr.pos("start:next"), tr.pos("end:stuck"))
}

func TestCoordinator_AdvisoryTimeout(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: &buf, mu: &mu}, nil))

	slow := &testUnit{name: "slow", fn: func(ctx context.Context, env Env) Outcome {
		time.Sleep(60 * time.Millisecond)
		return Success(nil, nil)
	}}
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "slow"}},
		asUnits(slow),
		WithLogger(logger),
		WithTimeouts(map[string]time.Duration{"slow": 10 * time.Millisecond}),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)

	u, _ := rep.Unit("slow")
	assert.Equal(t, Completed, u.Status)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("unit exceeded its timeout")))
}

type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func TestCoordinator_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocking := &testUnit{name: "reader", fn: func(ctx context.Context, env Env) Outcome {
		cancel()
		<-ctx.Done()
		return Failure(ctx.Err())
	}}
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "reader"}, {Unit: "validator", DependsOn: []string{"reader"}}},
		asUnits(blocking, &testUnit{name: "validator"}),
	)

	rep, err := c.Execute(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCancelled, rep.Outcome)

	r, _ := rep.Unit("reader")
	assert.Equal(t, Failed, r.Status)
	v, _ := rep.Unit("validator")
	assert.Equal(t, NotStarted, v.Status)
}

func TestCoordinator_StorePassesDataDownstream(t *testing.T) {
	reader := &testUnit{name: "reader", fn: func(ctx context.Context, env Env) Outcome {
		return Success(nil, map[string]any{"customer_orders": []string{"PO-1", "PO-2"}})
	}}
	var seen []string
	validator := &testUnit{name: "validator", fn: func(ctx context.Context, env Env) Outcome {
		orders, err := Lookup[[]string](env.Store, "customer_orders")
		if err != nil {
			return Failure(err)
		}
		seen = orders
		return Success(map[string]any{"orders": len(orders)}, nil)
	}}

	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "reader"}, {Unit: "validator", DependsOn: []string{"reader"}}},
		asUnits(reader, validator),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Completed)
	assert.Equal(t, []string{"PO-1", "PO-2"}, seen)
	assert.Equal(t, []string{"customer_orders"}, c.Store().Keys())
}

func TestCoordinator_DuplicatePublishFailsUnit(t *testing.T) {
	publisher := func(name string) *testUnit {
		return &testUnit{name: name, fn: func(ctx context.Context, env Env) Outcome {
			return Success(nil, map[string]any{"sales_orders": name})
		}}
	}
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "first"}, {Unit: "second", DependsOn: []string{"first"}}},
		asUnits(publisher("first"), publisher("second")),
	)

	rep, err := c.Execute(context.Background())
	require.NoError(t, err)

	second, _ := rep.Unit("second")
	assert.Equal(t, Failed, second.Status)
	require.NotNil(t, second.Error)
	assert.Contains(t, *second.Error, "already written")

	v, _ := c.Store().Get("sales_orders")
	assert.Equal(t, "first", v)
}

func TestCoordinator_SnapshotsWhileRunning(t *testing.T) {
	var c *Coordinator
	var during MonitoringRecord
	reader := &testUnit{name: "reader", fn: func(ctx context.Context, env Env) Outcome {
		env.Status.Progress(50, "parsing rows")
		during = c.Records()["reader"]
		return Success(nil, nil)
	}}
	c = newTestCoordinator(t, []GraphEntry{{Unit: "reader"}}, asUnits(reader))

	assert.Equal(t, NotStarted, c.Records()["reader"].Status)
	assert.Empty(t, c.Results())

	_, err := c.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Running, during.Status)
	assert.Equal(t, 50.0, during.Progress)
	assert.Equal(t, "parsing rows", during.Operation)

	final := c.Records()["reader"]
	assert.Equal(t, Completed, final.Status)
	assert.Equal(t, 100.0, final.Progress)
	assert.Equal(t, Completed, c.Results()["reader"].Status)
}

func TestCoordinator_ExecuteOnce(t *testing.T) {
	c := newTestCoordinator(t, []GraphEntry{{Unit: "reader"}}, asUnits(&testUnit{name: "reader"}))

	_, err := c.Execute(context.Background())
	require.NoError(t, err)
	_, err = c.Execute(context.Background())
	assert.ErrorContains(t, err, "already executed")
}

func TestCoordinator_LoggerHookCapturesUnitLogs(t *testing.T) {
	collector := logging.NewLogCollector()
	reader := &testUnit{name: "reader", fn: func(ctx context.Context, env Env) Outcome {
		env.Logger.Info("read purchase orders", "count", 3)
		return Success(nil, nil)
	}}
	c := newTestCoordinator(t, []GraphEntry{{Unit: "reader"}}, asUnits(reader),
		WithLoggerHook(logging.NewCapturingLoggerHook(collector)),
	)

	_, err := c.Execute(context.Background())
	require.NoError(t, err)

	logs := collector.GetLogs("reader")
	require.NotEmpty(t, logs)
	var messages []string
	for _, l := range logs {
		messages = append(messages, l.Message)
	}
	assert.Contains(t, messages, "read purchase orders")
}

func TestCoordinator_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	failing := &testUnit{name: "validator", fn: func(ctx context.Context, env Env) Outcome {
		return Failure(errors.New("bad sku"))
	}}
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "reader"}, {Unit: "validator", DependsOn: []string{"reader"}}},
		asUnits(&testUnit{name: "reader"}, failing),
		WithTracer(provider.Tracer("test")),
	)

	_, err := c.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, provider.ForceFlush(context.Background()))

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	byName := map[string]int{}
	var runSpan sdktrace.ReadOnlySpan
	for _, s := range spans {
		byName[s.Name()]++
		if s.Name() == "orderflow.run" {
			runSpan = s
		}
	}
	assert.Equal(t, map[string]int{"orderflow.run": 1, "orderflow.unit": 2}, byName)
	require.NotNil(t, runSpan)
	for _, s := range spans {
		if s.Name() == "orderflow.unit" {
			assert.Equal(t, runSpan.SpanContext().SpanID(), s.Parent().SpanID())
		}
	}
}

func TestCoordinator_Metrics(t *testing.T) {
	registry, err := metrics.NewScrapeRegistry()
	require.NoError(t, err)

	failing := &testUnit{name: "validator", fn: func(ctx context.Context, env Env) Outcome {
		return Failure(errors.New("bad sku"))
	}}
	c := newTestCoordinator(t,
		[]GraphEntry{{Unit: "reader"}, {Unit: "validator", DependsOn: []string{"reader"}}, {Unit: "skipped"}},
		asUnits(&testUnit{name: "reader"}, failing, &testUnit{name: "skipped"}),
		WithMetrics(registry),
		WithDisabled("skipped"),
	)

	_, err = c.Execute(context.Background())
	require.NoError(t, err)

	finished, err := testutil.GatherAndCount(registry.Gatherer(), "units_finished_total")
	require.NoError(t, err)
	assert.Equal(t, 3, finished)

	durations, err := testutil.GatherAndCount(registry.Gatherer(), "unit_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, durations)

	running, err := testutil.GatherAndCount(registry.Gatherer(), "units_running")
	require.NoError(t, err)
	assert.Equal(t, 1, running)
}
