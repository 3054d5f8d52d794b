package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/orderflow/orchestrator"
)

func problemCount(t *testing.T, err error) int {
	t.Helper()
	var cfgErr *orchestrator.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "expected a ConfigurationError, got %v", err)
	return len(cfgErr.Problems)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, ModeCoordinated, cfg.Pipeline.Mode)
	assert.Equal(t, 2, cfg.Pipeline.MaxParallel)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.PollInterval)
	assert.Equal(t, []string{"reader", "validator", "responder", "creator", "summarizer"}, cfg.Pipeline.Dependencies.Units())
	assert.Equal(t, map[string][]string{"fulfilment": {"responder", "creator"}}, cfg.Pipeline.ParallelGroups)
	assert.InDelta(t, 0.05, cfg.Data.Tolerance(), 1e-9)
	assert.InDelta(t, 0.9, cfg.Email.Rate(), 1e-9)
	assert.Equal(t, int64(42), cfg.Email.Seed)
	assert.Equal(t, "orderflow", cfg.Monitoring.MetricsPrefix)
	assert.Equal(t, HistoryMemory, cfg.Server.History.Store)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, []string{"reader"}, cfg.CriticalUnits())
	assert.Empty(t, cfg.DisabledUnits())

	g, err := cfg.Graph()
	require.NoError(t, err)
	assert.Equal(t, []string{"responder", "creator"}, g.Dependents("validator"))
}

func TestParse_FullDocument(t *testing.T) {
	doc := `
pipeline:
  mode: coordinated
  max_parallel: 3
  poll_interval: 50ms
  enforce_timeouts: true
  dependencies:
    reader: []
    validator: [reader]
    creator: [validator]
    responder: [validator]
    summarizer: [responder, creator]
  parallel_groups:
    fulfilment: [responder, creator]
  units:
    creator:
      priority: 5
      timeout: 2s
    responder:
      enabled: false
    reader:
      critical: false
    validator:
      critical: true
data:
  purchase_orders: in/po.csv
  price_tolerance: 0
customers:
  C001:
    name: Acme Corp
    email: buyer@acme.example
email:
  success_rate: 1
unknown_section:
  ignored: true
`
	cfg, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.MaxParallel)
	assert.Equal(t, 50*time.Millisecond, cfg.Pipeline.PollInterval)
	assert.True(t, cfg.Pipeline.EnforceTimeouts)
	assert.Equal(t, []string{"reader", "validator", "creator", "responder", "summarizer"}, cfg.Pipeline.Dependencies.Units())
	assert.Equal(t, map[string]int{"creator": 5}, cfg.Priorities())
	assert.Equal(t, map[string]time.Duration{"creator": 2 * time.Second}, cfg.Timeouts())
	assert.Equal(t, []string{"responder"}, cfg.DisabledUnits())
	assert.Equal(t, []string{"validator"}, cfg.CriticalUnits())
	assert.Equal(t, "in/po.csv", cfg.Data.PurchaseOrders)
	assert.Equal(t, "data/reference_prices.csv", cfg.Data.ReferencePrices)
	assert.Zero(t, cfg.Data.Tolerance())
	assert.Equal(t, 1.0, cfg.Email.Rate())
	assert.Equal(t, CustomerConfig{Name: "Acme Corp", Email: "buyer@acme.example"}, cfg.Customers["C001"])
}

func TestParse_SequentialMode(t *testing.T) {
	doc := `
pipeline:
  mode: sequential
  max_parallel: 4
  parallel_groups:
    fulfilment: [responder, creator]
`
	cfg, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Pipeline.MaxParallel)
	assert.Nil(t, cfg.Pipeline.ParallelGroups)
}

func TestParse_CollectsAllProblems(t *testing.T) {
	doc := `
pipeline:
  mode: turbo
  max_parallel: -1
  dependencies:
    reader: []
    validator: [reader, ghost]
  parallel_groups:
    g: [reader, phantom]
  units:
    nobody:
      priority: 1
data:
  price_tolerance: 1.5
server:
  history:
    store: redis
  schedule: "not a cron"
`
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	// mode, max_parallel, unknown dependency, group member, unit settings,
	// tolerance, history store, schedule
	assert.Equal(t, 8, problemCount(t, err))
	assert.Contains(t, err.Error(), `pipeline.mode must be "sequential" or "coordinated", got "turbo"`)
	assert.Contains(t, err.Error(), `unit "validator" depends on unknown unit(s): ghost`)
	assert.Contains(t, err.Error(), `pipeline.parallel_groups.g references unknown unit "phantom"`)
}

func TestParse_CycleIsConfigurationError(t *testing.T) {
	doc := `
pipeline:
  dependencies:
    a: [c]
    b: [a]
    c: [b]
`
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	var cycle *orchestrator.CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "c", "b", "a"}, cycle.Cycle)
}

func TestParse_WrongTypes(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "string for int", doc: "pipeline:\n  max_parallel: lots\n"},
		{name: "bad duration", doc: "pipeline:\n  poll_interval: soon\n"},
		{name: "dependencies as list", doc: "pipeline:\n  dependencies: [a, b]\n"},
		{name: "prerequisites as scalar", doc: "pipeline:\n  dependencies:\n    a: b\n"},
		{name: "malformed yaml", doc: "pipeline: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Equal(t, 1, problemCount(t, err))
			assert.Contains(t, err.Error(), "parsing config")
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Pipeline.PollInterval = 0 },
			wantErr: "pipeline.poll_interval must be positive",
		},
		{
			name: "negative success rate",
			mutate: func(c *Config) {
				r := -0.1
				c.Email.SuccessRate = &r
			},
			wantErr: "email.success_rate must be between 0 and 1",
		},
		{
			name:    "disk store without path",
			mutate:  func(c *Config) { c.Server.History.Store = HistoryDisk },
			wantErr: "server.history.path is required for the disk store",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging: level must be one of",
		},
		{
			name: "negative timeout",
			mutate: func(c *Config) {
				c.Pipeline.Units = map[string]UnitConfig{"reader": {Timeout: -time.Second}}
			},
			wantErr: "pipeline.units.reader.timeout must not be negative",
		},
		{
			name:   "valid schedule",
			mutate: func(c *Config) { c.Server.Schedule = "*/5 * * * *" },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  max_parallel: 4\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pipeline.MaxParallel)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_MarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Dependencies = NewDependencies(
		orchestrator.GraphEntry{Unit: "z"},
		orchestrator.GraphEntry{Unit: "a", DependsOn: []string{"z"}},
	)
	cfg.Pipeline.ParallelGroups = map[string][]string{}

	out, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), "z: []")
	assert.Contains(t, string(out), "a: [z]")

	back, err := Parse(strings.NewReader(string(out)))
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, back.Pipeline.Dependencies.Units())
	assert.Equal(t, cfg.Pipeline.PollInterval, back.Pipeline.PollInterval)
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := LoadConfig("../config.yaml")
	require.NoError(t, err)

	assert.Equal(t, ModeCoordinated, cfg.Pipeline.Mode)
	assert.Equal(t, []string{"reader", "validator", "responder", "creator", "summarizer"}, cfg.Pipeline.Dependencies.Units())
	assert.Equal(t, map[string]int{"creator": 10}, cfg.Priorities())
	assert.Equal(t, []string{"reader"}, cfg.CriticalUnits())
	assert.Equal(t, time.Minute, cfg.Timeouts()["summarizer"])
	assert.Equal(t, "Globex", cfg.Customers["C002"].Name)
	assert.Equal(t, HistoryMemory, cfg.Server.History.Store)
}
