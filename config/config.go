package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/orderflow/logging"
	"github.com/nomis52/orderflow/orchestrator"
)

const (
	// Execution modes
	ModeSequential  = "sequential"
	ModeCoordinated = "coordinated"

	// History stores
	HistoryMemory = "memory"
	HistoryDisk   = "disk"
	HistorySQLite = "sqlite"

	// Default pipeline settings
	defaultMode         = ModeCoordinated
	defaultMaxParallel  = 2
	defaultPollInterval = 500 * time.Millisecond

	// Default data settings
	defaultPurchaseOrders  = "data/purchase_orders.csv"
	defaultReferencePrices = "data/reference_prices.csv"
	defaultOutputDir       = "output"
	defaultPriceTolerance  = 0.05

	// Default email settings
	defaultEmailFrom      = "orders@orderflow.example"
	defaultContact        = "purchasing@orderflow.example"
	defaultSuccessRate    = 0.9
	defaultEmailSeed      = 42
	defaultMetricsPrefix  = "orderflow"
	defaultJobName        = "orderflow"
	defaultListen         = ":8080"
	defaultHistoryStore   = HistoryMemory
	defaultHistoryMaxRuns = 100

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "json"
	defaultLogOutput = "stdout"
)

// DefaultCritical lists units that abort the run on failure unless a unit
// entry sets critical explicitly.
var DefaultCritical = []string{"reader"}

// DefaultDependencies is the order pipeline used when none is configured.
func DefaultDependencies() Dependencies {
	return NewDependencies(
		orchestrator.GraphEntry{Unit: "reader"},
		orchestrator.GraphEntry{Unit: "validator", DependsOn: []string{"reader"}},
		orchestrator.GraphEntry{Unit: "responder", DependsOn: []string{"validator"}},
		orchestrator.GraphEntry{Unit: "creator", DependsOn: []string{"validator"}},
		orchestrator.GraphEntry{Unit: "summarizer", DependsOn: []string{"responder", "creator"}},
	)
}

// Config represents the complete application configuration
type Config struct {
	Pipeline   PipelineConfig            `yaml:"pipeline"`
	Data       DataConfig                `yaml:"data"`
	Customers  map[string]CustomerConfig `yaml:"customers"`
	Email      EmailConfig               `yaml:"email"`
	Logging    logging.Config            `yaml:"logging"`
	Monitoring MonitoringConfig          `yaml:"monitoring"`
	Server     ServerConfig              `yaml:"server"`
}

// PipelineConfig controls how units are scheduled.
type PipelineConfig struct {
	// Mode is sequential or coordinated. Sequential runs one unit at a time.
	Mode            string                `yaml:"mode"`
	MaxParallel     int                   `yaml:"max_parallel"`
	PollInterval    time.Duration         `yaml:"poll_interval"`
	EnforceTimeouts bool                  `yaml:"enforce_timeouts"`
	Dependencies    Dependencies          `yaml:"dependencies"`
	ParallelGroups  map[string][]string   `yaml:"parallel_groups"`
	Units           map[string]UnitConfig `yaml:"units"`
}

// UnitConfig holds per-unit settings. Unset booleans take their defaults.
type UnitConfig struct {
	Priority int           `yaml:"priority"`
	Enabled  *bool         `yaml:"enabled,omitempty"`
	Critical *bool         `yaml:"critical,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// DataConfig locates inputs and outputs.
type DataConfig struct {
	PurchaseOrders  string   `yaml:"purchase_orders"`
	ReferencePrices string   `yaml:"reference_prices"`
	OutputDir       string   `yaml:"output_dir"`
	PriceTolerance  *float64 `yaml:"price_tolerance,omitempty"`
}

// CustomerConfig is one customer directory entry.
type CustomerConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// EmailConfig configures the simulated mailer.
type EmailConfig struct {
	From           string   `yaml:"from"`
	DefaultContact string   `yaml:"default_contact"`
	SuccessRate    *float64 `yaml:"success_rate,omitempty"`
	Seed           int64    `yaml:"seed"`
}

// MonitoringConfig holds metrics settings
type MonitoringConfig struct {
	// PushURL is a Prometheus remote write endpoint used by one-off runs.
	// Empty disables pushing.
	PushURL       string `yaml:"push_url"`
	MetricsPrefix string `yaml:"metrics_prefix"`
	JobName       string `yaml:"job_name"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// Schedule is a cron expression; empty disables scheduled runs.
	Schedule string        `yaml:"schedule"`
	History  HistoryConfig `yaml:"history"`
}

// HistoryConfig selects where completed run reports are kept.
type HistoryConfig struct {
	Store   string `yaml:"store"`
	Path    string `yaml:"path"`
	MaxRuns int    `yaml:"max_runs"`
}

// Tolerance returns the price tolerance, or the default if unset.
func (d DataConfig) Tolerance() float64 {
	if d.PriceTolerance == nil {
		return defaultPriceTolerance
	}
	return *d.PriceTolerance
}

// Rate returns the simulated delivery success rate, or the default if unset.
func (e EmailConfig) Rate() float64 {
	if e.SuccessRate == nil {
		return defaultSuccessRate
	}
	return *e.SuccessRate
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	p := &c.Pipeline
	if p.Mode == "" {
		p.Mode = defaultMode
	}
	if p.MaxParallel == 0 {
		p.MaxParallel = defaultMaxParallel
	}
	if p.PollInterval == 0 {
		p.PollInterval = defaultPollInterval
	}
	if p.Dependencies.Len() == 0 {
		p.Dependencies = DefaultDependencies()
	}
	if p.ParallelGroups == nil && p.Mode != ModeSequential {
		p.ParallelGroups = map[string][]string{"fulfilment": {"responder", "creator"}}
		for _, u := range p.ParallelGroups["fulfilment"] {
			if !p.Dependencies.Has(u) {
				p.ParallelGroups = nil
				break
			}
		}
	}
	if p.Mode == ModeSequential {
		p.MaxParallel = 1
		p.ParallelGroups = nil
	}

	if c.Data.PurchaseOrders == "" {
		c.Data.PurchaseOrders = defaultPurchaseOrders
	}
	if c.Data.ReferencePrices == "" {
		c.Data.ReferencePrices = defaultReferencePrices
	}
	if c.Data.OutputDir == "" {
		c.Data.OutputDir = defaultOutputDir
	}
	if c.Data.PriceTolerance == nil {
		tol := defaultPriceTolerance
		c.Data.PriceTolerance = &tol
	}

	if c.Email.From == "" {
		c.Email.From = defaultEmailFrom
	}
	if c.Email.DefaultContact == "" {
		c.Email.DefaultContact = defaultContact
	}
	if c.Email.SuccessRate == nil {
		rate := defaultSuccessRate
		c.Email.SuccessRate = &rate
	}
	if c.Email.Seed == 0 {
		c.Email.Seed = defaultEmailSeed
	}

	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}

	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Server.History.Store == "" {
		c.Server.History.Store = defaultHistoryStore
	}
	if c.Server.History.MaxRuns == 0 {
		c.Server.History.MaxRuns = defaultHistoryMaxRuns
	}

	// Set logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// Validate reports every problem at once as an *orchestrator.ConfigurationError.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	p := c.Pipeline
	switch p.Mode {
	case ModeSequential, ModeCoordinated:
	default:
		add("pipeline.mode must be %q or %q, got %q", ModeSequential, ModeCoordinated, p.Mode)
	}
	if p.MaxParallel < 1 {
		add("pipeline.max_parallel must be positive, got %d", p.MaxParallel)
	}
	if p.PollInterval <= 0 {
		add("pipeline.poll_interval must be positive, got %s", p.PollInterval)
	}

	if _, err := orchestrator.BuildGraph(p.Dependencies.Entries()); err != nil {
		var cfgErr *orchestrator.ConfigurationError
		if errors.As(err, &cfgErr) {
			problems = append(problems, cfgErr.Problems...)
		} else {
			problems = append(problems, err)
		}
	}
	for _, group := range sortedKeys(p.ParallelGroups) {
		for _, u := range p.ParallelGroups[group] {
			if !p.Dependencies.Has(u) {
				add("pipeline.parallel_groups.%s references unknown unit %q", group, u)
			}
		}
	}
	for _, u := range sortedKeys(p.Units) {
		if !p.Dependencies.Has(u) {
			add("pipeline.units references unknown unit %q", u)
		}
		if p.Units[u].Timeout < 0 {
			add("pipeline.units.%s.timeout must not be negative", u)
		}
	}

	if tol := c.Data.Tolerance(); tol < 0 || tol > 1 {
		add("data.price_tolerance must be between 0 and 1, got %v", tol)
	}
	if rate := c.Email.Rate(); rate < 0 || rate > 1 {
		add("email.success_rate must be between 0 and 1, got %v", rate)
	}

	if err := c.Logging.Validate(); err != nil {
		add("logging: %w", err)
	}

	switch c.Server.History.Store {
	case HistoryMemory:
	case HistoryDisk, HistorySQLite:
		if c.Server.History.Path == "" {
			add("server.history.path is required for the %s store", c.Server.History.Store)
		}
	default:
		add("server.history.store must be memory, disk or sqlite, got %q", c.Server.History.Store)
	}
	if c.Server.History.MaxRuns < 0 {
		add("server.history.max_runs must not be negative")
	}
	if c.Server.Schedule != "" {
		if _, err := cron.ParseStandard(c.Server.Schedule); err != nil {
			add("server.schedule %q: %w", c.Server.Schedule, err)
		}
	}

	return orchestrator.NewConfigurationError(problems...)
}

// Graph builds the validated dependency graph.
func (c *Config) Graph() (*orchestrator.DependencyGraph, error) {
	return orchestrator.BuildGraph(c.Pipeline.Dependencies.Entries())
}

// Priorities returns the configured priority of every unit that sets one.
func (c *Config) Priorities() map[string]int {
	out := make(map[string]int)
	for name, u := range c.Pipeline.Units {
		if u.Priority != 0 {
			out[name] = u.Priority
		}
	}
	return out
}

// CriticalUnits returns the units whose failure aborts a run.
func (c *Config) CriticalUnits() []string {
	var out []string
	for _, name := range c.Pipeline.Dependencies.Units() {
		u, ok := c.Pipeline.Units[name]
		switch {
		case ok && u.Critical != nil:
			if *u.Critical {
				out = append(out, name)
			}
		case slices.Contains(DefaultCritical, name):
			out = append(out, name)
		}
	}
	return out
}

// DisabledUnits returns units with enabled: false.
func (c *Config) DisabledUnits() []string {
	var out []string
	for _, name := range c.Pipeline.Dependencies.Units() {
		if u, ok := c.Pipeline.Units[name]; ok && u.Enabled != nil && !*u.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// Timeouts returns the per-unit timeouts that are set.
func (c *Config) Timeouts() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for name, u := range c.Pipeline.Units {
		if u.Timeout > 0 {
			out[name] = u.Timeout
		}
	}
	return out
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse decodes YAML, applies defaults and validates. Unknown keys are
// ignored. Decoding problems are reported as a ConfigurationError.
func Parse(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, orchestrator.NewConfigurationError(fmt.Errorf("parsing config: %w", err))
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
