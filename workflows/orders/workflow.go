// Package orders builds the purchase-order pipeline: reader, validator,
// responder, creator and summarizer wired into a Coordinator.
package orders

import (
	"fmt"

	"github.com/nomis52/orderflow/config"
	"github.com/nomis52/orderflow/orchestrator"
	"github.com/nomis52/orderflow/units"
	"github.com/nomis52/orderflow/workflows"
)

// WorkflowOption configures workflow creation.
type WorkflowOption func(*workflowOptions)

type workflowOptions struct {
	mailer units.Mailer
	extra  []orchestrator.Option
}

// WithMailer replaces the simulated mailer built from the email config.
func WithMailer(m units.Mailer) WorkflowOption {
	return func(opts *workflowOptions) {
		opts.mailer = m
	}
}

// WithCoordinatorOptions appends options after the config-derived ones.
func WithCoordinatorOptions(extra ...orchestrator.Option) WorkflowOption {
	return func(opts *workflowOptions) {
		opts.extra = append(opts.extra, extra...)
	}
}

// NewWorkflow creates a coordinator for the order pipeline described by
// p.Config. Units named in the dependency graph must be one of the five
// order units.
func NewWorkflow(p workflows.Params, opts ...WorkflowOption) (*orchestrator.Coordinator, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("workflow requires a config")
	}
	cfg := p.Config

	options := &workflowOptions{
		mailer: units.NewSimulatedMailer(cfg.Email.Rate(), cfg.Email.Seed),
	}
	for _, opt := range opts {
		opt(options)
	}

	graph, err := cfg.Graph()
	if err != nil {
		return nil, err
	}

	available := BuildUnits(cfg, options.mailer)
	var selected []orchestrator.Unit
	for _, name := range graph.Units() {
		if u, ok := available[name]; ok {
			selected = append(selected, u)
		}
	}

	coordOpts := append(p.CoordinatorOptions(), options.extra...)
	c, err := orchestrator.NewCoordinator(graph, selected, coordOpts...)
	if err != nil {
		return nil, fmt.Errorf("building order pipeline: %w", err)
	}
	return c, nil
}

// BuildUnits returns the five order units configured from cfg, keyed by name.
func BuildUnits(cfg *config.Config, mailer units.Mailer) map[string]orchestrator.Unit {
	directory := NewDirectory(cfg)
	out := cfg.Data.OutputDir

	all := []orchestrator.Unit{
		&units.CSVReader{Path: cfg.Data.PurchaseOrders},
		&units.Validator{
			ReferencePath: cfg.Data.ReferencePrices,
			Tolerance:     cfg.Data.Tolerance(),
			OutputDir:     out,
		},
		&units.ExceptionResponder{
			OutputDir: out,
			From:      cfg.Email.From,
			Directory: directory,
			Mailer:    mailer,
		},
		&units.SalesOrderCreator{
			OutputDir:     out,
			ReferencePath: cfg.Data.ReferencePrices,
			Directory:     directory,
		},
		&units.Summarizer{OutputDir: out},
	}

	byName := make(map[string]orchestrator.Unit, len(all))
	for _, u := range all {
		byName[u.Name()] = u
	}
	return byName
}

// NewDirectory converts the configured customers into a units.Directory.
func NewDirectory(cfg *config.Config) *units.Directory {
	customers := make(map[string]units.Customer, len(cfg.Customers))
	for id, c := range cfg.Customers {
		customers[id] = units.Customer{Name: c.Name, Email: c.Email}
	}
	return units.NewDirectory(customers, cfg.Email.DefaultContact)
}
