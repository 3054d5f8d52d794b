package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/orderflow/orchestrator"
)

// Dependencies is the ordered unit -> prerequisites mapping of the pipeline.
// Declaration order in the YAML file is kept and used to break ties between
// units of equal priority.
type Dependencies struct {
	entries []orchestrator.GraphEntry
}

// NewDependencies builds Dependencies from entries in the given order.
func NewDependencies(entries ...orchestrator.GraphEntry) Dependencies {
	return Dependencies{entries: append([]orchestrator.GraphEntry(nil), entries...)}
}

// Entries returns the graph entries in declaration order.
func (d Dependencies) Entries() []orchestrator.GraphEntry {
	out := make([]orchestrator.GraphEntry, len(d.entries))
	for i, e := range d.entries {
		out[i] = orchestrator.GraphEntry{Unit: e.Unit, DependsOn: append([]string(nil), e.DependsOn...)}
	}
	return out
}

// Units returns the unit names in declaration order.
func (d Dependencies) Units() []string {
	names := make([]string, len(d.entries))
	for i, e := range d.entries {
		names[i] = e.Unit
	}
	return names
}

// Has reports whether unit is declared.
func (d Dependencies) Has(unit string) bool {
	for _, e := range d.entries {
		if e.Unit == unit {
			return true
		}
	}
	return false
}

// Len returns the number of declared units.
func (d Dependencies) Len() int {
	return len(d.entries)
}

// UnmarshalYAML reads a mapping node so that key order survives decoding.
func (d *Dependencies) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		d.entries = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: dependencies must be a mapping of unit to prerequisites", node.Line)
	}

	entries := make([]orchestrator.GraphEntry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		entry := orchestrator.GraphEntry{Unit: key.Value}
		switch {
		case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
		case value.Kind == yaml.SequenceNode:
			if err := value.Decode(&entry.DependsOn); err != nil {
				return fmt.Errorf("line %d: dependencies of %q: %w", value.Line, key.Value, err)
			}
		default:
			return fmt.Errorf("line %d: dependencies of %q must be a list", value.Line, key.Value)
		}
		entries = append(entries, entry)
	}
	d.entries = entries
	return nil
}

// MarshalYAML writes the mapping back in declaration order.
func (d Dependencies) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range d.entries {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, dep := range e.DependsOn {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: dep})
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: e.Unit}, seq)
	}
	return node, nil
}
