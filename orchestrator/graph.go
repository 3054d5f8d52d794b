package orchestrator

import (
	"errors"
	"fmt"
	"slices"
)

// GraphEntry declares one unit and its prerequisites.
type GraphEntry struct {
	Unit      string
	DependsOn []string
}

// DependencyGraph is a validated, immutable unit → prerequisites mapping.
// Iteration follows the order in which entries were declared.
type DependencyGraph struct {
	order      []string
	index      map[string]int
	dependsOn  map[string][]string
	dependents map[string][]string
}

// BuildGraph validates entries and returns the graph. All problems are
// reported together in a *ConfigurationError; unknown prerequisites and
// cycles can be extracted with errors.As.
func BuildGraph(entries []GraphEntry) (*DependencyGraph, error) {
	g := &DependencyGraph{
		index:      make(map[string]int, len(entries)),
		dependsOn:  make(map[string][]string, len(entries)),
		dependents: make(map[string][]string, len(entries)),
	}

	var problems []error
	for _, e := range entries {
		if e.Unit == "" {
			problems = append(problems, errors.New("unit name must not be empty"))
			continue
		}
		if _, dup := g.index[e.Unit]; dup {
			problems = append(problems, fmt.Errorf("unit %q declared more than once", e.Unit))
			continue
		}
		g.index[e.Unit] = len(g.order)
		g.order = append(g.order, e.Unit)
		g.dependsOn[e.Unit] = dedupe(e.DependsOn)
	}

	for _, name := range g.order {
		var missing []string
		for _, dep := range g.dependsOn[name] {
			if _, ok := g.index[dep]; !ok {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			problems = append(problems, &UnknownDependencyError{Unit: name, Missing: missing})
		}
	}
	if len(problems) > 0 {
		return nil, NewConfigurationError(problems...)
	}

	for _, name := range g.order {
		for _, dep := range g.dependsOn[name] {
			g.dependents[dep] = append(g.dependents[dep], name)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, NewConfigurationError(&CircularDependencyError{Cycle: cycle})
	}
	return g, nil
}

// findCycle runs a depth-first walk colouring nodes white (unvisited), gray
// (on the current path) and black (done). Reaching a gray node closes a cycle.
func (g *DependencyGraph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.order))
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = gray
		path = append(path, name)
		for _, dep := range g.dependsOn[name] {
			switch color[dep] {
			case gray:
				start := slices.Index(path, dep)
				// each arrow reads "depends on"
				return append(slices.Clone(path[start:]), dep)
			case white:
				if c := visit(dep); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return nil
	}

	for _, name := range g.order {
		if color[name] == white {
			if c := visit(name); c != nil {
				return c
			}
		}
	}
	return nil
}

// Units returns unit names in declaration order.
func (g *DependencyGraph) Units() []string {
	return slices.Clone(g.order)
}

// DependsOn returns the prerequisites of name.
func (g *DependencyGraph) DependsOn(name string) []string {
	return slices.Clone(g.dependsOn[name])
}

// Dependents returns the units that list name as a prerequisite.
func (g *DependencyGraph) Dependents(name string) []string {
	return slices.Clone(g.dependents[name])
}

// Has reports whether name is a unit of the graph.
func (g *DependencyGraph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Len returns the number of units.
func (g *DependencyGraph) Len() int {
	return len(g.order)
}

// Position returns the declaration index of name, or -1.
func (g *DependencyGraph) Position(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	return -1
}

// TopologicalOrder returns every unit after all of its prerequisites,
// preferring declaration order among units that are free at the same time.
func (g *DependencyGraph) TopologicalOrder() []string {
	inDegree := make(map[string]int, len(g.order))
	for _, name := range g.order {
		inDegree[name] = len(g.dependsOn[name])
	}

	out := make([]string, 0, len(g.order))
	done := make(Set, len(g.order))
	for len(out) < len(g.order) {
		for _, name := range g.order {
			if done.Has(name) || inDegree[name] > 0 {
				continue
			}
			done.Add(name)
			out = append(out, name)
			for _, d := range g.dependents[name] {
				inDegree[d]--
			}
			break
		}
	}
	return out
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(Set, len(names))
	for _, n := range names {
		if !seen.Has(n) {
			seen.Add(n)
			out = append(out, n)
		}
	}
	return out
}
