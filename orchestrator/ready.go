package orchestrator

import (
	"slices"
	"sort"
)

// ReadySetResolver computes which units may start now.
type ReadySetResolver struct {
	graph      *DependencyGraph
	priorities map[string]int
}

// NewReadySetResolver returns a resolver over graph. Units missing from
// priorities have priority 0.
func NewReadySetResolver(graph *DependencyGraph, priorities map[string]int) *ReadySetResolver {
	p := make(map[string]int, len(priorities))
	for k, v := range priorities {
		p[k] = v
	}
	return &ReadySetResolver{graph: graph, priorities: p}
}

// Ready returns the units that are in none of the given sets and whose
// prerequisites have all completed. Higher priority comes first; equal
// priorities keep declaration order.
func (r *ReadySetResolver) Ready(completed, failed, running Set) []string {
	var ready []string
	for _, name := range r.graph.order {
		if completed.Has(name) || failed.Has(name) || running.Has(name) {
			continue
		}
		if r.satisfied(name, completed) {
			ready = append(ready, name)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return r.priorities[ready[i]] > r.priorities[ready[j]]
	})
	return ready
}

func (r *ReadySetResolver) satisfied(name string, completed Set) bool {
	for _, dep := range r.graph.dependsOn[name] {
		if !completed.Has(dep) {
			return false
		}
	}
	return true
}

// Blocked returns, for every unit that can never become ready, the failed or
// skipped units that block it, directly or through other blocked units.
// Blockers are listed in declaration order.
func (r *ReadySetResolver) Blocked(failed, skipped Set) map[string][]string {
	roots := make(map[string]Set, r.graph.Len())
	out := make(map[string][]string)

	for _, name := range r.graph.TopologicalOrder() {
		if failed.Has(name) || skipped.Has(name) {
			continue
		}
		blockers := make(Set)
		for _, dep := range r.graph.dependsOn[name] {
			if failed.Has(dep) || skipped.Has(dep) {
				blockers.Add(dep)
				continue
			}
			for b := range roots[dep] {
				blockers.Add(b)
			}
		}
		if blockers.Len() == 0 {
			continue
		}
		roots[name] = blockers
		list := make([]string, 0, blockers.Len())
		for b := range blockers {
			list = append(list, b)
		}
		slices.SortFunc(list, func(a, b string) int {
			return r.graph.Position(a) - r.graph.Position(b)
		})
		out[name] = list
	}
	return out
}
