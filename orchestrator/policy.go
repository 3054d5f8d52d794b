package orchestrator

import "sort"

// ParallelPolicy decides whether a unit may start next to the running ones.
// Units in any parallel group are parallel-capable; all others are exclusive
// and only run alone.
type ParallelPolicy struct {
	groups  map[string][]string
	capable Set
}

// NewParallelPolicy builds a policy from named groups. Group names are
// informational only.
func NewParallelPolicy(groups map[string][]string) *ParallelPolicy {
	p := &ParallelPolicy{
		groups:  make(map[string][]string, len(groups)),
		capable: make(Set),
	}
	for name, members := range groups {
		p.groups[name] = append([]string(nil), members...)
		for _, m := range members {
			p.capable.Add(m)
		}
	}
	return p
}

// IsParallelCapable reports whether name belongs to a parallel group.
func (p *ParallelPolicy) IsParallelCapable(name string) bool {
	return p.capable.Has(name)
}

// CanRunConcurrently reports whether candidate may start while running is
// in flight. An exclusive candidate needs an idle pool; a parallel-capable
// candidate is refused only while an exclusive unit runs.
func (p *ParallelPolicy) CanRunConcurrently(candidate string, running Set) bool {
	if !p.IsParallelCapable(candidate) {
		return running.Len() == 0
	}
	for name := range running {
		if !p.IsParallelCapable(name) {
			return false
		}
	}
	return true
}

// Groups returns the group names in lexical order.
func (p *ParallelPolicy) Groups() []string {
	names := make([]string, 0, len(p.groups))
	for name := range p.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Members returns the units of a group.
func (p *ParallelPolicy) Members(group string) []string {
	return append([]string(nil), p.groups[group]...)
}
