package symbolic

import (
	"fmt"
	"sort"
	"strings"
)

// Constraint adds background rules to a model before it is solved.
type Constraint interface {
	Name() string
	Apply(m *Model)
}

// Explainer is implemented by constraints that can name the atoms they conflict on.
type Explainer interface {
	Explain(m *Model) []string
}

// ExclusivePerActionResource forbids two distinct roles from holding the same
// action on the same resource.
type ExclusivePerActionResource struct{}

func (ExclusivePerActionResource) Name() string {
	return "exclusive_per_action_resource"
}

// Apply adds a binary exclusion clause for every pair of roles sharing an
// (action, resource) pair.
func (c ExclusivePerActionResource) Apply(m *Model) {
	for _, group := range c.groups(m) {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				m.AddClause(-m.Variable(group[i]), -m.Variable(group[j]))
			}
		}
	}
}

// Explain lists the (action, resource) pairs claimed by more than one role.
func (c ExclusivePerActionResource) Explain(m *Model) []string {
	var out []string
	for _, group := range c.groups(m) {
		roles := make([]string, 0, len(group))
		for _, a := range group {
			roles = append(roles, a.Role)
		}
		out = append(out, fmt.Sprintf("Roles %s all hold %s on %s.",
			strings.Join(roles, ", "), group[0].Action, group[0].Resource))
	}
	return out
}

// groups returns the atoms sharing an (action, resource) pair with at least
// one other role, in a deterministic order.
func (ExclusivePerActionResource) groups(m *Model) [][]Atom {
	type pair struct{ action, resource string }
	byPair := make(map[pair][]Atom)
	var keys []pair
	for _, a := range m.Atoms() {
		k := pair{a.Action, a.Resource}
		if _, ok := byPair[k]; !ok {
			keys = append(keys, k)
		}
		byPair[k] = append(byPair[k], a)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].action != keys[j].action {
			return keys[i].action < keys[j].action
		}
		return keys[i].resource < keys[j].resource
	})

	var out [][]Atom
	for _, k := range keys {
		group := byPair[k]
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Role < group[j].Role })
		out = append(out, group)
	}
	return out
}
