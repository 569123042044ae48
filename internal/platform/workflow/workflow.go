// Package workflow validates status transitions for entities with a
// fixed lifecycle. Each domain declares its transition table once and
// checks every status change against it.
package workflow

import "github.com/hems/hems/internal/platform/apperror"

// Machine is an immutable transition table for one entity type.
type Machine struct {
	entity      string
	transitions map[string]map[string]bool
}

// New builds a machine from an adjacency list of allowed transitions.
// States that appear only as targets are terminal.
func New(entity string, table map[string][]string) *Machine {
	m := &Machine{entity: entity, transitions: make(map[string]map[string]bool, len(table))}
	for from, tos := range table {
		set := make(map[string]bool, len(tos))
		for _, to := range tos {
			set[to] = true
		}
		m.transitions[from] = set
	}
	return m
}

// Chain builds a machine from an ordered progression where any forward
// jump is allowed (a state may move to any later state in the chain).
// extra adds transitions outside the chain, such as cancellation paths.
func Chain(entity string, ordered []string, extra map[string][]string) *Machine {
	table := make(map[string][]string, len(ordered))
	for i, from := range ordered {
		table[from] = append(table[from], ordered[i+1:]...)
	}
	for from, tos := range extra {
		table[from] = append(table[from], tos...)
	}
	return New(entity, table)
}

// Check returns nil when the transition is allowed. A transition to the
// current state is treated as a no-op and always allowed; callers skip
// the write in that case. Anything else is an InvalidTransition error.
func (m *Machine) Check(from, to string) error {
	if from == to {
		return nil
	}
	if m.transitions[from][to] {
		return nil
	}
	return apperror.InvalidTransition("%s cannot move from %s to %s", m.entity, from, to)
}

// Terminal reports whether no transition leaves the state.
func (m *Machine) Terminal(state string) bool {
	return len(m.transitions[state]) == 0
}

// Known reports whether the state appears anywhere in the table.
func (m *Machine) Known(state string) bool {
	if _, ok := m.transitions[state]; ok {
		return true
	}
	for _, tos := range m.transitions {
		if tos[state] {
			return true
		}
	}
	return false
}
