package job

import "sort"

// defaultTransitions lists the reachable statuses for each canonical status.
// Every status may transition to itself; completed and cancelled are terminal.
var defaultTransitions = map[Status][]Status{
	StatusPending:   {StatusPending, StatusInTransit, StatusCompleted, StatusCancelled},
	StatusInTransit: {StatusInTransit, StatusCompleted, StatusCancelled},
	StatusCompleted: {StatusCompleted},
	StatusCancelled: {StatusCancelled},
}

// DefaultStatuses is the canonical allowed-status set.
func DefaultStatuses() []Status {
	return []Status{StatusPending, StatusInTransit, StatusCompleted, StatusCancelled}
}

// Policy is the transition table intersected with the configured status set.
type Policy struct {
	allowed map[Status]bool
}

// NewPolicy restricts transitions to the given statuses. An empty list means
// the canonical set.
func NewPolicy(statuses []Status) *Policy {
	if len(statuses) == 0 {
		statuses = DefaultStatuses()
	}
	p := &Policy{allowed: make(map[Status]bool, len(statuses))}
	for _, s := range statuses {
		p.allowed[s] = true
	}
	return p
}

// ParseStatuses converts configured names to a status list.
func ParseStatuses(names []string) []Status {
	out := make([]Status, 0, len(names))
	for _, n := range names {
		out = append(out, Status(n))
	}
	return out
}

// Allowed reports whether s belongs to the configured status set.
func (p *Policy) Allowed(s Status) bool {
	return p.allowed[s]
}

// Statuses returns the configured set in sorted order.
func (p *Policy) Statuses() []Status {
	out := make([]Status, 0, len(p.allowed))
	for s := range p.allowed {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllowedDestinations returns the statuses reachable from current. Unknown
// statuses may only stay where they are.
func (p *Policy) AllowedDestinations(current Status) map[Status]bool {
	targets, ok := defaultTransitions[current]
	if !ok {
		targets = []Status{current}
	}
	dest := make(map[Status]bool, len(targets))
	for _, s := range targets {
		if p.allowed[s] {
			dest[s] = true
		}
	}
	return dest
}

// CanTransition reports whether moving from current to requested is permitted.
func (p *Policy) CanTransition(current, requested Status) bool {
	return p.AllowedDestinations(current)[requested]
}
