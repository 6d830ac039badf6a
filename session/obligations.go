package session

import "context"

// ObligationKind identifies the class of resource an obligation removes.
type ObligationKind string

const (
	ObligationBranch      ObligationKind = "branch"
	ObligationRun         ObligationKind = "run"
	ObligationDeployments ObligationKind = "deployments"
)

// Obligation is one created resource that must be removed on teardown. The
// Remove closure is registered at creation time, so teardown needs no
// knowledge of how the resource came to exist.
type Obligation struct {
	Kind        ObligationKind
	Description string
	Remove      func(ctx context.Context) error
}

// ObligationStack is the session's append-only record of created resources.
// Entries are appended during the forward phase and drained in reverse
// creation order during teardown. The engine is single-tasked, so no lock
// guards the slice.
type ObligationStack struct {
	items []Obligation
}

// NewObligationStack returns an empty stack.
func NewObligationStack() *ObligationStack {
	return &ObligationStack{}
}

// Add appends an obligation.
func (s *ObligationStack) Add(o Obligation) {
	s.items = append(s.items, o)
}

// Len returns the number of outstanding obligations.
func (s *ObligationStack) Len() int {
	return len(s.items)
}

// Pending lists outstanding obligation descriptions, newest first.
func (s *ObligationStack) Pending() []string {
	out := make([]string, 0, len(s.items))
	for i := len(s.items) - 1; i >= 0; i-- {
		out = append(out, s.items[i].Description)
	}
	return out
}

// Resolve removes and returns the newest obligation of the given kind, or
// nil when none is outstanding. Used when a resource is removed early,
// before teardown runs.
func (s *ObligationStack) Resolve(kind ObligationKind) *Obligation {
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].Kind == kind {
			o := s.items[i]
			s.items = append(s.items[:i], s.items[i+1:]...)
			return &o
		}
	}
	return nil
}

// Restore reinserts an obligation at the bottom of the stack, preserving
// its original teardown position after a failed early removal.
func (s *ObligationStack) Restore(o Obligation) {
	s.items = append([]Obligation{o}, s.items...)
}

// Drain empties the stack and returns the obligations in reverse creation
// order. A second Drain returns nothing, which is what makes teardown
// idempotent.
func (s *ObligationStack) Drain() []Obligation {
	out := make([]Obligation, 0, len(s.items))
	for i := len(s.items) - 1; i >= 0; i-- {
		out = append(out, s.items[i])
	}
	s.items = s.items[:0]
	return out
}
