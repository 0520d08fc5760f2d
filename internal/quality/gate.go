// Package quality scores hierarchies against the configured threshold
// and tracks the gate state machine driving the rework loop.
package quality

import (
	"fmt"
	"sync"
)

// GateState is the review state of one subject (a hierarchy or a
// subtree root).
type GateState string

const (
	// GateDraft means the subject has never been validated.
	GateDraft GateState = "draft"
	// GateValidating means a validation pass is in progress.
	GateValidating GateState = "validating"
	// GatePassed is terminal success.
	GatePassed GateState = "passed"
	// GateFailed means the last validation failed; the subject may
	// still be reworked.
	GateFailed GateState = "failed"
	// GateReworked means failing subtrees were regenerated and the
	// subject awaits re-validation.
	GateReworked GateState = "reworked"
	// GateFailedFinal is terminal failure: the rework budget ran out.
	GateFailedFinal GateState = "failed_final"
)

// Valid returns true if the state is a known value.
func (s GateState) Valid() bool {
	switch s {
	case GateDraft, GateValidating, GatePassed, GateFailed, GateReworked, GateFailedFinal:
		return true
	default:
		return false
	}
}

// Terminal returns true for states the gate can never leave.
func (s GateState) Terminal() bool {
	return s == GatePassed || s == GateFailedFinal
}

// Gate tracks the review state and rework count for one subject.
// Transitions are explicit; an out-of-order transition is an error so
// the loop's termination bound stays checkable.
type Gate struct {
	mu        sync.Mutex
	subjectID string
	state     GateState
	reworks   int
}

// NewGate creates a gate in Draft for the given subject.
func NewGate(subjectID string) *Gate {
	return &Gate{subjectID: subjectID, state: GateDraft}
}

// State returns the current gate state.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// ReworkCount returns how many rework cycles the subject has had.
func (g *Gate) ReworkCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reworks
}

// Submit moves Draft or Reworked to Validating.
func (g *Gate) Submit() error {
	return g.transition(GateValidating, GateDraft, GateReworked)
}

// Pass moves Validating to the terminal Passed state.
func (g *Gate) Pass() error {
	return g.transition(GatePassed, GateValidating)
}

// Fail moves Validating to Failed.
func (g *Gate) Fail() error {
	return g.transition(GateFailed, GateValidating)
}

// Rework moves Failed to Reworked and increments the rework count.
func (g *Gate) Rework() error {
	if err := g.transition(GateReworked, GateFailed); err != nil {
		return err
	}
	g.mu.Lock()
	g.reworks++
	g.mu.Unlock()
	return nil
}

// Exhaust moves Failed to the terminal FailedFinal state.
func (g *Gate) Exhaust() error {
	return g.transition(GateFailedFinal, GateFailed)
}

func (g *Gate) transition(to GateState, from ...GateState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, f := range from {
		if g.state == f {
			g.state = to
			return nil
		}
	}
	return fmt.Errorf("gate %s: invalid transition %s -> %s", g.subjectID, g.state, to)
}
