package core

import (
	"fmt"
	"sync"
)

// State tracks the progress of a single answer request. A request starts
// idle, moves through model loading, search and generation, and ends in
// exactly one of the terminal states (completed, failed, interrupted).
type State int

const (
	// StateIdle is the initial state before an invocation starts work.
	StateIdle State = iota
	// StateLoading indicates a generation backend is being initialized.
	StateLoading
	// StateSearching indicates the search request is in flight.
	StateSearching
	// StateGenerating indicates answer tokens are being streamed.
	StateGenerating
	// StateCompleted is the terminal state of a successful run.
	StateCompleted
	// StateFailed is the terminal state after an unrecoverable error.
	StateFailed
	// StateInterrupted is the terminal state after user cancellation.
	StateInterrupted
)

// String returns the canonical lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSearching:
		return "searching"
	case StateGenerating:
		return "generating"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// ParseState converts a canonical state name back to a State.
func ParseState(name string) (State, error) {
	switch name {
	case "idle":
		return StateIdle, nil
	case "loading":
		return StateLoading, nil
	case "searching":
		return StateSearching, nil
	case "generating":
		return StateGenerating, nil
	case "completed":
		return StateCompleted, nil
	case "failed":
		return StateFailed, nil
	case "interrupted":
		return StateInterrupted, nil
	default:
		return StateIdle, fmt.Errorf("unknown generation state %q", name)
	}
}

// Terminal reports whether the state ends an invocation.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateInterrupted
}

// validNext encodes the legal transition set. Failed and interrupted are
// reachable from every non-terminal state so errors and cancellation can
// surface at any suspension point.
var validNext = map[State][]State{
	StateIdle:       {StateLoading, StateSearching, StateFailed, StateInterrupted},
	StateLoading:    {StateLoading, StateSearching, StateFailed, StateInterrupted},
	StateSearching:  {StateGenerating, StateFailed, StateInterrupted},
	StateGenerating: {StateCompleted, StateFailed, StateInterrupted},
}

// CanTransition reports whether moving from one state to another is legal.
// Loading may repeat (one entry per fallback hop across backends).
func CanTransition(from, to State) bool {
	for _, n := range validNext[from] {
		if n == to {
			return true
		}
	}
	return false
}

// StateTracker is a mutex-guarded holder for the generation state of one
// invocation. Observers registered via OnChange are called synchronously,
// in registration order, after each successful transition.
type StateTracker struct {
	mu        sync.Mutex
	current   State
	observers []func(from, to State)
}

// NewStateTracker creates a tracker starting at StateIdle.
func NewStateTracker() *StateTracker {
	return &StateTracker{current: StateIdle}
}

// Current returns the tracked state.
func (t *StateTracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// OnChange registers an observer invoked after every transition.
func (t *StateTracker) OnChange(fn func(from, to State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Transition moves the tracker to the given state, rejecting illegal moves.
// Transitioning to the current state is a no-op (no observer calls).
func (t *StateTracker) Transition(to State) error {
	t.mu.Lock()
	from := t.current
	if from == to && to != StateLoading {
		t.mu.Unlock()
		return nil
	}
	if !CanTransition(from, to) {
		t.mu.Unlock()
		return fmt.Errorf("illegal state transition %s -> %s", from, to)
	}
	t.current = to
	observers := make([]func(State, State), len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	for _, fn := range observers {
		fn(from, to)
	}
	return nil
}
