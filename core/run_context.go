package core

import (
	"context"
	"maps"

	"github.com/askmesh/askmesh/logging"
)

// RunContext carries execution state & helpers for an assistant run.
// It encapsulates the mutable, per-invocation execution scope passed to an
// Assistant's Run method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, InvocationID, Assistant info)
//   - Input user Query
//   - The event emission channel
//   - The generation state tracker for this invocation
//   - The backing SessionStore, a working Session snapshot and pending
//     StateDelta
//
// State mutations performed via SetState accumulate in StateDelta until the
// next emitted event carries them to the engine.
type RunContext struct {
	Context                 context.Context
	SessionID, InvocationID string
	Assistant               AssistantInfo
	Query                   Content
	Emit                    chan<- Event
	SessionStore            SessionStore
	States                  *StateTracker
	Session                 *Session
	StateDelta              map[string]any

	*loggerAdapter
}

// NewRunContext constructs a RunContext with an empty state delta and a
// fresh state tracker starting at StateIdle.
func NewRunContext(
	ctx context.Context,
	sessionID, invocationID string,
	assistant AssistantInfo,
	query Content,
	emit chan<- Event,
	sess *Session,
	sessionStore SessionStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		InvocationID:  invocationID,
		Assistant:     assistant,
		Query:         query,
		Emit:          emit,
		Session:       sess,
		SessionStore:  sessionStore,
		States:        NewStateTracker(),
		StateDelta:    map[string]any{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(rc.StateDelta, d)
}

// GetSessionHistory returns all historical events for the session.
func (rc *RunContext) GetSessionHistory() []Event {
	if rc.Session == nil {
		return []Event{}
	}

	return rc.Session.GetEvents()
}

// GetAssistantName returns the logical assistant name for this invocation.
func (rc *RunContext) GetAssistantName() string { return rc.Assistant.Name }

// GetAssistantType returns a categorization label for the assistant.
func (rc *RunContext) GetAssistantType() string { return rc.Assistant.Type }

// Transition moves the state tracker and announces the new state as an
// event. The announcement is best effort ordered with surrounding content
// events since both flow through the same Emit channel.
func (rc *RunContext) Transition(to State) error {
	if err := rc.States.Transition(to); err != nil {
		return err
	}

	return rc.EmitEvent(NewStateEvent(rc.InvocationID, rc.Assistant.Name, to))
}

// EmitEvent merges pending StateDelta into the event and emits it.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}

	return nil
}

// EmitFinal emits an event without aborting on context cancellation. Use it
// for terminal announcements (interrupted, failed) that must reach the
// engine after the user cancelled; the engine keeps draining the emit
// channel until the run returns, so the send does not block indefinitely.
func (rc *RunContext) EmitFinal(ev Event) {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	rc.Emit <- ev
	rc.StateDelta = map[string]any{}
}
