package testutil

import (
	"github.com/askmesh/askmesh/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder().Author("assistant").Invocation("inv-1").AssistantText("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	author       string
	invocationID string
	id           string
	role         string
	textParts    []string
	partial      *bool
	turnComplete *bool
	interrupted  *bool
	state        *core.State
	errorCode    *string
	errorMessage *string
	customParts  []core.Part
	actions      core.EventActions
}

// NewEventBuilder creates a builder with default author "assistant".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "assistant"} }

// Author sets the author name for the event (chainable).
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Invocation sets the invocation ID associated with the event (chainable).
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.invocationID = id; return b }

// ID overrides the auto-generated event ID (chainable). Use mainly in tests where determinism matters.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Partial marks the event as a streaming / partial chunk (chainable).
func (b *EventBuilder) Partial(p bool) *EventBuilder { b.partial = &p; return b }

// TurnComplete sets the TurnComplete flag indicating the answer is final (chainable).
func (b *EventBuilder) TurnComplete(c bool) *EventBuilder { b.turnComplete = &c; return b }

// Interrupted marks the event as a cancellation notice (chainable).
func (b *EventBuilder) Interrupted() *EventBuilder { t := true; b.interrupted = &t; return b }

// State attaches a generation state announcement (chainable).
func (b *EventBuilder) State(st core.State) *EventBuilder { b.state = &st; return b }

// Error attaches terminal error metadata (chainable).
func (b *EventBuilder) Error(code, msg string) *EventBuilder {
	b.errorCode = &code
	b.errorMessage = &msg
	return b
}

// UserText appends a user role text part and sets role to user (chainable).
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.role = "user"
	b.textParts = append(b.textParts, t)
	return b
}

// AssistantText appends an assistant role text part and sets role to assistant (chainable).
func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	b.role = "assistant"
	b.textParts = append(b.textParts, t)
	return b
}

// AddPart appends a custom content part (chainable).
func (b *EventBuilder) AddPart(p core.Part) *EventBuilder {
	b.customParts = append(b.customParts, p)
	return b
}

// SearchResults appends a structured data part carrying search results (chainable).
func (b *EventBuilder) SearchResults(results ...core.SearchResult) *EventBuilder {
	items := make([]any, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]any{
			"id":    r.ID,
			"title": r.Title,
			"url":   r.URL,
			"score": r.Score,
		})
	}
	b.customParts = append(b.customParts, core.DataPart{Data: map[string]any{"results": items}})
	return b
}

// StateDelta records a session state mutation on the event's actions (chainable).
func (b *EventBuilder) StateDelta(key string, val any) *EventBuilder {
	if b.actions.StateDelta == nil {
		b.actions.StateDelta = map[string]any{}
	}
	b.actions.StateDelta[key] = val
	return b
}

// Build constructs the core.Event value.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.invocationID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}
	ev.Partial = b.partial
	ev.TurnComplete = b.turnComplete
	ev.Interrupted = b.interrupted
	ev.State = b.state
	ev.ErrorCode = b.errorCode
	ev.ErrorMessage = b.errorMessage
	ev.Actions = b.actions

	parts := make([]core.Part, 0, len(b.textParts)+len(b.customParts))
	for _, t := range b.textParts {
		parts = append(parts, core.TextPart{Text: t})
	}
	parts = append(parts, b.customParts...)
	if len(parts) > 0 {
		role := b.role
		if role == "" {
			role = "assistant"
		}
		ev.Content = &core.Content{Role: role, Parts: parts}
	}
	return ev
}
