package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side-effects attached to an Event. All fields are
// optional so absence can be distinguished from zero values. The engine
// interprets these after persistence.
type EventActions struct {
	StateDelta map[string]any `json:"state_delta,omitempty"`
}

// Event is the primary unit of communication between assistants, the engine
// and external clients. After emission it should be treated as immutable.
// It captures:
//   - Correlation (InvocationID, ID, Author)
//   - Conversational content (optional role-based Parts)
//   - Generation state announcements (State)
//   - Session state mutations (Actions)
//   - Error / interruption metadata
//   - High precision UTC timestamp
//
// Content may be nil for state-change or error-only events.
type Event struct {
	ID           string            `json:"id"`
	InvocationID string            `json:"invocation_id"`
	Author       string            `json:"author"`
	Actions      EventActions      `json:"actions"`
	Timestamp    time.Time         `json:"timestamp"`
	Content      *Content          `json:"content,omitempty"`
	State        *State            `json:"state,omitempty"`
	Partial      *bool             `json:"partial,omitempty"`
	TurnComplete *bool             `json:"turn_complete,omitempty"`
	ErrorCode    *string           `json:"error_code,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Interrupted  *bool             `json:"interrupted,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
// Prefer helper constructors for common semantic categories.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
		Actions:      EventActions{},
	}
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, "user")
	e.Content = content
	return e
}

// NewStateEvent announces a generation state transition.
func NewStateEvent(invocationID, author string, state State) Event {
	e := NewEvent(invocationID, author)
	s := state
	e.State = &s
	return e
}

// NewAnswerDeltaEvent carries a coalesced streaming fragment of the answer.
// The text is the accumulated buffer so far, not an isolated delta, so
// consumers can render it directly without stitching.
func NewAnswerDeltaEvent(invocationID, author, accumulated string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: accumulated}}}
	partial := true
	e.Partial = &partial
	return e
}

// NewAnswerEvent carries the complete final answer for an invocation.
func NewAnswerEvent(invocationID, author, answer string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: answer}}}
	complete := true
	e.TurnComplete = &complete
	return e
}

// NewSearchResultsEvent records the retrieved documents for an invocation as
// a structured data part.
func NewSearchResultsEvent(invocationID, author string, results []SearchResult) Event {
	items := make([]any, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]any{
			"id":      r.ID,
			"title":   r.Title,
			"url":     r.URL,
			"content": r.Content,
			"score":   r.Score,
		})
	}
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{DataPart{Data: map[string]any{"results": items}}}}
	return e
}

// NewErrorEvent records a terminal error with a machine readable code.
func NewErrorEvent(invocationID, author, code string, err error) Event {
	e := NewEvent(invocationID, author)
	c := code
	msg := err.Error()
	e.ErrorCode = &c
	e.ErrorMessage = &msg
	return e
}

// NewInterruptedEvent marks an invocation as cancelled by the user.
func NewInterruptedEvent(invocationID, author string) Event {
	e := NewEvent(invocationID, author)
	interrupted := true
	e.Interrupted = &interrupted
	return e
}

// NewID generates a new unique identifier for events and invocations.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event represents a streaming fragment that
// will be followed by additional events composing the final answer.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// IsStateChange reports whether the event announces a state transition.
func (e Event) IsStateChange() bool { return e.State != nil }

// IsError reports whether the event carries terminal error metadata.
func (e Event) IsError() bool { return e.ErrorMessage != nil }

// Text returns the concatenated text content, or "" for content-free events.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Text()
}

// IsFinalResponse reports whether the event completes an assistant turn:
// non-partial, carrying content, not a pure state announcement.
func (e Event) IsFinalResponse() bool {
	return e.Content != nil && !e.IsPartial() && e.State == nil
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
