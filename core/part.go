package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., a search results payload).
type DataPart struct {
	Data     map[string]any // Structured key/value payload
	Metadata map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // Conversation role (user, assistant, system,...)
	Parts []Part `json:"parts"`          // Ordered heterogeneous parts
}

// Text concatenates all text parts in order. Data parts are skipped.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// partEnvelope is the typed wire form for a Part. Events must survive a
// round trip through the durable session store, so parts serialize with an
// explicit type tag rather than relying on interface marshaling.
type partEnvelope struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler for Content.
func (c Content) MarshalJSON() ([]byte, error) {
	envs := make([]partEnvelope, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch v := p.(type) {
		case TextPart:
			envs = append(envs, partEnvelope{Type: "text", Text: v.Text, Metadata: v.Metadata})
		case DataPart:
			envs = append(envs, partEnvelope{Type: "data", Data: v.Data, Metadata: v.Metadata})
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
	}
	return json.Marshal(struct {
		Role  string         `json:"role,omitempty"`
		Parts []partEnvelope `json:"parts"`
	}{Role: c.Role, Parts: envs})
}

// UnmarshalJSON implements json.Unmarshaler for Content.
func (c *Content) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string         `json:"role"`
		Parts []partEnvelope `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Role = raw.Role
	c.Parts = make([]Part, 0, len(raw.Parts))
	for _, env := range raw.Parts {
		switch env.Type {
		case "text":
			c.Parts = append(c.Parts, TextPart{Text: env.Text, Metadata: env.Metadata})
		case "data":
			c.Parts = append(c.Parts, DataPart{Data: env.Data, Metadata: env.Metadata})
		default:
			return fmt.Errorf("unsupported part type %q", env.Type)
		}
	}
	return nil
}
