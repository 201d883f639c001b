package backend

import (
	"context"
	"fmt"

	"github.com/askmesh/askmesh/core"
)

// Request captures the normalized backend input produced by an assistant.
type Request struct {
	Instructions string         `json:"instructions"` // System instructions for the backend
	Contents     []core.Content `json:"contents"`     // Conversation history converted to provider messages
	Stream       bool           `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming backend.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a backend implementation.
type Info struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"` // "openai", "anthropic", "ollama", etc.
	Local       bool   `json:"local"`    // Runs on this machine rather than a remote API
	Accelerated bool   `json:"accelerated"`
}

// Generator is the minimal interface required by assistants to drive
// answer generation.
//
// Load initializes the backend (health probe, model warm-up). The
// orchestration layer calls it once per invocation before Generate; a Load
// error triggers fallback to the next backend in the preference order.
type Generator interface {
	Load(ctx context.Context) error

	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the backend implementation.
	Info() Info
}

// MockGenerator is a lightweight in-memory Generator useful for tests & examples.
type MockGenerator struct {
	info      Info
	responses map[string]string
	loadErr   error
}

// NewMockGenerator constructs a MockGenerator for the given name/provider.
func NewMockGenerator(name, provider string) *MockGenerator {
	return &MockGenerator{
		info: Info{
			Name:     name,
			Provider: provider,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockGenerator) AddResponse(prompt, response string) { m.responses[prompt] = response }

// FailLoad makes subsequent Load calls return err, simulating an
// initialization failure so fallback paths can be exercised.
func (m *MockGenerator) FailLoad(err error) { m.loadErr = err }

// Load implements Generator.
func (m *MockGenerator) Load(ctx context.Context) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	return ctx.Err()
}

// Generate implements Generator; emits optional streaming char chunks then a final response.
func (m *MockGenerator) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		last := req.Contents[len(req.Contents)-1]
		inputText := last.Text()
		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: string(r)}},
					},
				}:
				}
			}
		}
		respCh <- Response{
			Partial: false,
			Content: core.Content{
				Role:  "assistant",
				Parts: []core.Part{core.TextPart{Text: full}},
			},
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

// Info implements the Generator interface.
func (m *MockGenerator) Info() Info { return m.info }
