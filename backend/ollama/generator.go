package ollama

import (
	"context"
	"fmt"

	"github.com/askmesh/askmesh/backend"
	"github.com/askmesh/askmesh/core"
)

// GeneratorOptions configure the Ollama backend adapter.
type GeneratorOptions struct {
	Model       string
	Temperature float64
	// GPULayers is the number of layers offloaded to the GPU. nil keeps the
	// runtime default (offload as much as fits); 0 forces CPU-only inference.
	GPULayers *int
	Client    *Client
}

// Generator wraps the local Ollama chat API behind the generic
// backend.Generator interface.
type Generator struct {
	client *Client
	opts   GeneratorOptions
}

// New creates a local engine generator with the runtime's default GPU
// offload (the accelerated backend on machines with a usable GPU).
func New(optFns ...func(o *GeneratorOptions)) *Generator {
	opts := GeneratorOptions{
		Model:       "llama3.2",
		Temperature: 0.7,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		opts.Client = NewClient()
	}
	return &Generator{client: opts.Client, opts: opts}
}

// NewCPU creates a local engine generator pinned to CPU-only inference.
// This is the last backend in the default preference order: slow, but it
// works on any machine the server runs on.
func NewCPU(optFns ...func(o *GeneratorOptions)) *Generator {
	g := New(optFns...)
	zero := 0
	g.opts.GPULayers = &zero
	return g
}

// Load implements Generator. It probes the server and verifies the model is
// installed; either failing is an initialization error that makes the
// orchestration layer fall back to the next backend.
func (g *Generator) Load(ctx context.Context) error {
	if err := g.client.CheckRunning(ctx); err != nil {
		return fmt.Errorf("ollama load: %w", err)
	}
	ok, err := g.client.HasModel(ctx, g.opts.Model)
	if err != nil {
		return fmt.Errorf("ollama load: %w", err)
	}
	if !ok {
		return fmt.Errorf("ollama load: %w", ErrModelNotFound)
	}
	return nil
}

// Generate implements streaming generation over the local chat API. Non
// streaming requests are served from the same stream by suppressing the
// partial chunks.
func (g *Generator) Generate(ctx context.Context, req backend.Request) (<-chan backend.Response, <-chan error) {
	out := make(chan backend.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		chatReq := ChatRequest{
			Model:    g.opts.Model,
			Messages: g.buildMessages(req),
			Options: &Options{
				Temperature: g.opts.Temperature,
				NumGPU:      g.opts.GPULayers,
			},
		}

		var full string
		var usage *backend.TokenUsage
		finish := "stop"

		err := g.client.ChatStream(ctx, chatReq, func(chunk ChatResponse) {
			if chunk.Done {
				if chunk.DoneReason != "" {
					finish = chunk.DoneReason
				}
				usage = &backend.TokenUsage{
					PromptTokens:     chunk.PromptEvalCount,
					CompletionTokens: chunk.EvalCount,
					TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
				}
				return
			}
			if chunk.Message.Content == "" {
				return
			}
			full += chunk.Message.Content
			if !req.Stream {
				return
			}
			select {
			case <-ctx.Done():
			case out <- backend.Response{
				Partial: true,
				Content: core.Content{
					Role:  "assistant",
					Parts: []core.Part{core.TextPart{Text: chunk.Message.Content}},
				},
			}:
			}
		})
		if err != nil {
			errCh <- err
			return
		}

		out <- backend.Response{
			Partial:      false,
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: full}}},
			FinishReason: finish,
			Usage:        usage,
		}
	}()

	return out, errCh
}

// buildMessages flattens normalized contents into chat messages, prefixing
// the request instructions as a system message.
func (g *Generator) buildMessages(req backend.Request) []Message {
	messages := make([]Message, 0, len(req.Contents)+1)
	if req.Instructions != "" {
		messages = append(messages, Message{Role: "system", Content: req.Instructions})
	}
	for _, c := range req.Contents {
		text := c.Text()
		if text == "" {
			continue
		}
		role := c.Role
		if role != "system" && role != "assistant" {
			role = "user"
		}
		messages = append(messages, Message{Role: role, Content: text})
	}
	return messages
}

// Info returns metadata describing this local backend implementation.
func (g *Generator) Info() backend.Info {
	accelerated := g.opts.GPULayers == nil || *g.opts.GPULayers > 0
	return backend.Info{
		Name:        g.opts.Model,
		Provider:    "ollama",
		Local:       true,
		Accelerated: accelerated,
	}
}
