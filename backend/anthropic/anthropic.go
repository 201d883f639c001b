// Package anthropic provides a backend.Generator wrapper for the Anthropic
// Claude Messages API with streaming support.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/askmesh/askmesh/backend"
	"github.com/askmesh/askmesh/core"
)

// Options configures the Anthropic backend adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Generator wraps the Anthropic Messages API behind the generic
// backend.Generator interface.
type Generator struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic generator using the official client.
func New(optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Generator{
		client: &client,
		opts:   opts,
	}
}

// NewFromClient creates a new Anthropic generator from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Generator{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Load implements Generator. Remote chat APIs have no warm-up phase, so
// Load only validates configuration.
func (g *Generator) Load(ctx context.Context) error {
	if g.opts.Model == "" {
		return fmt.Errorf("anthropic: no model configured")
	}
	return ctx.Err()
}

// Generate implements unified streaming / non-streaming generation.
// It adapts the Anthropic Messages API into backend.Response events.
func (g *Generator) Generate(ctx context.Context, req backend.Request) (<-chan backend.Response, <-chan error) {
	out := make(chan backend.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       g.opts.Model,
			Messages:    g.buildMessages(req.Contents),
			MaxTokens:   g.opts.MaxTokens,
			Temperature: anthropic.Float(g.opts.Temperature),
		}

		if system := g.buildSystem(req); len(system) > 0 {
			params.System = system
		}

		if req.Stream {
			g.handleStreaming(ctx, params, out, errCh)
			return
		}

		resp, err := g.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.AsText().Text)
			}
		}

		out <- backend.Response{
			Partial:      false,
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text.String()}}},
			FinishReason: string(resp.StopReason),
			Usage: &backend.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}
	}()

	return out, errCh
}

// handleStreaming forwards text deltas as partial responses followed by a
// final accumulated response.
func (g *Generator) handleStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- backend.Response,
	errCh chan<- error,
) {
	stream := g.client.Messages.NewStreaming(ctx, params)

	var textBuilder strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text == "" {
					continue
				}
				textBuilder.WriteString(deltaVariant.Text)
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- backend.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: deltaVariant.Text}},
					},
				}:
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}

	out <- backend.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: textBuilder.String()}}},
		FinishReason: "stop",
	}
}

// buildMessages converts normalized contents into Anthropic messages.
// System-role contents are handled separately via buildSystem.
func (g *Generator) buildMessages(contents []core.Content) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, c := range contents {
		text := c.Text()
		if text == "" || c.Role == "system" {
			continue
		}
		if c.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
	}
	return messages
}

// buildSystem collects the request instructions plus any system-role
// contents into Anthropic system blocks.
func (g *Generator) buildSystem(req backend.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, c := range req.Contents {
		if c.Role != "system" {
			continue
		}
		if text := c.Text(); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}
	return blocks
}

// Info returns metadata describing this Anthropic backend implementation.
func (g *Generator) Info() backend.Info {
	return backend.Info{
		Name:     string(g.opts.Model),
		Provider: "anthropic",
	}
}
