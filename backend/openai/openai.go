// Package openai provides an implementation of backend.Generator using the
// OpenAI Chat Completions API (including streaming). Because the Chat
// Completions wire format is a de-facto standard, this adapter also covers
// any OpenAI-compatible endpoint via the BaseURL option.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/askmesh/askmesh/backend"
	"github.com/askmesh/askmesh/core"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI backend adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	BaseURL             string // Override for OpenAI-compatible endpoints
	APIKey              string
}

// Generator wraps the OpenAI Chat Completions API behind the generic
// backend.Generator interface.
type Generator struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI generator using the official client.
func New(optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)
	return &Generator{client: &client, opts: opts}
}

// NewFromClient creates a new OpenAI generator from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Load implements Generator. Remote chat APIs have no warm-up phase, so
// Load only validates configuration; credential or connectivity problems
// surface on the first Generate call.
func (g *Generator) Load(ctx context.Context) error {
	if g.opts.Model == "" {
		return fmt.Errorf("openai: no model configured")
	}
	return ctx.Err()
}

// Generate implements unified streaming / non-streaming generation.
// It adapts OpenAI Chat Completions into backend.Response events.
func (g *Generator) Generate(ctx context.Context, req backend.Request) (<-chan backend.Response, <-chan error) {
	out := make(chan backend.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := g.buildParams(req)
		if req.Stream {
			g.handleStreaming(ctx, params, out, errCh)
			return
		}
		g.handleNonStreaming(ctx, params, out, errCh)
	}()
	return out, errCh
}

// buildMessages converts normalized contents into OpenAI chat messages.
func buildMessages(req backend.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, c := range req.Contents {
		text := c.Text()
		if text == "" {
			continue
		}
		switch c.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(text))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(text))
		default:
			messages = append(messages, openai.UserMessage(text))
		}
	}
	return messages
}

// buildParams assembles the OpenAI request parameters.
func (g *Generator) buildParams(req backend.Request) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	}
}

// handleStreaming processes streaming responses and forwards partial / final events.
func (g *Generator) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- backend.Response,
	errCh chan<- error,
) {
	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	var textBuilder strings.Builder
	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- backend.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: ch.Delta.Content}},
					},
				}:
				}
			}
			if ch.FinishReason != "" {
				out <- backend.Response{
					Partial:      false,
					Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: textBuilder.String()}}},
					FinishReason: ch.FinishReason,
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (g *Generator) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- backend.Response,
	errCh chan<- error,
) {
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}
	ch0 := resp.Choices[0]
	usage := &backend.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	out <- backend.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: ch0.Message.Content}}},
		FinishReason: ch0.FinishReason,
		Usage:        usage,
	}
}

// Info returns metadata describing this OpenAI backend implementation.
func (g *Generator) Info() backend.Info {
	return backend.Info{
		Name:     g.opts.Model,
		Provider: "openai",
	}
}
