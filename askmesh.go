// Package askmesh provides a high-level facade over the core Engine and
// service abstractions (sessions, search, backends & logging) for building
// search-grounded answer streaming into an application. Most applications
// interact with this package by:
//  1. Creating an AskMesh via New() (optionally overriding defaults)
//  2. Registering one or more assistants, or using NewFromSettings which
//     wires the default search assistant from a settings file
//  3. Asking questions asynchronously (Ask) or synchronously (AskSync)
//  4. Interrupting in-flight answers via Interrupt
//
// The facade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable session
// store and a structured logger.
package askmesh

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/askmesh/askmesh/assistant"
	"github.com/askmesh/askmesh/backend"
	"github.com/askmesh/askmesh/backend/anthropic"
	"github.com/askmesh/askmesh/backend/ollama"
	"github.com/askmesh/askmesh/backend/openai"
	"github.com/askmesh/askmesh/core"
	"github.com/askmesh/askmesh/engine"
	"github.com/askmesh/askmesh/logging"
	"github.com/askmesh/askmesh/search"
	"github.com/askmesh/askmesh/session"
	"github.com/askmesh/askmesh/settings"
)

// DefaultAssistantName is the name used for the assistant wired up by
// NewFromSettings.
const DefaultAssistantName = "search"

// Options configures the AskMesh instance.
type Options struct {
	// EngineConfig tunes concurrency and buffering.
	EngineConfig engine.Config

	// SessionStore persists conversations (defaults to in-memory).
	SessionStore core.SessionStore

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// AskMesh is the high-level facade aggregating the underlying engine and
// services.
type AskMesh struct {
	opts   Options
	engine core.Engine
}

// New creates a new AskMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *AskMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.Logger = opts.Logger
	})

	return &AskMesh{opts: opts, engine: e}
}

// NewFromSettings creates an AskMesh with the default search assistant
// fully wired from a settings value: backend candidates in the configured
// preference order, the configured search provider and UI flush rate.
func NewFromSettings(s *settings.Settings, optFns ...func(o *Options)) *AskMesh {
	m := New(optFns...)
	m.RegisterAssistant(assistant.New(
		DefaultAssistantName,
		BuildProvider(s),
		BuildCandidates(s),
		func(o *assistant.Options) {
			o.MaxResults = s.Search.MaxResults
			o.FlushesPerSecond = s.UI.FlushesPerSecond
		},
	))
	return m
}

// BuildCandidates constructs the backend candidate list from the settings
// preference order. Unknown names are skipped; the assistant falls back
// through the remaining candidates on load failures.
func BuildCandidates(s *settings.Settings) []assistant.Candidate {
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: s.Local.OllamaURL})

	candidates := make([]assistant.Candidate, 0, len(s.Backends.Preference))
	for _, name := range s.Backends.Preference {
		switch name {
		case "remote":
			candidates = append(candidates, assistant.Candidate{
				Name:      name,
				Generator: buildRemote(s),
			})
		case "accelerated":
			candidates = append(candidates, assistant.Candidate{
				Name: name,
				Generator: ollama.New(func(o *ollama.GeneratorOptions) {
					o.Model = s.Local.Model
					o.Client = client
					o.GPULayers = s.Local.GPULayers
				}),
			})
		case "cpu":
			candidates = append(candidates, assistant.Candidate{
				Name: name,
				Generator: ollama.NewCPU(func(o *ollama.GeneratorOptions) {
					o.Model = s.Local.Model
					o.Client = client
				}),
			})
		}
	}
	return candidates
}

// buildRemote selects the remote adapter by the configured provider name.
func buildRemote(s *settings.Settings) backend.Generator {
	if s.Remote.Provider == "anthropic" {
		return anthropic.New(func(o *anthropic.Options) {
			if s.Remote.Model != "" {
				o.Model = anthropicsdk.Model(s.Remote.Model)
			}
			o.APIKey = s.Remote.APIKey
		})
	}
	return openai.New(func(o *openai.Options) {
		if s.Remote.Model != "" {
			o.Model = s.Remote.Model
		}
		o.BaseURL = s.Remote.BaseURL
		o.APIKey = s.Remote.APIKey
	})
}

// BuildProvider constructs the search provider named by the settings. The
// "index" provider starts empty; callers index documents through the
// returned value before asking.
func BuildProvider(s *settings.Settings) search.Provider {
	if s.Search.Provider == "searxng" {
		return search.NewSearx(s.Search.SearxURL)
	}
	return search.NewIndex()
}

// TextQuery wraps a plain string into user query content.
func TextQuery(text string) core.Content {
	return core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}
}

// RegisterAssistant adds an assistant to the underlying engine.
func (m *AskMesh) RegisterAssistant(a core.Assistant) { m.engine.Register(a) }

// Ask starts an asynchronous invocation returning the invocation id plus
// event & error channels.
func (m *AskMesh) Ask(
	ctx context.Context,
	sessionID string,
	assistantName string,
	query core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return m.engine.Ask(ctx, sessionID, assistantName, query)
}

// AskText is a convenience wrapper turning a plain string into a user
// query content.
func (m *AskMesh) AskText(
	ctx context.Context,
	sessionID string,
	assistantName string,
	text string,
) (string, <-chan core.Event, <-chan error, error) {
	return m.engine.Ask(ctx, sessionID, assistantName, TextQuery(text))
}

// AskSync is a synchronous helper that drains the async channels,
// accumulates events and returns the invocation id.
func (m *AskMesh) AskSync(
	ctx context.Context,
	sessionID string,
	assistantName string,
	query core.Content,
) (string, []core.Event, error) {
	return m.engine.AskSync(ctx, sessionID, assistantName, query)
}

// GetSession retrieves a point-in-time snapshot of a session from the
// configured store.
func (m *AskMesh) GetSession(sessionID string) (*core.Session, error) {
	return m.opts.SessionStore.Get(sessionID)
}

// Interrupt requests cooperative termination of an in-flight invocation.
// The text generated so far stays in the session history.
func (m *AskMesh) Interrupt(invocationID string) error {
	return m.engine.Interrupt(invocationID)
}
