package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/askmesh/askmesh/backend"
	"github.com/askmesh/askmesh/core"
	"github.com/askmesh/askmesh/logging"
	"github.com/askmesh/askmesh/search"
)

// domainLogger is the richer logging surface implemented by
// logging.AskMeshLogger. The assistant uses it when available and falls
// back to the minimal Logger interface otherwise.
type domainLogger interface {
	LogSearch(provider string, results int, dur time.Duration, err error)
	LogBackendCall(backend string, tokens int, dur time.Duration, success bool, err error)
	LogGeneration(backend, terminalState string, flushes int, dur time.Duration, err error)
}

var _ domainLogger = (*logging.AskMeshLogger)(nil)

// Candidate pairs a backend name with its Generator. Candidates are tried
// in slice order; the first whose Load succeeds handles the invocation.
type Candidate struct {
	Name      string
	Generator backend.Generator
}

// Options configures a SearchAssistant instance.
//
// Use functional options with New to override defaults.
type Options struct {
	// Instruction is the system prompt prefix sent to the backend.
	Instruction string
	// MaxResults caps search documents passed to the generator.
	MaxResults int
	// FlushesPerSecond caps streamed answer updates; 0 disables the cap.
	FlushesPerSecond float64
	// MaxHistoryMessages bounds conversation history sent to the backend.
	MaxHistoryMessages int
	// LoadTimeout bounds a single backend's Load attempt.
	LoadTimeout time.Duration
}

// SearchAssistant answers queries by searching first and generating an
// answer grounded on the results. One Run call serves one invocation and
// drives the state tracker to a terminal state before returning.
type SearchAssistant struct {
	name        string
	description string
	candidates  []Candidate
	provider    search.Provider

	instruction        string
	maxResults         int
	flushesPerSecond   float64
	maxHistoryMessages int
	loadTimeout        time.Duration
}

// New creates a SearchAssistant with sensible defaults.
//
// The assistant is initialized with:
//   - A generic grounded-answer system prompt
//   - 5 search documents per query
//   - 12 streamed answer updates per second
//   - 20-message conversation history limit
//   - 10-second per-backend load timeout
func New(name string, provider search.Provider, candidates []Candidate, optFns ...func(o *Options)) *SearchAssistant {
	opts := Options{
		Instruction: "You are a search assistant. Answer the user's question using the " +
			"provided search results. Cite sources by URL when relevant. If the results " +
			"do not contain the answer, say so.",
		MaxResults:         search.DefaultLimit,
		FlushesPerSecond:   core.DefaultFlushesPerSecond,
		MaxHistoryMessages: 20,
		LoadTimeout:        10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &SearchAssistant{
		name:               name,
		description:        fmt.Sprintf("Search assistant %s", name),
		candidates:         candidates,
		provider:           provider,
		instruction:        opts.Instruction,
		maxResults:         opts.MaxResults,
		flushesPerSecond:   opts.FlushesPerSecond,
		maxHistoryMessages: opts.MaxHistoryMessages,
		loadTimeout:        opts.LoadTimeout,
	}
}

// Name returns the assistant's external identifier.
func (a *SearchAssistant) Name() string { return a.name }

// Description returns a human-readable summary of the assistant.
func (a *SearchAssistant) Description() string { return a.description }

// Run executes the search-then-generate pipeline for one invocation.
//
// Cancellation is honored at every suspension point: a cancelled context
// lands the invocation in the interrupted state, any other error in the
// failed state. Both are announced through the emit channel before Run
// returns, and an interrupted run keeps the answer text streamed so far.
func (a *SearchAssistant) Run(runCtx *core.RunContext) (err error) {
	start := time.Now()
	var genName string
	var flushes int
	defer func() {
		if dl, ok := runCtx.Logger().(domainLogger); ok {
			dl.LogGeneration(genName, runCtx.States.Current().String(), flushes, time.Since(start), err)
		}
	}()

	gen, name, serr := a.selectBackend(runCtx)
	if serr != nil {
		return a.finish(runCtx, "backend_unavailable", serr, "")
	}
	genName = name
	runCtx.SetState("backend", genName)

	results, rerr := a.runSearch(runCtx)
	if rerr != nil {
		return a.finish(runCtx, "search_failed", rerr, "")
	}

	partial, n, gerr := a.generate(runCtx, gen, results)
	flushes = n
	if gerr != nil {
		return a.finish(runCtx, "generation_failed", gerr, partial)
	}
	return nil
}

// selectBackend walks the candidate list and returns the first generator
// that loads. The loading state is re-entered for every fallback hop so the
// frontend can show which backend is warming up.
func (a *SearchAssistant) selectBackend(runCtx *core.RunContext) (backend.Generator, string, error) {
	if len(a.candidates) == 0 {
		return nil, "", errors.New("no backend candidates configured")
	}

	var lastErr error
	for _, c := range a.candidates {
		if err := runCtx.Transition(core.StateLoading); err != nil {
			return nil, "", err
		}

		loadCtx, cancel := context.WithTimeout(runCtx.Context, a.loadTimeout)
		err := c.Generator.Load(loadCtx)
		cancel()

		if err == nil {
			runCtx.LogInfo("assistant.backend.selected",
				"assistant", a.name,
				"backend", c.Name,
			)
			return c.Generator, c.Name, nil
		}
		if runCtx.Err() != nil {
			return nil, "", runCtx.Err()
		}

		runCtx.LogWarn("assistant.backend.load_failed",
			"assistant", a.name,
			"backend", c.Name,
			"error", err.Error(),
		)
		lastErr = err
	}
	return nil, "", fmt.Errorf("all backends failed to load: %w", lastErr)
}

// runSearch queries the provider and announces the results. A nil provider
// skips the search but still walks through the searching state so the state
// machine stays uniform.
func (a *SearchAssistant) runSearch(runCtx *core.RunContext) ([]core.SearchResult, error) {
	if err := runCtx.Transition(core.StateSearching); err != nil {
		return nil, err
	}
	if a.provider == nil {
		return nil, nil
	}

	start := time.Now()
	results, err := a.provider.Search(runCtx.Context, runCtx.Query.Text(), a.maxResults)
	if dl, ok := runCtx.Logger().(domainLogger); ok {
		dl.LogSearch(a.provider.Name(), len(results), time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("search via %s: %w", a.provider.Name(), err)
	}

	runCtx.LogDebug("assistant.search.done",
		"assistant", a.name,
		"provider", a.provider.Name(),
		"results", len(results),
		"duration", time.Since(start).String(),
	)

	if err := runCtx.EmitEvent(core.NewSearchResultsEvent(runCtx.InvocationID, a.name, results)); err != nil {
		return nil, err
	}
	return results, nil
}

// generate streams the answer from the chosen backend, pacing delta events
// through the flush gate. The final answer event bypasses the gate so the
// frontend always receives the complete text. It returns the answer text
// accumulated so far (even on error, so interruption can preserve it) plus
// the number of delta flushes that passed the gate.
func (a *SearchAssistant) generate(runCtx *core.RunContext, gen backend.Generator, results []core.SearchResult) (string, int, error) {
	if err := runCtx.Transition(core.StateGenerating); err != nil {
		return "", 0, err
	}

	req := backend.Request{
		Instructions: a.buildInstructions(results),
		Contents:     a.buildContents(runCtx),
		Stream:       true,
	}

	genStart := time.Now()
	respCh, errCh := gen.Generate(runCtx.Context, req)
	gate := core.NewFlushGate(a.flushesPerSecond)

	var accumulated strings.Builder
	var final *backend.Response
	flushes := 0

	for resp := range respCh {
		if resp.Partial {
			accumulated.WriteString(resp.Content.Text())
			if gate.Allow() {
				flushes++
				if err := runCtx.EmitEvent(core.NewAnswerDeltaEvent(runCtx.InvocationID, a.name, accumulated.String())); err != nil {
					return accumulated.String(), flushes, err
				}
			}
			continue
		}
		rc := resp
		final = &rc
	}

	genErr := <-errCh
	if dl, ok := runCtx.Logger().(domainLogger); ok {
		tokens := 0
		if final != nil && final.Usage != nil {
			tokens = final.Usage.TotalTokens
		}
		dl.LogBackendCall(gen.Info().Name, tokens, time.Since(genStart), genErr == nil, genErr)
	}
	if genErr != nil {
		return accumulated.String(), flushes, genErr
	}
	if runCtx.Err() != nil {
		return accumulated.String(), flushes, runCtx.Err()
	}
	if final == nil {
		return accumulated.String(), flushes, errors.New("backend stream ended without a final response")
	}

	answer := final.Content.Text()
	if answer == "" {
		answer = accumulated.String()
	}
	if err := runCtx.EmitEvent(core.NewAnswerEvent(runCtx.InvocationID, a.name, answer)); err != nil {
		return answer, flushes, err
	}

	if final.Usage != nil {
		runCtx.LogDebug("assistant.generate.usage",
			"assistant", a.name,
			"prompt_tokens", final.Usage.PromptTokens,
			"completion_tokens", final.Usage.CompletionTokens,
		)
	}
	runCtx.LogInfo("assistant.generate.done",
		"assistant", a.name,
		"flushes", flushes,
		"chars", len(answer),
	)

	return answer, flushes, runCtx.Transition(core.StateCompleted)
}

// finish lands the invocation in its terminal error state. Cancellation
// maps to interrupted, everything else to failed. Terminal announcements
// use EmitFinal so they are delivered even after cancellation. An
// interrupted run re-emits the partial answer as a non-partial event so
// the text generated so far stays in the session history.
func (a *SearchAssistant) finish(runCtx *core.RunContext, code string, err error, partial string) error {
	if errors.Is(err, context.Canceled) {
		runCtx.LogInfo("assistant.run.interrupted", "assistant", a.name)
		if terr := runCtx.States.Transition(core.StateInterrupted); terr != nil {
			return terr
		}
		runCtx.EmitFinal(core.NewStateEvent(runCtx.InvocationID, a.name, core.StateInterrupted))
		if partial != "" {
			runCtx.EmitFinal(core.NewAnswerEvent(runCtx.InvocationID, a.name, partial))
		}
		runCtx.EmitFinal(core.NewInterruptedEvent(runCtx.InvocationID, a.name))
		return nil
	}

	runCtx.LogError("assistant.run.failed",
		"assistant", a.name,
		"code", code,
		"error", err.Error(),
	)
	if terr := runCtx.States.Transition(core.StateFailed); terr != nil {
		return terr
	}
	runCtx.EmitFinal(core.NewStateEvent(runCtx.InvocationID, a.name, core.StateFailed))
	runCtx.EmitFinal(core.NewErrorEvent(runCtx.InvocationID, a.name, code, err))
	return err
}

// buildInstructions appends the formatted search results to the system
// prompt so the backend can ground its answer.
func (a *SearchAssistant) buildInstructions(results []core.SearchResult) string {
	if len(results) == 0 {
		return a.instruction
	}

	var b strings.Builder
	b.WriteString(a.instruction)
	b.WriteString("\n\nSearch results:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, r.Title, r.URL, r.Content)
	}
	return b.String()
}

// buildContents assembles the conversation for the backend: bounded prior
// history followed by the current query.
func (a *SearchAssistant) buildContents(runCtx *core.RunContext) []core.Content {
	var history []core.Event
	if runCtx.Session != nil {
		history = runCtx.Session.GetConversationHistory()
	}
	if a.maxHistoryMessages > 0 && len(history) > a.maxHistoryMessages {
		history = history[len(history)-a.maxHistoryMessages:]
	}

	contents := make([]core.Content, 0, len(history)+1)
	for _, ev := range history {
		if ev.Content != nil {
			contents = append(contents, *ev.Content)
		}
	}
	return append(contents, runCtx.Query)
}
