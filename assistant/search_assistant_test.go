package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/askmesh/askmesh/backend"
	"github.com/askmesh/askmesh/core"
	"github.com/askmesh/askmesh/internal/testutil"
	"github.com/askmesh/askmesh/search"
	"github.com/askmesh/askmesh/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.Assistant = (*SearchAssistant)(nil)

// runResult captures everything emitted during one assistant run.
type runResult struct {
	events []core.Event
	err    error
}

// run drives a full invocation against the assistant, collecting emitted
// events until Run returns and the channel is drained.
func run(t *testing.T, ctx context.Context, a *SearchAssistant, query string) runResult {
	t.Helper()

	store := session.NewInMemoryStore()
	sess, err := store.Get("test-session")
	require.NoError(t, err)

	emit := make(chan core.Event, 256)
	runCtx := core.NewRunContext(
		ctx, "test-session", core.NewID(),
		core.AssistantInfo{Name: a.Name(), Type: "search"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: query}}},
		emit, sess, store, nil,
	)

	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	var res runResult
	for {
		select {
		case ev := <-emit:
			res.events = append(res.events, ev)
		case err := <-done:
			res.err = err
			for {
				select {
				case ev := <-emit:
					res.events = append(res.events, ev)
				default:
					return res
				}
			}
		case <-time.After(5 * time.Second):
			t.Fatal("assistant run timed out")
		}
	}
}

// states extracts the announced state sequence from the event stream.
func states(events []core.Event) []core.State {
	var out []core.State
	for _, ev := range events {
		if ev.State != nil {
			out = append(out, *ev.State)
		}
	}
	return out
}

func seededProvider() *search.Index {
	idx := search.NewIndex()
	idx.Add("Go", "https://go.dev", "the go programming language", nil)
	return idx
}

func TestSearchAssistant_HappyPath(t *testing.T) {
	gen := backend.NewMockGenerator("mock", "test")
	gen.AddResponse("tell me about go", "Go is a language.")

	a := New("searcher", seededProvider(), []Candidate{{Name: "mock", Generator: gen}})
	res := run(t, context.Background(), a, "tell me about go")
	require.NoError(t, res.err)

	assert.Equal(t, []core.State{
		core.StateLoading,
		core.StateSearching,
		core.StateGenerating,
		core.StateCompleted,
	}, states(res.events))

	var sawResults, sawFinal bool
	for _, ev := range res.events {
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			if _, ok := ev.Content.Parts[0].(core.DataPart); ok {
				sawResults = true
			}
		}
		if ev.IsFinalResponse() && ev.Text() == "Go is a language." {
			sawFinal = true
		}
	}
	assert.True(t, sawResults, "expected a search results event")
	assert.True(t, sawFinal, "expected the final answer event")
}

func TestSearchAssistant_FallbackOnLoadFailure(t *testing.T) {
	broken := backend.NewMockGenerator("gpu", "test")
	broken.FailLoad(errors.New("device lost"))
	working := backend.NewMockGenerator("cpu", "test")
	working.AddResponse("q", "answer")

	a := New("searcher", seededProvider(), []Candidate{
		{Name: "gpu", Generator: broken},
		{Name: "cpu", Generator: working},
	})
	res := run(t, context.Background(), a, "q")
	require.NoError(t, res.err)

	// One loading announcement per fallback hop.
	assert.Equal(t, []core.State{
		core.StateLoading,
		core.StateLoading,
		core.StateSearching,
		core.StateGenerating,
		core.StateCompleted,
	}, states(res.events))

	// The chosen backend name is recorded in session state.
	var backendDelta any
	for _, ev := range res.events {
		if v, ok := ev.Actions.StateDelta["backend"]; ok {
			backendDelta = v
		}
	}
	assert.Equal(t, "cpu", backendDelta)
}

func TestSearchAssistant_AllBackendsFail(t *testing.T) {
	first := backend.NewMockGenerator("a", "test")
	first.FailLoad(errors.New("down"))
	second := backend.NewMockGenerator("b", "test")
	second.FailLoad(errors.New("also down"))

	a := New("searcher", seededProvider(), []Candidate{
		{Name: "a", Generator: first},
		{Name: "b", Generator: second},
	})
	res := run(t, context.Background(), a, "q")
	require.Error(t, res.err)

	st := states(res.events)
	require.NotEmpty(t, st)
	assert.Equal(t, core.StateFailed, st[len(st)-1])

	var sawError bool
	for _, ev := range res.events {
		if ev.IsError() {
			sawError = true
		}
	}
	assert.True(t, sawError, "expected an error event")
}

func TestSearchAssistant_NoCandidates(t *testing.T) {
	a := New("searcher", seededProvider(), nil)
	res := run(t, context.Background(), a, "q")
	require.Error(t, res.err)

	st := states(res.events)
	require.NotEmpty(t, st)
	assert.Equal(t, core.StateFailed, st[len(st)-1])
}

func TestSearchAssistant_InterruptionDuringGeneration(t *testing.T) {
	const answer = "a very long answer that takes many chunks to stream out completely"
	gen := backend.NewMockGenerator("mock", "test")
	gen.AddResponse("q", answer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := New("searcher", seededProvider(), []Candidate{{Name: "mock", Generator: gen}},
		func(o *Options) { o.FlushesPerSecond = 0 })

	store := session.NewInMemoryStore()
	sess, err := store.Get("s")
	require.NoError(t, err)

	emit := make(chan core.Event, 256)
	runCtx := core.NewRunContext(
		ctx, "s", core.NewID(),
		core.AssistantInfo{Name: "searcher", Type: "search"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "q"}}},
		emit, sess, store, nil,
	)

	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	// Cancel once the first answer delta arrives.
	var events []core.Event
	cancelled := false
	var runErr error
loop:
	for {
		select {
		case ev := <-emit:
			events = append(events, ev)
			if !cancelled && ev.IsPartial() {
				cancel()
				cancelled = true
			}
		case runErr = <-done:
			for {
				select {
				case ev := <-emit:
					events = append(events, ev)
				default:
					break loop
				}
			}
		case <-time.After(5 * time.Second):
			t.Fatal("run timed out")
		}
	}
	require.True(t, cancelled, "expected at least one answer delta before completion")
	assert.NoError(t, runErr, "interruption is not a run error")

	st := states(events)
	require.NotEmpty(t, st)
	assert.Equal(t, core.StateInterrupted, st[len(st)-1])

	var sawInterrupted bool
	for _, ev := range events {
		if ev.Interrupted != nil && *ev.Interrupted {
			sawInterrupted = true
		}
	}
	assert.True(t, sawInterrupted, "expected an interrupted event")

	// The text streamed before the cancellation is re-emitted as a
	// non-partial answer so it survives in the session history.
	var preserved string
	for _, ev := range events {
		if ev.IsFinalResponse() && ev.Text() != "" {
			preserved = ev.Text()
		}
	}
	require.NotEmpty(t, preserved, "expected the partial answer to be kept")
	assert.True(t, strings.HasPrefix(answer, preserved))
}

func TestSearchAssistant_FlushGateCoalescesDeltas(t *testing.T) {
	answer := "0123456789012345678901234567890123456789"
	gen := backend.NewMockGenerator("mock", "test")
	gen.AddResponse("q", answer)

	a := New("searcher", seededProvider(), []Candidate{{Name: "mock", Generator: gen}},
		func(o *Options) { o.FlushesPerSecond = 5 })
	res := run(t, context.Background(), a, "q")
	require.NoError(t, res.err)

	partials := 0
	var finalText string
	for _, ev := range res.events {
		if ev.IsPartial() {
			partials++
		}
		if ev.IsFinalResponse() {
			finalText = ev.Text()
		}
	}
	// 40 chunks stream near-instantly; at 5 flushes/sec only the first
	// should pass the gate, far fewer than one per chunk.
	assert.Less(t, partials, len(answer)/2)
	assert.Equal(t, answer, finalText)
}

func TestSearchAssistant_HistoryIsBounded(t *testing.T) {
	b := testutil.NewSessionBuilder("s")
	for i := 0; i < 15; i++ {
		b.Turn("old question", "old answer")
	}
	// Partials and state announcements never count as history.
	b.Event(testutil.NewEventBuilder().AssistantText("draft").Partial(true).Build())
	b.Event(testutil.NewEventBuilder().State(core.StateCompleted).Build())
	sess := b.Build()

	a := New("searcher", nil, nil, func(o *Options) { o.MaxHistoryMessages = 4 })
	runCtx := core.NewRunContext(
		context.Background(), "s", core.NewID(),
		core.AssistantInfo{Name: "searcher", Type: "search"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "new question"}}},
		make(chan core.Event, 1), sess, nil, nil,
	)

	contents := a.buildContents(runCtx)
	require.Len(t, contents, 5)
	assert.Equal(t, "new question", contents[4].Text())
	for _, c := range contents[:4] {
		assert.Contains(t, []string{"old question", "old answer"}, c.Text())
	}
}

// recordingDomainLogger satisfies logging.Logger plus the richer domain
// hooks so tests can observe search/backend/generation instrumentation.
type recordingDomainLogger struct {
	searches     []string
	backendCalls []string
	generations  []string
}

func (l *recordingDomainLogger) Debug(string, ...any) {}
func (l *recordingDomainLogger) Info(string, ...any)  {}
func (l *recordingDomainLogger) Warn(string, ...any)  {}
func (l *recordingDomainLogger) Error(string, ...any) {}

func (l *recordingDomainLogger) LogSearch(provider string, results int, dur time.Duration, err error) {
	l.searches = append(l.searches, provider)
}

func (l *recordingDomainLogger) LogBackendCall(backend string, tokens int, dur time.Duration, success bool, err error) {
	l.backendCalls = append(l.backendCalls, backend)
}

func (l *recordingDomainLogger) LogGeneration(backend, terminalState string, flushes int, dur time.Duration, err error) {
	l.generations = append(l.generations, terminalState)
}

func TestSearchAssistant_DomainLoggingHooks(t *testing.T) {
	gen := backend.NewMockGenerator("mock", "test")
	gen.AddResponse("q", "answer")

	rec := &recordingDomainLogger{}
	a := New("searcher", seededProvider(), []Candidate{{Name: "mock", Generator: gen}})

	store := session.NewInMemoryStore()
	sess, err := store.Get("s")
	require.NoError(t, err)

	runCtx := core.NewRunContext(
		context.Background(), "s", core.NewID(),
		core.AssistantInfo{Name: "searcher", Type: "search"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "q"}}},
		make(chan core.Event, 256), sess, store, rec,
	)

	require.NoError(t, a.Run(runCtx))

	assert.Equal(t, []string{"index"}, rec.searches)
	assert.Equal(t, []string{"mock"}, rec.backendCalls)
	require.Len(t, rec.generations, 1)
	assert.Equal(t, "completed", rec.generations[0])
}

func TestSearchAssistant_WorksWithoutProvider(t *testing.T) {
	gen := backend.NewMockGenerator("mock", "test")
	gen.AddResponse("q", "ungrounded answer")

	a := New("searcher", nil, []Candidate{{Name: "mock", Generator: gen}})
	res := run(t, context.Background(), a, "q")
	require.NoError(t, res.err)

	st := states(res.events)
	assert.Contains(t, st, core.StateSearching)
	assert.Equal(t, core.StateCompleted, st[len(st)-1])
}
