package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/askmesh/askmesh/core"
	"github.com/askmesh/askmesh/logging"
	"github.com/askmesh/askmesh/session"
)

// Config defines tuning parameters for the Engine's operational behavior.
type Config struct {
	// MaxConcurrentInvocations limits how many invocations execute
	// simultaneously. Ask blocks until a slot frees up or its context is
	// cancelled. Set to 0 for unlimited.
	MaxConcurrentInvocations int

	// EventBufferSize sets the channel buffer size for event processing.
	// Larger buffers reduce blocking but increase memory usage.
	EventBufferSize int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	MaxConcurrentInvocations: 10,
	EventBufferSize:          100,
}

// Options configures an Engine instance using the functional options
// pattern. All dependencies have in-memory defaults suitable for
// development and tests.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	Config Config

	// SessionStore manages session persistence and state. Defaults to the
	// in-memory implementation if not provided.
	SessionStore core.SessionStore

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine orchestrates assistant execution and manages the complete
// lifecycle of ask invocations. It provides:
//   - Assistant registry with thread-safe registration and lookup
//   - Async (Ask) and sync (AskSync) execution
//   - Real-time event streaming plus session persistence
//   - Per-invocation cancellation via Interrupt
type Engine struct {
	sessionStore core.SessionStore
	logger       logging.Logger
	config       Config

	assistants map[string]core.Assistant
	mu         sync.RWMutex

	activeInvocations map[string]context.CancelFunc
	invocationsMu     sync.RWMutex

	callbacks *CallbackManager

	// sem bounds concurrent invocations; nil means unlimited.
	sem chan struct{}
}

// Interface compliance check.
var _ core.Engine = (*Engine)(nil)

// New creates an Engine with sensible defaults and optional configuration.
//
// The engine does not take ownership of provided services; callers remain
// responsible for their lifecycle (e.g. closing a SQLite session store).
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var sem chan struct{}
	if opts.Config.MaxConcurrentInvocations > 0 {
		sem = make(chan struct{}, opts.Config.MaxConcurrentInvocations)
	}

	return &Engine{
		sessionStore:      opts.SessionStore,
		logger:            opts.Logger,
		config:            opts.Config,
		assistants:        make(map[string]core.Assistant),
		activeInvocations: make(map[string]context.CancelFunc),
		callbacks:         NewCallbackManager(),
		sem:               sem,
	}
}

// WithConfig overrides the engine configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithSessionStore sets the session persistence backend.
func WithSessionStore(store core.SessionStore) func(o *Options) {
	return func(o *Options) { o.SessionStore = store }
}

// WithLogger sets the structured logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Register adds an assistant to the engine's registry, making it available
// for Ask calls by name. An existing assistant with the same name is
// replaced.
func (e *Engine) Register(a core.Assistant) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assistants[a.Name()] = a
}

// GetAssistant retrieves a registered assistant by name.
func (e *Engine) GetAssistant(name string) (core.Assistant, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.assistants[name]
	return a, ok
}

// RegisterCallback adds a lifecycle hook executed around invocations.
func (e *Engine) RegisterCallback(cb Callback) {
	e.callbacks.Register(cb)
}

// Ask executes an assistant asynchronously and returns the invocation id
// plus channels for real-time event streaming.
//
// The events channel closes when the run completes; any terminal error is
// delivered on the errors channel before it closes. Interruption via
// Interrupt (or context cancellation) is not a terminal error: the run
// ends with an interrupted state event instead.
func (e *Engine) Ask(
	ctx context.Context,
	sessionID string,
	assistantName string,
	query core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	asst, ok := e.GetAssistant(assistantName)
	if !ok {
		return "", nil, nil, fmt.Errorf("assistant %s not found", assistantName)
	}

	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return "", nil, nil, ctx.Err()
		}
	}

	sess, err := e.sessionStore.Get(sessionID)
	if err != nil {
		e.release()
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	invocationID := core.NewID()

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)
	emit := make(chan core.Event, e.config.EventBufferSize)

	invocationCtx, cancel := context.WithCancel(ctx)

	e.invocationsMu.Lock()
	e.activeInvocations[invocationID] = cancel
	e.invocationsMu.Unlock()

	runCtx := core.NewRunContext(
		invocationCtx,
		sessionID,
		invocationID,
		core.AssistantInfo{Name: asst.Name(), Type: "search"},
		query,
		emit,
		sess,
		e.sessionStore,
		e.logger,
	)

	// Persist the user query as the invocation's first event. The session
	// snapshot handed to the assistant was loaded beforehand, so history
	// sent to backends does not duplicate the current query.
	userEvent := core.NewUserContentEvent(invocationID, &query)
	if err := e.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		cancel()
		e.removeInvocation(invocationID)
		e.release()
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	go func() {
		defer func() {
			close(emit)
			cancel()
			e.removeInvocation(invocationID)
			e.release()
		}()
		if aml, ok := e.logger.(*logging.AskMeshLogger); ok {
			defer aml.StartTimer("invocation")()
		}

		e.callbacks.Execute(CallbackBeforeRun, &CallbackContext{
			RunContext: runCtx, Assistant: asst.Name(),
		})

		err := asst.Run(runCtx)

		e.callbacks.Execute(CallbackAfterRun, &CallbackContext{
			RunContext: runCtx, Assistant: asst.Name(), Err: err,
		})

		if err != nil {
			e.logger.Error("engine.run.failed",
				"invocation_id", invocationID,
				"assistant", asst.Name(),
				"error", err.Error(),
			)
			errorsCh <- fmt.Errorf("assistant execution failed: %w", err)
		}
	}()

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
		}()
		e.processEvents(invocationCtx, sessionID, emit, eventsCh)
	}()

	return invocationID, eventsCh, errorsCh, nil
}

// AskSync executes an assistant synchronously and returns all generated
// events. It is a convenience wrapper around Ask for request-response use;
// for real-time streaming use Ask directly.
func (e *Engine) AskSync(
	ctx context.Context,
	sessionID string,
	assistantName string,
	query core.Content,
) (string, []core.Event, error) {
	invocationID, eventsCh, errorsCh, err := e.Ask(ctx, sessionID, assistantName, query)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for ev := range eventsCh {
		events = append(events, ev)
	}
	if err := <-errorsCh; err != nil {
		return invocationID, events, err
	}
	return invocationID, events, nil
}

// Interrupt cancels a running invocation by its id. The assistant observes
// the cancellation cooperatively and lands the run in the interrupted
// state; text generated so far remains visible in the session history.
//
// Returns an error if the invocation id is unknown or already finished.
func (e *Engine) Interrupt(invocationID string) error {
	e.invocationsMu.RLock()
	cancel, exists := e.activeInvocations[invocationID]
	e.invocationsMu.RUnlock()

	if !exists {
		return fmt.Errorf("invocation %s not found", invocationID)
	}

	e.logger.Info("engine.invocation.interrupt", "invocation_id", invocationID)
	cancel()
	return nil
}

// GetSession retrieves a point-in-time snapshot of a session by id.
func (e *Engine) GetSession(sessionID string) (*core.Session, error) {
	return e.sessionStore.Get(sessionID)
}

func (e *Engine) removeInvocation(invocationID string) {
	e.invocationsMu.Lock()
	delete(e.activeInvocations, invocationID)
	e.invocationsMu.Unlock()
}

func (e *Engine) release() {
	if e.sem != nil {
		<-e.sem
	}
}

// processEvents runs the event pipeline for one invocation: apply state
// deltas, persist non-partial events and forward to the caller. The loop
// runs until the assistant closes the emit channel, not until context
// cancellation, so terminal events emitted after an interrupt still reach
// the store and the caller.
func (e *Engine) processEvents(
	ctx context.Context,
	sessionID string,
	emit <-chan core.Event,
	eventsCh chan<- core.Event,
) {
	for ev := range emit {
		if len(ev.Actions.StateDelta) > 0 {
			if err := e.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
				e.logger.Error("engine.event.apply_delta_failed",
					"session_id", sessionID, "error", err.Error())
			}
		}

		if !ev.IsPartial() {
			if err := e.sessionStore.AppendEvent(sessionID, ev); err != nil {
				e.logger.Error("engine.event.persist_failed",
					"session_id", sessionID, "error", err.Error())
			}
		}

		if ev.IsError() {
			e.callbacks.Execute(CallbackOnError, &CallbackContext{
				Event: &ev, Assistant: ev.Author,
			})
		}
		if ev.IsStateChange() {
			e.callbacks.Execute(CallbackOnStateChange, &CallbackContext{
				Event: &ev, Assistant: ev.Author,
			})
		}

		select {
		case eventsCh <- ev:
			e.logger.Debug("engine.event.delivered",
				"event_id", ev.ID, "session_id", sessionID)
		case <-ctx.Done():
			// Caller may be gone; deliver best effort so buffered readers
			// still observe the terminal events.
			select {
			case eventsCh <- ev:
			default:
			}
		}
	}
}
