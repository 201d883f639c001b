package engine

import (
	"sync"

	"github.com/askmesh/askmesh/core"
)

// CallbackType defines the lifecycle points where callbacks execute.
//
// Callbacks hook into the engine's execution pipeline without modifying
// core logic:
//   - BeforeRun/AfterRun: around complete assistant execution
//   - OnError: when an error event flows through the pipeline
//   - OnStateChange: when a generation state announcement flows through
//
// Callbacks run synchronously on the engine's event goroutine, so
// implementations must be fast and must not panic.
type CallbackType string

const (
	// CallbackBeforeRun is triggered before an assistant begins execution.
	// Use for setup, validation or instrumentation.
	CallbackBeforeRun CallbackType = "before_run"

	// CallbackAfterRun is triggered after an assistant completes execution.
	// Use for cleanup, metrics collection or post-processing.
	CallbackAfterRun CallbackType = "after_run"

	// CallbackOnError is triggered when an error event is processed.
	// Use for alerting or recovery mechanisms.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnStateChange is triggered for generation state announcements.
	// Use for progress reporting or reactive processing.
	CallbackOnStateChange CallbackType = "on_state_change"
)

// CallbackContext carries the information available at a callback site.
// Fields are populated as applicable to the callback type; Event is nil for
// run-scoped callbacks, RunContext is nil for event-scoped ones.
type CallbackContext struct {
	// RunContext is the invocation's execution scope (run-scoped callbacks).
	RunContext *core.RunContext

	// Event is the event being processed (event-scoped callbacks).
	Event *core.Event

	// Assistant names the assistant associated with this callback.
	Assistant string

	// Err is the run error, set only for CallbackAfterRun on failure.
	Err error
}

// Callback is a lifecycle hook. Implementations should be stateless and
// idempotent; the engine may invoke them from concurrent invocations.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic.
	Execute(cbCtx *CallbackContext)
}

// CallbackFunc adapts a plain function to the Callback interface.
type CallbackFunc struct {
	CallbackType CallbackType
	Fn           func(cbCtx *CallbackContext)
}

// Type implements Callback.
func (c CallbackFunc) Type() CallbackType { return c.CallbackType }

// Execute implements Callback.
func (c CallbackFunc) Execute(cbCtx *CallbackContext) { c.Fn(cbCtx) }

// CallbackManager routes callbacks to registered handlers by type. Safe for
// concurrent registration and execution.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds a callback for its declared type.
func (m *CallbackManager) Register(cb Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[cb.Type()] = append(m.callbacks[cb.Type()], cb)
}

// Execute invokes all callbacks registered for the given type, in
// registration order.
func (m *CallbackManager) Execute(t CallbackType, cbCtx *CallbackContext) {
	m.mu.RLock()
	cbs := make([]Callback, len(m.callbacks[t]))
	copy(cbs, m.callbacks[t])
	m.mu.RUnlock()

	for _, cb := range cbs {
		cb.Execute(cbCtx)
	}
}
