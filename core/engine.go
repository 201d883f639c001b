package core

import "context"

// Engine coordinates assistant execution and event emission.
//
// A concrete implementation is responsible for:
//   - Registering available assistants (by name) via Register
//   - Spawning asynchronous invocations (Ask) returning event + error channels
//   - Synchronous convenience execution (AskSync) collecting emitted events
//   - Cooperative interruption of in-flight invocations (Interrupt)
//
// Implementations SHOULD:
//   - Guarantee ordering of events per invocation
//   - Propagate context cancellation to underlying assistant Run calls
//   - Close returned channels when an async invocation terminates
//   - Surface terminal errors via the error channel (async) or direct return (sync)
type Engine interface {
	// Register makes an assistant available for later invocation by name.
	Register(a Assistant)

	// Ask starts an asynchronous invocation returning streaming event and
	// terminal error channels. Channels are closed when execution completes
	// or the context is cancelled.
	//
	// Returns:
	//   - invocationID: unique identifier for this invocation (for interruption / tracking)
	//   - eventsCh: streamed events
	//   - errorsCh: terminal error channel (buffered size 1)
	//   - err: immediate error starting the invocation
	Ask(
		ctx context.Context,
		sessionID, assistantName string,
		query Content,
	) (string, <-chan Event, <-chan error, error)

	// AskSync executes an assistant to completion, collecting all emitted
	// events into a slice. Convenience wrapper that drains Ask.
	AskSync(ctx context.Context, sessionID, assistantName string, query Content) (string, []Event, error)

	// Interrupt requests cooperative termination of an in-flight invocation.
	// It is idempotent for known invocations; interrupting an unknown or
	// already finished invocation returns an error describing the condition.
	Interrupt(invocationID string) error
}
