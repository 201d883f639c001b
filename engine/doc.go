// Package engine coordinates assistant execution. It owns the invocation
// lifecycle: registering assistants, starting runs, streaming events to
// callers, persisting history through the session store and interrupting
// in-flight invocations on request.
//
// Event flow for one Ask call:
//  1. The user query is persisted as the invocation's first event.
//  2. The assistant runs in its own goroutine, emitting events.
//  3. Event actions (state deltas) are applied to the session store.
//  4. Non-partial events are appended to the session history.
//  5. Events are forwarded to the caller's channel in real time.
//
// The emit channel is drained until the assistant returns, so terminal
// announcements (interrupted, failed) reach the caller and the store even
// after the invocation context was cancelled.
package engine
