// Package core provides the foundational domain types, interfaces and execution
// contexts used by AskMesh. It defines the core abstractions for:
//
//   - Assistants (units of orchestrated search-then-answer work)
//   - Sessions (stateful conversational containers with event history)
//   - Events (immutable communication + state propagation records)
//   - Generation states (the lifecycle of a single answer request)
//   - RunContext (scoped execution state handed to an assistant run)
//   - Pluggable stores for session state and event history
//
// The package intentionally keeps implementation concerns (persistence, engine
// orchestration, concrete backends) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
