package core

// Assistant is the unit of work the engine executes: given a RunContext it
// answers the user's query, emitting events along the way.
//
// Implementations must:
//   - Respect context cancellation at every suspension point
//   - Emit events through the provided RunContext
//   - Drive the RunContext state tracker through legal transitions only
//   - Leave the tracker in a terminal state before returning
type Assistant interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
}

// AssistantInfo carries identifying details about an assistant used in
// contexts & events. Name is the external identifier; Type categorizes the
// implementation (e.g. "search", "chat").
type AssistantInfo struct{ Name, Type string }
