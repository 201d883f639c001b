// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package to
// centralize domain contracts. Keeping only implementations here prevents
// higher level packages (assistants, engine) from depending on concrete
// storage.
//
// Two backends are provided: InMemoryStore for tests and ephemeral use, and
// SQLiteStore for durable conversations that survive restarts.
package session
