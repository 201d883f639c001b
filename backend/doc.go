// Package backend defines the provider-agnostic abstractions and concrete
// helpers for interacting with text-generation backends inside AskMesh.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Make backends interchangeable: a remote OpenAI-compatible API, an
//     accelerated local engine and a CPU-only local engine all satisfy
//     Generator
//   - Expose an explicit Load step so the orchestration layer can fall back
//     to the next backend in its preference order on initialization error
//   - Facilitate lightweight mocking for tests (MockGenerator)
//
// Providers (e.g. OpenAI, Anthropic, Ollama) implement the Generator
// interface from this package so higher layers (assistants, engine) remain
// decoupled from vendor SDKs.
package backend
