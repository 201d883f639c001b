// Package search provides the retrieval side of the ask pipeline: a small
// Provider interface plus two implementations, an in-process Index suited
// for tests and embedded corpora, and a client for SearXNG-compatible
// metasearch instances. Assistants run a search first and ground the
// generated answer on the returned documents.
package search
