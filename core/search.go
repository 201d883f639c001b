package core

// SearchResult represents a retrieved document with a relevance score and
// arbitrary metadata. URL and Title may be empty for local index hits.
type SearchResult struct {
	ID       string
	Title    string
	URL      string
	Content  string
	Score    float64
	Metadata map[string]any
}
