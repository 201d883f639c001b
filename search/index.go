package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/askmesh/askmesh/core"
)

// document is the internal representation persisted by Index.
type document struct {
	ID       string
	Title    string
	URL      string
	Content  string
	Metadata map[string]any
}

// Index is a naive process-local Provider. It offers append-only documents
// with case-insensitive term matching, scored by the fraction of query
// terms present. Suitable for tests, demos and small embedded corpora;
// swap for a real search backend for production retrieval.
//
// Concurrency: protected by RWMutex.
type Index struct {
	mu   sync.RWMutex
	docs []document
}

// NewIndex creates an empty in-memory index.
func NewIndex() *Index {
	return &Index{}
}

// Name implements Provider.
func (i *Index) Name() string { return "index" }

// Add appends a document generating a simple incremental id.
func (i *Index) Add(title, url, content string, metadata map[string]any) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := fmt.Sprintf("doc_%d", len(i.docs))
	i.docs = append(i.docs, document{ID: id, Title: title, URL: url, Content: content, Metadata: metadata})
	return id
}

// Len returns the number of indexed documents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Search implements Provider. Documents matching at least one query term
// are returned ordered by score (matched terms / total terms), capped at
// limit.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	terms := strings.Fields(strings.ToLower(query))

	i.mu.RLock()
	defer i.mu.RUnlock()

	results := make([]core.SearchResult, 0, limit)
	for _, doc := range i.docs {
		score := score(doc, terms)
		if score <= 0 {
			continue
		}
		md := make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			md[k] = v
		}
		results = append(results, core.SearchResult{
			ID:       doc.ID,
			Title:    doc.Title,
			URL:      doc.URL,
			Content:  doc.Content,
			Score:    score,
			Metadata: md,
		})
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// score is the fraction of query terms present in the document's title or
// content. An empty query matches everything with a score of 1.
func score(doc document, terms []string) float64 {
	if len(terms) == 0 {
		return 1.0
	}
	haystack := strings.ToLower(doc.Title + " " + doc.Content)
	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
