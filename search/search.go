package search

import (
	"context"

	"github.com/askmesh/askmesh/core"
)

// Provider returns the top scored documents for a query. Implementations
// must respect context cancellation; limit <= 0 means provider default.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error)

	// Name identifies the provider in logs and result metadata.
	Name() string
}

// DefaultLimit is used when a caller passes limit <= 0.
const DefaultLimit = 5
