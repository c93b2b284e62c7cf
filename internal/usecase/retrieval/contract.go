package retrieval

import (
	"context"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// Lexical is the term-matching source.
type Lexical interface {
	Search(ctx context.Context, query string, filters domain.Filters, limit int) ([]domain.LexicalHit, error)
}

// Vector is the nearest-neighbor source.
type Vector interface {
	Query(ctx context.Context, vector []float32, k int, filters domain.Filters) ([]domain.VectorHit, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Catalog resolves entity IDs to display metadata for the response.
type Catalog interface {
	Summaries(ctx context.Context, ids []string) (map[string]domain.HitSummary, error)
}

// Cache is the read-through result cache.
type Cache interface {
	GetOrCompute(
		ctx context.Context, fingerprint string,
		compute func(ctx context.Context) (domain.RetrievalResponse, error),
	) (domain.RetrievalResponse, bool, error)
}
