package domain

import (
	"context"
	"time"
)

// EmbeddingResult carries the vector produced for a text plus provider usage.
type EmbeddingResult struct {
	Embedding    []float32
	ModelVersion string
	PromptTokens int
	TotalTokens  int
}

// Embedder converts text into a fixed-length vector. Implementations must be
// deterministic for identical input and fail with ErrEmbeddingUnavailable.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is an optional capability of external clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// VectorIndex is the nearest-neighbor search contract backed by the external
// vector store. Query similarities are normalized to [0,1] by implementations.
type VectorIndex interface {
	Upsert(ctx context.Context, documentID string, vector []float32, metadata map[string]string) error
	Query(ctx context.Context, vector []float32, k int, filters Filters) ([]VectorHit, error)
	Delete(ctx context.Context, documentID string) error
}

// MetricsSink receives timing and count events. Implementations are
// fire-and-forget and must never block the retrieval path.
type MetricsSink interface {
	RecordOperation(operation string, elapsed time.Duration, resultCount int)
}
