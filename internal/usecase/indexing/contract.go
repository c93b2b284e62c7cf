package indexing

import (
	"context"
	"time"

	"github.com/kailas-cloud/opskb/internal/domain"
	"github.com/kailas-cloud/opskb/internal/lexical"
)

// DocumentStore is the knowledge-store CRUD contract.
type DocumentStore interface {
	Get(ctx context.Context, id string) (domain.Document, error)
	Upsert(ctx context.Context, doc *domain.Document) (bool, error)
	Delete(ctx context.Context, id string) error
	ListModifiedSince(ctx context.Context, ts time.Time) ([]domain.Document, error)
}

// IncidentStore is the incident-store CRUD contract.
type IncidentStore interface {
	Get(ctx context.Context, id string) (domain.Incident, error)
	Upsert(ctx context.Context, in *domain.Incident) (bool, error)
	Delete(ctx context.Context, id string) error
	ListModifiedSince(ctx context.Context, ts time.Time) ([]domain.Incident, error)
}

// Embedder vectorizes entity text for the vector index.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorWriter is the write side of a vector index.
type VectorWriter interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
}

// LexicalWriter is the write side of a lexical index.
type LexicalWriter interface {
	Add(e lexical.Entry)
	Remove(id string)
	Rebuild(entries []lexical.Entry)
	Corrupt() bool
}

// Invalidator evicts cached results referencing an entity.
type Invalidator interface {
	Invalidate(id string)
}
