// Package db defines the storage facade backed by Redis. Consumers depend on
// the narrow sub-interfaces, not the full Store.
package db

import (
	"context"
	"time"
)

// Store is the full database facade.
type Store interface {
	Pinger
	HashStore
	KVStore
	VectorStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// VectorStore provides FT vector index lifecycle and KNN search.
type VectorStore interface {
	CreateVectorIndex(ctx context.Context, def *VectorIndexDef) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *KNNQuery) ([]KNNEntry, error)
}

// VectorIndexDef describes an FT index over hash documents with one HNSW
// cosine vector field plus tag fields for filtering.
type VectorIndexDef struct {
	Name        string
	Prefix      string
	Dimensions  int
	TagFields   []string
	HNSWM       int
	EFConstruct int
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	Vector    []float32
	K         int
	// TagFilters restricts results to hashes whose tag field equals the value.
	TagFilters map[string]string
}

// KNNEntry is a single KNN hit. Distance is the raw cosine distance
// reported by the store.
type KNNEntry struct {
	Key      string
	Distance float64
}
