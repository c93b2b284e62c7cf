// Package vecindex adapts the Redis FT vector search to the engine's
// VectorIndex contract, with a circuit breaker so a struggling store fails
// fast into degraded retrieval instead of stalling every query.
package vecindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/opskb/internal/db"
	"github.com/kailas-cloud/opskb/internal/domain"
)

// store is the consumer interface for vector operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	CreateVectorIndex(ctx context.Context, def *db.VectorIndexDef) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.KNNEntry, error)
}

// Compile-time check: Repo implements domain.VectorIndex.
var _ domain.VectorIndex = (*Repo)(nil)

// Config holds the settings for one vector index.
type Config struct {
	IndexName  string
	HashPrefix string // e.g. "opskb:vecdoc:"
	Dimensions int
	// Timeout bounds each store call; a timed-out call is retried once
	// immediately before the error surfaces.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Repo implements domain.VectorIndex over Redis FT.SEARCH.
type Repo struct {
	store   store
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates a vector index repository.
func New(s store, cfg Config) *Repo {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.IndexName,
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("vector index breaker state change",
				zap.String("index", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Repo{store: s, cfg: cfg, breaker: breaker, logger: logger}
}

// EnsureIndex creates the FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.cfg.IndexName, err)
	}
	if exists {
		return nil
	}

	def := &db.VectorIndexDef{
		Name:       r.cfg.IndexName,
		Prefix:     r.cfg.HashPrefix,
		Dimensions: r.cfg.Dimensions,
		TagFields:  []string{"category", "doc_type"},
	}
	if err := r.store.CreateVectorIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.cfg.IndexName, err)
	}
	return nil
}

// Upsert writes a document's embedding and filterable metadata.
func (r *Repo) Upsert(ctx context.Context, documentID string, vector []float32, metadata map[string]string) error {
	if r.cfg.Dimensions > 0 && len(vector) != r.cfg.Dimensions {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), r.cfg.Dimensions)
	}

	fields := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		fields[k] = v
	}
	fields["vector"] = vectorToBytes(vector)

	_, err := r.execute(ctx, func(ctx context.Context) (any, error) {
		return nil, r.store.HSet(ctx, r.key(documentID), fields)
	})
	if err != nil {
		return fmt.Errorf("upsert vector %s: %w", documentID, err)
	}
	return nil
}

// Query returns the k nearest documents, similarity normalized to [0,1]
// via (cosine+1)/2.
func (r *Repo) Query(ctx context.Context, vector []float32, k int, filters domain.Filters) ([]domain.VectorHit, error) {
	q := &db.KNNQuery{
		IndexName:  r.cfg.IndexName,
		Vector:     vector,
		K:          k,
		TagFilters: tagFilters(filters),
	}

	v, err := r.execute(ctx, func(ctx context.Context) (any, error) {
		return r.store.SearchKNN(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	entries := v.([]db.KNNEntry)
	hits := make([]domain.VectorHit, 0, len(entries))
	for _, e := range entries {
		// FT.SEARCH reports cosine distance in [0,2]; cosine = 1 - distance.
		cosine := 1 - e.Distance
		sim := (cosine + 1) / 2
		hits = append(hits, domain.VectorHit{
			DocumentID: strings.TrimPrefix(e.Key, r.cfg.HashPrefix),
			Similarity: math.Max(0, math.Min(1, sim)),
		})
	}
	return hits, nil
}

// Delete removes a document's vector entry.
func (r *Repo) Delete(ctx context.Context, documentID string) error {
	_, err := r.execute(ctx, func(ctx context.Context) (any, error) {
		return nil, r.store.Del(ctx, r.key(documentID))
	})
	if err != nil {
		return fmt.Errorf("delete vector %s: %w", documentID, err)
	}
	return nil
}

// HealthCheck verifies the FT index is reachable.
func (r *Repo) HealthCheck(ctx context.Context) error {
	if _, err := r.store.IndexExists(ctx, r.cfg.IndexName); err != nil {
		return fmt.Errorf("vector index health: %w", err)
	}
	return nil
}

// execute runs fn through the breaker with a per-attempt timeout and one
// immediate retry on timeout. Breaker rejections and store failures surface
// as ErrVectorStoreUnavailable.
func (r *Repo) execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	v, err := r.breaker.Execute(func() (any, error) {
		out, err := r.attempt(ctx, fn)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			out, err = r.attempt(ctx, fn)
		}
		return out, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", domain.ErrVectorStoreUnavailable)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return v, nil
}

func (r *Repo) attempt(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	return fn(attemptCtx)
}

func (r *Repo) key(id string) string {
	return r.cfg.HashPrefix + id
}

func tagFilters(f domain.Filters) map[string]string {
	if f.IsEmpty() {
		return nil
	}
	m := make(map[string]string, 2)
	if f.Category != "" {
		m["category"] = f.Category
	}
	if f.DocType != "" {
		m["doc_type"] = f.DocType
	}
	return m
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
