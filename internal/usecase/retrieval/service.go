// Package retrieval orchestrates hybrid retrieval: lexical and vector
// candidate lookup in parallel, weighted score fusion, and read-through
// result caching.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/opskb/internal/cache"
	"github.com/kailas-cloud/opskb/internal/domain"
)

// Metrics receives operation outcomes for export.
type Metrics interface {
	RecordOperation(operation string, elapsed time.Duration, resultCount int)
	RecordDegraded(failedSource string)
}

// Config carries the retrieval tunables.
type Config struct {
	// Operation labels this instance's metrics, e.g. "search".
	Operation         string
	VectorWeight      float64
	LexicalWeight     float64
	DefaultMaxResults int
	MaxResultsCap     int
	// CandidateK is the per-source candidate count fetched before fusion.
	CandidateK    int
	MaxQueryBytes int
}

// Service answers retrieval queries over one corpus.
type Service struct {
	lexical Lexical
	vector  Vector
	embed   Embedder
	catalog Catalog
	cache   Cache
	metrics Metrics
	logger  *zap.Logger
	cfg     Config
}

// New creates a retrieval service.
func New(
	lexical Lexical, vector Vector, embed Embedder, catalog Catalog,
	resultCache Cache, metrics Metrics, logger *zap.Logger, cfg Config,
) *Service {
	if cfg.Operation == "" {
		cfg.Operation = "search"
	}
	return &Service{
		lexical: lexical,
		vector:  vector,
		embed:   embed,
		catalog: catalog,
		cache:   resultCache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Search runs a hybrid retrieval for the query. Results come from the cache
// when a fresh entry exists for the same fingerprint; otherwise both sources
// are consulted in parallel and their candidates fused. A single failing
// source degrades the response instead of failing it; both sources failing
// returns ErrRetrievalUnavailable.
func (s *Service) Search(
	ctx context.Context, query string, filters domain.Filters, maxResults int,
) (domain.RetrievalResponse, error) {
	if strings.TrimSpace(query) == "" {
		return domain.RetrievalResponse{}, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}
	if s.cfg.MaxQueryBytes > 0 && len(query) > s.cfg.MaxQueryBytes {
		return domain.RetrievalResponse{}, fmt.Errorf(
			"%w: query exceeds %d bytes", domain.ErrInvalidQuery, s.cfg.MaxQueryBytes)
	}

	limit := maxResults
	if limit <= 0 {
		limit = s.cfg.DefaultMaxResults
	}
	if limit > s.cfg.MaxResultsCap {
		limit = s.cfg.MaxResultsCap
	}

	fingerprint := cache.Fingerprint(query, filters, limit)

	start := time.Now()
	resp, hit, err := s.cache.GetOrCompute(ctx, fingerprint,
		func(ctx context.Context) (domain.RetrievalResponse, error) {
			return s.retrieve(ctx, query, filters, limit)
		})
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.RecordOperation(s.cfg.Operation, elapsed, 0)
		return domain.RetrievalResponse{}, err
	}

	resp.ElapsedMS = float64(elapsed.Microseconds()) / 1000
	s.metrics.RecordOperation(s.cfg.Operation, elapsed, len(resp.Hits))

	s.logger.Debug("retrieval served",
		zap.String("operation", s.cfg.Operation),
		zap.Bool("cache_hit", hit),
		zap.Bool("degraded", resp.Degraded),
		zap.Int("hits", len(resp.Hits)),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

// retrieve consults both sources concurrently and fuses their candidates.
func (s *Service) retrieve(
	ctx context.Context, query string, filters domain.Filters, limit int,
) (domain.RetrievalResponse, error) {
	var (
		wg      sync.WaitGroup
		lexHits []domain.LexicalHit
		vecHits []domain.VectorHit
		lexErr  error
		vecErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		lexHits, lexErr = s.lexical.Search(ctx, query, filters, s.cfg.CandidateK)
	}()
	go func() {
		defer wg.Done()
		emb, err := s.embed.Embed(ctx, query)
		if err != nil {
			vecErr = fmt.Errorf("vectorize query: %w", err)
			return
		}
		vecHits, vecErr = s.vector.Query(ctx, emb.Embedding, s.cfg.CandidateK, filters)
	}()
	wg.Wait()

	if lexErr != nil && vecErr != nil {
		return domain.RetrievalResponse{}, fmt.Errorf(
			"%w: lexical: %v; vector: %v", domain.ErrRetrievalUnavailable, lexErr, vecErr)
	}

	degraded := false
	if lexErr != nil {
		degraded = true
		s.metrics.RecordDegraded("lexical")
		s.logger.Warn("lexical source failed, serving vector-only results",
			zap.String("operation", s.cfg.Operation), zap.Error(lexErr))
	}
	if vecErr != nil {
		degraded = true
		s.metrics.RecordDegraded("vector")
		s.logger.Warn("vector source failed, serving lexical-only results",
			zap.String("operation", s.cfg.Operation), zap.Error(vecErr))
	}

	hits := fuse(lexHits, vecHits, s.cfg.VectorWeight, s.cfg.LexicalWeight, limit)
	s.enrich(ctx, hits)

	return domain.RetrievalResponse{Hits: hits, Degraded: degraded}, nil
}

// enrich fills display metadata on the hits. Metadata lookup failures are
// logged and leave the affected hits bare rather than failing the retrieval.
func (s *Service) enrich(ctx context.Context, hits []domain.RetrievalHit) {
	if len(hits) == 0 {
		return
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.DocumentID)
	}

	summaries, err := s.catalog.Summaries(ctx, ids)
	if err != nil {
		s.logger.Warn("resolve hit metadata", zap.Error(err))
		return
	}

	for i := range hits {
		sum, ok := summaries[hits[i].DocumentID]
		if !ok {
			continue
		}
		hits[i].Title = sum.Title
		hits[i].Excerpt = sum.Excerpt
		hits[i].Category = sum.Category
	}
}
