package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/opskb/internal/cache"
	"github.com/kailas-cloud/opskb/internal/config"
	dbRedis "github.com/kailas-cloud/opskb/internal/db/redis"
	"github.com/kailas-cloud/opskb/internal/domain"
	"github.com/kailas-cloud/opskb/internal/lexical"
	logpkg "github.com/kailas-cloud/opskb/internal/logger"
	"github.com/kailas-cloud/opskb/internal/metrics"
	"github.com/kailas-cloud/opskb/internal/repository/embcache"
	incidentrepo "github.com/kailas-cloud/opskb/internal/repository/incident"
	knowledgerepo "github.com/kailas-cloud/opskb/internal/repository/knowledge"
	"github.com/kailas-cloud/opskb/internal/repository/vecindex"
	"github.com/kailas-cloud/opskb/internal/seed"
	chiTransport "github.com/kailas-cloud/opskb/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/opskb/internal/transport/openai"
	classifyuc "github.com/kailas-cloud/opskb/internal/usecase/classify"
	healthuc "github.com/kailas-cloud/opskb/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/opskb/internal/usecase/indexing"
	retrievaluc "github.com/kailas-cloud/opskb/internal/usecase/retrieval"
	"github.com/kailas-cloud/opskb/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting opskb API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
	recorder := metrics.NewRecorder()

	// Embedder chain: OpenAI -> Cached -> Breaker
	baseEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutMS) * time.Millisecond,
		Logger:     logger,
	})
	var embedder domain.Embedder = embcache.New(
		baseEmbedder, store, cfg.Storage.KeyPrefix, cfg.Embedding.Model,
		time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
		metrics.EmbeddingCacheTotal, logger,
	)
	embedder = openaiEmb.NewBreakerEmbedder(embedder, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Vector indexes, one per corpus
	indexTimeout := time.Duration(cfg.Retrieval.IndexTimeoutMS) * time.Millisecond
	docVector := vecindex.New(store, vecindex.Config{
		IndexName:  "opskb_doc_idx",
		HashPrefix: cfg.Storage.KeyPrefix + "vecdoc:",
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    indexTimeout,
		Logger:     logger,
	})
	incVector := vecindex.New(store, vecindex.Config{
		IndexName:  "opskb_inc_idx",
		HashPrefix: cfg.Storage.KeyPrefix + "vecinc:",
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    indexTimeout,
		Logger:     logger,
	})
	if err := docVector.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure document vector index", zap.Error(err))
	}
	if err := incVector.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure incident vector index", zap.Error(err))
	}

	// In-memory lexical indexes, rebuilt from the stores below
	docLexical := lexical.New()
	incLexical := lexical.New()

	// Result caches, one per corpus
	cacheOpts := func() cache.Options {
		return cache.Options{
			TTL:           time.Duration(cfg.Cache.TTLSec) * time.Second,
			SweepInterval: time.Duration(cfg.Cache.SweepSec) * time.Second,
			MaxEntries:    cfg.Cache.MaxEntries,
			CacheTotal:    metrics.CacheTotal,
			Logger:        logger,
		}
	}
	docCache := cache.New(cacheOpts())
	defer docCache.Close()
	incCache := cache.New(cacheOpts())
	defer incCache.Close()

	// Repositories
	docRepo := knowledgerepo.New(store, cfg.Storage.KeyPrefix)
	incRepo := incidentrepo.New(store, cfg.Storage.KeyPrefix)

	// Use case services
	docSearch := retrievaluc.New(
		docLexical, docVector, embedder, docRepo, docCache, recorder, logger,
		retrievalConfig("search", cfg),
	)
	incSearch := retrievaluc.New(
		incLexical, incVector, embedder, incRepo, incCache, recorder, logger,
		retrievalConfig("incident_search", cfg),
	)
	classifySvc := classifyuc.New(incSearch, incRepo, recorder, logger, classifyuc.Config{
		SimilarN:                 cfg.Classify.SimilarN,
		CategoryThreshold:        cfg.Classify.CategoryThreshold,
		FallbackConfidence:       cfg.Classify.FallbackConfidence,
		DefaultResolutionMinutes: cfg.Classify.DefaultResolutionMinutes,
		DefaultSeverity:          cfg.Classify.DefaultSeverity,
		DefaultPriority:          cfg.Classify.DefaultPriority,
	})
	indexingSvc := indexinguc.New(
		docRepo, incRepo, embedder,
		docLexical, docVector, docCache,
		incLexical, incVector, incCache,
		logger,
	)
	healthSvc := healthuc.New(store, baseEmbedder, docVector, incVector, docLexical, incLexical)

	if err := indexingSvc.RebuildLexical(ctx); err != nil {
		logger.Fatal("Failed to rebuild lexical indexes", zap.Error(err))
	}

	if cfg.Seed.Enabled {
		if err := seed.Load(ctx, indexingSvc, logger); err != nil {
			logger.Warn("Seed load failed", zap.Error(err))
		}
	}

	server := chiTransport.NewServer(docSearch, classifySvc, indexingSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Routes())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func retrievalConfig(operation string, cfg config.Config) retrievaluc.Config {
	return retrievaluc.Config{
		Operation:         operation,
		VectorWeight:      cfg.Retrieval.VectorWeight,
		LexicalWeight:     cfg.Retrieval.LexicalWeight,
		DefaultMaxResults: cfg.Retrieval.DefaultMaxResults,
		MaxResultsCap:     cfg.Retrieval.MaxResultsCap,
		CandidateK:        cfg.Retrieval.CandidateK,
		MaxQueryBytes:     cfg.Retrieval.MaxQueryBytes,
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWith(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
