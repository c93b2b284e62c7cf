package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// BreakerEmbedder wraps an Embedder with a circuit breaker so a provider
// outage fails fast instead of burning the per-request timeout on every call.
type BreakerEmbedder struct {
	inner   domain.Embedder
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerEmbedder creates a breaker decorator. The circuit opens after 3
// consecutive failures and probes again after 30 seconds.
func NewBreakerEmbedder(inner domain.Embedder, logger *zap.Logger) *BreakerEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerEmbedder{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "embedding",
			MaxRequests: 2,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("embedding breaker state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

// Embed implements domain.Embedder.
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	v, err := b.breaker.Execute(func() (any, error) {
		return b.inner.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.EmbeddingResult{}, fmt.Errorf("%w: circuit open", domain.ErrEmbeddingUnavailable)
		}
		return domain.EmbeddingResult{}, err
	}
	return v.(domain.EmbeddingResult), nil
}
