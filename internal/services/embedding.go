package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EmbeddingProvider turns text into fixed-dimension vectors.
type EmbeddingProvider interface {
	Name() string
	ModelName() string
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type RetryStrategy interface {
	NextBackoff(attempt int) int64 // ms, negative to stop retrying
}

// SimpleRetryStrategy provides basic exponential backoff.
type SimpleRetryStrategy struct {
	MaxAttempts int
	BaseDelayMs int64
}

func (s *SimpleRetryStrategy) NextBackoff(attempt int) int64 {
	if s.MaxAttempts <= 0 || attempt >= s.MaxAttempts {
		return -1
	}
	backoff := s.BaseDelayMs * (1 << attempt)
	const maxDelayMs = 30000
	if backoff > maxDelayMs {
		backoff = maxDelayMs
	}
	return backoff
}

// FallbackEmbedder tries providers in order. The active provider is
// retried per the strategy before the next one takes over; once every
// provider has been cycled through, the call fails.
type FallbackEmbedder struct {
	providers []EmbeddingProvider
	retry     RetryStrategy

	mu     sync.RWMutex
	active int
}

var _ EmbeddingProvider = (*FallbackEmbedder)(nil)

func NewFallbackEmbedder(providers []EmbeddingProvider, strategy RetryStrategy) (*FallbackEmbedder, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one embedding provider is required")
	}
	if strategy == nil {
		strategy = &SimpleRetryStrategy{MaxAttempts: 3, BaseDelayMs: 100}
	}
	// Mixed dimensions would corrupt the index.
	dim := providers[0].Dimension()
	for _, p := range providers[1:] {
		if p.Dimension() != dim {
			return nil, fmt.Errorf("all embedding providers must have the same dimension (provider %s has %d, expected %d)",
				p.Name(), p.Dimension(), dim)
		}
	}
	return &FallbackEmbedder{providers: providers, retry: strategy}, nil
}

func (s *FallbackEmbedder) activeProvider() EmbeddingProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.providers[s.active]
}

func (s *FallbackEmbedder) Name() string      { return s.activeProvider().Name() }
func (s *FallbackEmbedder) ModelName() string { return s.activeProvider().ModelName() }
func (s *FallbackEmbedder) Dimension() int    { return s.activeProvider().Dimension() }

func (s *FallbackEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := s.withFallback(ctx, func(p EmbeddingProvider) error {
		var opErr error
		vec, opErr = p.GenerateEmbedding(ctx, text)
		return opErr
	})
	return vec, err
}

func (s *FallbackEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := s.withFallback(ctx, func(p EmbeddingProvider) error {
		var opErr error
		vecs, opErr = p.GenerateEmbeddings(ctx, texts)
		if opErr == nil && len(vecs) != len(texts) {
			return fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(texts))
		}
		return opErr
	})
	return vecs, err
}

// withFallback runs op against the active provider, retrying per the
// strategy and rotating to the next provider once retries are spent.
func (s *FallbackEmbedder) withFallback(ctx context.Context, op func(EmbeddingProvider) error) error {
	s.mu.RLock()
	start := s.active
	s.mu.RUnlock()

	var lastErr error
	attempt := 0
	for {
		provider := s.activeProvider()
		err := op(provider)
		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled during embedding generation: %w", ctx.Err())
		}
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("provider %s failed: %w", provider.Name(), err)
		log.WithError(err).Warnf("Embedding provider %s failed", provider.Name())

		backoffMs := s.retry.NextBackoff(attempt)
		if backoffMs < 0 {
			s.mu.Lock()
			next := (s.active + 1) % len(s.providers)
			if next == start {
				s.mu.Unlock()
				return fmt.Errorf("all embedding providers failed: %w", lastErr)
			}
			s.active = next
			log.Warnf("Switching active embedding provider to %s", s.providers[next].Name())
			s.mu.Unlock()
			attempt = 0
			continue
		}

		select {
		case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			attempt++
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting to retry: %w", ctx.Err())
		}
	}
}
