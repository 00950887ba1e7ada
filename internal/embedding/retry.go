package embedding

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxRetries int           // maximum retry attempts after the first call (0 = no retries)
	RetryDelay time.Duration // initial delay between retries
	MaxDelay   time.Duration // caps the exponential backoff
	Timeout    time.Duration // per-attempt timeout
}

// DefaultRetryConfig returns defaults tuned for hosted embedding APIs.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 5,
		RetryDelay: 1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    60 * time.Second,
	}
}

// RetryProvider wraps a Provider with timeout and retry logic.
type RetryProvider struct {
	inner  Provider
	config *RetryConfig

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryProvider wraps an existing provider with retry logic.
func NewRetryProvider(inner Provider, config *RetryConfig) *RetryProvider {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryProvider{
		inner:  inner,
		config: config,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

func (r *RetryProvider) Name() string { return r.inner.Name() }

func (r *RetryProvider) Dimension() int { return r.inner.Dimension() }

// EmbedBatch calls the inner provider, retrying transient failures with
// exponential backoff and jitter. Non-retryable errors and parent
// context cancellation end the loop immediately.
func (r *RetryProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.calculateBackoff(attempt)); err != nil {
				return nil, err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		vectors, err := r.inner.EmbedBatch(attemptCtx, texts)
		cancel()

		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxRetries, lastErr)
}

// EmbedOne embeds a single text through the same retry loop.
func (r *RetryProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, &Error{Provider: r.Name(), Err: errors.New("no embedding returned")}
	}
	return vectors[0], nil
}

// calculateBackoff returns delay * 2^(attempt-1), capped at MaxDelay,
// with -25%..+25% jitter so a burst of failed workers does not retry in
// lockstep.
func (r *RetryProvider) calculateBackoff(attempt int) time.Duration {
	delay := r.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
			break
		}
	}
	if delay <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int64N(int64(delay)/2)) - delay/4
	return delay + jitter
}

// retryable reports whether err is worth repeating. Provider errors
// carry the classification; anything else defaults to permanent so bad
// input fails fast.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Retryable
	}
	return false
}
