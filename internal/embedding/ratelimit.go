package embedding

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig configures client-side rate limiting.
type RateLimitConfig struct {
	// RequestsPerMinute limits API calls per minute (0 = unlimited).
	RequestsPerMinute int
	// TokensPerMinute limits total input tokens per minute (0 = unlimited).
	TokensPerMinute int
	// BurstSize allows a short burst above the steady rate.
	BurstSize int
}

// DefaultRateLimitConfig returns limits safe for entry-tier API accounts.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 60,
		TokensPerMinute:   150000,
		BurstSize:         5,
	}
}

// RateLimitProvider wraps a provider with a token-bucket rate limiter.
type RateLimitProvider struct {
	inner       Provider
	config      *RateLimitConfig
	countTokens func(text string) int

	mu               sync.Mutex
	requestTokens    int
	tokenBudget      int
	lastRefill       time.Time
	requestsInWindow int
	tokensInWindow   int
	windowStart      time.Time
}

// NewRateLimitProvider creates a rate-limited provider wrapper.
// countTokens estimates the token cost of one input text; nil disables
// token-based limiting.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig, countTokens func(string) int) *RateLimitProvider {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	burstSize := config.BurstSize
	if burstSize <= 0 {
		burstSize = 1
	}
	if countTokens == nil {
		countTokens = func(string) int { return 0 }
	}

	return &RateLimitProvider{
		inner:         inner,
		config:        config,
		countTokens:   countTokens,
		requestTokens: burstSize,
		tokenBudget:   config.TokensPerMinute,
		lastRefill:    time.Now(),
		windowStart:   time.Now(),
	}
}

func (r *RateLimitProvider) Name() string { return r.inner.Name() }

func (r *RateLimitProvider) Dimension() int { return r.inner.Dimension() }

// EmbedBatch waits for capacity, delegates, then records token usage.
func (r *RateLimitProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}

	vectors, err := r.inner.EmbedBatch(ctx, texts)
	if err == nil {
		total := 0
		for _, t := range texts {
			total += r.countTokens(t)
		}
		r.trackTokenUsage(total)
	}
	return vectors, err
}

// EmbedOne waits for capacity and delegates.
func (r *RateLimitProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}

	vector, err := r.inner.EmbedOne(ctx, text)
	if err == nil {
		r.trackTokenUsage(r.countTokens(text))
	}
	return vector, err
}

// waitForCapacity blocks until the limiter allows a request.
func (r *RateLimitProvider) waitForCapacity(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refillTokens()

		if r.config.RequestsPerMinute == 0 && r.config.TokensPerMinute == 0 {
			r.requestsInWindow++
			r.mu.Unlock()
			return nil
		}

		hasRequestCapacity := r.config.RequestsPerMinute == 0 || r.requestTokens > 0
		hasTokenCapacity := r.config.TokensPerMinute == 0 || r.tokenBudget > 0

		if hasRequestCapacity && hasTokenCapacity {
			if r.config.RequestsPerMinute > 0 {
				r.requestTokens--
			}
			r.requestsInWindow++
			r.mu.Unlock()
			return nil
		}

		waitTime := r.calculateWaitTime()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// refillTokens adds request tokens based on elapsed time and resets the
// per-minute token window when it expires.
func (r *RateLimitProvider) refillTokens() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill)

	if r.config.RequestsPerMinute > 0 {
		toAdd := int(elapsed.Minutes() * float64(r.config.RequestsPerMinute))
		if toAdd > 0 {
			r.requestTokens += toAdd
			maxTokens := r.config.BurstSize
			if maxTokens <= 0 {
				maxTokens = 1
			}
			if r.requestTokens > maxTokens {
				r.requestTokens = maxTokens
			}
		}
	}

	if now.Sub(r.windowStart) >= time.Minute {
		r.windowStart = now
		r.requestsInWindow = 0
		r.tokensInWindow = 0
		r.tokenBudget = r.config.TokensPerMinute
	}

	r.lastRefill = now
}

func (r *RateLimitProvider) trackTokenUsage(tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokensInWindow += tokens
	r.tokenBudget -= tokens
	if r.tokenBudget < 0 {
		r.tokenBudget = 0
	}
}

// calculateWaitTime estimates how long to wait before checking again.
func (r *RateLimitProvider) calculateWaitTime() time.Duration {
	if r.config.RequestsPerMinute > 0 && r.requestTokens <= 0 {
		perSecond := float64(r.config.RequestsPerMinute) / 60.0
		if perSecond > 0 {
			return time.Duration(float64(time.Second) / perSecond)
		}
	}

	if r.config.TokensPerMinute > 0 && r.tokenBudget <= 0 {
		remaining := time.Minute - time.Since(r.windowStart)
		if remaining > 0 {
			return remaining
		}
	}

	return 100 * time.Millisecond
}

// RateLimitStats is a point-in-time snapshot of the limiter.
type RateLimitStats struct {
	RequestsInWindow  int
	TokensInWindow    int
	RemainingRequests int
	RemainingTokens   int
	WindowStart       time.Time
}

// Stats returns current rate limiting statistics.
func (r *RateLimitProvider) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RateLimitStats{
		RequestsInWindow:  r.requestsInWindow,
		TokensInWindow:    r.tokensInWindow,
		RemainingRequests: r.requestTokens,
		RemainingTokens:   r.tokenBudget,
		WindowStart:       r.windowStart,
	}
}
