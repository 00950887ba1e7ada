package embedding

import (
	"context"
	"strings"
	"testing"
)

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute != 60 {
		t.Fatalf("expected 60 RPM, got %d", cfg.RequestsPerMinute)
	}
	if cfg.TokensPerMinute != 150000 {
		t.Fatalf("expected 150000 TPM, got %d", cfg.TokensPerMinute)
	}
	if cfg.BurstSize != 5 {
		t.Fatalf("expected burst 5, got %d", cfg.BurstSize)
	}
}

func TestRateLimitProvider_BurstAllowed(t *testing.T) {
	inner := &fakeProvider{}
	rl := NewRateLimitProvider(inner, &RateLimitConfig{
		RequestsPerMinute: 60,
		TokensPerMinute:   100000,
		BurstSize:         5,
	}, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := rl.EmbedBatch(ctx, []string{"text"}); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if inner.calls != 5 {
		t.Fatalf("expected 5 calls, got %d", inner.calls)
	}
}

func TestRateLimitProvider_TokenTracking(t *testing.T) {
	inner := &fakeProvider{}
	rl := NewRateLimitProvider(inner, &RateLimitConfig{
		RequestsPerMinute: 100,
		TokensPerMinute:   10,
		BurstSize:         10,
	}, func(s string) int { return len(strings.Fields(s)) })

	ctx := context.Background()
	if _, err := rl.EmbedBatch(ctx, []string{"one two three", "four five"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}

	stats := rl.Stats()
	if stats.TokensInWindow != 5 {
		t.Fatalf("expected 5 tokens in window, got %d", stats.TokensInWindow)
	}
	if stats.RemainingTokens != 5 {
		t.Fatalf("expected 5 remaining tokens, got %d", stats.RemainingTokens)
	}
	if stats.RequestsInWindow != 1 {
		t.Fatalf("expected 1 request in window, got %d", stats.RequestsInWindow)
	}
}

func TestRateLimitProvider_ContextCancellation(t *testing.T) {
	inner := &fakeProvider{}
	rl := NewRateLimitProvider(inner, &RateLimitConfig{
		RequestsPerMinute: 6000,
		TokensPerMinute:   100000,
		BurstSize:         1,
	}, nil)

	ctx := context.Background()
	if _, err := rl.EmbedBatch(ctx, []string{"a"}); err != nil {
		t.Fatalf("first request: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rl.EmbedBatch(cancelCtx, []string{"b"})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRateLimitProvider_Unlimited(t *testing.T) {
	inner := &fakeProvider{}
	rl := NewRateLimitProvider(inner, &RateLimitConfig{}, nil)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if _, err := rl.EmbedBatch(ctx, []string{"a"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 20 {
		t.Fatalf("expected 20 calls, got %d", inner.calls)
	}
}

func TestRateLimitProvider_NilConfig(t *testing.T) {
	rl := NewRateLimitProvider(&fakeProvider{}, nil, nil)

	stats := rl.Stats()
	if rl.config.RequestsPerMinute != 60 {
		t.Fatalf("expected default 60 RPM, got %d", rl.config.RequestsPerMinute)
	}
	if stats.RemainingRequests != 5 {
		t.Fatalf("expected 5 remaining requests, got %d", stats.RemainingRequests)
	}
}
