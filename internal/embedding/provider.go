// Package embedding turns chunk text into dense vectors through a
// pluggable provider, with batching, retry and rate limiting layered
// on top of the raw API client.
package embedding

import (
	"context"
	"fmt"
)

// Provider is the interface all embedding backends must implement.
type Provider interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedOne embeds a single text, typically a search query.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// Name returns the provider identifier (e.g. "openai").
	Name() string
	// Dimension returns the vector width the provider produces.
	Dimension() int
}

// Error wraps a provider failure with enough context to decide whether
// the call is worth repeating.
type Error struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("embedding: %s provider error (%s): %v", e.Provider, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
