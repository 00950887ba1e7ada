// Package vector defines the store abstraction chunk embeddings are
// written to and searched against.
package vector

import (
	"context"
	"errors"
)

// ErrSchemaMismatch reports that the collection exists with a vector
// width different from the one the embedding provider produces.
var ErrSchemaMismatch = errors.New("vector: collection dimension does not match embedding dimension")

// ErrStoreUnavailable reports that the backing store cannot be reached.
var ErrStoreUnavailable = errors.New("vector: store unavailable")

// Record is one embedded chunk as the store sees it.
type Record struct {
	ID            string
	DocumentID    string
	Ordinal       int
	Text          string
	HierarchyPath []string
	Vector        []float32
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID            string
	DocumentID    string
	Text          string
	HierarchyPath []string
	Score         float32
}

// Filter narrows a search. Zero value means no filtering.
type Filter struct {
	// DocumentID restricts hits to a single document when non-empty.
	DocumentID string
}

// Stats describes the collection.
type Stats struct {
	Collection string
	PointCount uint64
	Dimension  int
}

// Store is the persistence interface for embedded chunks. Upsert
// semantics: writing a record whose ID already exists replaces it.
type Store interface {
	// EnsureCollection creates the collection if missing and verifies the
	// vector dimension if it already exists.
	EnsureCollection(ctx context.Context, dimension int) error
	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record) error
	// Search returns up to limit hits ranked by descending similarity.
	Search(ctx context.Context, vector []float32, limit int, filter Filter) ([]SearchResult, error)
	// DeleteDocument removes every record belonging to the document.
	DeleteDocument(ctx context.Context, documentID string) error
	// Stats reports collection size and dimension.
	Stats(ctx context.Context) (Stats, error)
	// Close releases the underlying connection.
	Close() error
}
