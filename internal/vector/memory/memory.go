// Package memory implements the vector store in process memory. It
// backs tests and small local setups where running Qdrant is overkill.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/selimova/docsift/internal/vector"
)

// Store keeps records in a map and answers searches by brute-force
// cosine similarity.
type Store struct {
	collection string

	mu        sync.RWMutex
	dimension int
	records   map[string]vector.Record
}

// New creates an empty store for the named collection.
func New(collection string) *Store {
	return &Store{
		collection: collection,
		records:    make(map[string]vector.Record),
	}
}

// EnsureCollection fixes the dimension on first call and verifies it on
// later ones.
func (s *Store) EnsureCollection(_ context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		s.dimension = dimension
		return nil
	}
	if s.dimension != dimension {
		return fmt.Errorf("%w: collection %q has dimension %d, provider produces %d",
			vector.ErrSchemaMismatch, s.collection, s.dimension, dimension)
	}
	return nil
}

// Upsert replaces records by ID.
func (s *Store) Upsert(_ context.Context, records []vector.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if s.dimension > 0 && len(rec.Vector) != s.dimension {
			return fmt.Errorf("%w: record %s has dimension %d, collection expects %d",
				vector.ErrSchemaMismatch, rec.ID, len(rec.Vector), s.dimension)
		}
		s.records[rec.ID] = rec
	}
	return nil
}

// Search ranks all records by cosine similarity, descending. Ties break
// by ID so results are stable across runs.
func (s *Store) Search(_ context.Context, vec []float32, limit int, filter vector.Filter) ([]vector.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]vector.SearchResult, 0, len(s.records))
	for _, rec := range s.records {
		if filter.DocumentID != "" && rec.DocumentID != filter.DocumentID {
			continue
		}
		results = append(results, vector.SearchResult{
			ID:            rec.ID,
			DocumentID:    rec.DocumentID,
			Text:          rec.Text,
			HierarchyPath: rec.HierarchyPath,
			Score:         cosine(vec, rec.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteDocument removes every record belonging to the document.
func (s *Store) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if rec.DocumentID == documentID {
			delete(s.records, id)
		}
	}
	return nil
}

// Stats reports the record count and dimension.
func (s *Store) Stats(_ context.Context) (vector.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return vector.Stats{
		Collection: s.collection,
		PointCount: uint64(len(s.records)),
		Dimension:  s.dimension,
	}, nil
}

func (s *Store) Close() error { return nil }

// cosine returns the cosine similarity of a and b, 0 when either is a
// zero vector or lengths differ.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ vector.Store = (*Store)(nil)
