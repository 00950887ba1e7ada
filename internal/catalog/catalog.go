// Package catalog tracks documents through the ingestion lifecycle so
// operators can see what has been ingested, when, and with what result.
package catalog

import (
	"context"
	"time"
)

// Ingestion states, in the order a document moves through them.
const (
	StatusReceived = "received"
	StatusParsed   = "parsed"
	StatusChunked  = "chunked"
	StatusEmbedded = "embedded"
	StatusStored   = "stored"
	StatusFailed   = "failed"
)

// Document is a catalog entry for one ingested document.
type Document struct {
	ID         string
	Name       string
	Format     string
	Status     string
	ChunkCount int
	Error      string
	IngestedAt time.Time
	UpdatedAt  time.Time
}

// Repository persists document records. Implementations must treat
// Record as an upsert keyed by document ID so re-ingestion overwrites
// the previous entry.
type Repository interface {
	// Record upserts the document entry.
	Record(ctx context.Context, doc Document) error
	// SetStatus advances the document's lifecycle state. A non-empty
	// errMsg marks the failure reason alongside StatusFailed.
	SetStatus(ctx context.Context, documentID, status, errMsg string) error
	// Get returns the entry for a document.
	Get(ctx context.Context, documentID string) (Document, error)
	// List returns all entries, most recently updated first.
	List(ctx context.Context) ([]Document, error)
	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Nop is a Repository that records nothing. It stands in when no
// catalog backend is configured.
type Nop struct{}

func (Nop) Record(context.Context, Document) error { return nil }

func (Nop) SetStatus(context.Context, string, string, string) error { return nil }

func (Nop) Get(context.Context, string) (Document, error) { return Document{}, nil }

func (Nop) List(context.Context) ([]Document, error) { return nil, nil }

func (Nop) Close(context.Context) error { return nil }
