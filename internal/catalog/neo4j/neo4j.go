// Package neo4j implements the document catalog on Neo4j.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/selimova/docsift/internal/catalog"
)

// Repository implements catalog.Repository using Neo4j.
type Repository struct {
	driver neo4j.DriverWithContext
}

// New connects to Neo4j and verifies connectivity up front.
func New(ctx context.Context, uri, username, password string) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Repository{driver: driver}, nil
}

// Record upserts the document node keyed by id.
func (r *Repository) Record(ctx context.Context, doc catalog.Document) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx,
			"MERGE (d:Document {id: $id}) "+
				"SET d.name = $name, d.format = $format, d.status = $status, "+
				"d.chunk_count = $chunks, d.error = $error, "+
				"d.ingested_at = $ingested, d.updated_at = $updated",
			map[string]any{
				"id":       doc.ID,
				"name":     doc.Name,
				"format":   doc.Format,
				"status":   doc.Status,
				"chunks":   doc.ChunkCount,
				"error":    doc.Error,
				"ingested": doc.IngestedAt.UTC().Format(time.RFC3339Nano),
				"updated":  time.Now().UTC().Format(time.RFC3339Nano),
			})
	})
	if err != nil {
		return fmt.Errorf("record document %s: %w", doc.ID, err)
	}
	return nil
}

// SetStatus updates the lifecycle state of an existing node.
func (r *Repository) SetStatus(ctx context.Context, documentID, status, errMsg string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx,
			"MERGE (d:Document {id: $id}) "+
				"SET d.status = $status, d.error = $error, d.updated_at = $updated",
			map[string]any{
				"id":      documentID,
				"status":  status,
				"error":   errMsg,
				"updated": time.Now().UTC().Format(time.RFC3339Nano),
			})
	})
	if err != nil {
		return fmt.Errorf("set status for %s: %w", documentID, err)
	}
	return nil
}

// Get returns a single document entry.
func (r *Repository) Get(ctx context.Context, documentID string) (catalog.Document, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (d:Document {id: $id}) "+
				"RETURN d.id, d.name, d.format, d.status, d.chunk_count, d.error, d.ingested_at, d.updated_at",
			map[string]any{"id": documentID})
		if err != nil {
			return nil, err
		}
		if !records.Next(ctx) {
			return nil, fmt.Errorf("document %s not found", documentID)
		}
		return documentFromRecord(records.Record()), nil
	})
	if err != nil {
		return catalog.Document{}, err
	}
	return result.(catalog.Document), nil
}

// List returns all entries, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]catalog.Document, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (d:Document) "+
				"RETURN d.id, d.name, d.format, d.status, d.chunk_count, d.error, d.ingested_at, d.updated_at "+
				"ORDER BY d.updated_at DESC",
			nil)
		if err != nil {
			return nil, err
		}
		var docs []catalog.Document
		for records.Next(ctx) {
			docs = append(docs, documentFromRecord(records.Record()))
		}
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]catalog.Document), nil
}

func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func documentFromRecord(rec *neo4j.Record) catalog.Document {
	doc := catalog.Document{
		ID:     stringField(rec, "d.id"),
		Name:   stringField(rec, "d.name"),
		Format: stringField(rec, "d.format"),
		Status: stringField(rec, "d.status"),
		Error:  stringField(rec, "d.error"),
	}
	if v, ok := rec.Get("d.chunk_count"); ok {
		if n, ok := v.(int64); ok {
			doc.ChunkCount = int(n)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, stringField(rec, "d.ingested_at")); err == nil {
		doc.IngestedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, stringField(rec, "d.updated_at")); err == nil {
		doc.UpdatedAt = t
	}
	return doc
}

func stringField(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

var _ catalog.Repository = (*Repository)(nil)
