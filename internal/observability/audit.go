package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventDocumentReceived AuditEventType = "document.received"
	AuditEventDocumentStored   AuditEventType = "document.stored"
	AuditEventDocumentFailed   AuditEventType = "document.failed"
	AuditEventDocumentDeleted  AuditEventType = "document.deleted"
	AuditEventEmbedRequest     AuditEventType = "embed.request"
	AuditEventEmbedError       AuditEventType = "embed.error"
	AuditEventSearchQuery      AuditEventType = "search.query"
	AuditEventWorkflowStart    AuditEventType = "workflow.start"
	AuditEventWorkflowEnd      AuditEventType = "workflow.end"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	EventType   AuditEventType         `json:"event_type"`
	SessionID   string                 `json:"session_id"`
	WorkflowID  string                 `json:"workflow_id,omitempty"`
	DocumentID  string                 `json:"document_id,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	Success     bool                   `json:"success"`
	Duration    time.Duration          `json:"duration_ms,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	ErrorDetail string                 `json:"error_detail,omitempty"`
}

// AuditLogger handles audit event logging.
type AuditLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	sessionID string
	userID    string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	SessionID  string
	UserID     string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	switch config.OutputPath {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: sessionID,
		userID:    config.UserID,
		enabled:   config.Enabled,
	}, nil
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Fill in defaults
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	if event.UserID == "" {
		event.UserID = l.userID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogDocumentReceived logs arrival of a document for ingestion.
func (l *AuditLogger) LogDocumentReceived(ctx context.Context, documentID, name, format string, size int) {
	l.Log(&AuditEvent{
		EventType:  AuditEventDocumentReceived,
		DocumentID: documentID,
		Success:    true,
		Message:    fmt.Sprintf("Document %s received", name),
		Details: map[string]interface{}{
			"name":   name,
			"format": format,
			"size":   size,
		},
	})
}

// LogDocumentStored logs a completed ingestion.
func (l *AuditLogger) LogDocumentStored(ctx context.Context, documentID string, chunkCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:  AuditEventDocumentStored,
		DocumentID: documentID,
		Success:    true,
		Duration:   duration,
		Message:    fmt.Sprintf("Document stored: %d chunks", chunkCount),
		Details: map[string]interface{}{
			"chunk_count": chunkCount,
		},
	})
}

// LogDocumentFailed logs a failed ingestion with the failing stage.
func (l *AuditLogger) LogDocumentFailed(ctx context.Context, documentID, stage string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventDocumentFailed,
		DocumentID:  documentID,
		Success:     false,
		Message:     fmt.Sprintf("Document failed at %s", stage),
		ErrorDetail: err.Error(),
		Details: map[string]interface{}{
			"stage": stage,
		},
	})
}

// LogDocumentDeleted logs removal of a document's chunks.
func (l *AuditLogger) LogDocumentDeleted(ctx context.Context, documentID string) {
	l.Log(&AuditEvent{
		EventType:  AuditEventDocumentDeleted,
		DocumentID: documentID,
		Success:    true,
		Message:    "Document deleted",
	})
}

// LogEmbedRequest logs an embedding API call.
func (l *AuditLogger) LogEmbedRequest(ctx context.Context, provider string, textCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventEmbedRequest,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("Embedded %d texts via %s", textCount, provider),
		Details: map[string]interface{}{
			"provider":   provider,
			"text_count": textCount,
		},
	})
}

// LogEmbedError logs an embedding failure.
func (l *AuditLogger) LogEmbedError(ctx context.Context, provider string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventEmbedError,
		Success:     false,
		Message:     fmt.Sprintf("Embedding error from %s", provider),
		ErrorDetail: err.Error(),
		Details: map[string]interface{}{
			"provider": provider,
		},
	})
}

// LogSearchQuery logs a retrieval request. The query text itself is not
// recorded; only its length, so the log stays free of user content.
func (l *AuditLogger) LogSearchQuery(ctx context.Context, queryLen, limit, hitCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventSearchQuery,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("Search returned %d hits", hitCount),
		Details: map[string]interface{}{
			"query_length": queryLen,
			"limit":        limit,
			"hit_count":    hitCount,
		},
	})
}

// LogWorkflowStart logs an ingestion workflow start event.
func (l *AuditLogger) LogWorkflowStart(ctx context.Context, workflowID, documentID string) {
	l.Log(&AuditEvent{
		EventType:  AuditEventWorkflowStart,
		WorkflowID: workflowID,
		DocumentID: documentID,
		Success:    true,
		Message:    "Ingestion workflow started",
	})
}

// LogWorkflowEnd logs an ingestion workflow completion event.
func (l *AuditLogger) LogWorkflowEnd(ctx context.Context, workflowID, documentID string, success bool, duration time.Duration, chunkCount int) {
	l.Log(&AuditEvent{
		EventType:  AuditEventWorkflowEnd,
		WorkflowID: workflowID,
		DocumentID: documentID,
		Success:    success,
		Duration:   duration,
		Message:    fmt.Sprintf("Ingestion workflow completed: %d chunks", chunkCount),
		Details: map[string]interface{}{
			"chunk_count": chunkCount,
		},
	})
}

// Close closes the audit logger (if using a file).
func (l *AuditLogger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}

// Global audit logger instance
var globalAuditLogger *AuditLogger
var auditOnce sync.Once

// InitGlobalAuditLogger initializes the global audit logger.
func InitGlobalAuditLogger(config *AuditConfig) error {
	var err error
	auditOnce.Do(func() {
		globalAuditLogger, err = NewAuditLogger(config)
	})
	return err
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if globalAuditLogger == nil {
		// Return a disabled logger if not initialized
		return &AuditLogger{enabled: false}
	}
	return globalAuditLogger
}
