package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ==================== AuditConfig Tests ====================

func TestDefaultAuditConfig(t *testing.T) {
	cfg := DefaultAuditConfig()
	if !cfg.Enabled {
		t.Fatal("expected enabled by default")
	}
	if cfg.OutputPath != "stdout" {
		t.Fatalf("expected stdout, got %s", cfg.OutputPath)
	}
}

// ==================== AuditLogger Tests ====================

func TestAuditLogger_New_Stdout(t *testing.T) {
	l, err := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestAuditLogger_New_File(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	l, err := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: logPath,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Fatal("expected log file to be created")
	}
}

func TestAuditLogger_New_NilConfig(t *testing.T) {
	l, err := NewAuditLogger(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l == nil {
		t.Fatal("expected non-nil logger with default config")
	}
}

func TestAuditLogger_Log_Disabled(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{
		writer:  &buf,
		enabled: false,
	}

	err := l.Log(&AuditEvent{EventType: AuditEventDocumentReceived})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() > 0 {
		t.Fatal("expected no output when disabled")
	}
}

func TestAuditLogger_Log_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{
		writer:    &buf,
		sessionID: "test-session",
		userID:    "test-user",
		enabled:   true,
	}

	err := l.Log(&AuditEvent{
		EventType:  AuditEventDocumentReceived,
		DocumentID: "doc-1",
		Success:    true,
		Message:    "test message",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var event AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	if event.EventType != AuditEventDocumentReceived {
		t.Fatalf("expected document.received, got %s", event.EventType)
	}
	if event.DocumentID != "doc-1" {
		t.Fatalf("expected doc-1, got %s", event.DocumentID)
	}
	if event.SessionID != "test-session" {
		t.Fatalf("expected test-session, got %s", event.SessionID)
	}
	if event.UserID != "test-user" {
		t.Fatalf("expected test-user, got %s", event.UserID)
	}
}

func TestAuditLogger_Log_FillsTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{
		writer:  &buf,
		enabled: true,
	}

	before := time.Now().UTC()
	l.Log(&AuditEvent{EventType: AuditEventDocumentReceived})
	after := time.Now().UTC()

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.Timestamp.Before(before) || event.Timestamp.After(after) {
		t.Fatal("timestamp should be set automatically")
	}
}

func TestAuditLogger_SessionID_Generated(t *testing.T) {
	l, _ := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	})

	if l.sessionID == "" {
		t.Fatal("expected auto-generated session ID")
	}
	if !strings.HasPrefix(l.sessionID, "session-") {
		t.Fatalf("expected session- prefix, got %s", l.sessionID)
	}
}

// ==================== Convenience Methods Tests ====================

func TestAuditLogger_LogDocumentReceived(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogDocumentReceived(context.Background(), "doc-1", "guide.md", "markdown", 2048)

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventDocumentReceived {
		t.Fatalf("expected document.received, got %s", event.EventType)
	}
	if event.DocumentID != "doc-1" {
		t.Fatalf("expected doc-1, got %s", event.DocumentID)
	}
	if event.Details["format"] != "markdown" {
		t.Fatalf("expected markdown, got %v", event.Details["format"])
	}
}

func TestAuditLogger_LogDocumentStored(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogDocumentStored(context.Background(), "doc-1", 42, 5*time.Second)

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventDocumentStored {
		t.Fatalf("expected document.stored, got %s", event.EventType)
	}
	if !event.Success {
		t.Fatal("expected success=true")
	}
	if event.Details["chunk_count"].(float64) != 42 {
		t.Fatalf("expected 42 chunks, got %v", event.Details["chunk_count"])
	}
}

func TestAuditLogger_LogDocumentFailed(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogDocumentFailed(context.Background(), "doc-1", "embed",
		&testError{msg: "rate limited"})

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventDocumentFailed {
		t.Fatalf("expected document.failed, got %s", event.EventType)
	}
	if event.Success {
		t.Fatal("expected success=false for error")
	}
	if event.ErrorDetail != "rate limited" {
		t.Fatalf("expected error detail, got %s", event.ErrorDetail)
	}
	if event.Details["stage"] != "embed" {
		t.Fatalf("expected embed stage, got %v", event.Details["stage"])
	}
}

func TestAuditLogger_LogEmbedRequest(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogEmbedRequest(context.Background(), "openai", 64, 2*time.Second)

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventEmbedRequest {
		t.Fatalf("expected embed.request, got %s", event.EventType)
	}
	if event.Details["provider"] != "openai" {
		t.Fatalf("expected openai, got %v", event.Details["provider"])
	}
	if event.Details["text_count"].(float64) != 64 {
		t.Fatalf("expected 64 texts, got %v", event.Details["text_count"])
	}
}

func TestAuditLogger_LogEmbedError(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogEmbedError(context.Background(), "openai",
		&testError{msg: "quota exceeded"})

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventEmbedError {
		t.Fatalf("expected embed.error, got %s", event.EventType)
	}
	if event.Success {
		t.Fatal("expected success=false")
	}
}

func TestAuditLogger_LogSearchQuery(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogSearchQuery(context.Background(), 28, 5, 3, 100*time.Millisecond)

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventSearchQuery {
		t.Fatalf("expected search.query, got %s", event.EventType)
	}
	if event.Details["hit_count"].(float64) != 3 {
		t.Fatalf("expected 3 hits, got %v", event.Details["hit_count"])
	}
	// Query text must never be logged, only its length.
	if _, ok := event.Details["query"]; ok {
		t.Fatal("query text should not appear in audit log")
	}
}

func TestAuditLogger_LogWorkflowStart(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogWorkflowStart(context.Background(), "wf-456", "doc-1")

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventWorkflowStart {
		t.Fatalf("expected workflow.start, got %s", event.EventType)
	}
	if event.WorkflowID != "wf-456" {
		t.Fatalf("expected wf-456, got %s", event.WorkflowID)
	}
}

func TestAuditLogger_LogWorkflowEnd(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogWorkflowEnd(context.Background(), "wf-456", "doc-1", true, 10*time.Minute, 42)

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventWorkflowEnd {
		t.Fatalf("expected workflow.end, got %s", event.EventType)
	}
	if !event.Success {
		t.Fatal("expected success=true")
	}
}

func TestAuditLogger_Close_File(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	l, _ := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: logPath,
	})

	l.Log(&AuditEvent{EventType: AuditEventDocumentReceived})
	err := l.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Verify file exists and has content
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log content")
	}
}

func TestAuditLogger_Close_Stdout(t *testing.T) {
	l, _ := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	})

	// Should not error when closing stdout
	err := l.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ==================== Global Logger Tests ====================

func TestAudit_DisabledByDefault(t *testing.T) {
	// Reset global state
	globalAuditLogger = nil

	l := Audit()
	if l.enabled {
		t.Fatal("expected disabled logger when not initialized")
	}
}

// ==================== Event Type Constants ====================

func TestAuditEventTypes(t *testing.T) {
	types := []AuditEventType{
		AuditEventDocumentReceived,
		AuditEventDocumentStored,
		AuditEventDocumentFailed,
		AuditEventDocumentDeleted,
		AuditEventEmbedRequest,
		AuditEventEmbedError,
		AuditEventSearchQuery,
		AuditEventWorkflowStart,
		AuditEventWorkflowEnd,
	}

	for _, et := range types {
		if et == "" {
			t.Fatal("event type should not be empty")
		}
	}
}

// Helper error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
