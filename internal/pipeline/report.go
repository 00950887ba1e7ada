package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// DocumentResult summarizes one document's trip through the pipeline.
type DocumentResult struct {
	DocumentID  string        `json:"document_id"`
	Name        string        `json:"name"`
	Format      string        `json:"format"`
	ChunkCount  int           `json:"chunk_count"`
	VectorCount int           `json:"vector_count"`
	Duration    time.Duration `json:"duration_ms"`
}

// Report collects statistics for a batch ingestion run.
type Report struct {
	mu sync.Mutex

	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	Duration   time.Duration    `json:"duration_ms,omitempty"`
	Documents  []DocumentResult `json:"documents"`
	Errors     []string         `json:"errors,omitempty"`
}

// NewReport starts tracking a batch run.
func NewReport() *Report {
	return &Report{StartedAt: time.Now()}
}

// AddResult records a successful document.
func (r *Report) AddResult(res DocumentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Documents = append(r.Documents, res)
}

// AddFailure records a failed document.
func (r *Report) AddFailure(documentID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", documentID, err))
}

// Finish marks the batch as complete.
func (r *Report) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded returns the number of documents that stored cleanly.
func (r *Report) Succeeded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Documents)
}

// Failed returns the number of documents that errored.
func (r *Report) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors)
}

// TotalChunks returns the chunk count across all stored documents.
func (r *Report) TotalChunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, d := range r.Documents {
		total += d.ChunkCount
	}
	return total
}

// PrintSummary writes a human-readable summary.
func (r *Report) PrintSummary(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║        INGESTION REPORT              ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Documents:   %-23d║\n", len(r.Documents))
	fmt.Fprintf(w, "║ Failures:    %-23d║\n", len(r.Errors))
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	for _, d := range r.Documents {
		fmt.Fprintf(w, "║   %-20s %4d chunks  %8s\n", d.Name, d.ChunkCount, d.Duration.Round(time.Millisecond))
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the report as formatted JSON.
func (r *Report) JSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.MarshalIndent(r, "", "  ")
}
