package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/selimova/docsift/internal/catalog"
	"github.com/selimova/docsift/internal/parser"
	"github.com/selimova/docsift/internal/pipeline"
	"github.com/selimova/docsift/internal/vector"
)

// DefaultMaxUploadBytes bounds a single ingestion request body.
const DefaultMaxUploadBytes = 32 << 20 // 32 MiB

// APIServer exposes the ingestion and retrieval pipelines over HTTP.
type APIServer struct {
	ingestor       *pipeline.Ingestor
	retriever      *pipeline.Retriever
	catalog        catalog.Repository
	maxUploadBytes int64
}

// APIConfig configures the API server.
type APIConfig struct {
	Ingestor  *pipeline.Ingestor
	Retriever *pipeline.Retriever
	// Catalog is optional; when nil the /stats document listing is omitted.
	Catalog        catalog.Repository
	MaxUploadBytes int64
}

// NewAPIServer creates an API server around the two pipelines.
func NewAPIServer(cfg APIConfig) (*APIServer, error) {
	if cfg.Ingestor == nil {
		return nil, fmt.Errorf("server: ingestor is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("server: retriever is required")
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &APIServer{
		ingestor:       cfg.Ingestor,
		retriever:      cfg.Retriever,
		catalog:        cfg.Catalog,
		maxUploadBytes: maxUpload,
	}, nil
}

// Handler returns the API routes.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	return mux
}

// Server builds an http.Server for the API routes. The caller owns
// startup and shutdown, typically through a ShutdownHandler hook.
func (s *APIServer) Server(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
}

type ingestRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Name       string `json:"name"`
	MIME       string `json:"mime,omitempty"`
	// Content is base64-encoded document bytes.
	Content string `json:"content"`
}

type ingestResponse struct {
	DocumentID   string `json:"document_id"`
	Name         string `json:"name"`
	Format       string `json:"format"`
	ChunksStored int    `json:"chunks_stored"`
	DurationMS   int64  `json:"duration_ms"`
}

func (s *APIServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	doc, err := s.decodeDocument(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.ingestor.IngestDocument(r.Context(), doc)
	if err != nil {
		s.writeError(w, ingestStatusCode(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{
		DocumentID:   doc.ID,
		Name:         doc.Name,
		Format:       res.Format,
		ChunksStored: res.VectorCount,
		DurationMS:   res.Duration.Milliseconds(),
	})
}

// decodeDocument accepts either a multipart upload (field "file") or a
// JSON body with base64 content.
func (s *APIServer) decodeDocument(r *http.Request) (pipeline.Document, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return pipeline.Document{}, fmt.Errorf("reading multipart file: %w", err)
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return pipeline.Document{}, fmt.Errorf("reading upload: %w", err)
		}
		docID := r.FormValue("document_id")
		if docID == "" {
			docID = documentID(header.Filename)
		}
		return pipeline.Document{
			ID:      docID,
			Name:    header.Filename,
			MIME:    header.Header.Get("Content-Type"),
			Content: content,
		}, nil
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return pipeline.Document{}, fmt.Errorf("decoding request: %w", err)
	}
	if req.Name == "" {
		return pipeline.Document{}, errors.New("name is required")
	}
	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("decoding content: %w", err)
	}
	docID := req.DocumentID
	if docID == "" {
		docID = documentID(req.Name)
	}
	return pipeline.Document{
		ID:      docID,
		Name:    req.Name,
		MIME:    req.MIME,
		Content: content,
	}, nil
}

// documentID derives a stable ID from the document name so re-uploading
// the same file updates its records in place.
func documentID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docsift://"+name)).String()
}

type searchRequest struct {
	Question   string `json:"question"`
	Limit      int    `json:"limit,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

type searchHit struct {
	Text          string   `json:"text"`
	Score         float32  `json:"score"`
	DocumentID    string   `json:"document_id"`
	HierarchyPath []string `json:"hierarchy_path,omitempty"`
}

type searchResponse struct {
	Results []searchHit `json:"results"`
}

func (s *APIServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	results, err := s.retriever.Search(r.Context(), req.Question, req.Limit, vector.Filter{DocumentID: req.DocumentID})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrInvalidQuery) {
			status = http.StatusBadRequest
		} else if errors.Is(err, vector.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err)
		return
	}

	resp := searchResponse{Results: make([]searchHit, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, searchHit{
			Text:          res.Text,
			Score:         res.Score,
			DocumentID:    res.DocumentID,
			HierarchyPath: res.HierarchyPath,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Collection  string            `json:"collection"`
	RecordCount uint64            `json:"record_count"`
	Dimension   int               `json:"dimension"`
	Documents   []documentSummary `json:"documents,omitempty"`
}

type documentSummary struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.retriever.Stats(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, vector.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err)
		return
	}

	resp := statsResponse{
		Collection:  stats.Collection,
		RecordCount: stats.PointCount,
		Dimension:   stats.Dimension,
	}
	if s.catalog != nil {
		// Catalog listing is best-effort; stats stay useful without it.
		if docs, err := s.catalog.List(r.Context()); err == nil {
			for _, d := range docs {
				resp.Documents = append(resp.Documents, documentSummary{
					DocumentID: d.ID,
					Name:       d.Name,
					Status:     d.Status,
					ChunkCount: d.ChunkCount,
					Error:      d.Error,
				})
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if docID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("document id is required"))
		return
	}
	if err := s.ingestor.DeleteDocument(r.Context(), docID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, vector.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ingestStatusCode maps a pipeline failure to an HTTP status by stage.
func ingestStatusCode(err error) int {
	var perr *parser.ParseError
	if errors.As(err, &perr) {
		return http.StatusBadRequest
	}
	if errors.Is(err, vector.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}
	var derr *pipeline.DocumentError
	if errors.As(err, &derr) {
		switch derr.Stage {
		case pipeline.StageParse, pipeline.StageChunk:
			return http.StatusBadRequest
		case pipeline.StageEmbed:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
