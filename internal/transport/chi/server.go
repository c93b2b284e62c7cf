// Package chi is the HTTP transport for the retrieval and classification API.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/opskb/internal/domain"
	classifyuc "github.com/kailas-cloud/opskb/internal/usecase/classify"
	healthuc "github.com/kailas-cloud/opskb/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/opskb/internal/usecase/indexing"
	retrievaluc "github.com/kailas-cloud/opskb/internal/usecase/retrieval"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the engine over HTTP.
type Server struct {
	search        *retrievaluc.Service
	classify      *classifyuc.Service
	indexing      *indexinguc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *retrievaluc.Service,
	classify *classifyuc.Service,
	indexing *indexinguc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		classify: classify,
		indexing: indexing,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrIncidentNotFound, http.StatusNotFound, codeIncidentNotFound),
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, codeRetrievalUnavailable),
		sentinelHandler(domain.ErrLexicalIndexCorrupt, http.StatusServiceUnavailable, codeLexicalIndexCorrupt),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrVectorStoreUnavailable, http.StatusBadGateway, codeVectorStoreUnavailable),
	}
	return s
}

// Routes registers all API routes on a fresh router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)

		r.Route("/documents", func(r chi.Router) {
			r.Put("/{id}", s.handleUpsertDocument)
			r.Get("/{id}", s.handleGetDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
		})

		r.Route("/incidents", func(r chi.Router) {
			r.Post("/classify", s.handleClassify)
			r.Put("/{id}", s.handleUpsertIncident)
			r.Get("/{id}", s.handleGetIncident)
			r.Delete("/{id}", s.handleDeleteIncident)
		})

		r.Post("/admin/reindex", s.handleReindex)
	})

	return r
}

// handleSearch handles POST /api/v1/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), req.Query, req.filters(), req.MaxResults)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFromDomain(resp))
}

// handleClassify handles POST /api/v1/incidents/classify.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.classify.Classify(r.Context(), req.Description, req.Severity, req.Priority)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, classifyResponseFromDomain(result))
}

// handleUpsertDocument handles PUT /api/v1/documents/{id}.
func (s *Server) handleUpsertDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Title == "" && req.Body == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "document requires a title or body")
		return
	}

	doc := domain.Document{
		ID:       chi.URLParam(r, "id"),
		Title:    req.Title,
		Body:     req.Body,
		Category: req.Category,
		DocType:  req.DocType,
		Tags:     req.Tags,
	}

	created, err := s.indexing.UpsertDocument(r.Context(), &doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, documentResponseFromDomain(&doc))
}

// handleGetDocument handles GET /api/v1/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.indexing.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponseFromDomain(&doc))
}

// handleDeleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.indexing.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpsertIncident handles PUT /api/v1/incidents/{id}.
func (s *Server) handleUpsertIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Title == "" && req.Description == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "incident requires a title or description")
		return
	}

	in := domain.Incident{
		ID:                chi.URLParam(r, "id"),
		Title:             req.Title,
		Description:       req.Description,
		Category:          req.Category,
		Severity:          req.Severity,
		Priority:          req.Priority,
		Status:            req.Status,
		ResolutionMinutes: req.ResolutionMinutes,
	}
	if req.ResolvedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ResolvedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "resolved_at must be RFC3339")
			return
		}
		in.ResolvedAt = &t
	}

	created, err := s.indexing.UpsertIncident(r.Context(), &in)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, incidentResponseFromDomain(&in))
}

// handleGetIncident handles GET /api/v1/incidents/{id}.
func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	in, err := s.indexing.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incidentResponseFromDomain(&in))
}

// handleDeleteIncident handles DELETE /api/v1/incidents/{id}.
func (s *Server) handleDeleteIncident(w http.ResponseWriter, r *http.Request) {
	if err := s.indexing.DeleteIncident(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReindex handles POST /api/v1/admin/reindex.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	if req.Since == "" {
		req.Since = r.URL.Query().Get("since")
	}

	var since time.Time
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}

	result, err := s.indexing.Reindex(r.Context(), since)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponseFromReport(report))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrDocumentNotFound,
		domain.ErrIncidentNotFound,
		domain.ErrRetrievalUnavailable,
		domain.ErrLexicalIndexCorrupt,
		domain.ErrEmbeddingUnavailable,
		domain.ErrVectorStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
