package chi

import (
	"time"

	"github.com/kailas-cloud/opskb/internal/domain"
	healthuc "github.com/kailas-cloud/opskb/internal/usecase/health"
)

// errorCode is the machine-readable error identifier in error responses.
type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeInvalidQuery           errorCode = "invalid_query"
	codeDocumentNotFound       errorCode = "document_not_found"
	codeIncidentNotFound       errorCode = "incident_not_found"
	codeRetrievalUnavailable   errorCode = "retrieval_unavailable"
	codeLexicalIndexCorrupt    errorCode = "lexical_index_corrupt"
	codeEmbeddingUnavailable   errorCode = "embedding_unavailable"
	codeVectorStoreUnavailable errorCode = "vector_store_unavailable"
	codeInternalError          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type searchFilters struct {
	Category string `json:"category,omitempty"`
	DocType  string `json:"doc_type,omitempty"`
}

type searchRequest struct {
	Query      string         `json:"query"`
	Filters    *searchFilters `json:"filters,omitempty"`
	MaxResults int            `json:"max_results,omitempty"`
}

type searchResultItem struct {
	DocumentID   string  `json:"document_id"`
	Title        string  `json:"title,omitempty"`
	Excerpt      string  `json:"excerpt,omitempty"`
	Category     string  `json:"category,omitempty"`
	LexicalScore float64 `json:"lexical_score"`
	VectorScore  float64 `json:"vector_score"`
	FusedScore   float64 `json:"fused_score"`
	Rank         int     `json:"rank"`
	Source       string  `json:"source"`
}

type searchResponse struct {
	Results   []searchResultItem `json:"results"`
	Degraded  bool               `json:"degraded"`
	ElapsedMS float64            `json:"elapsed_ms"`
}

func searchResponseFromDomain(resp domain.RetrievalResponse) searchResponse {
	items := make([]searchResultItem, len(resp.Hits))
	for i, h := range resp.Hits {
		items[i] = searchResultItem{
			DocumentID:   h.DocumentID,
			Title:        h.Title,
			Excerpt:      h.Excerpt,
			Category:     h.Category,
			LexicalScore: h.LexicalScore,
			VectorScore:  h.VectorScore,
			FusedScore:   h.FusedScore,
			Rank:         h.Rank,
			Source:       string(h.Source),
		}
	}
	return searchResponse{
		Results:   items,
		Degraded:  resp.Degraded,
		ElapsedMS: resp.ElapsedMS,
	}
}

func (r *searchRequest) filters() domain.Filters {
	if r.Filters == nil {
		return domain.Filters{}
	}
	return domain.Filters{Category: r.Filters.Category, DocType: r.Filters.DocType}
}

type classifyRequest struct {
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

type similarIncidentItem struct {
	IncidentID        string  `json:"incident_id"`
	Title             string  `json:"title"`
	Excerpt           string  `json:"excerpt,omitempty"`
	FusedScore        float64 `json:"fused_score"`
	Severity          string  `json:"severity"`
	Priority          string  `json:"priority"`
	ResolutionMinutes int     `json:"resolution_minutes,omitempty"`
	Resolved          bool    `json:"resolved"`
}

type classifyResponse struct {
	IncidentID                 string                `json:"incident_id"`
	PredictedCategory          string                `json:"predicted_category"`
	Confidence                 float64               `json:"confidence"`
	SuggestedSeverity          string                `json:"suggested_severity"`
	SuggestedPriority          string                `json:"suggested_priority"`
	EstimatedResolutionMinutes int                   `json:"estimated_resolution_minutes"`
	SuggestedProcedures        []string              `json:"suggested_procedures,omitempty"`
	AssignedTeam               string                `json:"assigned_team"`
	SimilarIncidents           []similarIncidentItem `json:"similar_incidents"`
	KeywordFallback            bool                  `json:"keyword_fallback"`
	Degraded                   bool                  `json:"degraded"`
	ElapsedMS                  float64               `json:"elapsed_ms"`
}

func classifyResponseFromDomain(res domain.ClassificationResult) classifyResponse {
	similar := make([]similarIncidentItem, len(res.SimilarIncidents))
	for i, s := range res.SimilarIncidents {
		similar[i] = similarIncidentItem{
			IncidentID:        s.IncidentID,
			Title:             s.Title,
			Excerpt:           s.Excerpt,
			FusedScore:        s.FusedScore,
			Severity:          s.Severity,
			Priority:          s.Priority,
			ResolutionMinutes: s.ResolutionMinutes,
			Resolved:          s.Resolved,
		}
	}
	return classifyResponse{
		IncidentID:                 res.IncidentID,
		PredictedCategory:          res.PredictedCategory,
		Confidence:                 res.Confidence,
		SuggestedSeverity:          res.SuggestedSeverity,
		SuggestedPriority:          res.SuggestedPriority,
		EstimatedResolutionMinutes: res.EstimatedResolutionMinutes,
		SuggestedProcedures:        res.SuggestedProcedures,
		AssignedTeam:               res.AssignedTeam,
		SimilarIncidents:           similar,
		KeywordFallback:            res.KeywordFallback,
		Degraded:                   res.Degraded,
		ElapsedMS:                  res.ElapsedMS,
	}
}

type documentRequest struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Category string   `json:"category,omitempty"`
	DocType  string   `json:"doc_type,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type documentResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category,omitempty"`
	DocType   string    `json:"doc_type,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func documentResponseFromDomain(doc *domain.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		Title:     doc.Title,
		Body:      doc.Body,
		Category:  doc.Category,
		DocType:   doc.DocType,
		Tags:      doc.Tags,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

type incidentRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Category          string `json:"category,omitempty"`
	Severity          string `json:"severity,omitempty"`
	Priority          string `json:"priority,omitempty"`
	Status            string `json:"status,omitempty"`
	ResolutionMinutes int    `json:"resolution_minutes,omitempty"`
	ResolvedAt        string `json:"resolved_at,omitempty"`
}

type incidentResponse struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category,omitempty"`
	Severity          string     `json:"severity,omitempty"`
	Priority          string     `json:"priority,omitempty"`
	Status            string     `json:"status,omitempty"`
	ResolutionMinutes int        `json:"resolution_minutes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

func incidentResponseFromDomain(in *domain.Incident) incidentResponse {
	return incidentResponse{
		ID:                in.ID,
		Title:             in.Title,
		Description:       in.Description,
		Category:          in.Category,
		Severity:          in.Severity,
		Priority:          in.Priority,
		Status:            in.Status,
		ResolutionMinutes: in.ResolutionMinutes,
		CreatedAt:         in.CreatedAt,
		UpdatedAt:         in.UpdatedAt,
		ResolvedAt:        in.ResolvedAt,
	}
}

type reindexRequest struct {
	Since string `json:"since,omitempty"` // RFC3339; empty rebuilds everything
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func healthResponseFromReport(report healthuc.Report) healthResponse {
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return healthResponse{Status: string(report.Status), Checks: checks}
}
