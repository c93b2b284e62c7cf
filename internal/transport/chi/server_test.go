package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/opskb/internal/cache"
	"github.com/kailas-cloud/opskb/internal/domain"
	"github.com/kailas-cloud/opskb/internal/lexical"
	classifyuc "github.com/kailas-cloud/opskb/internal/usecase/classify"
	healthuc "github.com/kailas-cloud/opskb/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/opskb/internal/usecase/indexing"
	retrievaluc "github.com/kailas-cloud/opskb/internal/usecase/retrieval"
)

// --- Mocks ---

type memDocStore struct {
	docs map[string]domain.Document
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string]domain.Document)}
}

func (m *memDocStore) Get(_ context.Context, id string) (domain.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (m *memDocStore) Upsert(_ context.Context, doc *domain.Document) (bool, error) {
	_, existed := m.docs[doc.ID]
	m.docs[doc.ID] = *doc
	return !existed, nil
}

func (m *memDocStore) Delete(_ context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memDocStore) ListModifiedSince(_ context.Context, _ time.Time) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out, nil
}

func (m *memDocStore) Summaries(_ context.Context, ids []string) (map[string]domain.HitSummary, error) {
	out := make(map[string]domain.HitSummary, len(ids))
	for _, id := range ids {
		if d, ok := m.docs[id]; ok {
			out[id] = domain.HitSummary{Title: d.Title, Excerpt: d.Body, Category: d.Category}
		}
	}
	return out, nil
}

type memIncStore struct {
	incidents map[string]domain.Incident
}

func newMemIncStore() *memIncStore {
	return &memIncStore{incidents: make(map[string]domain.Incident)}
}

func (m *memIncStore) Get(_ context.Context, id string) (domain.Incident, error) {
	in, ok := m.incidents[id]
	if !ok {
		return domain.Incident{}, domain.ErrIncidentNotFound
	}
	return in, nil
}

func (m *memIncStore) Upsert(_ context.Context, in *domain.Incident) (bool, error) {
	_, existed := m.incidents[in.ID]
	m.incidents[in.ID] = *in
	return !existed, nil
}

func (m *memIncStore) Delete(_ context.Context, id string) error {
	if _, ok := m.incidents[id]; !ok {
		return domain.ErrIncidentNotFound
	}
	delete(m.incidents, id)
	return nil
}

func (m *memIncStore) ListModifiedSince(_ context.Context, _ time.Time) ([]domain.Incident, error) {
	out := make([]domain.Incident, 0, len(m.incidents))
	for _, in := range m.incidents {
		out = append(out, in)
	}
	return out, nil
}

func (m *memIncStore) GetMulti(_ context.Context, ids []string) ([]domain.Incident, error) {
	out := make([]domain.Incident, 0, len(ids))
	for _, id := range ids {
		if in, ok := m.incidents[id]; ok {
			out = append(out, in)
		}
	}
	return out, nil
}

func (m *memIncStore) CategoryAverageResolution(
	_ context.Context, _ string,
) (int, bool, error) {
	return 0, false, nil
}

func (m *memIncStore) Summaries(_ context.Context, ids []string) (map[string]domain.HitSummary, error) {
	out := make(map[string]domain.HitSummary, len(ids))
	for _, id := range ids {
		if in, ok := m.incidents[id]; ok {
			out[id] = domain.HitSummary{Title: in.Title, Excerpt: in.Description, Category: in.Category}
		}
	}
	return out, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

// stubVector accepts writes and returns nothing from queries, leaving the
// lexical index as the only retrieval source.
type stubVector struct{}

func (stubVector) Upsert(context.Context, string, []float32, map[string]string) error { return nil }

func (stubVector) Delete(context.Context, string) error { return nil }

func (stubVector) Query(context.Context, []float32, int, domain.Filters) ([]domain.VectorHit, error) {
	return nil, nil
}

func (stubVector) HealthCheck(context.Context) error { return nil }

type stubDB struct{}

func (stubDB) Ping(context.Context) error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, time.Duration, int) {}

func (noopMetrics) RecordDegraded(string) {}

func (noopMetrics) RecordClassification(string, string) {}

// --- Helpers ---

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()

	docs := newMemDocStore()
	incs := newMemIncStore()
	docLex := lexical.New()
	incLex := lexical.New()
	docCache := cache.New(cache.Options{TTL: time.Minute})
	incCache := cache.New(cache.Options{TTL: time.Minute})
	t.Cleanup(docCache.Close)
	t.Cleanup(incCache.Close)

	retrievalCfg := retrievaluc.Config{
		VectorWeight: 0.7, LexicalWeight: 0.3,
		DefaultMaxResults: 10, MaxResultsCap: 50,
		CandidateK: 20, MaxQueryBytes: 1024,
	}
	docSearch := retrievaluc.New(
		docLex, stubVector{}, stubEmbedder{}, docs, docCache,
		noopMetrics{}, logger, retrievalCfg)
	incCfg := retrievalCfg
	incCfg.Operation = "incident_search"
	incSearch := retrievaluc.New(
		incLex, stubVector{}, stubEmbedder{}, incs, incCache,
		noopMetrics{}, logger, incCfg)

	classify := classifyuc.New(incSearch, incs, noopMetrics{}, logger, classifyuc.Config{
		SimilarN: 5, CategoryThreshold: 0.5, FallbackConfidence: 0.3,
		DefaultResolutionMinutes: 60, DefaultSeverity: "medium", DefaultPriority: "normal",
	})

	indexing := indexinguc.New(
		docs, incs, stubEmbedder{},
		docLex, stubVector{}, docCache,
		incLex, stubVector{}, incCache,
		logger)

	health := healthuc.New(stubDB{}, stubVector{}, stubVector{}, stubVector{}, docLex, incLex)

	server := NewServer(docSearch, classify, indexing, health, logger)
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, out.Bytes()
}

func seedDocument(t *testing.T, ts *httptest.Server, id string, body map[string]any) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/api/v1/documents/"+id, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed document %s: status %d", id, resp.StatusCode)
	}
}

// --- Tests ---

func TestServer_DocumentLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPut, ts.URL+"/api/v1/documents/kb_001", map[string]any{
		"title": "VPN setup guide", "body": "Install the client and import the profile.",
		"category": "Network", "doc_type": "howto",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/v1/documents/kb_001", map[string]any{
		"title": "VPN setup guide", "body": "Updated steps.",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/documents/kb_001", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var doc documentResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Body != "Updated steps." {
		t.Errorf("expected the updated body, got %q", doc.Body)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/documents/kb_001", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/documents/kb_001", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if e.Code != codeDocumentNotFound {
		t.Errorf("expected code %q, got %q", codeDocumentNotFound, e.Code)
	}
}

func TestServer_SearchFindsIndexedDocument(t *testing.T) {
	ts := newTestServer(t)
	seedDocument(t, ts, "kb_001", map[string]any{
		"title": "Printer troubleshooting", "body": "Clear the paper jam and restart the spooler.",
		"category": "Infrastructure",
	})
	seedDocument(t, ts, "kb_002", map[string]any{
		"title": "VPN setup", "body": "Install the VPN client.", "category": "Network",
	})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/search", map[string]any{
		"query": "printer paper jam",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Results) == 0 {
		t.Fatal("expected at least one result")
	}
	top := result.Results[0]
	if top.DocumentID != "kb_001" {
		t.Errorf("expected kb_001 first, got %s", top.DocumentID)
	}
	if top.Title != "Printer troubleshooting" {
		t.Errorf("expected enriched title, got %q", top.Title)
	}
	if top.Rank != 1 {
		t.Errorf("expected rank 1, got %d", top.Rank)
	}
}

func TestServer_SearchRejectsEmptyQuery(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/search", map[string]any{
		"query": "   ",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if e.Code != codeInvalidQuery {
		t.Errorf("expected code %q, got %q", codeInvalidQuery, e.Code)
	}
}

func TestServer_SearchRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/search",
		bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_ClassifyIncident(t *testing.T) {
	ts := newTestServer(t)

	resolvedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/api/v1/incidents/INC-2024-001", map[string]any{
		"title":              "Orders database connection pool exhausted",
		"description":        "Checkout failing with database connection timeouts.",
		"category":           "Database",
		"severity":           "high",
		"priority":           "high",
		"status":             "resolved",
		"resolution_minutes": 40,
		"resolved_at":        resolvedAt,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed incident: status %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/incidents/classify", map[string]any{
		"description": "database connection timeouts during checkout",
		"severity":    "medium",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result classifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.PredictedCategory != "Database" {
		t.Errorf("expected Database, got %q", result.PredictedCategory)
	}
	if result.IncidentID == "" {
		t.Error("expected a generated incident id")
	}
	if result.AssignedTeam != "dba-team" {
		t.Errorf("expected dba-team, got %q", result.AssignedTeam)
	}
	if len(result.SimilarIncidents) != 1 {
		t.Errorf("expected 1 similar incident, got %d", len(result.SimilarIncidents))
	}
}

func TestServer_Reindex(t *testing.T) {
	ts := newTestServer(t)
	seedDocument(t, ts, "kb_001", map[string]any{"title": "A", "body": "a"})
	seedDocument(t, ts, "kb_002", map[string]any{"title": "B", "body": "b"})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/admin/reindex", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var result indexinguc.ReindexResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Documents != 2 || result.Incidents != 0 {
		t.Errorf("expected 2 documents and 0 incidents, got %+v", result)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/admin/reindex", map[string]any{
		"since": "not-a-timestamp",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad since, got %d", resp.StatusCode)
	}
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var h healthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if h.Status != "ok" {
		t.Errorf("expected status ok, got %q", h.Status)
	}
	if h.Checks["database"] != "ok" {
		t.Errorf("expected database ok, got %q", h.Checks["database"])
	}
}

func TestHandleDomainError_LogsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewServer(nil, nil, nil, nil, zap.New(core))

	rr := httptest.NewRecorder()
	s.handleDomainError(rr, fmt.Errorf("get document: %w", domain.ErrDocumentNotFound))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected exactly 1 log entry for a mapped error, got %d", logs.Len())
	}
	if logs.All()[0].Level != zap.WarnLevel {
		t.Errorf("mapped errors should log at Warn, got %v", logs.All()[0].Level)
	}

	rr = httptest.NewRecorder()
	s.handleDomainError(rr, errors.New("boom"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected exactly 1 log entry for an internal error, got %d total", len(entries))
	}
	if entries[1].Level != zap.ErrorLevel {
		t.Errorf("internal errors should log at Error, got %v", entries[1].Level)
	}
}
