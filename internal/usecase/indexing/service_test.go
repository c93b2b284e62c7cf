package indexing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/opskb/internal/domain"
	"github.com/kailas-cloud/opskb/internal/lexical"
)

// --- Mocks ---

type mockDocStore struct {
	docs      []domain.Document
	upsertErr error

	upserted []domain.Document
	deleted  []string
	created  bool
}

func (m *mockDocStore) Get(_ context.Context, id string) (domain.Document, error) {
	for _, d := range m.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.Document{}, domain.ErrDocumentNotFound
}

func (m *mockDocStore) Upsert(_ context.Context, doc *domain.Document) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	m.upserted = append(m.upserted, *doc)
	return m.created, nil
}

func (m *mockDocStore) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDocStore) ListModifiedSince(_ context.Context, ts time.Time) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		if ts.IsZero() || !d.UpdatedAt.Before(ts) {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockIncStore struct {
	incidents []domain.Incident

	upserted []domain.Incident
	deleted  []string
}

func (m *mockIncStore) Get(_ context.Context, id string) (domain.Incident, error) {
	for _, in := range m.incidents {
		if in.ID == id {
			return in, nil
		}
	}
	return domain.Incident{}, domain.ErrIncidentNotFound
}

func (m *mockIncStore) Upsert(_ context.Context, in *domain.Incident) (bool, error) {
	m.upserted = append(m.upserted, *in)
	return true, nil
}

func (m *mockIncStore) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockIncStore) ListModifiedSince(_ context.Context, ts time.Time) ([]domain.Incident, error) {
	out := make([]domain.Incident, 0, len(m.incidents))
	for _, in := range m.incidents {
		if ts.IsZero() || !in.UpdatedAt.Before(ts) {
			out = append(out, in)
		}
	}
	return out, nil
}

type mockEmbedder struct {
	err error

	mu    sync.Mutex
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	return domain.EmbeddingResult{Embedding: []float32{0.5}}, nil
}

type mockVectorWriter struct {
	upsertErr error

	mu       sync.Mutex
	upserts  map[string]map[string]string
	deletes  []string
}

func (m *mockVectorWriter) Upsert(
	_ context.Context, id string, _ []float32, metadata map[string]string,
) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upserts == nil {
		m.upserts = make(map[string]map[string]string)
	}
	m.upserts[id] = metadata
	return nil
}

func (m *mockVectorWriter) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, id)
	return nil
}

type mockLexicalWriter struct {
	added    []lexical.Entry
	removed  []string
	rebuilds [][]lexical.Entry
}

func (m *mockLexicalWriter) Add(e lexical.Entry) { m.added = append(m.added, e) }

func (m *mockLexicalWriter) Remove(id string) { m.removed = append(m.removed, id) }

func (m *mockLexicalWriter) Rebuild(entries []lexical.Entry) {
	m.rebuilds = append(m.rebuilds, entries)
}

func (m *mockLexicalWriter) Corrupt() bool { return false }

type mockInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (m *mockInvalidator) Invalidate(id string) {
	m.mu.Lock()
	m.ids = append(m.ids, id)
	m.mu.Unlock()
}

// --- Helpers ---

type fixture struct {
	docs    *mockDocStore
	incs    *mockIncStore
	embed   *mockEmbedder
	docLex  *mockLexicalWriter
	docVec  *mockVectorWriter
	docInv  *mockInvalidator
	incLex  *mockLexicalWriter
	incVec  *mockVectorWriter
	incInv  *mockInvalidator
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:   &mockDocStore{created: true},
		incs:   &mockIncStore{},
		embed:  &mockEmbedder{},
		docLex: &mockLexicalWriter{},
		docVec: &mockVectorWriter{},
		docInv: &mockInvalidator{},
		incLex: &mockLexicalWriter{},
		incVec: &mockVectorWriter{},
		incInv: &mockInvalidator{},
	}
	f.service = New(
		f.docs, f.incs, f.embed,
		f.docLex, f.docVec, f.docInv,
		f.incLex, f.incVec, f.incInv,
		zap.NewNop(),
	)
	return f
}

// --- Tests ---

func TestUpsertDocument_WritesStoreAndBothIndexes(t *testing.T) {
	f := newFixture(t)
	doc := &domain.Document{
		ID: "kb_001", Title: "VPN setup", Body: "Steps to configure the VPN client.",
		Category: "Network", DocType: "howto",
	}

	created, err := f.service.UpsertDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}
	if !created {
		t.Error("expected created=true")
	}
	if doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be stamped")
	}
	if len(f.docs.upserted) != 1 {
		t.Fatalf("expected 1 store write, got %d", len(f.docs.upserted))
	}
	if len(f.docLex.added) != 1 || f.docLex.added[0].ID != "kb_001" {
		t.Errorf("expected a lexical entry for kb_001, got %+v", f.docLex.added)
	}
	if f.docLex.added[0].Category != "Network" || f.docLex.added[0].DocType != "howto" {
		t.Errorf("lexical entry should carry filter fields, got %+v", f.docLex.added[0])
	}
	meta, ok := f.docVec.upserts["kb_001"]
	if !ok {
		t.Fatal("expected a vector upsert for kb_001")
	}
	if meta["category"] != "Network" || meta["doc_type"] != "howto" {
		t.Errorf("vector metadata mismatch: %v", meta)
	}
	if len(f.docInv.ids) != 1 || f.docInv.ids[0] != "kb_001" {
		t.Errorf("expected cached results for kb_001 to be evicted, got %v", f.docInv.ids)
	}
}

func TestUpsertDocument_StoreFailureSkipsIndexes(t *testing.T) {
	f := newFixture(t)
	f.docs.upsertErr = errors.New("store down")

	_, err := f.service.UpsertDocument(context.Background(), &domain.Document{ID: "kb_001"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(f.docLex.added) != 0 || len(f.docVec.upserts) != 0 || len(f.docInv.ids) != 0 {
		t.Error("indexes must not be touched when the store write fails")
	}
}

func TestUpsertDocument_VectorFailureSurfacesAfterStoreWrite(t *testing.T) {
	f := newFixture(t)
	f.docVec.upsertErr = domain.ErrVectorStoreUnavailable

	_, err := f.service.UpsertDocument(context.Background(), &domain.Document{ID: "kb_001"})
	if !errors.Is(err, domain.ErrVectorStoreUnavailable) {
		t.Fatalf("expected ErrVectorStoreUnavailable, got %v", err)
	}
	// The stored record stays so a later reindex can repair the index.
	if len(f.docs.upserted) != 1 {
		t.Errorf("expected the store write to remain, got %d", len(f.docs.upserted))
	}
}

func TestDeleteDocument_RemovesEverywhere(t *testing.T) {
	f := newFixture(t)

	if err := f.service.DeleteDocument(context.Background(), "kb_001"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if len(f.docs.deleted) != 1 || f.docs.deleted[0] != "kb_001" {
		t.Errorf("expected a store delete, got %v", f.docs.deleted)
	}
	if len(f.docLex.removed) != 1 || f.docLex.removed[0] != "kb_001" {
		t.Errorf("expected a lexical removal, got %v", f.docLex.removed)
	}
	if len(f.docVec.deletes) != 1 || f.docVec.deletes[0] != "kb_001" {
		t.Errorf("expected a vector delete, got %v", f.docVec.deletes)
	}
	if len(f.docInv.ids) != 1 {
		t.Errorf("expected a cache invalidation, got %v", f.docInv.ids)
	}
}

func TestUpsertIncident_WritesIncidentIndexes(t *testing.T) {
	f := newFixture(t)
	in := &domain.Incident{
		ID: "INC-2024-001", Title: "Mail queue backed up",
		Description: "Outgoing mail delayed.", Category: "Email Infrastructure",
	}

	if _, err := f.service.UpsertIncident(context.Background(), in); err != nil {
		t.Fatalf("UpsertIncident failed: %v", err)
	}
	if len(f.incs.upserted) != 1 {
		t.Fatalf("expected 1 incident write, got %d", len(f.incs.upserted))
	}
	if len(f.incLex.added) != 1 || f.incLex.added[0].ID != "INC-2024-001" {
		t.Errorf("expected an incident lexical entry, got %+v", f.incLex.added)
	}
	meta := f.incVec.upserts["INC-2024-001"]
	if meta["category"] != "Email Infrastructure" {
		t.Errorf("vector metadata mismatch: %v", meta)
	}
	// Document indexes stay untouched.
	if len(f.docLex.added) != 0 || len(f.docVec.upserts) != 0 {
		t.Error("incident writes must not touch the document indexes")
	}
}

func TestRebuildLexical_LoadsBothCorpora(t *testing.T) {
	f := newFixture(t)
	f.docs.docs = []domain.Document{
		{ID: "kb_001", Title: "A", Body: "a"},
		{ID: "kb_002", Title: "B", Body: "b"},
	}
	f.incs.incidents = []domain.Incident{{ID: "INC-2024-001", Title: "X", Description: "x"}}

	if err := f.service.RebuildLexical(context.Background()); err != nil {
		t.Fatalf("RebuildLexical failed: %v", err)
	}
	if len(f.docLex.rebuilds) != 1 || len(f.docLex.rebuilds[0]) != 2 {
		t.Errorf("expected one rebuild with 2 document entries, got %+v", f.docLex.rebuilds)
	}
	if len(f.incLex.rebuilds) != 1 || len(f.incLex.rebuilds[0]) != 1 {
		t.Errorf("expected one rebuild with 1 incident entry, got %+v", f.incLex.rebuilds)
	}
	if len(f.embed.texts) != 0 {
		t.Error("a lexical rebuild must not re-embed")
	}
}

func TestReindex_FullRebuild(t *testing.T) {
	f := newFixture(t)
	f.docs.docs = []domain.Document{
		{ID: "kb_001", Title: "A", Body: "a", Category: "Network"},
		{ID: "kb_002", Title: "B", Body: "b", Category: "Database"},
	}
	f.incs.incidents = []domain.Incident{{ID: "INC-2024-001", Title: "X", Description: "x"}}

	result, err := f.service.Reindex(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if result.Documents != 2 || result.Incidents != 1 {
		t.Errorf("expected counts 2/1, got %+v", result)
	}
	if len(f.docLex.rebuilds) != 1 {
		t.Errorf("a zero since should rebuild the lexical index, got %d rebuilds", len(f.docLex.rebuilds))
	}
	if len(f.docVec.upserts) != 2 || len(f.incVec.upserts) != 1 {
		t.Errorf("expected all vectors rewritten, got %d/%d",
			len(f.docVec.upserts), len(f.incVec.upserts))
	}
	if len(f.docInv.ids) != 2 || len(f.incInv.ids) != 1 {
		t.Errorf("expected cache invalidations per entity, got %v/%v", f.docInv.ids, f.incInv.ids)
	}
}

func TestReindex_IncrementalAddsWithoutRebuild(t *testing.T) {
	f := newFixture(t)
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f.docs.docs = []domain.Document{
		{ID: "kb_old", UpdatedAt: old},
		{ID: "kb_new", UpdatedAt: recent},
	}

	result, err := f.service.Reindex(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if result.Documents != 1 {
		t.Errorf("expected 1 document, got %d", result.Documents)
	}
	if len(f.docLex.rebuilds) != 0 {
		t.Error("an incremental reindex must not rebuild the lexical index")
	}
	if len(f.docLex.added) != 1 || f.docLex.added[0].ID != "kb_new" {
		t.Errorf("expected kb_new re-added, got %+v", f.docLex.added)
	}
	if _, ok := f.docVec.upserts["kb_new"]; !ok || len(f.docVec.upserts) != 1 {
		t.Errorf("expected only kb_new re-embedded, got %v", f.docVec.upserts)
	}
}

func TestReindex_EmbeddingFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.docs.docs = []domain.Document{{ID: "kb_001"}}
	f.embed.err = domain.ErrEmbeddingUnavailable

	_, err := f.service.Reindex(context.Background(), time.Time{})
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}
