// Package indexing keeps the persistent stores, the lexical indexes, and
// the vector indexes in step: every document or incident write lands in all
// three and evicts any cached result that cited the entity.
package indexing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/opskb/internal/domain"
	"github.com/kailas-cloud/opskb/internal/lexical"
)

// reindexConcurrency bounds parallel embedding calls during a reindex.
const reindexConcurrency = 4

// Service owns the write path for both corpora.
type Service struct {
	documents DocumentStore
	incidents IncidentStore
	embed     Embedder

	docLexical LexicalWriter
	docVector  VectorWriter
	docCache   Invalidator

	incLexical LexicalWriter
	incVector  VectorWriter
	incCache   Invalidator

	logger *zap.Logger
}

// New creates the indexing service.
func New(
	documents DocumentStore, incidents IncidentStore, embed Embedder,
	docLexical LexicalWriter, docVector VectorWriter, docCache Invalidator,
	incLexical LexicalWriter, incVector VectorWriter, incCache Invalidator,
	logger *zap.Logger,
) *Service {
	return &Service{
		documents:  documents,
		incidents:  incidents,
		embed:      embed,
		docLexical: docLexical,
		docVector:  docVector,
		docCache:   docCache,
		incLexical: incLexical,
		incVector:  incVector,
		incCache:   incCache,
		logger:     logger,
	}
}

// UpsertDocument stores the document and refreshes both indexes. Returns
// true when the document was created rather than updated. The store write
// happens first; an indexing failure leaves the stored record in place and
// surfaces the error so the caller can retry via reindex.
func (s *Service) UpsertDocument(ctx context.Context, doc *domain.Document) (bool, error) {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	created, err := s.documents.Upsert(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("store document: %w", err)
	}

	s.docCache.Invalidate(doc.ID)
	s.docLexical.Add(documentEntry(doc))

	if err := s.upsertVector(ctx, s.docVector, doc.ID, documentText(doc), map[string]string{
		"category": doc.Category,
		"doc_type": doc.DocType,
	}); err != nil {
		return created, fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	return created, nil
}

// GetDocument returns a stored document.
func (s *Service) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return s.documents.Get(ctx, id)
}

// DeleteDocument removes the document from the store and both indexes.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if err := s.documents.Delete(ctx, id); err != nil {
		return err
	}

	s.docCache.Invalidate(id)
	s.docLexical.Remove(id)

	if err := s.docVector.Delete(ctx, id); err != nil {
		return fmt.Errorf("deindex document %s: %w", id, err)
	}
	return nil
}

// UpsertIncident stores the incident and refreshes both incident indexes.
func (s *Service) UpsertIncident(ctx context.Context, in *domain.Incident) (bool, error) {
	now := time.Now().UTC()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = now
	}
	in.UpdatedAt = now

	created, err := s.incidents.Upsert(ctx, in)
	if err != nil {
		return false, fmt.Errorf("store incident: %w", err)
	}

	s.incCache.Invalidate(in.ID)
	s.incLexical.Add(incidentEntry(in))

	if err := s.upsertVector(ctx, s.incVector, in.ID, incidentText(in), map[string]string{
		"category": in.Category,
	}); err != nil {
		return created, fmt.Errorf("index incident %s: %w", in.ID, err)
	}
	return created, nil
}

// GetIncident returns a stored incident.
func (s *Service) GetIncident(ctx context.Context, id string) (domain.Incident, error) {
	return s.incidents.Get(ctx, id)
}

// DeleteIncident removes the incident from the store and both indexes.
func (s *Service) DeleteIncident(ctx context.Context, id string) error {
	if err := s.incidents.Delete(ctx, id); err != nil {
		return err
	}

	s.incCache.Invalidate(id)
	s.incLexical.Remove(id)

	if err := s.incVector.Delete(ctx, id); err != nil {
		return fmt.Errorf("deindex incident %s: %w", id, err)
	}
	return nil
}

// RebuildLexical reloads both lexical indexes from the stores without
// touching the vector indexes. Used at startup and to recover from a
// corrupt index without re-embedding the corpus.
func (s *Service) RebuildLexical(ctx context.Context) error {
	docs, err := s.documents.ListModifiedSince(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	incidents, err := s.incidents.ListModifiedSince(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("list incidents: %w", err)
	}

	docEntries := make([]lexical.Entry, 0, len(docs))
	for i := range docs {
		docEntries = append(docEntries, documentEntry(&docs[i]))
	}
	s.docLexical.Rebuild(docEntries)

	incEntries := make([]lexical.Entry, 0, len(incidents))
	for i := range incidents {
		incEntries = append(incEntries, incidentEntry(&incidents[i]))
	}
	s.incLexical.Rebuild(incEntries)

	s.logger.Info("lexical indexes rebuilt",
		zap.Int("documents", len(docEntries)),
		zap.Int("incidents", len(incEntries)),
	)
	return nil
}

// ReindexResult reports what a reindex pass touched.
type ReindexResult struct {
	Documents int `json:"documents"`
	Incidents int `json:"incidents"`
}

// Reindex re-embeds and re-indexes entities modified at or after since.
// A zero since rebuilds both lexical indexes from scratch, which also
// clears a corrupt-index condition.
func (s *Service) Reindex(ctx context.Context, since time.Time) (ReindexResult, error) {
	var result ReindexResult

	docs, err := s.documents.ListModifiedSince(ctx, since)
	if err != nil {
		return result, fmt.Errorf("list documents: %w", err)
	}
	incidents, err := s.incidents.ListModifiedSince(ctx, since)
	if err != nil {
		return result, fmt.Errorf("list incidents: %w", err)
	}

	if since.IsZero() {
		docEntries := make([]lexical.Entry, 0, len(docs))
		for i := range docs {
			docEntries = append(docEntries, documentEntry(&docs[i]))
		}
		s.docLexical.Rebuild(docEntries)

		incEntries := make([]lexical.Entry, 0, len(incidents))
		for i := range incidents {
			incEntries = append(incEntries, incidentEntry(&incidents[i]))
		}
		s.incLexical.Rebuild(incEntries)
	} else {
		for i := range docs {
			s.docLexical.Add(documentEntry(&docs[i]))
		}
		for i := range incidents {
			s.incLexical.Add(incidentEntry(&incidents[i]))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexConcurrency)

	for i := range docs {
		doc := &docs[i]
		g.Go(func() error {
			s.docCache.Invalidate(doc.ID)
			return s.upsertVector(gctx, s.docVector, doc.ID, documentText(doc), map[string]string{
				"category": doc.Category,
				"doc_type": doc.DocType,
			})
		})
	}
	for i := range incidents {
		in := &incidents[i]
		g.Go(func() error {
			s.incCache.Invalidate(in.ID)
			return s.upsertVector(gctx, s.incVector, in.ID, incidentText(in), map[string]string{
				"category": in.Category,
			})
		})
	}

	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("reindex vectors: %w", err)
	}

	result.Documents = len(docs)
	result.Incidents = len(incidents)

	s.logger.Info("reindex complete",
		zap.Time("since", since),
		zap.Int("documents", result.Documents),
		zap.Int("incidents", result.Incidents),
	)
	return result, nil
}

func (s *Service) upsertVector(
	ctx context.Context, vec VectorWriter, id, text string, metadata map[string]string,
) error {
	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := vec.Upsert(ctx, id, emb.Embedding, metadata); err != nil {
		return fmt.Errorf("vector upsert: %w", err)
	}
	return nil
}

func documentEntry(doc *domain.Document) lexical.Entry {
	return lexical.Entry{
		ID:        doc.ID,
		Text:      documentText(doc),
		Category:  doc.Category,
		DocType:   doc.DocType,
		CreatedAt: doc.CreatedAt,
	}
}

func documentText(doc *domain.Document) string {
	return doc.Title + "\n" + doc.Body
}

func incidentEntry(in *domain.Incident) lexical.Entry {
	return lexical.Entry{
		ID:        in.ID,
		Text:      incidentText(in),
		Category:  in.Category,
		CreatedAt: in.CreatedAt,
	}
}

func incidentText(in *domain.Incident) string {
	return in.Title + "\n" + in.Description
}
