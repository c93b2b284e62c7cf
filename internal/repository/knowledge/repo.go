// Package knowledge is the Redis-backed knowledge document store.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/opskb/internal/db"
	"github.com/kailas-cloud/opskb/internal/domain"
)

// store is the consumer interface for documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the knowledge store contract (get, upsert, delete,
// list_modified_since).
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a knowledge document repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix + "doc:"}
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Document, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domain.Document{}, fmt.Errorf("hgetall %s: %w", r.key(id), err)
	}
	if len(m) == 0 {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return parseHashFields(id, m), nil
}

// Upsert creates or updates a document. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, doc *domain.Document) (bool, error) {
	key := r.key(doc.ID)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.HSet(ctx, key, buildHashFields(doc)); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, err)
	}

	return !exists, nil
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := r.key(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// ListModifiedSince returns documents whose updated_at is at or after ts.
// A zero ts returns everything.
func (r *Repo) ListModifiedSince(ctx context.Context, ts time.Time) ([]domain.Document, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}

	docs := make([]domain.Document, 0, len(maps))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		doc := parseHashFields(strings.TrimPrefix(keys[i], r.keyPrefix), m)
		if !ts.IsZero() && doc.UpdatedAt.Before(ts) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Summaries resolves documents to display metadata in one round trip.
// Missing documents are simply absent from the result.
func (r *Repo) Summaries(ctx context.Context, ids []string) (map[string]domain.HitSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.key(id))
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch document summaries: %w", err)
	}

	out := make(map[string]domain.HitSummary, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		out[ids[i]] = domain.HitSummary{
			Title:    m["title"],
			Excerpt:  excerpt(m["body"]),
			Category: m["category"],
		}
	}
	return out, nil
}

func (r *Repo) key(id string) string {
	return r.keyPrefix + id
}

// excerpt truncates a body to its leading runes for display.
func excerpt(body string) string {
	const maxRunes = 200
	runes := []rune(body)
	if len(runes) <= maxRunes {
		return body
	}
	return string(runes[:maxRunes]) + "..."
}

// IsNotFound reports whether err is the document-missing condition from
// either the repository or the underlying store.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrDocumentNotFound) || errors.Is(err, db.ErrKeyNotFound)
}
