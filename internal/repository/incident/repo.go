// Package incident is the Redis-backed historical incident store.
package incident

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// store is the consumer interface for incidents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the incident store contract.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates an incident repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix + "inc:"}
}

// Get returns an incident by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Incident, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domain.Incident{}, fmt.Errorf("hgetall %s: %w", r.key(id), err)
	}
	if len(m) == 0 {
		return domain.Incident{}, domain.ErrIncidentNotFound
	}
	return parseHashFields(id, m), nil
}

// GetMulti returns incidents for the given IDs, skipping missing ones.
func (r *Repo) GetMulti(ctx context.Context, ids []string) ([]domain.Incident, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}
	out := make([]domain.Incident, 0, len(maps))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		out = append(out, parseHashFields(ids[i], m))
	}
	return out, nil
}

// Upsert creates or updates an incident. Returns true if created.
func (r *Repo) Upsert(ctx context.Context, in *domain.Incident) (bool, error) {
	key := r.key(in.ID)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.HSet(ctx, key, buildHashFields(in)); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, err)
	}

	return !exists, nil
}

// Delete removes an incident.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := r.key(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrIncidentNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// ListModifiedSince returns incidents whose updated_at is at or after ts.
// A zero ts returns everything.
func (r *Repo) ListModifiedSince(ctx context.Context, ts time.Time) ([]domain.Incident, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan incidents: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}

	incidents := make([]domain.Incident, 0, len(maps))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		in := parseHashFields(strings.TrimPrefix(keys[i], r.keyPrefix), m)
		if !ts.IsZero() && in.UpdatedAt.Before(ts) {
			continue
		}
		incidents = append(incidents, in)
	}
	return incidents, nil
}

// CategoryAverageResolution returns the mean resolution time of resolved
// incidents in the category. ok is false when no resolved incident exists.
func (r *Repo) CategoryAverageResolution(ctx context.Context, category string) (int, bool, error) {
	all, err := r.ListModifiedSince(ctx, time.Time{})
	if err != nil {
		return 0, false, err
	}

	var sum, n int
	for i := range all {
		in := &all[i]
		if !in.Resolved() || in.ResolutionMinutes <= 0 {
			continue
		}
		if !strings.EqualFold(in.Category, category) {
			continue
		}
		sum += in.ResolutionMinutes
		n++
	}
	if n == 0 {
		return 0, false, nil
	}
	return (sum + n/2) / n, true, nil
}

// Summaries resolves incidents to display metadata in one round trip.
// Missing incidents are simply absent from the result.
func (r *Repo) Summaries(ctx context.Context, ids []string) (map[string]domain.HitSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch incident summaries: %w", err)
	}

	out := make(map[string]domain.HitSummary, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		out[ids[i]] = domain.HitSummary{
			Title:    m["title"],
			Excerpt:  excerpt(m["description"]),
			Category: m["category"],
		}
	}
	return out, nil
}

func (r *Repo) key(id string) string {
	return r.keyPrefix + id
}

func excerpt(text string) string {
	const maxRunes = 200
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
