package knowledge

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// mockStore is a map-backed store with per-method error hooks.
type mockStore struct {
	data map[string]map[string]string

	hsetErr   error
	hgetErr   error
	delErr    error
	existsErr error
	scanErr   error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]map[string]string)}
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.hsetErr != nil {
		return m.hsetErr
	}
	m.data[key] = fields
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.hgetErr != nil {
		return nil, m.hgetErr
	}
	return m.data[key], nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetErr != nil {
		return nil, m.hgetErr
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, key)
	return nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.data[key]
	return ok, nil
}

func (m *mockStore) Scan(_ context.Context, pattern string) ([]string, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms, "opskb:"), ms
}

func testDocument(id string, updatedAt time.Time) *domain.Document {
	return &domain.Document{
		ID:        id,
		Title:     "VPN setup guide",
		Body:      "Install the client and import the connection profile.",
		Category:  "Network",
		DocType:   "howto",
		Tags:      []string{"vpn", "remote"},
		CreatedAt: updatedAt.Add(-time.Hour),
		UpdatedAt: updatedAt,
	}
}
