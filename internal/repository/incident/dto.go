package incident

import (
	"strconv"
	"time"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// buildHashFields converts a domain Incident into a flat map for HSET.
func buildHashFields(in *domain.Incident) map[string]string {
	m := map[string]string{
		"title":              in.Title,
		"description":        in.Description,
		"category":           in.Category,
		"severity":           in.Severity,
		"priority":           in.Priority,
		"status":             in.Status,
		"resolution_minutes": strconv.Itoa(in.ResolutionMinutes),
		"created_at":         in.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":         in.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if in.ResolvedAt != nil {
		m["resolved_at"] = in.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

// parseHashFields converts a flat hash map back into a domain Incident.
func parseHashFields(id string, m map[string]string) domain.Incident {
	in := domain.Incident{
		ID:          id,
		Title:       m["title"],
		Description: m["description"],
		Category:    m["category"],
		Severity:    m["severity"],
		Priority:    m["priority"],
		Status:      m["status"],
	}
	if n, err := strconv.Atoi(m["resolution_minutes"]); err == nil {
		in.ResolutionMinutes = n
	}
	if t, err := time.Parse(time.RFC3339Nano, m["created_at"]); err == nil {
		in.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, m["updated_at"]); err == nil {
		in.UpdatedAt = t
	}
	if raw, ok := m["resolved_at"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			in.ResolvedAt = &t
		}
	}
	return in
}
