package knowledge

import (
	"strings"
	"time"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// buildHashFields converts a domain Document into a flat map for HSET.
func buildHashFields(doc *domain.Document) map[string]string {
	return map[string]string{
		"title":      doc.Title,
		"body":       doc.Body,
		"category":   doc.Category,
		"doc_type":   doc.DocType,
		"tags":       strings.Join(doc.Tags, ","),
		"created_at": doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// parseHashFields converts a flat hash map back into a domain Document.
func parseHashFields(id string, m map[string]string) domain.Document {
	doc := domain.Document{
		ID:       id,
		Title:    m["title"],
		Body:     m["body"],
		Category: m["category"],
		DocType:  m["doc_type"],
	}
	if tags := m["tags"]; tags != "" {
		doc.Tags = strings.Split(tags, ",")
	}
	if t, err := time.Parse(time.RFC3339Nano, m["created_at"]); err == nil {
		doc.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, m["updated_at"]); err == nil {
		doc.UpdatedAt = t
	}
	return doc
}
