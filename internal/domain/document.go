package domain

import "time"

// Document is a knowledge base article. Owned by the knowledge store;
// the engine references it by ID only.
type Document struct {
	ID        string
	Title     string
	Body      string
	Category  string
	DocType   string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filters restricts retrieval to matching documents. Zero value matches everything.
type Filters struct {
	Category string
	DocType  string
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return f.Category == "" && f.DocType == ""
}
