package classify

import (
	"context"
	"time"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// Retriever runs hybrid retrieval over the historical-incident corpus.
type Retriever interface {
	Search(ctx context.Context, query string, filters domain.Filters, maxResults int) (domain.RetrievalResponse, error)
}

// IncidentReader resolves retrieved incident IDs to their stored records.
type IncidentReader interface {
	GetMulti(ctx context.Context, ids []string) ([]domain.Incident, error)
	CategoryAverageResolution(ctx context.Context, category string) (int, bool, error)
}

// Metrics receives classification outcomes for export.
type Metrics interface {
	RecordOperation(operation string, elapsed time.Duration, resultCount int)
	RecordClassification(category, method string)
}
