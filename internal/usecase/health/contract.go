package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexChecker checks a vector index's availability.
type IndexChecker interface {
	HealthCheck(ctx context.Context) error
}

// CorruptionReporter reports whether a lexical index needs a rebuild.
type CorruptionReporter interface {
	Corrupt() bool
}
