package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	embedding  EmbeddingChecker
	docIndex   IndexChecker
	incIndex   IndexChecker
	docLexical CorruptionReporter
	incLexical CorruptionReporter
}

// New creates a Service. embedding and the index checkers can be nil.
func New(
	db DBPinger, embedding EmbeddingChecker,
	docIndex, incIndex IndexChecker,
	docLexical, incLexical CorruptionReporter,
) *Service {
	return &Service{
		db:         db,
		embedding:  embedding,
		docIndex:   docIndex,
		incIndex:   incIndex,
		docLexical: docLexical,
		incLexical: incLexical,
	}
}

// Check runs health checks against all components. The database failing is
// total failure; anything else degrades.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	dbOK := true
	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		dbOK = false
	} else {
		checks["database"] = CheckOK
	}

	if s.embedding != nil {
		checks["embedding"] = boolCheck(s.embedding.HealthCheck(ctx) == nil)
	}
	if s.docIndex != nil {
		checks["document_vector_index"] = boolCheck(s.docIndex.HealthCheck(ctx) == nil)
	}
	if s.incIndex != nil {
		checks["incident_vector_index"] = boolCheck(s.incIndex.HealthCheck(ctx) == nil)
	}
	if s.docLexical != nil {
		checks["document_lexical_index"] = boolCheck(!s.docLexical.Corrupt())
	}
	if s.incLexical != nil {
		checks["incident_lexical_index"] = boolCheck(!s.incLexical.Corrupt())
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if !dbOK {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func boolCheck(ok bool) CheckResult {
	if ok {
		return CheckOK
	}
	return CheckError
}
