// Package classify derives incident suggestions (category, severity,
// priority, resolution estimate, similar-incident citations) from hybrid
// retrieval over the historical-incident corpus.
package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/opskb/internal/domain"
)

const operation = "classify"

// Classification methods as exported in metrics.
const (
	methodRetrieval = "retrieval"
	methodKeyword   = "keyword"
	methodNone      = "none"
)

// Config carries the classification tunables.
type Config struct {
	// SimilarN is how many similar incidents to retrieve as evidence.
	SimilarN int
	// CategoryThreshold is the minimum fused score for the top retrieved
	// incident's category to be adopted directly.
	CategoryThreshold float64
	// FallbackConfidence is reported when the keyword rule table decided.
	FallbackConfidence       float64
	DefaultResolutionMinutes int
	DefaultSeverity          string
	DefaultPriority          string
}

// Service is the classification engine. It only ever returns a suggestion;
// writing a confirmed classification back to the incident record is the
// caller's responsibility.
type Service struct {
	retriever Retriever
	incidents IncidentReader
	metrics   Metrics
	logger    *zap.Logger
	cfg       Config
}

// New creates a classification service.
func New(retriever Retriever, incidents IncidentReader, metrics Metrics, logger *zap.Logger, cfg Config) *Service {
	if cfg.SimilarN <= 0 {
		cfg.SimilarN = 5
	}
	return &Service{
		retriever: retriever,
		incidents: incidents,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Classify suggests classification metadata for a new incident description.
// Severity and priority are the reporter's stated values; they seed the
// suggestion when the historical evidence is inconclusive. Retrieval being
// fully unavailable degrades to keyword-only classification instead of
// failing; an invalid description is a caller error.
func (s *Service) Classify(
	ctx context.Context, description, severity, priority string,
) (domain.ClassificationResult, error) {
	start := time.Now()

	result := domain.ClassificationResult{
		IncidentID: newIncidentID(),
	}

	resp, err := s.retriever.Search(ctx, description, domain.Filters{}, s.cfg.SimilarN)
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		s.metrics.RecordOperation(operation, time.Since(start), 0)
		return domain.ClassificationResult{}, err
	case err != nil:
		// No retrieval evidence at all. Classify from the rule table alone.
		s.logger.Warn("similar-incident retrieval unavailable, classifying by keywords only",
			zap.Error(err))
		result.Degraded = true
	default:
		result.Degraded = resp.Degraded
	}

	similar, incidents, err := s.resolveSimilar(ctx, resp.Hits)
	if err != nil {
		s.logger.Warn("resolve similar incidents", zap.Error(err))
	}
	result.SimilarIncidents = similar

	s.decideCategory(&result, description, resp.Hits, incidents)
	result.SuggestedSeverity = vote(severityValues(incidents), s.fallbackSeverity(severity))
	result.SuggestedPriority = vote(priorityValues(incidents), s.fallbackPriority(priority))
	result.EstimatedResolutionMinutes = s.estimateResolution(ctx, result.PredictedCategory, incidents)
	result.SuggestedProcedures = categoryProcedures[result.PredictedCategory]
	result.AssignedTeam = teamFor(result.PredictedCategory)

	elapsed := time.Since(start)
	result.ElapsedMS = float64(elapsed.Microseconds()) / 1000

	s.metrics.RecordOperation(operation, elapsed, len(result.SimilarIncidents))

	s.logger.Info("incident classified",
		zap.String("incident_id", result.IncidentID),
		zap.String("category", result.PredictedCategory),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("keyword_fallback", result.KeywordFallback),
		zap.Bool("degraded", result.Degraded),
		zap.Int("similar", len(result.SimilarIncidents)),
	)
	return result, nil
}

// decideCategory adopts the top retrieved incident's category when its fused
// score clears the threshold; otherwise the keyword rule table decides, and
// failing that the incident stays uncategorized.
func (s *Service) decideCategory(
	result *domain.ClassificationResult, description string,
	hits []domain.RetrievalHit, incidents map[string]domain.Incident,
) {
	if len(hits) > 0 {
		top := hits[0]
		in, ok := incidents[top.DocumentID]
		if ok && in.Category != "" && top.FusedScore >= s.cfg.CategoryThreshold {
			result.PredictedCategory = in.Category
			result.Confidence = clamp01(top.FusedScore)
			s.metrics.RecordClassification(result.PredictedCategory, methodRetrieval)
			return
		}
	}

	if category := matchKeywordRule(description); category != "" {
		result.PredictedCategory = category
		result.Confidence = s.cfg.FallbackConfidence
		result.KeywordFallback = true
		s.metrics.RecordClassification(category, methodKeyword)
		return
	}

	result.PredictedCategory = domain.CategoryUncategorized
	result.Confidence = 0
	s.metrics.RecordClassification(domain.CategoryUncategorized, methodNone)
}

// resolveSimilar fetches the stored records behind the retrieved hits and
// builds the citation list in rank order.
func (s *Service) resolveSimilar(
	ctx context.Context, hits []domain.RetrievalHit,
) ([]domain.SimilarIncident, map[string]domain.Incident, error) {
	if len(hits) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.DocumentID)
	}

	records, err := s.incidents.GetMulti(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch incidents: %w", err)
	}

	byID := make(map[string]domain.Incident, len(records))
	for _, in := range records {
		byID[in.ID] = in
	}

	similar := make([]domain.SimilarIncident, 0, len(hits))
	for _, h := range hits {
		in, ok := byID[h.DocumentID]
		if !ok {
			continue
		}
		similar = append(similar, domain.SimilarIncident{
			IncidentID:        in.ID,
			Title:             in.Title,
			Excerpt:           h.Excerpt,
			FusedScore:        h.FusedScore,
			Severity:          in.Severity,
			Priority:          in.Priority,
			ResolutionMinutes: in.ResolutionMinutes,
			Resolved:          in.Resolved(),
		})
	}
	return similar, byID, nil
}

// estimateResolution prefers the median resolution time of the retrieved
// resolved incidents, then the category's historical average, then the
// category base-time table, then the global default.
func (s *Service) estimateResolution(
	ctx context.Context, category string, incidents map[string]domain.Incident,
) int {
	times := make([]int, 0, len(incidents))
	for _, in := range incidents {
		if in.Resolved() && in.ResolutionMinutes > 0 {
			times = append(times, in.ResolutionMinutes)
		}
	}
	if len(times) > 0 {
		return median(times)
	}

	if category != "" && category != domain.CategoryUncategorized {
		if avg, ok, err := s.incidents.CategoryAverageResolution(ctx, category); err != nil {
			s.logger.Warn("category average resolution", zap.Error(err))
		} else if ok {
			return avg
		}
		if base, ok := categoryBaseTimes[category]; ok {
			return base
		}
	}
	return s.cfg.DefaultResolutionMinutes
}

// median returns the middle value; for an even count, the mean of the two
// middle values rounded half away from zero.
func median(values []int) int {
	sort.Ints(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	sum := values[n/2-1] + values[n/2]
	if sum >= 0 {
		return (sum + 1) / 2
	}
	return (sum - 1) / 2
}

// vote returns the strict plurality winner, or fallback on a tie or an
// empty ballot.
func vote(values []string, fallback string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return fallback
	}

	best, bestCount, tied := "", 0, false
	for v, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount, tied = v, c, false
		case c == bestCount:
			tied = true
		}
	}
	if tied {
		return fallback
	}
	return best
}

func severityValues(incidents map[string]domain.Incident) []string {
	out := make([]string, 0, len(incidents))
	for _, in := range incidents {
		out = append(out, in.Severity)
	}
	return out
}

func priorityValues(incidents map[string]domain.Incident) []string {
	out := make([]string, 0, len(incidents))
	for _, in := range incidents {
		out = append(out, in.Priority)
	}
	return out
}

func (s *Service) fallbackSeverity(stated string) string {
	if stated != "" {
		return stated
	}
	return s.cfg.DefaultSeverity
}

func (s *Service) fallbackPriority(stated string) string {
	if stated != "" {
		return stated
	}
	return s.cfg.DefaultPriority
}

func teamFor(category string) string {
	if team, ok := categoryTeams[category]; ok {
		return team
	}
	return defaultTeam
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// newIncidentID issues an identifier like INC-20240301-4F2A9C1B.
func newIncidentID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INC-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
