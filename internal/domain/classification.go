package domain

// CategoryUncategorized is returned when neither retrieval nor the keyword
// rule table produced a category.
const CategoryUncategorized = "Uncategorized"

// SimilarIncident is one historical incident cited as classification evidence.
type SimilarIncident struct {
	IncidentID        string
	Title             string
	Excerpt           string
	FusedScore        float64
	Severity          string
	Priority          string
	ResolutionMinutes int
	Resolved          bool
}

// ClassificationResult is the engine's suggestion for a new incident.
// It is returned to the caller, never written back to the incident record;
// operator confirmation and persistence are the caller's responsibility.
type ClassificationResult struct {
	IncidentID                 string
	PredictedCategory          string
	Confidence                 float64
	SuggestedSeverity          string
	SuggestedPriority          string
	EstimatedResolutionMinutes int
	SuggestedProcedures        []string
	AssignedTeam               string
	SimilarIncidents           []SimilarIncident
	// KeywordFallback is set when the category came from the keyword rule
	// table rather than retrieval.
	KeywordFallback bool
	Degraded        bool
	ElapsedMS       float64
}
