package domain

import "time"

// Incident severity levels, lowest to highest.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Incident priority levels.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Incident is a reported operational incident. Category and severity may be
// empty until classified; classification only ever fills suggestion fields,
// an operator-confirmed value is never overwritten by the engine.
type Incident struct {
	ID          string
	Title       string
	Description string
	Category    string
	Severity    string
	Priority    string
	Status      string
	// ResolutionMinutes is the time to resolution. Meaningful only when
	// ResolvedAt is set.
	ResolutionMinutes int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
}

// Resolved reports whether the incident has been closed out.
func (in *Incident) Resolved() bool {
	return in.ResolvedAt != nil
}
