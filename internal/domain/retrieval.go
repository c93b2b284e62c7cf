package domain

// ScoreSource identifies which signal source(s) produced a retrieval hit.
type ScoreSource string

const (
	// SourceLexical marks a hit found only by the lexical index.
	SourceLexical ScoreSource = "lexical"
	// SourceVector marks a hit found only by the vector index.
	SourceVector ScoreSource = "vector"
	// SourceBoth marks a hit found by both sources.
	SourceBoth ScoreSource = "both"
)

// LexicalHit is a single lexical index match. Score is normalized TF-IDF in [0,1].
type LexicalHit struct {
	DocumentID string
	Score      float64
}

// VectorHit is a single vector index match. Similarity is normalized to [0,1].
type VectorHit struct {
	DocumentID string
	Similarity float64
}

// RetrievalHit is one ranked document in a fused result set.
// It exists only transiently per query.
type RetrievalHit struct {
	DocumentID   string
	Title        string
	Excerpt      string
	Category     string
	LexicalScore float64
	VectorScore  float64
	FusedScore   float64
	Rank         int
	Source       ScoreSource
}

// HitSummary is the display metadata attached to a hit after ranking.
type HitSummary struct {
	Title    string
	Excerpt  string
	Category string
}

// RetrievalResponse is the outcome of one search. Degraded is set when only
// one signal source contributed because the other was unavailable.
type RetrievalResponse struct {
	Hits      []RetrievalHit
	Degraded  bool
	ElapsedMS float64
}
