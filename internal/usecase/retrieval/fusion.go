package retrieval

import (
	"sort"

	"github.com/kailas-cloud/opskb/internal/domain"
)

type candidate struct {
	lexical    float64
	vector     float64
	hasLexical bool
	hasVector  bool
}

// fuse merges the two candidate sets into a single ranked list using a
// weighted sum of min-max normalized per-source scores. A document absent
// from one source contributes zero for that source. Ties on the fused
// score break by vector score descending, then document ID ascending.
func fuse(lex []domain.LexicalHit, vec []domain.VectorHit, vectorWeight, lexicalWeight float64, limit int) []domain.RetrievalHit {
	candidates := make(map[string]*candidate, len(lex)+len(vec))

	lexNorm := normalizeLexical(lex)
	for _, h := range lex {
		candidates[h.DocumentID] = &candidate{lexical: lexNorm[h.DocumentID], hasLexical: true}
	}

	vecNorm := normalizeVector(vec)
	for _, h := range vec {
		c, ok := candidates[h.DocumentID]
		if !ok {
			c = &candidate{}
			candidates[h.DocumentID] = c
		}
		c.vector = vecNorm[h.DocumentID]
		c.hasVector = true
	}

	hits := make([]domain.RetrievalHit, 0, len(candidates))
	for id, c := range candidates {
		hit := domain.RetrievalHit{
			DocumentID:   id,
			LexicalScore: c.lexical,
			VectorScore:  c.vector,
			FusedScore:   vectorWeight*c.vector + lexicalWeight*c.lexical,
		}
		switch {
		case c.hasLexical && c.hasVector:
			hit.Source = domain.SourceBoth
		case c.hasLexical:
			hit.Source = domain.SourceLexical
		default:
			hit.Source = domain.SourceVector
		}
		hits = append(hits, hit)
	}

	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits
}

// normalizeLexical maps raw lexical scores to [0, 1]. When all candidates
// share the same score every one of them normalizes to 1.
func normalizeLexical(hits []domain.LexicalHit) map[string]float64 {
	if len(hits) == 0 {
		return nil
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		if max == min {
			out[h.DocumentID] = 1.0
			continue
		}
		out[h.DocumentID] = (h.Score - min) / (max - min)
	}
	return out
}

func normalizeVector(hits []domain.VectorHit) map[string]float64 {
	if len(hits) == 0 {
		return nil
	}
	min, max := hits[0].Similarity, hits[0].Similarity
	for _, h := range hits[1:] {
		if h.Similarity < min {
			min = h.Similarity
		}
		if h.Similarity > max {
			max = h.Similarity
		}
	}
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		if max == min {
			out[h.DocumentID] = 1.0
			continue
		}
		out[h.DocumentID] = (h.Similarity - min) / (max - min)
	}
	return out
}

func sortHits(hits []domain.RetrievalHit) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if a.VectorScore != b.VectorScore {
			return a.VectorScore > b.VectorScore
		}
		return a.DocumentID < b.DocumentID
	})
}
