// Package lexical implements an in-memory inverted index with TF-IDF scoring.
package lexical

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/opskb/internal/domain"
)

// Entry is the indexable slice of a document or incident.
type Entry struct {
	ID        string
	Text      string
	Category  string
	DocType   string
	CreatedAt time.Time
}

type docInfo struct {
	terms     map[string]int // term -> frequency
	length    int
	category  string
	docType   string
	createdAt time.Time
}

// Index is an inverted index owned by the engine instance; no process-wide
// state. Mutations (Add/Remove/Rebuild) are serialized against concurrent
// Search calls with a read-write lock so readers never observe a
// partially-updated posting list.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[string]int // term -> docID -> tf
	docs     map[string]docInfo
	corrupt  atomic.Bool
}

// New creates an empty lexical index.
func New() *Index {
	return &Index{
		postings: make(map[string]map[string]int),
		docs:     make(map[string]docInfo),
	}
}

// Add indexes an entry. Re-adding the same ID replaces its postings.
func (ix *Index) Add(e Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(e.ID)
	indexInto(ix.postings, ix.docs, e)
}

func indexInto(postings map[string]map[string]int, docs map[string]docInfo, e Entry) {
	tokens := Tokenize(e.Text)
	terms := make(map[string]int, len(tokens))
	for _, t := range tokens {
		terms[t]++
	}

	for term, tf := range terms {
		p, ok := postings[term]
		if !ok {
			p = make(map[string]int)
			postings[term] = p
		}
		p[e.ID] = tf
	}

	docs[e.ID] = docInfo{
		terms:     terms,
		length:    len(tokens),
		category:  e.Category,
		docType:   e.DocType,
		createdAt: e.CreatedAt,
	}
}

// Remove deletes an entry's postings. Unknown IDs are a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *Index) removeLocked(id string) {
	removeFrom(ix.postings, ix.docs, id)
}

func removeFrom(postings map[string]map[string]int, docs map[string]docInfo, id string) {
	info, ok := docs[id]
	if !ok {
		return
	}
	for term := range info.terms {
		p := postings[term]
		delete(p, id)
		if len(p) == 0 {
			delete(postings, term)
		}
	}
	delete(docs, id)
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search scores entries against the query terms using TF-IDF normalized to
// [0,1] across the candidate set. Entries not matching the filters are
// excluded before normalization. Ties break by most recent createdAt, then
// by ID ascending. An empty or stop-word-only query returns no results and
// no error.
func (ix *Index) Search(ctx context.Context, query string, filters domain.Filters, limit int) ([]domain.LexicalHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	if ix.corrupt.Load() {
		return nil, domain.ErrLexicalIndexCorrupt
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	total := len(ix.docs)
	if total == 0 {
		return nil, nil
	}

	raw := make(map[string]float64)
	for _, term := range terms {
		posting, ok := ix.postings[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + float64(total)/float64(len(posting)))
		for id, tf := range posting {
			info, ok := ix.docs[id]
			if !ok || info.length == 0 {
				// posting references a missing document: structural damage
				ix.markCorrupt()
				return nil, domain.ErrLexicalIndexCorrupt
			}
			if !info.matches(filters) {
				continue
			}
			raw[id] += float64(tf) / float64(info.length) * idf
		}
	}

	if len(raw) == 0 {
		return nil, nil
	}

	var maxScore float64
	for _, s := range raw {
		if s > maxScore {
			maxScore = s
		}
	}

	hits := make([]domain.LexicalHit, 0, len(raw))
	for id, s := range raw {
		score := 1.0
		if maxScore > 0 {
			score = s / maxScore
		}
		hits = append(hits, domain.LexicalHit{DocumentID: id, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ci := ix.docs[hits[i].DocumentID].createdAt
		cj := ix.docs[hits[j].DocumentID].createdAt
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (d docInfo) matches(f domain.Filters) bool {
	if f.Category != "" && d.category != f.Category {
		return false
	}
	if f.DocType != "" && d.docType != f.DocType {
		return false
	}
	return true
}

// markCorrupt halts lexical search until Rebuild runs.
func (ix *Index) markCorrupt() {
	ix.corrupt.Store(true)
}

// Corrupt reports whether the index requires a rebuild.
func (ix *Index) Corrupt() bool {
	return ix.corrupt.Load()
}

// Rebuild discards the index and re-indexes the given entries, clearing the
// corrupt flag. The new maps are built off to the side and swapped in under
// one write lock, so concurrent searches see either the old index or the new
// one, never a partial state.
func (ix *Index) Rebuild(entries []Entry) {
	postings := make(map[string]map[string]int)
	docs := make(map[string]docInfo, len(entries))
	for _, e := range entries {
		if _, ok := docs[e.ID]; ok {
			removeFrom(postings, docs, e.ID)
		}
		indexInto(postings, docs, e)
	}

	ix.mu.Lock()
	ix.postings = postings
	ix.docs = docs
	ix.mu.Unlock()
	ix.corrupt.Store(false)
}
