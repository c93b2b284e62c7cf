// Package cache provides the read-through result cache with TTL expiry and
// a single-flight guard so concurrent identical queries compute at most once.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/opskb/internal/domain"
)

type entry struct {
	resp      domain.RetrievalResponse
	docIDs    []string
	expiresAt time.Time
}

// ResultCache memoizes fused retrieval results per query fingerprint.
// Expiry is lazy on read plus a periodic sweep that bounds memory growth.
type ResultCache struct {
	ttl        time.Duration
	maxEntries int
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	byDoc   map[string]map[string]struct{} // docID -> fingerprints citing it

	stop chan struct{}
	done chan struct{}
}

// Options configures a ResultCache.
type Options struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxEntries    int
	// CacheTotal is a counter vec with label "result" ("hit"/"miss"); may be nil.
	CacheTotal *prometheus.CounterVec
	Logger     *zap.Logger
}

// New creates a result cache and starts its background sweeper.
// Call Close to stop the sweeper.
func New(opts Options) *ResultCache {
	if opts.TTL <= 0 {
		opts.TTL = 300 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 10000
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &ResultCache{
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		cacheTotal: opts.CacheTotal,
		logger:     opts.Logger,
		entries:    make(map[string]*entry),
		byDoc:      make(map[string]map[string]struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	go c.sweepLoop(opts.SweepInterval)

	return c
}

// GetOrCompute returns the cached response for the fingerprint, or runs
// compute exactly once per fingerprint regardless of how many callers arrive
// concurrently. All waiters share the computation's outcome, failure
// included. The bool reports a cache hit.
func (c *ResultCache) GetOrCompute(
	ctx context.Context, fingerprint string,
	compute func(ctx context.Context) (domain.RetrievalResponse, error),
) (domain.RetrievalResponse, bool, error) {
	if resp, ok := c.lookup(fingerprint); ok {
		c.incCache("hit")
		return resp, true, nil
	}

	v, err, _ := c.group.Do(fingerprint, func() (any, error) {
		// Another flight may have stored the entry between our miss and
		// acquiring the flight.
		if resp, ok := c.lookup(fingerprint); ok {
			return resp, nil
		}

		c.incCache("miss")

		resp, err := compute(ctx)
		if err != nil {
			return domain.RetrievalResponse{}, err
		}

		c.store(fingerprint, resp)
		return resp, nil
	})
	if err != nil {
		return domain.RetrievalResponse{}, false, err
	}

	return v.(domain.RetrievalResponse), false, nil
}

// Invalidate evicts every cached result set that references the document.
func (c *ResultCache) Invalidate(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fps, ok := c.byDoc[documentID]
	if !ok {
		return
	}
	for fp := range fps {
		c.evictLocked(fp)
	}
}

// Len returns the number of live entries (expired entries may linger until
// the next read or sweep).
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweeper.
func (c *ResultCache) Close() {
	close(c.stop)
	<-c.done
}

func (c *ResultCache) lookup(fingerprint string) (domain.RetrievalResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return domain.RetrievalResponse{}, false
	}
	if time.Now().After(e.expiresAt) {
		c.evictLocked(fingerprint)
		return domain.RetrievalResponse{}, false
	}
	return e.resp, true
}

func (c *ResultCache) store(fingerprint string, resp domain.RetrievalResponse) {
	docIDs := make([]string, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		docIDs = append(docIDs, h.DocumentID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[fingerprint] = &entry{
		resp:      resp,
		docIDs:    docIDs,
		expiresAt: time.Now().Add(c.ttl),
	}
	for _, id := range docIDs {
		fps, ok := c.byDoc[id]
		if !ok {
			fps = make(map[string]struct{})
			c.byDoc[id] = fps
		}
		fps[fingerprint] = struct{}{}
	}

	if len(c.entries) > c.maxEntries {
		c.evictOldestLocked(len(c.entries) - c.maxEntries)
	}
}

func (c *ResultCache) evictLocked(fingerprint string) {
	e, ok := c.entries[fingerprint]
	if !ok {
		return
	}
	for _, id := range e.docIDs {
		fps := c.byDoc[id]
		delete(fps, fingerprint)
		if len(fps) == 0 {
			delete(c.byDoc, id)
		}
	}
	delete(c.entries, fingerprint)
}

// evictOldestLocked removes the n entries closest to expiry.
func (c *ResultCache) evictOldestLocked(n int) {
	type aged struct {
		fp        string
		expiresAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for fp, e := range c.entries {
		all = append(all, aged{fp: fp, expiresAt: e.expiresAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].expiresAt.Before(all[j].expiresAt) })
	for i := 0; i < n && i < len(all); i++ {
		c.evictLocked(all[i].fp)
	}
}

func (c *ResultCache) sweepLoop(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *ResultCache) sweep() {
	now := time.Now()

	c.mu.Lock()
	expired := make([]string, 0)
	for fp, e := range c.entries {
		if now.After(e.expiresAt) {
			expired = append(expired, fp)
		}
	}
	for _, fp := range expired {
		c.evictLocked(fp)
	}
	c.mu.Unlock()

	if len(expired) > 0 {
		c.logger.Debug("swept expired cache entries", zap.Int("count", len(expired)))
	}
}

func (c *ResultCache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
