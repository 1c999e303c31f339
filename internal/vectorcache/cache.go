package vectorcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lorebase/lorebase/internal/vector"
)

// Ranked is one entry of a similarity ranking: the chunk id and its 1-based
// position in descending dot-product order. The raw score is deliberately
// not exposed; only relative order matters downstream.
type Ranked struct {
	ID   string
	Rank int
}

// Loader fetches the decoded vectors of one user's currently selected,
// non-deleted documents, keyed by chunk id.
type Loader interface {
	LoadUserVectors(ctx context.Context, userID string) (map[string][]float32, error)
}

type LoaderFunc func(ctx context.Context, userID string) (map[string][]float32, error)

func (f LoaderFunc) LoadUserVectors(ctx context.Context, userID string) (map[string][]float32, error) {
	return f(ctx, userID)
}

// Cache keeps each user's selected-document vectors in memory so repeated
// similarity queries skip storage. Entries are keyed by user id, so
// concurrent requests from different users never see each other's vectors.
// Mutations to a user's documents must be followed by Invalidate.
type Cache struct {
	mu     sync.RWMutex
	users  map[string]*entry
	loader Loader
	ttl    time.Duration
	now    func() time.Time
}

type entry struct {
	vectors  *UserVectors
	loadedAt time.Time
}

func New(loader Loader, ttl time.Duration) *Cache {
	return &Cache{
		users:  make(map[string]*entry),
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
	}
}

// GetOrLoad returns the user's vector set, loading it from storage when
// absent or expired. The returned handle is an immutable snapshot: a
// concurrent Invalidate or reload never mutates it.
func (c *Cache) GetOrLoad(ctx context.Context, userID string) (*UserVectors, error) {
	c.mu.RLock()
	e, ok := c.users[userID]
	c.mu.RUnlock()
	if ok && !c.expired(e) {
		return e.vectors, nil
	}

	// Load outside the lock: the loader hits storage.
	loaded, err := c.loader.LoadUserVectors(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load vectors for user %s: %w", userID, err)
	}
	vectors := &UserVectors{vectors: loaded}
	logutil.GetLogger(ctx).Debug("vector cache loaded",
		zap.String("user_id", userID), zap.Int("vectors", len(loaded)))

	c.mu.Lock()
	c.users[userID] = &entry{vectors: vectors, loadedAt: c.now()}
	c.mu.Unlock()
	return vectors, nil
}

// Invalidate drops a user's cached vectors. Call after any document, chunk
// or embedding mutation for that user.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.users, userID)
	c.mu.Unlock()
}

func (c *Cache) expired(e *entry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(e.loadedAt) > c.ttl
}

// UserVectors is a read-only snapshot of one user's chunk vectors.
type UserVectors struct {
	vectors map[string][]float32
}

// Len reports the number of cached vectors.
func (v *UserVectors) Len() int {
	return len(v.vectors)
}

// MIPSNaive ranks the subset ids by raw inner product against the query
// vector, descending. Ids missing from the cache are silently skipped; the
// caller treats them as not yet rankable. Ties keep the subset's input order
// (stable sort). The snapshot is never mutated.
func (v *UserVectors) MIPSNaive(query []float32, subsetIDs []string) []Ranked {
	type scored struct {
		id    string
		score float64
	}
	scores := make([]scored, 0, len(subsetIDs))
	for _, id := range subsetIDs {
		vec, ok := v.vectors[id]
		if !ok {
			continue
		}
		scores = append(scores, scored{id: id, score: vector.Dot(query, vec)})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})
	ranked := make([]Ranked, len(scores))
	for i, s := range scores {
		ranked[i] = Ranked{ID: s.id, Rank: i + 1}
	}
	return ranked
}
