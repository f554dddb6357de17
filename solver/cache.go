package solver

import (
	"bytes"
	"context"
	"encoding/gob"
	"hash/fnv"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
)

var solveCacheBucket = []byte("prefixsolve-solve-cache")

// SolveCache memoizes Resolver.Solve results keyed by a hash of its inputs,
// directly answering §5's "calls to solve must be deterministic for
// identical inputs": a second call with identical
// (finalSpecs, specsToAdd, historySpecs) is served from the cache instead
// of re-invoking the resolver. Modeled on gps/internal/gps/source_cache_bolt.go's
// boltCache, repurposed from source-metadata caching to solve-result
// memoization, using jmank88/nuts for the same fixed-width key encoding
// that cache uses for its own bolt keys.
type SolveCache struct {
	db    *bolt.DB
	epoch int64
}

// OpenSolveCache opens (creating if necessary) a bolt-backed cache at path.
func OpenSolveCache(path string) (*SolveCache, error) {
	db, err := bolt.Open(path, 0o666, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "solver: opening solve cache")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(solveCacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "solver: initializing solve cache bucket")
	}
	return &SolveCache{db: db, epoch: time.Now().Unix()}, nil
}

func (c *SolveCache) Close() error { return c.db.Close() }

// cacheKey hashes the solve inputs into the 8-byte nuts.Key bolt uses as its
// lookup key.
func cacheKey(finalSpecs, specsToAdd []MatchSpec, historySpecs map[string]MatchSpec) []byte {
	strs := make([]string, 0, len(finalSpecs)+len(specsToAdd)+len(historySpecs))
	for _, s := range finalSpecs {
		strs = append(strs, "f:"+s.String())
	}
	for _, s := range specsToAdd {
		strs = append(strs, "a:"+s.String())
	}
	names := make([]string, 0, len(historySpecs))
	for n := range historySpecs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		strs = append(strs, "h:"+historySpecs[n].String())
	}
	sort.Strings(strs)

	h := fnv.New64a()
	for _, s := range strs {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	key := make(nuts.Key, 8)
	key.Put(h.Sum64())
	return key
}

type cachedSolveResult struct {
	Identities []Identity
}

// Get returns a cached solution for the given inputs, if present.
func (c *SolveCache) Get(idx *Index, finalSpecs, specsToAdd []MatchSpec, historySpecs map[string]MatchSpec) ([]*PackageRecord, bool) {
	key := cacheKey(finalSpecs, specsToAdd, historySpecs)
	var raw []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(solveCacheBucket)
		if v := b.Get(key); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return nil, false
	}
	var cached cachedSolveResult
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&cached); err != nil {
		return nil, false
	}
	out := make([]*PackageRecord, 0, len(cached.Identities))
	for _, id := range cached.Identities {
		found := false
		for _, rec := range idx.ByName(id.Name) {
			if rec.Identity == id {
				out = append(out, rec)
				found = true
				break
			}
		}
		if !found {
			return nil, false // index changed under us; treat as a miss
		}
	}
	return out, true
}

// Put stores a solution for the given inputs.
func (c *SolveCache) Put(finalSpecs, specsToAdd []MatchSpec, historySpecs map[string]MatchSpec, solution []*PackageRecord) error {
	key := cacheKey(finalSpecs, specsToAdd, historySpecs)
	ids := make([]Identity, len(solution))
	for i, r := range solution {
		ids[i] = r.Identity
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cachedSolveResult{Identities: ids}); err != nil {
		return errors.Wrap(err, "solver: encoding solve cache entry")
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(solveCacheBucket).Put(key, buf.Bytes())
	})
}

// CachingResolver wraps a Resolver, memoizing its Solve calls through a
// SolveCache.
type CachingResolver struct {
	Resolver
	cache *SolveCache
	index *Index
}

// NewCachingResolver wraps r, serving identical Solve inputs from cache.
func NewCachingResolver(r Resolver, cache *SolveCache, idx *Index) *CachingResolver {
	return &CachingResolver{Resolver: r, cache: cache, index: idx}
}

func (c *CachingResolver) Solve(ctx context.Context, finalSpecs, specsToAdd []MatchSpec, historySpecs map[string]MatchSpec, shouldRetry bool) ([]*PackageRecord, error) {
	if !shouldRetry {
		if cached, ok := c.cache.Get(c.index, finalSpecs, specsToAdd, historySpecs); ok {
			return cached, nil
		}
	}
	sol, err := c.Resolver.Solve(ctx, finalSpecs, specsToAdd, historySpecs, shouldRetry)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Put(finalSpecs, specsToAdd, historySpecs, sol)
	return sol, nil
}
