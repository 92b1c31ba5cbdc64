package idxmap

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/das"
	"github.com/harborx/harborx/metrics"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize is the number of resolved entries kept across frames.
const DefaultCacheSize = 1 << 16

// CachedStore keeps recently resolved entries of another store in memory.
// Only hits are cached: a miss is looked up again next time.
type CachedStore struct {
	inner Store
	cache *lru.Cache
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps inner with an LRU cache of size entries.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "idxmap: creating cache")
	}
	return &CachedStore{inner: inner, cache: c}, nil
}

// GetMany implements Store. Only keys missing from the cache reach the
// wrapped store, in a single batch.
func (s *CachedStore) GetMany(ctx context.Context, keys []das.Felt) (map[das.Felt]das.Felt, error) {
	out := make(map[das.Felt]das.Felt, len(keys))
	var missing []das.Felt
	hits := 0
	for _, k := range keys {
		if v, ok := s.cache.Get(k); ok {
			out[k] = v.(das.Felt)
			hits++
			continue
		}
		missing = append(missing, k)
	}
	metrics.IdxCacheHits.Add(float64(hits))
	if len(missing) == 0 {
		return out, nil
	}

	found, err := s.inner.GetMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for k, v := range found {
		s.cache.Add(k, v)
		out[k] = v
	}
	return out, nil
}

// Len returns the number of cached entries.
func (s *CachedStore) Len() int { return s.cache.Len() }

// Close purges the cache and closes the wrapped store.
func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}
