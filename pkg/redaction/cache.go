package redaction

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type decision struct {
	redacted bool
	task     string
}

// CachedStore fronts the registry with an expiring LRU cache. The registry
// is read on every blob get but written rarely, so both positive and
// negative answers are cached; local Insert/Delete calls invalidate the
// affected keys immediately, and the TTL bounds staleness from writes made
// by other processes.
type CachedStore struct {
	store *Store
	cache *expirable.LRU[string, decision]
}

// NewCachedStore wraps store with a cache of at most size entries expiring
// after ttl.
func NewCachedStore(store *Store, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		store: store,
		cache: expirable.NewLRU[string, decision](size, nil, ttl),
	}
}

func (c *CachedStore) IsRedacted(ctx context.Context, contentKey string) (bool, string, error) {
	if d, ok := c.cache.Get(contentKey); ok {
		return d.redacted, d.task, nil
	}

	redacted, task, err := c.store.IsRedacted(ctx, contentKey)
	if err != nil {
		return false, "", err
	}
	c.cache.Add(contentKey, decision{redacted: redacted, task: task})
	return redacted, task, nil
}

func (c *CachedStore) InsertCensoredBlobs(ctx context.Context, contentKeys []string, task string, timestamp int64) error {
	if err := c.store.InsertCensoredBlobs(ctx, contentKeys, task, timestamp); err != nil {
		return err
	}
	for _, key := range contentKeys {
		c.cache.Remove(key)
	}
	return nil
}

func (c *CachedStore) DeleteCensoredBlobs(ctx context.Context, contentKeys []string) error {
	if err := c.store.DeleteCensoredBlobs(ctx, contentKeys); err != nil {
		return err
	}
	for _, key := range contentKeys {
		c.cache.Remove(key)
	}
	return nil
}

func (c *CachedStore) GetAllCensoredBlobs(ctx context.Context) ([]Entry, error) {
	return c.store.GetAllCensoredBlobs(ctx)
}

func (c *CachedStore) Close() error {
	return c.store.Close()
}
