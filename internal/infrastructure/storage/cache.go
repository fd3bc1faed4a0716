package storage

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/fastygo/dailyquest/usecase"
)

type cachedURL struct {
	url     string
	expires time.Time
}

// URLCache memoizes resolved proof URLs in a bounded LRU. Cached URLs expire before the
// underlying presigned URL does.
type URLCache struct {
	usecase.ProofStorage
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewURLCache(inner usecase.ProofStorage, size int, ttl time.Duration) (*URLCache, error) {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &URLCache{ProofStorage: inner, cache: cache, ttl: ttl, now: time.Now}, nil
}

func (c *URLCache) URL(ctx context.Context, ref string) (string, error) {
	if v, ok := c.cache.Get(ref); ok {
		entry := v.(cachedURL)
		if c.now().Before(entry.expires) {
			return entry.url, nil
		}
		c.cache.Remove(ref)
	}

	url, err := c.ProofStorage.URL(ctx, ref)
	if err != nil {
		return "", err
	}
	c.cache.Add(ref, cachedURL{url: url, expires: c.now().Add(c.ttl)})
	return url, nil
}

func (c *URLCache) Release(ctx context.Context, ref string) error {
	c.cache.Remove(ref)
	return c.ProofStorage.Release(ctx, ref)
}

func (c *URLCache) Len() int {
	return c.cache.Len()
}
