package storage

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"odysseyscraper/pkg/models"
)

// CachedStore memoizes loads from another Store. Saves write through.
type CachedStore struct {
	inner Store
	cache *gocache.Cache
}

// NewCachedStore wraps inner with a cache whose entries live for ttl
func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (s *CachedStore) Load(ctx context.Context, code string) (*models.StructuredCase, bool, error) {
	if v, found := s.cache.Get(code); found {
		return v.(*models.StructuredCase), true, nil
	}

	c, ok, err := s.inner.Load(ctx, code)
	if err != nil || !ok {
		return c, ok, err
	}
	s.cache.SetDefault(code, c)
	return c, true, nil
}

func (s *CachedStore) Save(ctx context.Context, c *models.StructuredCase) error {
	if err := s.inner.Save(ctx, c); err != nil {
		s.cache.Delete(c.Code)
		return err
	}
	s.cache.SetDefault(c.Code, c)
	return nil
}

func (s *CachedStore) Close() error {
	s.cache.Flush()
	return s.inner.Close()
}
