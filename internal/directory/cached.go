// Package directory wraps the external acquaintance directory.
package directory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/gosuda/attorney/internal/domain"
)

// Cached serves acquaintance listings from a TTL cache. Concurrent misses for
// the same user collapse into one upstream call, which is the only writer of
// that cache entry.
type Cached struct {
	next  domain.AcquaintanceDirectory
	cache *cache.Cache
	group singleflight.Group
}

func NewCached(next domain.AcquaintanceDirectory, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func listKey(userID uuid.UUID) string {
	return "acquaintances:" + userID.String()
}

func (c *Cached) ListAcquaintances(ctx context.Context, userID uuid.UUID) ([]domain.Acquaintance, error) {
	key := listKey(userID)
	if v, found := c.cache.Get(key); found {
		return slices.Clone(v.([]domain.Acquaintance)), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		list, err := c.next.ListAcquaintances(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, list, cache.DefaultExpiration)
		return list, nil
	})
	if err != nil {
		return nil, fmt.Errorf("directory.Cached.ListAcquaintances: %w", err)
	}

	return slices.Clone(v.([]domain.Acquaintance)), nil
}

// GetAcquaintance answers from a cached listing when one exists and falls
// back to the upstream directory otherwise. Misses are never cached.
func (c *Cached) GetAcquaintance(ctx context.Context, userID, acquaintanceID uuid.UUID) (*domain.Acquaintance, error) {
	if v, found := c.cache.Get(listKey(userID)); found {
		for _, a := range v.([]domain.Acquaintance) {
			if a.ID == acquaintanceID {
				return &a, nil
			}
		}
	}

	a, err := c.next.GetAcquaintance(ctx, userID, acquaintanceID)
	if err != nil {
		return nil, fmt.Errorf("directory.Cached.GetAcquaintance: %w", err)
	}
	return a, nil
}

// Invalidate drops the cached listing of a user.
func (c *Cached) Invalidate(userID uuid.UUID) {
	c.cache.Delete(listKey(userID))
}
