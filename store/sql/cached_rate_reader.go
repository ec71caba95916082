package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-credits/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const rateCacheKeyPrefix = "go-credits::rate::v1"

type cachedRate struct {
	Rate  core.TokenRate
	Found bool
}

// CachedRateReader serves token rates through a cache in front of a base
// reader. Writers call InvalidateRate after committing a rate change, which
// waits for in-flight loads and then reloads the committed rate.
type CachedRateReader struct {
	base  core.RateReader
	cache repositorycache.CacheService

	// loads hold the read side while a value is fetched and stored; a
	// refresh holds the write side so no load started before the commit
	// can store its value after the refresh.
	loads sync.RWMutex
}

func NewCachedRateReader(base core.RateReader, cacheService repositorycache.CacheService) (*CachedRateReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base rate reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: rate cache service is required")
	}
	return &CachedRateReader{base: base, cache: cacheService}, nil
}

// RateCacheKey returns go-credits::rate::v1::<token id>.
func RateCacheKey(tokenID int64) string {
	return strings.Join([]string{rateCacheKeyPrefix, strconv.FormatInt(tokenID, 10)}, "::")
}

func (r *CachedRateReader) GetRate(ctx context.Context, tokenID int64) (core.TokenRate, bool, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.TokenRate{}, false, fmt.Errorf("sqlstore: cached rate reader is not configured")
	}
	r.loads.RLock()
	defer r.loads.RUnlock()
	return r.load(ctx, tokenID)
}

func (r *CachedRateReader) load(ctx context.Context, tokenID int64) (core.TokenRate, bool, error) {
	cached, err := repositorycache.GetOrFetch(ctx, r.cache, RateCacheKey(tokenID), func(ctx context.Context) (cachedRate, error) {
		rate, found, fetchErr := r.base.GetRate(ctx, tokenID)
		if fetchErr != nil {
			return cachedRate{}, fetchErr
		}
		return cachedRate{Rate: rate, Found: found}, nil
	})
	if err != nil {
		return core.TokenRate{}, false, err
	}
	return cached.Rate, cached.Found, nil
}

// InvalidateRate drops the cached rate and writes the committed one back.
// A failed reload leaves the key empty so the next read goes to the base.
func (r *CachedRateReader) InvalidateRate(ctx context.Context, tokenID int64) {
	if r == nil || r.cache == nil {
		return
	}
	r.loads.Lock()
	defer r.loads.Unlock()
	key := RateCacheKey(tokenID)
	if err := r.cache.Delete(ctx, key); err != nil || r.base == nil {
		return
	}
	if _, _, err := r.load(ctx, tokenID); err != nil {
		_ = r.cache.Delete(ctx, key)
	}
}

var (
	_ core.RateReader      = (*CachedRateReader)(nil)
	_ core.RateInvalidator = (*CachedRateReader)(nil)
)
