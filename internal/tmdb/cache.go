package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Clark-Hu/moviesandme/internal/domain"
)

// DefaultCacheTTL bounds how long a fetched detail record is served from cache.
const DefaultCacheTTL = 30 * time.Minute

// DetailCache stores encoded film records by id. A miss returns found=false and no error.
type DetailCache interface {
	Get(ctx context.Context, id int64) (film domain.Film, found bool, err error)
	Set(ctx context.Context, film domain.Film, ttl time.Duration) error
}

// CachedFetcher collapses concurrent fetches for the same id and, when a cache
// is configured, serves repeated fetches without going upstream.
type CachedFetcher struct {
	next   Fetcher
	cache  DetailCache
	ttl    time.Duration
	group  singleflight.Group
	logger *log.Logger
}

// NewCachedFetcher wraps next. cache may be nil, in which case only in-flight
// de-duplication applies.
func NewCachedFetcher(next Fetcher, cache DetailCache, ttl time.Duration, logger *log.Logger) *CachedFetcher {
	if logger == nil {
		logger = log.Default()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedFetcher{next: next, cache: cache, ttl: ttl, logger: logger}
}

// FetchDetail implements Fetcher.
func (f *CachedFetcher) FetchDetail(ctx context.Context, id int64) (domain.Film, error) {
	ch := f.group.DoChan(strconv.FormatInt(id, 10), func() (interface{}, error) {
		// The shared call outlives any single caller's cancellation.
		return f.load(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return domain.Film{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Film{}, res.Err
		}
		return res.Val.(domain.Film), nil
	}
}

func (f *CachedFetcher) load(ctx context.Context, id int64) (domain.Film, error) {
	if f.cache != nil {
		film, found, err := f.cache.Get(ctx, id)
		switch {
		case err != nil:
			f.logger.Printf("tmdb: cache read for film %d failed: %v", id, err)
		case found:
			return film, nil
		}
	}

	film, err := f.next.FetchDetail(ctx, id)
	if err != nil {
		return domain.Film{}, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, film, f.ttl); err != nil {
			f.logger.Printf("tmdb: cache write for film %d failed: %v", id, err)
		}
	}
	return film, nil
}

// RedisCache keeps detail records as JSON strings in redis.
type RedisCache struct {
	rdb redis.Cmdable
}

// NewRedisCache returns a DetailCache backed by rdb.
func NewRedisCache(rdb redis.Cmdable) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func cacheKey(id int64) string {
	return "film:detail:" + strconv.FormatInt(id, 10)
}

// Get implements DetailCache.
func (c *RedisCache) Get(ctx context.Context, id int64) (domain.Film, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Film{}, false, nil
	}
	if err != nil {
		return domain.Film{}, false, err
	}
	var film domain.Film
	if err := json.Unmarshal(raw, &film); err != nil {
		return domain.Film{}, false, fmt.Errorf("decode cached film %d: %w", id, err)
	}
	return film, true, nil
}

// Set implements DetailCache.
func (c *RedisCache) Set(ctx context.Context, film domain.Film, ttl time.Duration) error {
	raw, err := json.Marshal(film)
	if err != nil {
		return fmt.Errorf("encode film %d: %w", film.ID, err)
	}
	return c.rdb.Set(ctx, cacheKey(film.ID), raw, ttl).Err()
}
