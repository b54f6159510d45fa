package overview

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultSetTimeout   = 5 * time.Second
	maxRefreshDelay     = 250 * time.Millisecond
)

// cacheEntry is what gets stored. StoredAt decides when a hit triggers refresh-ahead.
type cacheEntry[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// readThrough holds what FindAndCache needs besides the key and the fetch.
// A nil cache disables storage but keeps request coalescing.
type readThrough struct {
	cache    Cacher
	sf       singleflight.Group
	ttl      time.Duration
	logger   *zap.Logger
	observer CacheObserver
	now      func() time.Time
}

func (rt *readThrough) hit(prefix KeyPrefix) {
	if rt.observer != nil {
		rt.observer.CacheHit(string(prefix))
	}
}

func (rt *readThrough) miss(prefix KeyPrefix) {
	if rt.observer != nil {
		rt.observer.CacheMiss(string(prefix))
	}
}

// addTTLJitter spreads expirations by up to ±10% of ttl.
func addTTLJitter(ttl time.Duration) time.Duration {
	spread := int64(ttl / 10)
	if spread <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int64N(2*spread+1)-spread)
}

func needsRefresh(storedAt, now time.Time, ttl time.Duration) bool {
	return storedAt.IsZero() || now.Sub(storedAt) >= ttl/2
}

func storeEntry[T any](rt *readThrough, key string, value T) {
	setCtx, cancel := context.WithTimeout(context.Background(), defaultSetTimeout)
	defer cancel()

	ttl := addTTLJitter(rt.ttl)
	entry := cacheEntry[T]{Value: value, StoredAt: rt.now()}
	if err := rt.cache.Set(setCtx, key, entry, ttl); err != nil {
		rt.logger.Warn("failed to store cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	rt.logger.Debug("cache entry stored", zap.String("key", key), zap.Duration("ttl", ttl))
}

func triggerBackgroundRefresh[T any](rt *readThrough, key string, fn FetchFunc[T]) {
	go func() {
		time.Sleep(rand.N(maxRefreshDelay))

		_, _, _ = rt.sf.Do(key+":refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
			defer cancel()

			value, err := fn(ctx)
			if err != nil {
				rt.logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
				return nil, err
			}
			storeEntry(rt, key, value)
			return value, nil
		})
	}()
}

// FindAndCache serves key from the cache, falling back to fn on a miss. Concurrent misses
// for one key share a single fetch, bounded by defaultFetchTimeout rather than the
// first caller's deadline. A hit older than half the TTL is refreshed in the
// background and the cached value is returned immediately.
func FindAndCache[T any](
	ctx context.Context,
	rt *readThrough,
	prefix KeyPrefix,
	key string,
	fn FetchFunc[T],
) (T, error) {
	var zero T

	if rt.cache != nil {
		var cached cacheEntry[T]
		err := rt.cache.Get(ctx, key, &cached)
		switch {
		case err == nil:
			rt.hit(prefix)
			rt.logger.Debug("cache hit", zap.String("key", key))
			if needsRefresh(cached.StoredAt, rt.now(), rt.ttl) {
				triggerBackgroundRefresh(rt, key, fn)
			}
			return cached.Value, nil

		case errors.Is(err, redis.Nil):
			rt.logger.Debug("cache miss", zap.String("key", key))

		default:
			rt.logger.Warn("cache get error (treating as miss)", zap.String("key", key), zap.Error(err))
		}
		rt.miss(prefix)
	}

	// The shared fetch outlives any one caller so a canceled leader does not fail the
	// followers; each caller stops waiting when its own ctx is done.
	ch := rt.sf.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultFetchTimeout)
		defer cancel()

		value, err := fn(fetchCtx)
		if err != nil {
			return nil, err
		}
		if rt.cache != nil {
			go storeEntry(rt, key, value)
		}
		return value, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		rt.logger.Debug("caller stopped waiting for fetch", zap.String("key", key), zap.Error(ctx.Err()))
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		rt.logger.Debug("fetch failed", zap.String("key", key), zap.Error(res.Err))
		return zero, res.Err
	}
	v, shared := res.Val, res.Shared

	value, ok := v.(T)
	if !ok {
		rt.logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, fmt.Errorf("type mismatch for key %q", key)
	}

	if shared {
		rt.logger.Debug("singleflight shared result", zap.String("key", key))
	}

	return value, nil
}
