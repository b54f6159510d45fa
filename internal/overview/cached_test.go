package overview

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KiruiElisha/esg-compliance/internal/overview/mocks"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type countingObserver struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{hits: map[string]int{}, misses: map[string]int{}}
}

func (o *countingObserver) CacheHit(prefix string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits[prefix]++
}

func (o *countingObserver) CacheMiss(prefix string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses[prefix]++
}

func newTestReadThrough(cache Cacher, now time.Time, ttl time.Duration) (*readThrough, *countingObserver) {
	obs := newCountingObserver()
	return &readThrough{
		cache:    cache,
		ttl:      ttl,
		logger:   zap.NewNop(),
		observer: obs,
		now:      func() time.Time { return now },
	}, obs
}

func TestNewCached(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		svc := &mocks.MockDashboardService{}
		cache := &mocks.MockCacher{}

		c := NewCached(svc, cache, zap.NewNop(), 5*time.Minute)

		assert.Equal(t, svc, c.svc)
		assert.Equal(t, cache, c.rt.cache)
		assert.Equal(t, 5*time.Minute, c.rt.ttl)
	})

	t.Run("nil service panics", func(t *testing.T) {
		assert.Panics(t, func() { NewCached(nil, nil, zap.NewNop(), time.Minute) })
	})

	t.Run("non-positive TTL uses default", func(t *testing.T) {
		svc := &mocks.MockDashboardService{}
		assert.Equal(t, defaultCacheDuration, NewCached(svc, nil, zap.NewNop(), 0).rt.ttl)
		assert.Equal(t, defaultCacheDuration, NewCached(svc, nil, zap.NewNop(), -time.Minute).rt.ttl)
	})

	t.Run("nil logger and nil cache are accepted", func(t *testing.T) {
		c := NewCached(&mocks.MockDashboardService{}, nil, nil, time.Minute)
		assert.Nil(t, c.rt.cache)
		assert.NotNil(t, c.rt.logger)
	})
}

func TestNormalizeKey(t *testing.T) {
	from, to := date(2025, 1, 15), date(2025, 1, 20)

	t.Run("all parts set", func(t *testing.T) {
		assert.Equal(t, "overview:dashboard:Acme:2025-01-15:2025-01-20", normalizeKey(keyDashboard, "Acme", &from, &to))
	})

	t.Run("missing parts use a placeholder", func(t *testing.T) {
		assert.Equal(t, "overview:score_snapshot:-:-:-", normalizeKey(keyScores, "", nil, nil))
		assert.Equal(t, "overview:metrics_trend:-:2025-01-15:-", normalizeKey(keyTrend, "", &from, nil))
	})

	t.Run("options digest is stable and order sensitive", func(t *testing.T) {
		assert.Equal(t, optionsDigest("Metric", "1"), optionsDigest("Metric", "1"))
		assert.NotEqual(t, optionsDigest("Metric", "1"), optionsDigest("1", "Metric"))
		assert.NotEqual(t, optionsDigest("ab", "c"), optionsDigest("a", "bc"))
		assert.Len(t, optionsDigest(), 16)
	})

	t.Run("report options change the key", func(t *testing.T) {
		base := service.AnalysisFilters{Company: "Acme", GroupBy: service.GroupMetric}
		withTargets := base
		withTargets.IncludeTargets = true

		assert.Equal(t, analysisKey(base), analysisKey(base))
		assert.NotEqual(t, analysisKey(base), analysisKey(withTargets))

		log := service.ActivityLogFilters{Company: "Acme"}
		withInitiatives := log
		withInitiatives.IncludeInitiatives = true
		assert.NotEqual(t, activityLogKey(log), activityLogKey(withInitiatives))
	})
}

func TestFindAndCache(t *testing.T) {
	now := date(2025, 6, 30).Add(12 * time.Hour)
	ctx := context.Background()

	t.Run("fresh hit skips the fetch", func(t *testing.T) {
		cache := mocks.NewMemoryCacher()
		raw, err := json.Marshal(cacheEntry[int]{Value: 7, StoredAt: now.Add(-time.Minute)})
		require.NoError(t, err)
		cache.Put("k", raw)
		rt, obs := newTestReadThrough(cache, now, 10*time.Minute)

		var calls atomic.Int32
		v, err := FindAndCache(ctx, rt, keyScores, "k", func(context.Context) (int, error) {
			calls.Add(1)
			return 9, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 7, v)
		time.Sleep(2 * maxRefreshDelay)
		assert.Zero(t, calls.Load())
		assert.Equal(t, 1, obs.hits[string(keyScores)])
	})

	t.Run("aged hit is served and refreshed in the background", func(t *testing.T) {
		cache := mocks.NewMemoryCacher()
		raw, err := json.Marshal(cacheEntry[int]{Value: 7, StoredAt: now.Add(-6 * time.Minute)})
		require.NoError(t, err)
		cache.Put("k", raw)
		rt, _ := newTestReadThrough(cache, now, 10*time.Minute)

		v, err := FindAndCache(ctx, rt, keyScores, "k", func(context.Context) (int, error) {
			return 9, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 7, v)
		assert.Eventually(t, func() bool { return cache.Sets() == 1 }, 2*time.Second, 10*time.Millisecond)

		var refreshed cacheEntry[int]
		require.NoError(t, cache.Get(ctx, "k", &refreshed))
		assert.Equal(t, 9, refreshed.Value)
		assert.True(t, refreshed.StoredAt.Equal(now))
	})

	t.Run("miss fetches and stores", func(t *testing.T) {
		cache := mocks.NewMemoryCacher()
		rt, obs := newTestReadThrough(cache, now, time.Minute)

		v, err := FindAndCache(ctx, rt, keyTrend, "k", func(context.Context) (string, error) {
			return "fresh", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
		assert.Eventually(t, func() bool { return cache.Has("k") }, time.Second, 5*time.Millisecond)
		assert.Equal(t, 1, obs.misses[string(keyTrend)])
	})

	t.Run("cache errors are treated as a miss", func(t *testing.T) {
		cache := &mocks.MockCacher{
			GetFunc: func(ctx context.Context, key string, dest any) error {
				return errors.New("connection refused")
			},
		}
		rt, _ := newTestReadThrough(cache, now, time.Minute)

		v, err := FindAndCache(ctx, rt, keyTrend, "k", func(context.Context) (int, error) {
			return 3, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("fetch errors are returned and nothing is stored", func(t *testing.T) {
		cache := mocks.NewMemoryCacher()
		rt, _ := newTestReadThrough(cache, now, time.Minute)

		_, err := FindAndCache(ctx, rt, keyTrend, "k", func(context.Context) (int, error) {
			return 0, service.ErrFetchFailure
		})

		assert.ErrorIs(t, err, service.ErrFetchFailure)
		time.Sleep(20 * time.Millisecond)
		assert.False(t, cache.Has("k"))
	})

	t.Run("concurrent callers share one fetch without a cache", func(t *testing.T) {
		rt, obs := newTestReadThrough(nil, now, time.Minute)

		var calls atomic.Int32
		release := make(chan struct{})
		var ready, done sync.WaitGroup
		results := make([]int, 5)

		for i := range results {
			ready.Add(1)
			done.Add(1)
			go func(i int) {
				defer done.Done()
				ready.Done()
				v, err := FindAndCache(ctx, rt, keyDashboard, "k", func(context.Context) (int, error) {
					calls.Add(1)
					<-release
					return 42, nil
				})
				if err == nil {
					results[i] = v
				}
			}(i)
		}

		ready.Wait()
		time.Sleep(20 * time.Millisecond)
		close(release)
		done.Wait()

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, []int{42, 42, 42, 42, 42}, results)
		assert.Empty(t, obs.hits)
		assert.Empty(t, obs.misses)
	})

	t.Run("canceled leader does not cancel followers", func(t *testing.T) {
		rt, _ := newTestReadThrough(nil, now, time.Minute)

		started := make(chan struct{})
		release := make(chan struct{})
		var fetchErr atomic.Value
		fetch := func(fetchCtx context.Context) (int, error) {
			close(started)
			select {
			case <-release:
				return 42, nil
			case <-fetchCtx.Done():
				fetchErr.Store(fetchCtx.Err())
				return 0, fetchCtx.Err()
			}
		}

		leaderCtx, cancelLeader := context.WithCancel(ctx)
		leaderErr := make(chan error, 1)
		go func() {
			_, err := FindAndCache(leaderCtx, rt, keyScores, "k", fetch)
			leaderErr <- err
		}()
		<-started

		type result struct {
			v   int
			err error
		}
		follower := make(chan result, 1)
		go func() {
			v, err := FindAndCache(ctx, rt, keyScores, "k", fetch)
			follower <- result{v, err}
		}()
		time.Sleep(20 * time.Millisecond)

		cancelLeader()
		assert.ErrorIs(t, <-leaderErr, context.Canceled)

		close(release)
		got := <-follower
		require.NoError(t, got.err)
		assert.Equal(t, 42, got.v)
		assert.Nil(t, fetchErr.Load())
	})

	t.Run("caller deadline does not bound the shared fetch", func(t *testing.T) {
		rt, _ := newTestReadThrough(nil, now, time.Minute)

		short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		done := make(chan error, 1)
		_, err := FindAndCache(short, rt, keyTrend, "k", func(fetchCtx context.Context) (int, error) {
			defer close(done)
			select {
			case <-time.After(50 * time.Millisecond):
				return 1, nil
			case <-fetchCtx.Done():
				done <- fetchCtx.Err()
				return 0, fetchCtx.Err()
			}
		})

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NoError(t, <-done)
	})
}

func TestCachedServesFromCache(t *testing.T) {
	cache := mocks.NewMemoryCacher()
	var calls atomic.Int32
	svc := &mocks.MockDashboardService{
		GetInitiativeBreakdownFunc: func(ctx context.Context, f service.Filters) (service.CategoryCounts, error) {
			calls.Add(1)
			return service.CategoryCounts{Environmental: 2}, nil
		},
	}
	obs := newCountingObserver()
	c := NewCached(svc, cache, zap.NewNop(), 10*time.Minute, WithCacheObserver(obs))
	f := service.Filters{Company: "Acme"}

	_, err := c.GetInitiativeBreakdown(context.Background(), f)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return cache.Has("overview:initiative_breakdown:Acme:-:-")
	}, time.Second, 5*time.Millisecond)

	got, err := c.GetInitiativeBreakdown(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Environmental)
	assert.Equal(t, int32(1), calls.Load())

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 1, obs.misses[string(keyBreakdown)])
	assert.Equal(t, 1, obs.hits[string(keyBreakdown)])
}

func TestCachedForwardsFilters(t *testing.T) {
	var gotScores service.Filters
	var gotReport service.AnalysisFilters
	svc := &mocks.MockDashboardService{
		GetScoresFunc: func(ctx context.Context, f service.Filters) (scoring.ScoreSnapshot, error) {
			gotScores = f
			return scoring.ScoreSnapshot{Overall: 56}, nil
		},
		GetAnalysisReportFunc: func(ctx context.Context, f service.AnalysisFilters) (service.AnalysisReport, error) {
			gotReport = f
			return service.AnalysisReport{GroupBy: f.GroupBy}, nil
		},
	}
	c := NewCached(svc, nil, zap.NewNop(), time.Minute)
	from := date(2025, 1, 1)

	snap, err := c.GetScores(context.Background(), service.Filters{Company: "Acme", FromDate: &from})
	require.NoError(t, err)
	assert.Equal(t, scoring.CategoryScore(56), snap.Overall)
	assert.Equal(t, "Acme", gotScores.Company)
	assert.Equal(t, &from, gotScores.FromDate)

	report, err := c.GetAnalysisReport(context.Background(), service.AnalysisFilters{GroupBy: service.GroupPartyType, ShowSummary: true})
	require.NoError(t, err)
	assert.Equal(t, service.GroupPartyType, report.GroupBy)
	assert.True(t, gotReport.ShowSummary)
}

func TestTTLHelpers(t *testing.T) {
	t.Run("jitter stays within ten percent", func(t *testing.T) {
		for range 100 {
			got := addTTLJitter(10 * time.Minute)
			assert.GreaterOrEqual(t, got, 9*time.Minute)
			assert.LessOrEqual(t, got, 11*time.Minute)
		}
		assert.Equal(t, time.Duration(0), addTTLJitter(0))
		assert.Equal(t, 5*time.Nanosecond, addTTLJitter(5*time.Nanosecond))
	})

	t.Run("refresh after half the ttl", func(t *testing.T) {
		now := date(2025, 1, 1)
		assert.False(t, needsRefresh(now.Add(-4*time.Minute), now, 10*time.Minute))
		assert.True(t, needsRefresh(now.Add(-5*time.Minute), now, 10*time.Minute))
		assert.True(t, needsRefresh(time.Time{}, now, 10*time.Minute))
	})
}
