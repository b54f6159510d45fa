package overview

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

const defaultCacheDuration = 10 * time.Minute

// KeyPrefix names one cached section. It is also the label reported to the CacheObserver.
type KeyPrefix string

const (
	keyDashboard   KeyPrefix = "overview:dashboard"
	keyScores      KeyPrefix = "overview:score_snapshot"
	keyBreakdown   KeyPrefix = "overview:initiative_breakdown"
	keyTrend       KeyPrefix = "overview:metrics_trend"
	keyAnalysis    KeyPrefix = "overview:analysis_report"
	keyActivityLog KeyPrefix = "overview:activity_log"
)

const anyValue = "-"

// Cached wraps a Service with a read-through cache and request coalescing.
type Cached struct {
	svc Service
	rt  *readThrough
}

var _ Service = (*Cached)(nil)

// Option configures Cached.
type Option func(*Cached)

// WithCacheObserver reports cache hits and misses to o.
func WithCacheObserver(o CacheObserver) Option {
	return func(c *Cached) { c.rt.observer = o }
}

// WithNow overrides the clock used to age cache entries.
func WithNow(now func() time.Time) Option {
	return func(c *Cached) {
		if now != nil {
			c.rt.now = now
		}
	}
}

// NewCached wraps svc. cache may be nil, in which case identical concurrent calls are
// still coalesced but nothing is stored.
func NewCached(svc Service, cache Cacher, logger *zap.Logger, ttl time.Duration, opts ...Option) *Cached {
	if svc == nil {
		panic("nil Service provided to NewCached")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	c := &Cached{
		svc: svc,
		rt: &readThrough{
			cache:  cache,
			ttl:    ttl,
			logger: logger.Named("overview-cache"),
			now:    time.Now,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func formatDate(t *time.Time) string {
	if t == nil {
		return anyValue
	}
	return t.Format(models.DateLayout)
}

func orAny(s string) string {
	if s == "" {
		return anyValue
	}
	return s
}

func normalizeKey(prefix KeyPrefix, company string, from, to *time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", prefix, orAny(company), formatDate(from), formatDate(to))
}

// optionsDigest folds the remaining report options into a short stable suffix.
func optionsDigest(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func analysisKey(f service.AnalysisFilters) string {
	return normalizeKey(keyAnalysis, f.Company, f.FromDate, f.ToDate) + ":" + optionsDigest(
		f.Metric, f.SourceDoctype, f.PartyType, f.Party, string(f.Performance), string(f.VerificationStatus),
		f.DataSource, string(f.GroupBy), boolString(f.IncludeTargets), boolString(f.ShowSummary),
	)
}

func activityLogKey(f service.ActivityLogFilters) string {
	return normalizeKey(keyActivityLog, f.Company, f.FromDate, f.ToDate) + ":" + optionsDigest(
		f.SourceType, f.ActivityType, string(f.Performance), boolString(f.IncludeInitiatives),
	)
}

func (c *Cached) GetDashboard(ctx context.Context, f service.Filters) (service.Dashboard, error) {
	key := normalizeKey(keyDashboard, f.Company, f.FromDate, f.ToDate)
	return FindAndCache(ctx, c.rt, keyDashboard, key, func(fetchCtx context.Context) (service.Dashboard, error) {
		return c.svc.GetDashboard(fetchCtx, f)
	})
}

func (c *Cached) GetScores(ctx context.Context, f service.Filters) (scoring.ScoreSnapshot, error) {
	key := normalizeKey(keyScores, f.Company, f.FromDate, f.ToDate)
	return FindAndCache(ctx, c.rt, keyScores, key, func(fetchCtx context.Context) (scoring.ScoreSnapshot, error) {
		return c.svc.GetScores(fetchCtx, f)
	})
}

func (c *Cached) GetInitiativeBreakdown(ctx context.Context, f service.Filters) (service.CategoryCounts, error) {
	key := normalizeKey(keyBreakdown, f.Company, f.FromDate, f.ToDate)
	return FindAndCache(ctx, c.rt, keyBreakdown, key, func(fetchCtx context.Context) (service.CategoryCounts, error) {
		return c.svc.GetInitiativeBreakdown(fetchCtx, f)
	})
}

func (c *Cached) GetMetricsTrend(ctx context.Context, f service.Filters) (service.MetricsTrend, error) {
	key := normalizeKey(keyTrend, f.Company, f.FromDate, f.ToDate)
	return FindAndCache(ctx, c.rt, keyTrend, key, func(fetchCtx context.Context) (service.MetricsTrend, error) {
		return c.svc.GetMetricsTrend(fetchCtx, f)
	})
}

func (c *Cached) GetAnalysisReport(ctx context.Context, f service.AnalysisFilters) (service.AnalysisReport, error) {
	return FindAndCache(ctx, c.rt, keyAnalysis, analysisKey(f), func(fetchCtx context.Context) (service.AnalysisReport, error) {
		return c.svc.GetAnalysisReport(fetchCtx, f)
	})
}

func (c *Cached) GetActivityLog(ctx context.Context, f service.ActivityLogFilters) (service.ActivityLog, error) {
	return FindAndCache(ctx, c.rt, keyActivityLog, activityLogKey(f), func(fetchCtx context.Context) (service.ActivityLog, error) {
		return c.svc.GetActivityLog(fetchCtx, f)
	})
}
