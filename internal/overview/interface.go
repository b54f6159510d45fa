package overview

import (
	"context"
	"time"

	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// CacheObserver is told about every cache lookup.
type CacheObserver interface {
	CacheHit(prefix string)
	CacheMiss(prefix string)
}

// Service is the read side of the compliance overview, served by both transports.
type Service interface {
	GetDashboard(ctx context.Context, f service.Filters) (service.Dashboard, error)
	GetScores(ctx context.Context, f service.Filters) (scoring.ScoreSnapshot, error)
	GetInitiativeBreakdown(ctx context.Context, f service.Filters) (service.CategoryCounts, error)
	GetMetricsTrend(ctx context.Context, f service.Filters) (service.MetricsTrend, error)
	GetAnalysisReport(ctx context.Context, f service.AnalysisFilters) (service.AnalysisReport, error)
	GetActivityLog(ctx context.Context, f service.ActivityLogFilters) (service.ActivityLog, error)
}
