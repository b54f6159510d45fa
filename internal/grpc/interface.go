package grpc

import (
	"context"

	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

type DashboardService interface {
	GetDashboard(ctx context.Context, f service.Filters) (service.Dashboard, error)
	GetScores(ctx context.Context, f service.Filters) (scoring.ScoreSnapshot, error)
	GetInitiativeBreakdown(ctx context.Context, f service.Filters) (service.CategoryCounts, error)
	GetMetricsTrend(ctx context.Context, f service.Filters) (service.MetricsTrend, error)
	GetAnalysisReport(ctx context.Context, f service.AnalysisFilters) (service.AnalysisReport, error)
	GetActivityLog(ctx context.Context, f service.ActivityLogFilters) (service.ActivityLog, error)
}
