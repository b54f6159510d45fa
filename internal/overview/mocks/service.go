package mocks

import (
	"context"
	"errors"

	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

// MockDashboardService is a function-field implementation of the overview Service.
type MockDashboardService struct {
	GetDashboardFunc           func(ctx context.Context, f service.Filters) (service.Dashboard, error)
	GetScoresFunc              func(ctx context.Context, f service.Filters) (scoring.ScoreSnapshot, error)
	GetInitiativeBreakdownFunc func(ctx context.Context, f service.Filters) (service.CategoryCounts, error)
	GetMetricsTrendFunc        func(ctx context.Context, f service.Filters) (service.MetricsTrend, error)
	GetAnalysisReportFunc      func(ctx context.Context, f service.AnalysisFilters) (service.AnalysisReport, error)
	GetActivityLogFunc         func(ctx context.Context, f service.ActivityLogFilters) (service.ActivityLog, error)
}

func (m *MockDashboardService) GetDashboard(ctx context.Context, f service.Filters) (service.Dashboard, error) {
	if m.GetDashboardFunc != nil {
		return m.GetDashboardFunc(ctx, f)
	}
	return service.Dashboard{}, errors.New("GetDashboardFunc not implemented")
}

func (m *MockDashboardService) GetScores(ctx context.Context, f service.Filters) (scoring.ScoreSnapshot, error) {
	if m.GetScoresFunc != nil {
		return m.GetScoresFunc(ctx, f)
	}
	return scoring.ScoreSnapshot{}, errors.New("GetScoresFunc not implemented")
}

func (m *MockDashboardService) GetInitiativeBreakdown(ctx context.Context, f service.Filters) (service.CategoryCounts, error) {
	if m.GetInitiativeBreakdownFunc != nil {
		return m.GetInitiativeBreakdownFunc(ctx, f)
	}
	return service.CategoryCounts{}, errors.New("GetInitiativeBreakdownFunc not implemented")
}

func (m *MockDashboardService) GetMetricsTrend(ctx context.Context, f service.Filters) (service.MetricsTrend, error) {
	if m.GetMetricsTrendFunc != nil {
		return m.GetMetricsTrendFunc(ctx, f)
	}
	return service.MetricsTrend{}, errors.New("GetMetricsTrendFunc not implemented")
}

func (m *MockDashboardService) GetAnalysisReport(ctx context.Context, f service.AnalysisFilters) (service.AnalysisReport, error) {
	if m.GetAnalysisReportFunc != nil {
		return m.GetAnalysisReportFunc(ctx, f)
	}
	return service.AnalysisReport{}, errors.New("GetAnalysisReportFunc not implemented")
}

func (m *MockDashboardService) GetActivityLog(ctx context.Context, f service.ActivityLogFilters) (service.ActivityLog, error) {
	if m.GetActivityLogFunc != nil {
		return m.GetActivityLogFunc(ctx, f)
	}
	return service.ActivityLog{}, errors.New("GetActivityLogFunc not implemented")
}
