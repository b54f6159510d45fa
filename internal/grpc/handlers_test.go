package grpc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/KiruiElisha/esg-compliance/internal/overview"
	"github.com/KiruiElisha/esg-compliance/internal/overview/mocks"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewGRPCHandlers(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		svc := &mocks.MockDashboardService{}

		h := NewGRPCHandlers(svc, zap.NewNop())

		assert.NotNil(t, h)
		assert.Equal(t, svc, h.dashboard)
		assert.NotNil(t, h.logger)
	})

	t.Run("nil service panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewGRPCHandlers(nil, zap.NewNop())
		})
	})

	t.Run("nil logger is accepted", func(t *testing.T) {
		h := NewGRPCHandlers(&mocks.MockDashboardService{}, nil)
		assert.NotNil(t, h.logger)
	})
}

func TestRequestValidation(t *testing.T) {
	var got service.Filters
	svc := &mocks.MockDashboardService{
		GetScoresFunc: func(ctx context.Context, f service.Filters) (scoring.ScoreSnapshot, error) {
			got = f
			return scoring.ScoreSnapshot{Overall: 56}, nil
		},
	}
	h := NewGRPCHandlers(svc, zap.NewNop())
	ctx := context.Background()

	t.Run("valid request", func(t *testing.T) {
		req := mustStruct(t, map[string]any{"company": " Acme ", "from_date": "2025-01-01", "to_date": "2025-01-31"})

		resp, err := h.GetScoreSnapshot(ctx, req)

		require.NoError(t, err)
		assert.Equal(t, 56.0, resp.Fields["overall"].GetNumberValue())
		assert.Equal(t, "Acme", got.Company)
		require.NotNil(t, got.FromDate)
		require.NotNil(t, got.ToDate)
		assert.Equal(t, date(2025, 1, 1), *got.FromDate)
		assert.Equal(t, date(2025, 1, 31), *got.ToDate)
	})

	t.Run("nil and empty requests mean no restriction", func(t *testing.T) {
		_, err := h.GetScoreSnapshot(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, service.Filters{}, got)

		_, err = h.GetScoreSnapshot(ctx, &structpb.Struct{})
		require.NoError(t, err)
		assert.Equal(t, service.Filters{}, got)
	})

	t.Run("same start and end dates are allowed", func(t *testing.T) {
		req := mustStruct(t, map[string]any{"from_date": "2025-01-01", "to_date": "2025-01-01"})

		_, err := h.GetScoreSnapshot(ctx, req)
		assert.NoError(t, err)
	})

	t.Run("to before from", func(t *testing.T) {
		req := mustStruct(t, map[string]any{"from_date": "2025-01-31", "to_date": "2025-01-01"})

		resp, err := h.GetScoreSnapshot(ctx, req)

		assert.Nil(t, resp)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.Contains(t, err.Error(), "to_date must not be before from_date")
	})

	t.Run("bad date format", func(t *testing.T) {
		req := mustStruct(t, map[string]any{"from_date": "01/02/2025"})

		_, err := h.GetScoreSnapshot(ctx, req)

		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.Contains(t, err.Error(), "from_date must be a YYYY-MM-DD date")
	})

	t.Run("wrong field type", func(t *testing.T) {
		req := mustStruct(t, map[string]any{"company": 42})

		_, err := h.GetScoreSnapshot(ctx, req)

		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.Contains(t, err.Error(), "malformed request")
	})
}

func TestHandleError(t *testing.T) {
	h := &GRPCHandlers{logger: zap.NewNop()}

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := h.handleError(ctx, "op", errors.New("boom"))

		assert.Equal(t, codes.Canceled, status.Code(err))
		assert.Contains(t, err.Error(), "request canceled")
	})

	t.Run("context deadline exceeded", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		err := h.handleError(ctx, "op", errors.New("boom"))

		assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
		assert.Contains(t, err.Error(), "request timed out")
	})

	t.Run("fetch failure wrapping a cancellation", func(t *testing.T) {
		err := fmt.Errorf("%w: metric entries: %w", service.ErrFetchFailure, context.Canceled)

		assert.Equal(t, codes.Canceled, status.Code(h.handleError(context.Background(), "op", err)))
	})

	t.Run("invalid filter", func(t *testing.T) {
		err := fmt.Errorf("%w: company is required", service.ErrInvalidFilter)

		got := h.handleError(context.Background(), "op", err)

		assert.Equal(t, codes.InvalidArgument, status.Code(got))
		assert.Contains(t, got.Error(), "company is required")
	})

	t.Run("fetch failure", func(t *testing.T) {
		err := fmt.Errorf("%w: policies: %w", service.ErrFetchFailure, errors.New("disk I/O error"))

		got := h.handleError(context.Background(), "op", err)

		assert.Equal(t, codes.Unavailable, status.Code(got))
		assert.NotContains(t, got.Error(), "disk I/O error")
	})

	t.Run("unknown error", func(t *testing.T) {
		got := h.handleError(context.Background(), "GetDashboard", errors.New("database connection lost"))

		assert.Equal(t, codes.Internal, status.Code(got))
		assert.Contains(t, got.Error(), "GetDashboard failed")
		assert.Contains(t, got.Error(), "database connection lost")
	})
}

func TestGetDashboard(t *testing.T) {
	svc := &mocks.MockDashboardService{
		GetDashboardFunc: func(ctx context.Context, f service.Filters) (service.Dashboard, error) {
			return service.Dashboard{
				Scores:      scoring.ScoreSnapshot{Environmental: 67, Social: 0, Governance: 100, Overall: 56},
				Statistics:  service.Statistics{Policies: service.PolicyStats{Active: 3, Total: 5, ExpiringSoon: 2}},
				Initiatives: service.CategoryCounts{Environmental: 2, Social: 2, Governance: 1},
				Alerts:      []service.Alert{{Message: "Policy P-1 expires soon", Priority: service.AlertMedium, Days: 21}},
			}, nil
		},
	}
	h := NewGRPCHandlers(svc, zap.NewNop())

	resp, err := h.GetDashboard(context.Background(), mustStruct(t, map[string]any{"company": "Acme"}))
	require.NoError(t, err)

	scores := resp.Fields["scores"].GetStructValue()
	assert.Equal(t, 67.0, scores.Fields["environmental"].GetNumberValue())
	assert.Equal(t, 56.0, scores.Fields["overall"].GetNumberValue())

	stats := resp.Fields["statistics"].GetStructValue().Fields["policies"].GetStructValue()
	assert.Equal(t, 2.0, stats.Fields["expiring_soon"].GetNumberValue())

	alerts := resp.Fields["alerts"].GetListValue().GetValues()
	require.Len(t, alerts, 1)
	assert.Equal(t, "medium", alerts[0].GetStructValue().Fields["priority"].GetStringValue())

	t.Run("service failure maps to a status", func(t *testing.T) {
		failing := &mocks.MockDashboardService{
			GetDashboardFunc: func(ctx context.Context, f service.Filters) (service.Dashboard, error) {
				return service.Dashboard{}, fmt.Errorf("%w: metric entries: %w", service.ErrFetchFailure, errors.New("locked"))
			},
		}
		h := NewGRPCHandlers(failing, zap.NewNop())

		_, err := h.GetDashboard(context.Background(), nil)
		assert.Equal(t, codes.Unavailable, status.Code(err))
	})
}

func TestGetSections(t *testing.T) {
	svc := &mocks.MockDashboardService{
		GetInitiativeBreakdownFunc: func(ctx context.Context, f service.Filters) (service.CategoryCounts, error) {
			return service.CategoryCounts{Environmental: 2, Social: 2, Governance: 1}, nil
		},
		GetMetricsTrendFunc: func(ctx context.Context, f service.Filters) (service.MetricsTrend, error) {
			return service.MetricsTrend{
				Labels:   []string{"Jan 2025", "Feb 2025"},
				Datasets: []service.TrendSeries{{Label: "Environmental", Data: []float64{0, 20}}},
			}, nil
		},
	}
	h := NewGRPCHandlers(svc, zap.NewNop())
	ctx := context.Background()

	breakdown, err := h.GetInitiativeBreakdown(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, breakdown.Fields["governance"].GetNumberValue())

	trend, err := h.GetMetricsTrend(ctx, nil)
	require.NoError(t, err)
	labels := trend.Fields["labels"].GetListValue().GetValues()
	require.Len(t, labels, 2)
	assert.Equal(t, "Feb 2025", labels[1].GetStringValue())
}

func TestGetAnalysisReport(t *testing.T) {
	var got service.AnalysisFilters
	svc := &mocks.MockDashboardService{
		GetAnalysisReportFunc: func(ctx context.Context, f service.AnalysisFilters) (service.AnalysisReport, error) {
			got = f
			return service.AnalysisReport{
				GroupBy: f.GroupBy,
				Summary: &service.AnalysisSummary{Entries: 2, MeasuredTotal: decimal.RequireFromString("1722.35")},
			}, nil
		},
	}
	h := NewGRPCHandlers(svc, zap.NewNop())

	req := mustStruct(t, map[string]any{
		"company":         "Acme",
		"metric":          "Carbon Emissions",
		"from_date":       "2025-01-01",
		"group_by":        "Metric",
		"performance":     "Green",
		"include_targets": true,
		"show_summary":    true,
	})

	resp, err := h.GetAnalysisReport(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, "Carbon Emissions", got.Metric)
	assert.Equal(t, service.GroupMetric, got.GroupBy)
	assert.Equal(t, scoring.PerformanceGreen, got.Performance)
	assert.True(t, got.IncludeTargets)
	assert.True(t, got.ShowSummary)
	require.NotNil(t, got.FromDate)
	assert.Nil(t, got.ToDate)

	summary := resp.Fields["summary"].GetStructValue()
	assert.Equal(t, "1722.35", summary.Fields["measured_total"].GetStringValue())

	t.Run("invalid group maps to InvalidArgument", func(t *testing.T) {
		failing := &mocks.MockDashboardService{
			GetAnalysisReportFunc: func(ctx context.Context, f service.AnalysisFilters) (service.AnalysisReport, error) {
				return service.AnalysisReport{}, fmt.Errorf("%w: unknown group_by %q", service.ErrInvalidFilter, f.GroupBy)
			},
		}
		h := NewGRPCHandlers(failing, zap.NewNop())

		_, err := h.GetAnalysisReport(context.Background(), mustStruct(t, map[string]any{"group_by": "Colour"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func TestGetActivityLog(t *testing.T) {
	var got service.ActivityLogFilters
	svc := &mocks.MockDashboardService{
		GetActivityLogFunc: func(ctx context.Context, f service.ActivityLogFilters) (service.ActivityLog, error) {
			got = f
			return service.ActivityLog{Summary: service.ActivityLogSummary{Entries: 3, PerformanceScore: 60}}, nil
		},
	}
	h := NewGRPCHandlers(svc, zap.NewNop())

	t.Run("company is required", func(t *testing.T) {
		_, err := h.GetActivityLog(context.Background(), nil)

		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.Contains(t, err.Error(), "company is required")
	})

	t.Run("options are forwarded", func(t *testing.T) {
		req := mustStruct(t, map[string]any{
			"company":             "Acme",
			"to_date":             "2025-06-30",
			"source_type":         "Metric Entry",
			"include_initiatives": true,
		})

		resp, err := h.GetActivityLog(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, "Acme", got.Company)
		assert.Equal(t, "Metric Entry", got.SourceType)
		assert.True(t, got.IncludeInitiatives)
		require.NotNil(t, got.ToDate)
		assert.Equal(t, date(2025, 6, 30), *got.ToDate)
		assert.Equal(t, 60.0, resp.Fields["summary"].GetStructValue().Fields["performance_score"].GetNumberValue())
	})
}

func TestCanceledCallerDoesNotFailSharedFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	svc := &mocks.MockDashboardService{
		GetScoresFunc: func(ctx context.Context, f service.Filters) (scoring.ScoreSnapshot, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			select {
			case <-release:
				return scoring.ScoreSnapshot{Overall: 56}, nil
			case <-ctx.Done():
				return scoring.ScoreSnapshot{}, ctx.Err()
			}
		},
	}
	h := NewGRPCHandlers(overview.NewCached(svc, nil, zap.NewNop(), time.Minute), zap.NewNop())
	req := mustStruct(t, map[string]any{"company": "Acme"})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := h.GetScoreSnapshot(leaderCtx, req)
		leaderErr <- err
	}()
	<-started

	type result struct {
		resp *structpb.Struct
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		resp, err := h.GetScoreSnapshot(context.Background(), req)
		follower <- result{resp, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	assert.Equal(t, codes.Canceled, status.Code(<-leaderErr))

	close(release)
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, 56.0, got.resp.Fields["overall"].GetNumberValue())
	assert.Equal(t, int32(1), calls.Load())
}
