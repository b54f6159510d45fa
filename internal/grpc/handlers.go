package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/KiruiElisha/esg-compliance/api/v1"
	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

const defaultGRPCTimeout = 10 * time.Second

type GRPCHandlers struct {
	pb.UnimplementedESGOverviewServer
	dashboard DashboardService
	logger    *zap.Logger
}

// NewGRPCHandlers initializes the gRPC handlers. Caching and coalescing belong to the
// DashboardService, typically an overview.Cached.
func NewGRPCHandlers(dashboard DashboardService, logger *zap.Logger) *GRPCHandlers {
	if dashboard == nil {
		panic("nil DashboardService provided to NewGRPCHandlers")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandlers{
		dashboard: dashboard,
		logger:    logger.Named("grpc-handler"),
	}
}

type filterRequest struct {
	Company  string `json:"company"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

type analysisRequest struct {
	filterRequest
	Metric             string `json:"metric"`
	SourceDoctype      string `json:"source_doctype"`
	PartyType          string `json:"party_type"`
	Party              string `json:"party"`
	Performance        string `json:"performance"`
	VerificationStatus string `json:"verification_status"`
	DataSource         string `json:"data_source"`
	GroupBy            string `json:"group_by"`
	IncludeTargets     bool   `json:"include_targets"`
	ShowSummary        bool   `json:"show_summary"`
}

type activityLogRequest struct {
	filterRequest
	SourceType         string `json:"source_type"`
	ActivityType       string `json:"activity_type"`
	Performance        string `json:"performance"`
	IncludeInitiatives bool   `json:"include_initiatives"`
}

func decodeRequest(req *structpb.Struct, dest any) error {
	if req == nil {
		return nil
	}
	raw, err := json.Marshal(req.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

func encodeResponse(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a YYYY-MM-DD date", field)
	}
	return &t, nil
}

func (r filterRequest) parse() (service.Filters, error) {
	from, err := parseDate("from_date", r.FromDate)
	if err != nil {
		return service.Filters{}, err
	}
	to, err := parseDate("to_date", r.ToDate)
	if err != nil {
		return service.Filters{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return service.Filters{}, status.Error(codes.InvalidArgument, "to_date must not be before from_date")
	}
	return service.Filters{Company: strings.TrimSpace(r.Company), FromDate: from, ToDate: to}, nil
}

func (s *GRPCHandlers) parseFilters(req *structpb.Struct) (service.Filters, error) {
	var r filterRequest
	if err := decodeRequest(req, &r); err != nil {
		return service.Filters{}, err
	}
	return r.parse()
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, service.ErrInvalidFilter):
		s.logger.Info("invalid filter", zap.String("op", op), zap.Error(err))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrFetchFailure):
		s.logger.Error("fetch failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Unavailable, "record store unavailable")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func (s *GRPCHandlers) GetDashboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := s.parseFilters(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	d, err := s.dashboard.GetDashboard(ctx, f)
	if err != nil {
		return nil, s.handleError(ctx, "GetDashboard", err)
	}
	return encodeResponse(d)
}

func (s *GRPCHandlers) GetScoreSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := s.parseFilters(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	snap, err := s.dashboard.GetScores(ctx, f)
	if err != nil {
		return nil, s.handleError(ctx, "GetScoreSnapshot", err)
	}
	return encodeResponse(snap)
}

func (s *GRPCHandlers) GetInitiativeBreakdown(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := s.parseFilters(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	counts, err := s.dashboard.GetInitiativeBreakdown(ctx, f)
	if err != nil {
		return nil, s.handleError(ctx, "GetInitiativeBreakdown", err)
	}
	return encodeResponse(counts)
}

func (s *GRPCHandlers) GetMetricsTrend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f, err := s.parseFilters(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	trend, err := s.dashboard.GetMetricsTrend(ctx, f)
	if err != nil {
		return nil, s.handleError(ctx, "GetMetricsTrend", err)
	}
	return encodeResponse(trend)
}

func (s *GRPCHandlers) GetAnalysisReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r analysisRequest
	if err := decodeRequest(req, &r); err != nil {
		return nil, err
	}
	base, err := r.parse()
	if err != nil {
		return nil, err
	}
	f := service.AnalysisFilters{
		Company:            base.Company,
		Metric:             r.Metric,
		SourceDoctype:      r.SourceDoctype,
		PartyType:          r.PartyType,
		Party:              r.Party,
		FromDate:           base.FromDate,
		ToDate:             base.ToDate,
		Performance:        scoring.Performance(r.Performance),
		VerificationStatus: scoring.VerificationStatus(r.VerificationStatus),
		DataSource:         r.DataSource,
		GroupBy:            service.GroupBy(r.GroupBy),
		IncludeTargets:     r.IncludeTargets,
		ShowSummary:        r.ShowSummary,
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	report, err := s.dashboard.GetAnalysisReport(ctx, f)
	if err != nil {
		return nil, s.handleError(ctx, "GetAnalysisReport", err)
	}
	return encodeResponse(report)
}

func (s *GRPCHandlers) GetActivityLog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var r activityLogRequest
	if err := decodeRequest(req, &r); err != nil {
		return nil, err
	}
	base, err := r.parse()
	if err != nil {
		return nil, err
	}
	if base.Company == "" {
		return nil, status.Error(codes.InvalidArgument, "company is required")
	}
	f := service.ActivityLogFilters{
		Company:            base.Company,
		FromDate:           base.FromDate,
		ToDate:             base.ToDate,
		SourceType:         r.SourceType,
		ActivityType:       r.ActivityType,
		Performance:        scoring.Performance(r.Performance),
		IncludeInitiatives: r.IncludeInitiatives,
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	log, err := s.dashboard.GetActivityLog(ctx, f)
	if err != nil {
		return nil, s.handleError(ctx, "GetActivityLog", err)
	}
	return encodeResponse(log)
}
