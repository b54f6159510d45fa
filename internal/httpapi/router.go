package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service"
)

const (
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Overview is the read side the HTTP API exposes.
type Overview interface {
	GetDashboard(ctx context.Context, f service.Filters) (service.Dashboard, error)
	GetScores(ctx context.Context, f service.Filters) (scoring.ScoreSnapshot, error)
	GetInitiativeBreakdown(ctx context.Context, f service.Filters) (service.CategoryCounts, error)
	GetMetricsTrend(ctx context.Context, f service.Filters) (service.MetricsTrend, error)
	GetAnalysisReport(ctx context.Context, f service.AnalysisFilters) (service.AnalysisReport, error)
	GetActivityLog(ctx context.Context, f service.ActivityLogFilters) (service.ActivityLog, error)
}

// DocumentEvents keeps generated metric entries in step with source documents.
type DocumentEvents interface {
	RecordDocumentEvent(ctx context.Context, action service.DocumentAction, doc service.SourceDocument) (service.DocumentEventResult, error)
}

// RouteMetrics wraps a handler with per-route instrumentation.
type RouteMetrics interface {
	WrapHandler(route string, next http.Handler) http.Handler
	Handler() http.Handler
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Option func(*api)

func WithMetrics(m RouteMetrics) Option {
	return func(a *api) { a.metrics = m }
}

// WithDocumentEvents enables POST /api/v1/document-events.
func WithDocumentEvents(e DocumentEvents) Option {
	return func(a *api) { a.events = e }
}

// WithHealthCheck adds a named readiness check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(a *api) { a.checks[name] = check }
}

type api struct {
	overview Overview
	events   DocumentEvents
	logger   *zap.Logger
	metrics  RouteMetrics
	checks   map[string]HealthCheck
}

// NewRouter builds the HTTP handler tree, wrapped in panic recovery, gzip and access logging.
func NewRouter(overview Overview, logger *zap.Logger, opts ...Option) http.Handler {
	if overview == nil {
		panic("nil Overview provided to NewRouter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &api{
		overview: overview,
		logger:   logger.Named("http"),
		checks:   map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(a)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	a.route(v1, "/dashboard", a.dashboard)
	a.route(v1, "/scores", a.scores)
	a.route(v1, "/initiatives/breakdown", a.breakdown)
	a.route(v1, "/metrics/trend", a.trend)
	a.route(v1, "/reports/analysis", a.analysis)
	a.route(v1, "/reports/activity-log", a.activityLog)
	if a.events != nil {
		a.handle(v1, http.MethodPost, "/document-events", a.documentEvent)
	}

	var h http.Handler = r
	h = handlers.CompressHandler(h)
	h = handlers.LoggingHandler(zap.NewStdLog(a.logger).Writer(), h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(a.logger)),
		handlers.PrintRecoveryStack(false),
	)(h)
	return h
}

func (a *api) route(r *mux.Router, path string, fn http.HandlerFunc) {
	a.handle(r, http.MethodGet, path, fn)
}

func (a *api) handle(r *mux.Router, method, path string, fn http.HandlerFunc) {
	var h http.Handler = fn
	if a.metrics != nil {
		h = a.metrics.WrapHandler("/api/v1"+path, h)
	}
	r.Handle(path, h).Methods(method)
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	result := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			a.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			result[name] = err.Error()
			result["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	writeJSON(w, code, result)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// badRequest marks a query parsing failure.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (a *api) fail(w http.ResponseWriter, op string, err error) {
	var br badRequest
	switch {
	case errors.As(err, &br), errors.Is(err, service.ErrInvalidFilter), errors.Is(err, service.ErrInvalidDocument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		a.logger.Warn("request timeout", zap.String("op", op))
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "request timed out"})
	case errors.Is(err, context.Canceled):
		a.logger.Debug("request canceled", zap.String("op", op))
	case errors.Is(err, service.ErrFetchFailure), errors.Is(err, service.ErrWriteFailure):
		a.logger.Error("fetch failure", zap.String("op", op), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "record store unavailable"})
	default:
		a.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func parseDate(name, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, v)
	if err != nil {
		return nil, badRequest{msg: name + " must be a YYYY-MM-DD date"}
	}
	return &t, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	return parseDate(name, r.URL.Query().Get(name))
}

func queryBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest{msg: name + " must be a boolean"}
	}
	return b, nil
}

func parseFilters(r *http.Request) (service.Filters, error) {
	from, err := queryDate(r, "from_date")
	if err != nil {
		return service.Filters{}, err
	}
	to, err := queryDate(r, "to_date")
	if err != nil {
		return service.Filters{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return service.Filters{}, badRequest{msg: "to_date must not be before from_date"}
	}
	return service.Filters{
		Company:  strings.TrimSpace(r.URL.Query().Get("company")),
		FromDate: from,
		ToDate:   to,
	}, nil
}

// serve runs fetch with the parsed filters and writes its result as JSON.
func serve[F, T any](a *api, op string, parse func(*http.Request) (F, error), fetch func(context.Context, F) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parse(r)
		if err != nil {
			a.fail(w, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		v, err := fetch(ctx, f)
		if err != nil {
			a.fail(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (a *api) dashboard(w http.ResponseWriter, r *http.Request) {
	serve(a, "dashboard", parseFilters, a.overview.GetDashboard)(w, r)
}

func (a *api) scores(w http.ResponseWriter, r *http.Request) {
	serve(a, "scores", parseFilters, a.overview.GetScores)(w, r)
}

func (a *api) breakdown(w http.ResponseWriter, r *http.Request) {
	serve(a, "initiative breakdown", parseFilters, a.overview.GetInitiativeBreakdown)(w, r)
}

func (a *api) trend(w http.ResponseWriter, r *http.Request) {
	serve(a, "metrics trend", parseFilters, a.overview.GetMetricsTrend)(w, r)
}

func parseAnalysisFilters(r *http.Request) (service.AnalysisFilters, error) {
	base, err := parseFilters(r)
	if err != nil {
		return service.AnalysisFilters{}, err
	}
	includeTargets, err := queryBool(r, "include_targets")
	if err != nil {
		return service.AnalysisFilters{}, err
	}
	showSummary, err := queryBool(r, "show_summary")
	if err != nil {
		return service.AnalysisFilters{}, err
	}
	q := r.URL.Query()
	return service.AnalysisFilters{
		Company:            base.Company,
		Metric:             q.Get("metric"),
		SourceDoctype:      q.Get("source_doctype"),
		PartyType:          q.Get("party_type"),
		Party:              q.Get("party"),
		FromDate:           base.FromDate,
		ToDate:             base.ToDate,
		Performance:        scoring.Performance(q.Get("performance")),
		VerificationStatus: scoring.VerificationStatus(q.Get("verification_status")),
		DataSource:         q.Get("data_source"),
		GroupBy:            service.GroupBy(q.Get("group_by")),
		IncludeTargets:     includeTargets,
		ShowSummary:        showSummary,
	}, nil
}

func (a *api) analysis(w http.ResponseWriter, r *http.Request) {
	serve(a, "analysis report", parseAnalysisFilters, a.overview.GetAnalysisReport)(w, r)
}

func parseActivityLogFilters(r *http.Request) (service.ActivityLogFilters, error) {
	base, err := parseFilters(r)
	if err != nil {
		return service.ActivityLogFilters{}, err
	}
	includeInitiatives, err := queryBool(r, "include_initiatives")
	if err != nil {
		return service.ActivityLogFilters{}, err
	}
	q := r.URL.Query()
	return service.ActivityLogFilters{
		Company:            base.Company,
		FromDate:           base.FromDate,
		ToDate:             base.ToDate,
		SourceType:         q.Get("source_type"),
		ActivityType:       q.Get("activity_type"),
		Performance:        scoring.Performance(q.Get("performance")),
		IncludeInitiatives: includeInitiatives,
	}, nil
}

func (a *api) activityLog(w http.ResponseWriter, r *http.Request) {
	serve(a, "activity log", parseActivityLogFilters, a.overview.GetActivityLog)(w, r)
}

type sourceDocumentBody struct {
	Doctype          string `json:"doctype"`
	Name             string `json:"name"`
	Company          string `json:"company"`
	PostingDate      string `json:"posting_date"`
	PlannedStartDate string `json:"planned_start_date"`

	TotalEmissions          decimal.Decimal `json:"total_emissions"`
	SupplierCarbonCertified bool            `json:"supplier_is_carbon_certified"`
	RawMaterialEmissions    decimal.Decimal `json:"raw_material_emissions"`
	ProcessEmissions        decimal.Decimal `json:"manufacturing_process_emissions"`
	ProductEmissions        decimal.Decimal `json:"product_emissions"`
	TransportEmissions      decimal.Decimal `json:"transport_emissions"`
	ReductionTargetPercent  decimal.Decimal `json:"carbon_reduction_target"`

	Customer       string `json:"customer"`
	CustomerName   string `json:"customer_name"`
	Supplier       string `json:"supplier"`
	Purpose        string `json:"purpose"`
	FromWarehouse  string `json:"from_warehouse"`
	ToWarehouse    string `json:"to_warehouse"`
	ProductionItem string `json:"production_item"`
	ItemName       string `json:"item_name"`
}

type documentEventBody struct {
	Action   service.DocumentAction `json:"action"`
	Document sourceDocumentBody     `json:"document"`
}

func parseDocumentEvent(r *http.Request) (documentEventBody, service.SourceDocument, error) {
	var body documentEventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, service.SourceDocument{}, badRequest{msg: "malformed request body: " + err.Error()}
	}
	d := body.Document
	posting, err := parseDate("posting_date", d.PostingDate)
	if err != nil {
		return body, service.SourceDocument{}, err
	}
	planned, err := parseDate("planned_start_date", d.PlannedStartDate)
	if err != nil {
		return body, service.SourceDocument{}, err
	}

	doc := service.SourceDocument{
		Doctype:                 d.Doctype,
		Name:                    d.Name,
		Company:                 d.Company,
		TotalEmissions:          d.TotalEmissions,
		SupplierCarbonCertified: d.SupplierCarbonCertified,
		RawMaterialEmissions:    d.RawMaterialEmissions,
		ProcessEmissions:        d.ProcessEmissions,
		ProductEmissions:        d.ProductEmissions,
		TransportEmissions:      d.TransportEmissions,
		ReductionTargetPercent:  d.ReductionTargetPercent,
		Customer:                d.Customer,
		CustomerName:            d.CustomerName,
		Supplier:                d.Supplier,
		Purpose:                 d.Purpose,
		FromWarehouse:           d.FromWarehouse,
		ToWarehouse:             d.ToWarehouse,
		ProductionItem:          d.ProductionItem,
		ItemName:                d.ItemName,
	}
	if posting != nil {
		doc.PostingDate = *posting
	}
	if planned != nil {
		doc.PlannedStartDate = *planned
	}
	return body, doc, nil
}

func (a *api) documentEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, doc, err := parseDocumentEvent(r)
	if err != nil {
		a.fail(w, "document event", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	res, err := a.events.RecordDocumentEvent(ctx, body.Action, doc)
	if err != nil {
		a.fail(w, "document event", err)
		return
	}
	code := http.StatusOK
	if res.Created != "" {
		code = http.StatusCreated
	}
	writeJSON(w, code, res)
}
