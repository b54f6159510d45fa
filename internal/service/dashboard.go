package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
)

const (
	fetchTimeout = 5 * time.Second

	scoreEntryLimit  = 1000
	activityLimit    = 5
	alertLimit       = 5
	activityWindow   = 7
	staleEntryDays   = 30
	dueSoonDays      = 14
	expiringSoonDays = 30
	dueThisWeekDays  = 7

	trendPoints   = 6
	trendStepDays = 30
)

var (
	ErrFetchFailure  = errors.New("fetch failure")
	ErrInvalidFilter = errors.New("invalid filter")
)

// Option configures a DashboardService.
type Option func(*DashboardService)

// WithClock sets the source of "now". Defaults to time.Now.
func WithClock(clock scoring.Clock) Option {
	return func(s *DashboardService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithScoringOptions passes options through to the score engine.
func WithScoringOptions(opts scoring.Options) Option {
	return func(s *DashboardService) {
		s.scoringOpts = opts
	}
}

// DashboardService assembles the ESG overview from stored records.
type DashboardService struct {
	fetcher     RecordFetcher
	engine      *scoring.Engine
	scoringOpts scoring.Options
	logger      *zap.Logger
	clock       scoring.Clock
}

// NewDashboardService creates a new DashboardService instance.
func NewDashboardService(fetcher RecordFetcher, logger *zap.Logger, opts ...Option) *DashboardService {
	if fetcher == nil {
		panic("fetcher must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	s := &DashboardService{
		fetcher: fetcher,
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = scoring.NewEngine(s.clock, s.scoringOpts)
	return s
}

func (s *DashboardService) today() time.Time {
	return dateOf(s.clock())
}

func (s *DashboardService) list(ctx context.Context, what string, q models.Query) ([]models.Record, error) {
	dbCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	records, err := s.fetcher.List(dbCtx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailure, what, err)
	}
	return records, nil
}

func (s *DashboardService) count(ctx context.Context, what string, q models.Query) (int, error) {
	dbCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	n, err := s.fetcher.Count(dbCtx, q)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFetchFailure, what, err)
	}
	return int(n), nil
}

func baseFilters(f Filters, extra ...models.Filter) []models.Filter {
	out := make([]models.Filter, 0, len(extra)+1)
	if f.Company != "" {
		out = append(out, models.Eq("company", f.Company))
	}
	return append(out, extra...)
}

// GetDashboard refreshes every dashboard section concurrently. Any failed section fails
// the whole refresh.
func (s *DashboardService) GetDashboard(ctx context.Context, f Filters) (Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.Scores, err = s.GetScores(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		d.Statistics, err = s.GetStatistics(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		d.Initiatives, err = s.GetInitiativeBreakdown(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		d.Trend, err = s.GetMetricsTrend(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		d.Activities, err = s.GetRecentActivities(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		d.Alerts, err = s.GetPriorityAlerts(gctx, f)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard refresh failed", zap.String("company", f.Company), zap.Error(err))
		return Dashboard{}, err
	}

	d.GeneratedAt = s.clock().UTC()
	s.logger.Info("dashboard refreshed",
		zap.String("company", f.Company),
		zap.Int("entries", d.Scores.EntryCount),
		zap.Int("overall", int(d.Scores.Overall)))
	return d, nil
}

// GetScores scores the most recent metric entries matching f.
func (s *DashboardService) GetScores(ctx context.Context, f Filters) (scoring.ScoreSnapshot, error) {
	filters := baseFilters(f, models.Eq("docstatus", 0))
	if f.FromDate != nil {
		filters = append(filters, models.Gte("entry_date", dateOf(*f.FromDate)))
	}
	if f.ToDate != nil {
		filters = append(filters, models.Lte("entry_date", dateOf(*f.ToDate)))
	}

	records, err := s.list(ctx, "metric entries", models.Query{
		Kind:    models.KindMetricEntry,
		Fields:  metricEntryFields,
		Filters: filters,
		OrderBy: []models.Order{{Field: "entry_date", Desc: true}},
		Limit:   scoreEntryLimit,
	})
	if err != nil {
		return scoring.ScoreSnapshot{}, err
	}

	entries := make([]scoring.MetricEntry, len(records))
	for i, r := range records {
		entries[i] = metricEntryFromRecord(r)
	}
	return s.engine.Snapshot(entries), nil
}

// GetStatistics gathers policy, initiative and action item tallies.
func (s *DashboardService) GetStatistics(ctx context.Context, f Filters) (Statistics, error) {
	var st Statistics
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		st.Policies, err = s.policyStats(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		st.Initiatives, err = s.initiativeStats(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		st.Actions, err = s.actionStats(gctx, f)
		return err
	})

	if err := g.Wait(); err != nil {
		return Statistics{}, err
	}
	return st, nil
}

func (s *DashboardService) policyStats(ctx context.Context, f Filters) (PolicyStats, error) {
	today := s.today()

	var (
		active []models.Record
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		active, err = s.list(gctx, "active policies", models.Query{
			Kind:   models.KindPolicy,
			Fields: []string{"name", "expiry_date"},
			Filters: baseFilters(f,
				models.Eq("docstatus", 0),
				models.Lte("effective_date", today),
				models.Gte("expiry_date", today)),
			Limit: -1,
		})
		return err
	})
	g.Go(func() (err error) {
		total, err = s.count(gctx, "policies", models.Query{
			Kind:    models.KindPolicy,
			Filters: baseFilters(f, models.Eq("docstatus", 0)),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return PolicyStats{}, err
	}

	stats := PolicyStats{Active: len(active), Total: total}
	for _, r := range active {
		if daysBetween(today, r.Date("expiry_date")) <= expiringSoonDays {
			stats.ExpiringSoon++
		}
	}
	return stats, nil
}

func (s *DashboardService) initiativeStats(ctx context.Context, f Filters) (InitiativeStats, error) {
	records, err := s.list(ctx, "running initiatives", models.Query{
		Kind:   models.KindInitiative,
		Fields: []string{"name", "progress", "budget", "actual_cost"},
		Filters: baseFilters(f,
			models.Eq("docstatus", 0),
			models.In("status", StatusPlanned, StatusOngoing)),
		Limit: -1,
	})
	if err != nil {
		return InitiativeStats{}, err
	}

	stats := InitiativeStats{Running: len(records)}
	if len(records) == 0 {
		return stats, nil
	}

	progress, budget, cost := decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range records {
		if d, ok := r.Decimal("progress"); ok {
			progress = progress.Add(d)
		}
		if d, ok := r.Decimal("budget"); ok {
			budget = budget.Add(d)
		}
		if d, ok := r.Decimal("actual_cost"); ok {
			cost = cost.Add(d)
		}
	}

	stats.AvgCompletion = int(progress.Div(decimal.NewFromInt(int64(len(records)))).Round(0).IntPart())
	if !budget.IsZero() {
		stats.BudgetUtilization = int(cost.Div(budget).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	return stats, nil
}

func (s *DashboardService) actionStats(ctx context.Context, f Filters) (ActionStats, error) {
	today := s.today()
	open := models.Ne("status", StatusCompleted)

	var stats ActionStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Overdue, err = s.count(gctx, "overdue actions", models.Query{
			Kind:    models.KindActionItem,
			Filters: baseFilters(f, open, models.Lt("due_date", today)),
		})
		return err
	})
	g.Go(func() (err error) {
		stats.DueThisWeek, err = s.count(gctx, "actions due this week", models.Query{
			Kind:    models.KindActionItem,
			Filters: baseFilters(f, open, models.Between("due_date", today, today.AddDate(0, 0, dueThisWeekDays))),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return ActionStats{}, err
	}
	return stats, nil
}

var breakdownKeywords = [3][]string{
	{"carbon", "emission", "environmental", "energy", "waste"},
	{"social", "employee", "community", "health", "safety"},
	{"governance", "compliance", "risk", "policy", "regulatory"},
}

// GetInitiativeBreakdown counts open initiatives per ESG category. The category comes
// from keywords in the related policy description or the initiative name; the first
// matching category wins and unmatched initiatives count as governance.
func (s *DashboardService) GetInitiativeBreakdown(ctx context.Context, f Filters) (CategoryCounts, error) {
	var initiatives, policies []models.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		initiatives, err = s.list(gctx, "open initiatives", models.Query{
			Kind:   models.KindInitiative,
			Fields: []string{"name", "initiative_name", "related_policy"},
			Filters: baseFilters(f,
				models.Eq("docstatus", 0),
				models.Ne("status", StatusCompleted)),
			Limit: -1,
		})
		return err
	})
	g.Go(func() (err error) {
		policies, err = s.list(gctx, "policies", models.Query{
			Kind:    models.KindPolicy,
			Fields:  []string{"name", "policy_name", "description"},
			Filters: []models.Filter{models.Eq("docstatus", 0)},
			Limit:   -1,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return CategoryCounts{}, err
	}

	descriptions := make(map[string]string, len(policies))
	for _, r := range policies {
		p := policyFromRecord(r)
		descriptions[p.Name] = strings.ToLower(p.Description)
	}

	var counts CategoryCounts
	for _, r := range initiatives {
		ini := initiativeFromRecord(r)
		desc := descriptions[ini.RelatedPolicy]
		name := strings.ToLower(ini.InitiativeName)

		switch breakdownCategory(desc, name) {
		case 0:
			counts.Environmental++
		case 1:
			counts.Social++
		default:
			counts.Governance++
		}
	}
	return counts, nil
}

func breakdownCategory(texts ...string) int {
	for i, keywords := range breakdownKeywords {
		for _, kw := range keywords {
			for _, t := range texts {
				if strings.Contains(t, kw) {
					return i
				}
			}
		}
	}
	return len(breakdownKeywords) - 1
}

var trendCategories = []struct {
	label    string
	keywords []string
}{
	{"Environmental", []string{"environmental", "carbon", "energy"}},
	{"Social", []string{"social", "employee", "community"}},
	{"Governance", []string{"governance", "compliance", "policy"}},
}

// GetMetricsTrend reports, for six points 30 days apart ending today, the mean share of
// elapsed schedule across active initiatives whose related policy names a category.
func (s *DashboardService) GetMetricsTrend(ctx context.Context, f Filters) (MetricsTrend, error) {
	records, err := s.list(ctx, "trend initiatives", models.Query{
		Kind:   models.KindInitiative,
		Fields: []string{"name", "related_policy", "start_date", "end_date"},
		Filters: baseFilters(f,
			models.Eq("docstatus", 0),
			models.NotIn("status", StatusCompleted, StatusCancelled)),
		Limit: -1,
	})
	if err != nil {
		return MetricsTrend{}, err
	}

	members := make([][]initiative, len(trendCategories))
	for _, r := range records {
		ini := initiativeFromRecord(r)
		if ini.RelatedPolicy == "" || ini.StartDate.IsZero() || ini.EndDate.IsZero() {
			continue
		}
		related := strings.ToLower(ini.RelatedPolicy)
		for i, c := range trendCategories {
			if containsAny(related, c.keywords) {
				members[i] = append(members[i], ini)
			}
		}
	}

	now := s.today()
	trend := MetricsTrend{
		Labels:   make([]string, trendPoints),
		Datasets: make([]TrendSeries, len(trendCategories)),
	}
	for i, c := range trendCategories {
		trend.Datasets[i] = TrendSeries{Label: c.label, Data: make([]float64, trendPoints)}
	}

	for p := range trendPoints {
		at := now.AddDate(0, 0, -trendStepDays*(trendPoints-1-p))
		trend.Labels[p] = at.Format("Jan 2006")
		for i := range trendCategories {
			trend.Datasets[i].Data[p] = meanElapsed(members[i], at)
		}
	}
	return trend, nil
}

func meanElapsed(initiatives []initiative, at time.Time) float64 {
	if len(initiatives) == 0 {
		return 0
	}
	var sum float64
	for _, ini := range initiatives {
		span := max(1, daysBetween(ini.StartDate, ini.EndDate))
		pct := float64(daysBetween(ini.StartDate, at)) / float64(span) * 100
		sum += min(100, max(0, pct))
	}
	return math.Round(sum/float64(len(initiatives))*100) / 100
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// GetRecentActivities lists initiatives changed in the past week, newest first.
func (s *DashboardService) GetRecentActivities(ctx context.Context, f Filters) ([]Activity, error) {
	records, err := s.list(ctx, "recent initiatives", models.Query{
		Kind:   models.KindInitiative,
		Fields: []string{"name", "initiative_name", "status", "modified", "modified_by", "responsible_person"},
		Filters: baseFilters(f,
			models.Eq("docstatus", 0),
			models.Gt("modified", s.today().AddDate(0, 0, -activityWindow))),
		OrderBy: []models.Order{{Field: "modified", Desc: true}},
		Limit:   activityLimit,
	})
	if err != nil {
		return nil, err
	}

	initiatives := make([]initiative, len(records))
	var people []string
	for i, r := range records {
		initiatives[i] = initiativeFromRecord(r)
		if p := initiatives[i].ResponsiblePerson; p != "" {
			people = append(people, p)
		}
	}

	employeeNames := make(map[string]string)
	if len(people) > 0 {
		employees, err := s.list(ctx, "employees", models.Query{
			Kind:    models.KindEmployee,
			Fields:  []string{"name", "employee_name"},
			Filters: []models.Filter{models.In("name", people...)},
			Limit:   -1,
		})
		if err != nil {
			return nil, err
		}
		for _, e := range employees {
			employeeNames[e.String("name")] = e.String("employee_name")
		}
	}

	activities := make([]Activity, 0, len(initiatives))
	for _, ini := range initiatives {
		user := employeeNames[ini.ResponsiblePerson]
		if user == "" {
			user = ini.ModifiedBy
		}
		activities = append(activities, Activity{
			Type:       "Initiative",
			Name:       ini.DisplayName(),
			Action:     "Status changed to " + ini.Status,
			User:       user,
			ModifiedAt: ini.Modified,
		})
	}
	return activities, nil
}

// GetPriorityAlerts returns stale metric entries, initiatives nearing their end date and
// policies nearing expiry, in that order.
func (s *DashboardService) GetPriorityAlerts(ctx context.Context, f Filters) ([]Alert, error) {
	today := s.today()
	var stale, due, expiring []Alert

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := s.list(gctx, "stale metric entries", models.Query{
			Kind:   models.KindMetricEntry,
			Fields: []string{"name", "metric", "reporting_period", "modified"},
			Filters: baseFilters(f,
				models.Eq("docstatus", 0),
				models.Lt("modified", today.AddDate(0, 0, -staleEntryDays))),
			OrderBy: []models.Order{{Field: "modified"}},
			Limit:   alertLimit,
		})
		for _, r := range records {
			stale = append(stale, Alert{
				Message:  fmt.Sprintf("Metric Entry %s needs updating", r.String("metric")),
				Priority: AlertHigh,
				Days:     daysBetween(r.Time("modified"), today),
			})
		}
		return err
	})
	g.Go(func() error {
		records, err := s.list(gctx, "initiatives due soon", models.Query{
			Kind:   models.KindInitiative,
			Fields: []string{"name", "initiative_name", "end_date"},
			Filters: baseFilters(f,
				models.Eq("docstatus", 0),
				models.In("status", StatusPlanned, StatusOngoing),
				models.Between("end_date", today, today.AddDate(0, 0, dueSoonDays))),
			OrderBy: []models.Order{{Field: "end_date"}},
			Limit:   alertLimit,
		})
		for _, r := range records {
			ini := initiativeFromRecord(r)
			due = append(due, Alert{
				Message:  fmt.Sprintf("Initiative %s due soon", ini.DisplayName()),
				Priority: AlertMedium,
				Days:     daysBetween(today, ini.EndDate),
			})
		}
		return err
	})
	g.Go(func() error {
		records, err := s.list(gctx, "expiring policies", models.Query{
			Kind:   models.KindPolicy,
			Fields: []string{"name", "policy_name", "expiry_date"},
			Filters: baseFilters(f,
				models.Eq("docstatus", 0),
				models.Between("expiry_date", today, today.AddDate(0, 0, expiringSoonDays))),
			OrderBy: []models.Order{{Field: "expiry_date"}},
			Limit:   alertLimit,
		})
		for _, r := range records {
			p := policyFromRecord(r)
			expiring = append(expiring, Alert{
				Message:  fmt.Sprintf("Policy %s expires soon", p.DisplayName()),
				Priority: AlertLow,
				Days:     daysBetween(today, p.ExpiryDate),
			})
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(stale)+len(due)+len(expiring))
	alerts = append(alerts, stale...)
	alerts = append(alerts, due...)
	return append(alerts, expiring...), nil
}
