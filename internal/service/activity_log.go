package service

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
)

const (
	EntryTypeMetric     = "ESG Metric"
	EntryTypeInitiative = "Initiative"

	initiativeSourceType   = "ESG Initiative"
	initiativeActivityPref = "Initiative: "
	verificationInProgress = "In Progress"
	carbonImpactSuffix     = "Carbon Impact"
	ongoingGreenProgress   = 50
)

type ActivityLogFilters struct {
	Company            string              `json:"company"`
	FromDate           *time.Time          `json:"from_date,omitempty"`
	ToDate             *time.Time          `json:"to_date,omitempty"`
	SourceType         string              `json:"source_type,omitempty"`
	ActivityType       string              `json:"activity_type,omitempty"`
	Performance        scoring.Performance `json:"performance,omitempty"`
	IncludeInitiatives bool                `json:"include_initiatives,omitempty"`
}

type ActivityLogEntry struct {
	EntryDate    time.Time       `json:"entry_date,omitzero"`
	ActivityType string          `json:"activity_type"`
	SourceType   string          `json:"source_type,omitempty"`
	SourceName   string          `json:"source_name,omitempty"`
	PartyType    string          `json:"party_type,omitempty"`
	Party        string          `json:"party,omitempty"`
	Impact       decimal.Decimal `json:"impact"`
	Performance  string          `json:"performance,omitempty"`
	Verification string          `json:"verification,omitempty"`
	Status       string          `json:"status,omitempty"`
	Company      string          `json:"company,omitempty"`
	EntryType    string          `json:"entry_type"`
}

type TypeImpact struct {
	Type   string          `json:"type"`
	Impact decimal.Decimal `json:"impact"`
}

type ActivityChart struct {
	ImpactByType []TypeImpact `json:"impact_by_type"`
	Green        int          `json:"green"`
	Red          int          `json:"red"`
}

type ActivityLogSummary struct {
	TotalImpact      decimal.Decimal `json:"total_impact"`
	Entries          int             `json:"entries"`
	Green            int             `json:"green"`
	Red              int             `json:"red"`
	Verified         int             `json:"verified"`
	PerformanceScore float64         `json:"performance_score"`
}

type ActivityLog struct {
	FromDate time.Time          `json:"from_date"`
	ToDate   time.Time          `json:"to_date"`
	Entries  []ActivityLogEntry `json:"entries"`
	Chart    ActivityChart      `json:"chart"`
	Summary  ActivityLogSummary `json:"summary"`
}

// GetActivityLog merges a company's metric entries and, optionally, its initiatives into
// one timeline, newest first. The window defaults to the month ending today.
func (s *DashboardService) GetActivityLog(ctx context.Context, f ActivityLogFilters) (ActivityLog, error) {
	if f.Company == "" {
		return ActivityLog{}, fmt.Errorf("%w: company is required", ErrInvalidFilter)
	}

	today := s.today()
	from, to := scoring.AddMonths(today, -1), today
	if f.FromDate != nil {
		from = dateOf(*f.FromDate)
	}
	if f.ToDate != nil {
		to = dateOf(*f.ToDate)
	}
	if from.After(to) {
		return ActivityLog{}, fmt.Errorf("%w: from date %s is after to date %s",
			ErrInvalidFilter, from.Format(models.DateLayout), to.Format(models.DateLayout))
	}

	entries, err := s.metricActivities(ctx, f, from, to)
	if err != nil {
		return ActivityLog{}, err
	}
	if f.IncludeInitiatives {
		initiatives, err := s.initiativeActivities(ctx, f, from, to)
		if err != nil {
			return ActivityLog{}, err
		}
		entries = append(entries, initiatives...)
	}

	slices.SortStableFunc(entries, func(a, b ActivityLogEntry) int {
		return b.EntryDate.Compare(a.EntryDate)
	})

	return ActivityLog{
		FromDate: from,
		ToDate:   to,
		Entries:  entries,
		Chart:    activityChart(entries),
		Summary:  activitySummary(entries),
	}, nil
}

func (s *DashboardService) metricActivities(ctx context.Context, f ActivityLogFilters, from, to time.Time) ([]ActivityLogEntry, error) {
	filters := []models.Filter{
		models.Eq("company", f.Company),
		models.Gte("entry_date", from),
		models.Lte("entry_date", to),
	}
	if f.SourceType != "" {
		filters = append(filters, models.Eq("source_doctype", f.SourceType))
	}
	if f.ActivityType != "" {
		filters = append(filters, models.Eq("metric", f.ActivityType))
	}
	if f.Performance != scoring.PerformanceUnset {
		filters = append(filters, models.Eq("performance", string(f.Performance)))
	}

	records, err := s.list(ctx, "activity metric entries", models.Query{
		Kind: models.KindMetricEntry,
		Fields: []string{
			"name", "entry_date", "metric", "source_doctype", "source_document",
			"party_type", "party", "measured_value", "performance", "verification_status", "company",
		},
		Filters: filters,
		Limit:   -1,
	})
	if err != nil {
		return nil, err
	}

	out := make([]ActivityLogEntry, len(records))
	for i, r := range records {
		impact, _ := r.Decimal("measured_value")
		out[i] = ActivityLogEntry{
			EntryDate:    r.Date("entry_date"),
			ActivityType: strings.TrimSpace(strings.ReplaceAll(r.String("metric"), carbonImpactSuffix, "")),
			SourceType:   r.String("source_doctype"),
			SourceName:   r.String("source_document"),
			PartyType:    r.String("party_type"),
			Party:        r.String("party"),
			Impact:       impact.Round(2),
			Performance:  r.String("performance"),
			Verification: r.String("verification_status"),
			Company:      r.String("company"),
			EntryType:    EntryTypeMetric,
		}
	}
	return out, nil
}

// initiativeActivities selects initiatives created within [from, to] inclusive of the
// whole day at to.
func (s *DashboardService) initiativeActivities(ctx context.Context, f ActivityLogFilters, from, to time.Time) ([]ActivityLogEntry, error) {
	records, err := s.list(ctx, "activity initiatives", models.Query{
		Kind: models.KindInitiative,
		Fields: []string{
			"name", "initiative_name", "creation", "responsible_person", "budget",
			"status", "priority", "progress", "company",
		},
		Filters: []models.Filter{
			models.Eq("company", f.Company),
			models.Gte("creation", from),
			models.Lt("creation", to.AddDate(0, 0, 1)),
		},
		Limit: -1,
	})
	if err != nil {
		return nil, err
	}

	out := make([]ActivityLogEntry, len(records))
	for i, r := range records {
		ini := initiativeFromRecord(r)
		budget, _ := r.Decimal("budget")
		verification := verificationInProgress
		if ini.Status == StatusCompleted {
			verification = string(scoring.VerificationVerified)
		}
		out[i] = ActivityLogEntry{
			EntryDate:    dateOf(ini.Creation),
			ActivityType: initiativeActivityPref + ini.InitiativeName,
			SourceType:   initiativeSourceType,
			SourceName:   ini.Name,
			PartyType:    "Employee",
			Party:        ini.ResponsiblePerson,
			Impact:       budget.Round(2),
			Performance:  string(initiativePerformance(ini)),
			Verification: verification,
			Status:       ini.Status,
			Company:      ini.Company,
			EntryType:    EntryTypeInitiative,
		}
	}
	return out, nil
}

func initiativePerformance(ini initiative) scoring.Performance {
	if ini.Status == StatusCompleted || (ini.Status == StatusOngoing && ini.Progress >= ongoingGreenProgress) {
		return scoring.PerformanceGreen
	}
	return scoring.PerformanceRed
}

func activityChart(entries []ActivityLogEntry) ActivityChart {
	var chart ActivityChart
	index := make(map[string]int)
	for _, e := range entries {
		label := strings.TrimPrefix(e.ActivityType, initiativeActivityPref)
		i, ok := index[label]
		if !ok {
			i = len(chart.ImpactByType)
			index[label] = i
			chart.ImpactByType = append(chart.ImpactByType, TypeImpact{Type: label})
		}
		chart.ImpactByType[i].Impact = chart.ImpactByType[i].Impact.Add(e.Impact)

		switch scoring.Performance(e.Performance) {
		case scoring.PerformanceGreen:
			chart.Green++
		case scoring.PerformanceRed:
			chart.Red++
		}
	}
	for i := range chart.ImpactByType {
		chart.ImpactByType[i].Impact = chart.ImpactByType[i].Impact.Round(2)
	}
	return chart
}

func activitySummary(entries []ActivityLogEntry) ActivityLogSummary {
	sum := ActivityLogSummary{Entries: len(entries)}
	for _, e := range entries {
		sum.TotalImpact = sum.TotalImpact.Add(e.Impact)
		switch scoring.Performance(e.Performance) {
		case scoring.PerformanceGreen:
			sum.Green++
		case scoring.PerformanceRed:
			sum.Red++
		}
		if e.Verification == string(scoring.VerificationVerified) {
			sum.Verified++
		}
	}
	sum.TotalImpact = sum.TotalImpact.Round(2)
	if sum.Entries > 0 {
		sum.PerformanceScore = math.Round(float64(sum.Green)/float64(sum.Entries)*1000) / 10
	}
	return sum
}
