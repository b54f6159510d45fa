package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
)

// GroupBy selects how analysis rows are grouped.
type GroupBy string

const (
	GroupNone           GroupBy = ""
	GroupMetric         GroupBy = "Metric"
	GroupCompany        GroupBy = "Company"
	GroupSourceDocument GroupBy = "Source Document"
	GroupPartyType      GroupBy = "Party Type"
	GroupMonth          GroupBy = "Month"
	GroupQuarter        GroupBy = "Quarter"
	GroupYear           GroupBy = "Year"
	GroupPerformance    GroupBy = "Performance"
)

// NotSpecified is the group key for rows missing the grouped value.
const NotSpecified = "Not Specified"

const (
	defaultUnit          = "kg"
	analysisLookbackMons = 12
	monthLabelLayout     = "Jan 2006"
)

var hundred = decimal.NewFromInt(100)

type AnalysisFilters struct {
	Company            string                     `json:"company,omitempty"`
	Metric             string                     `json:"metric,omitempty"`
	SourceDoctype      string                     `json:"source_doctype,omitempty"`
	PartyType          string                     `json:"party_type,omitempty"`
	Party              string                     `json:"party,omitempty"`
	FromDate           *time.Time                 `json:"from_date,omitempty"`
	ToDate             *time.Time                 `json:"to_date,omitempty"`
	Performance        scoring.Performance        `json:"performance,omitempty"`
	VerificationStatus scoring.VerificationStatus `json:"verification_status,omitempty"`
	DataSource         string                     `json:"data_source,omitempty"`
	GroupBy            GroupBy                    `json:"group_by,omitempty"`
	IncludeTargets     bool                       `json:"include_targets,omitempty"`
	ShowSummary        bool                       `json:"show_summary,omitempty"`
}

type AnalysisRow struct {
	Name               string              `json:"name"`
	Metric             string              `json:"metric"`
	Company            string              `json:"company"`
	EntryDate          time.Time           `json:"entry_date,omitzero"`
	ReportingPeriod    string              `json:"reporting_period,omitempty"`
	MeasuredValue      decimal.Decimal     `json:"measured_value"`
	TargetValue        decimal.NullDecimal `json:"target_value"`
	Variance           decimal.NullDecimal `json:"variance"`
	VariancePercent    decimal.NullDecimal `json:"variance_percent"`
	Unit               string              `json:"unit"`
	Performance        string              `json:"performance,omitempty"`
	DataSource         string              `json:"data_source,omitempty"`
	VerificationStatus string              `json:"verification_status,omitempty"`
	VerifiedBy         string              `json:"verified_by,omitempty"`
	SourceDoctype      string              `json:"source_doctype,omitempty"`
	SourceDocument     string              `json:"source_document,omitempty"`
	PartyType          string              `json:"party_type,omitempty"`
	Party              string              `json:"party,omitempty"`
	Group              string              `json:"group,omitempty"`

	// target feeds subtotals and the summary whether or not TargetValue is shown.
	target decimal.Decimal
}

// Subtotal sums the measured and target values of a group.
type Subtotal struct {
	Count           int                 `json:"count"`
	MeasuredTotal   decimal.Decimal     `json:"measured_total"`
	TargetTotal     decimal.Decimal     `json:"target_total"`
	Variance        decimal.NullDecimal `json:"variance"`
	VariancePercent decimal.NullDecimal `json:"variance_percent"`
}

type AnalysisGroup struct {
	Key      string        `json:"key"`
	Rows     []AnalysisRow `json:"rows"`
	Subtotal *Subtotal     `json:"subtotal,omitempty"`
}

type AnalysisSummary struct {
	Entries         int             `json:"entries"`
	MeasuredTotal   decimal.Decimal `json:"measured_total"`
	TargetTotal     decimal.Decimal `json:"target_total"`
	Variance        decimal.Decimal `json:"variance"`
	VariancePercent decimal.Decimal `json:"variance_percent"`
	Green           int             `json:"green"`
	Yellow          int             `json:"yellow"`
	Red             int             `json:"red"`
	Verified        int             `json:"verified"`
	Pending         int             `json:"pending"`
}

type MonthlyTotal struct {
	Month string          `json:"month"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type VerificationStats struct {
	Verified int `json:"verified"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

type AnalysisChart struct {
	TotalEntries            int               `json:"total_entries"`
	PerformanceDistribution map[string]int    `json:"performance_distribution"`
	Monthly                 []MonthlyTotal    `json:"monthly"`
	Verification            VerificationStats `json:"verification"`
}

// AnalysisReport is the metric entry analysis. Rows is set when ungrouped, Groups otherwise.
type AnalysisReport struct {
	FromDate time.Time        `json:"from_date"`
	ToDate   time.Time        `json:"to_date"`
	GroupBy  GroupBy          `json:"group_by,omitempty"`
	Rows     []AnalysisRow    `json:"rows,omitempty"`
	Groups   []AnalysisGroup  `json:"groups,omitempty"`
	Summary  *AnalysisSummary `json:"summary,omitempty"`
	Chart    AnalysisChart    `json:"chart"`
}

var analysisFields = []string{
	"name", "metric", "company", "entry_date", "reporting_period", "measured_value",
	"target_value", "unit", "performance", "data_source", "verification_status",
	"verified_by", "source_doctype", "source_document", "party_type", "party",
}

func validGroupBy(g GroupBy) bool {
	switch g {
	case GroupNone, GroupMetric, GroupCompany, GroupSourceDocument, GroupPartyType,
		GroupMonth, GroupQuarter, GroupYear, GroupPerformance:
		return true
	}
	return false
}

// GetAnalysisReport lists metric entries with variance against target, optionally grouped
// and summarised. The window defaults to the twelve months ending today.
func (s *DashboardService) GetAnalysisReport(ctx context.Context, f AnalysisFilters) (AnalysisReport, error) {
	today := s.today()
	from, to := scoring.AddMonths(today, -analysisLookbackMons), today
	if f.FromDate != nil {
		from = dateOf(*f.FromDate)
	}
	if f.ToDate != nil {
		to = dateOf(*f.ToDate)
	}
	if from.After(to) {
		return AnalysisReport{}, fmt.Errorf("%w: from date %s is after to date %s",
			ErrInvalidFilter, from.Format(models.DateLayout), to.Format(models.DateLayout))
	}
	if !validGroupBy(f.GroupBy) {
		return AnalysisReport{}, fmt.Errorf("%w: unknown group by %q", ErrInvalidFilter, f.GroupBy)
	}

	filters := []models.Filter{models.Gte("entry_date", from), models.Lte("entry_date", to)}
	for _, eq := range []struct {
		field string
		value string
	}{
		{"company", f.Company},
		{"metric", f.Metric},
		{"source_doctype", f.SourceDoctype},
		{"party_type", f.PartyType},
		{"party", f.Party},
		{"performance", string(f.Performance)},
		{"verification_status", string(f.VerificationStatus)},
		{"data_source", f.DataSource},
	} {
		if eq.value != "" {
			filters = append(filters, models.Eq(eq.field, eq.value))
		}
	}

	records, err := s.list(ctx, "analysis entries", models.Query{
		Kind:    models.KindMetricEntry,
		Fields:  analysisFields,
		Filters: filters,
		OrderBy: []models.Order{
			{Field: "entry_date", Desc: true},
			{Field: "metric"},
			{Field: "company"},
		},
		Limit: -1,
	})
	if err != nil {
		return AnalysisReport{}, err
	}

	rows := make([]AnalysisRow, len(records))
	for i, r := range records {
		rows[i] = analysisRowFromRecord(r, f)
	}

	report := AnalysisReport{
		FromDate: from,
		ToDate:   to,
		GroupBy:  f.GroupBy,
		Chart:    analysisChart(rows),
	}
	if f.GroupBy != GroupNone {
		report.Groups = groupAnalysisRows(rows, f.GroupBy)
	} else {
		report.Rows = rows
	}
	if f.ShowSummary && len(rows) > 0 {
		summary := summarise(rows)
		report.Summary = &summary
	}

	s.logger.Debug("analysis report built",
		zap.Int("rows", len(rows)),
		zap.String("group_by", string(f.GroupBy)))
	return report, nil
}

func analysisRowFromRecord(r models.Record, f AnalysisFilters) AnalysisRow {
	row := AnalysisRow{
		Name:               r.String("name"),
		Metric:             r.String("metric"),
		Company:            r.String("company"),
		EntryDate:          r.Date("entry_date"),
		ReportingPeriod:    r.String("reporting_period"),
		Unit:               r.String("unit"),
		Performance:        r.String("performance"),
		DataSource:         r.String("data_source"),
		VerificationStatus: r.String("verification_status"),
		VerifiedBy:         r.String("verified_by"),
		SourceDoctype:      r.String("source_doctype"),
		SourceDocument:     r.String("source_document"),
		PartyType:          r.String("party_type"),
		Party:              r.String("party"),
	}
	if row.Unit == "" {
		row.Unit = defaultUnit
	}
	row.MeasuredValue, _ = r.Decimal("measured_value")
	target, _ := r.Decimal("target_value")
	row.target = target

	if f.IncludeTargets {
		row.TargetValue = decimal.NewNullDecimal(target)
		if !row.MeasuredValue.IsZero() && !target.IsZero() {
			variance := row.MeasuredValue.Sub(target)
			row.Variance = decimal.NewNullDecimal(variance)
			row.VariancePercent = decimal.NewNullDecimal(variance.Div(target).Mul(hundred))
		}
	}
	if f.GroupBy != GroupNone {
		row.Group = groupKey(row, f.GroupBy)
	}
	return row
}

func groupKey(row AnalysisRow, g GroupBy) string {
	orUnset := func(s string) string {
		if s == "" {
			return NotSpecified
		}
		return s
	}
	pair := func(a, b string) string {
		if a == "" || b == "" {
			return NotSpecified
		}
		return a + ": " + b
	}

	switch g {
	case GroupMetric:
		return orUnset(row.Metric)
	case GroupCompany:
		return orUnset(row.Company)
	case GroupSourceDocument:
		return pair(row.SourceDoctype, row.SourceDocument)
	case GroupPartyType:
		return pair(row.PartyType, row.Party)
	case GroupPerformance:
		return orUnset(row.Performance)
	}

	if row.EntryDate.IsZero() {
		return NotSpecified
	}
	switch g {
	case GroupMonth:
		return row.EntryDate.Format(monthLabelLayout)
	case GroupQuarter:
		return fmt.Sprintf("Q%d %d", (int(row.EntryDate.Month())-1)/3+1, row.EntryDate.Year())
	case GroupYear:
		return strconv.Itoa(row.EntryDate.Year())
	}
	return NotSpecified
}

// groupAnalysisRows keeps row order within a group. Keys sort lexically with
// NotSpecified last; groups of more than one row carry a subtotal.
func groupAnalysisRows(rows []AnalysisRow, g GroupBy) []AnalysisGroup {
	index := make(map[string]int)
	var groups []AnalysisGroup
	for _, row := range rows {
		i, ok := index[row.Group]
		if !ok {
			i = len(groups)
			index[row.Group] = i
			groups = append(groups, AnalysisGroup{Key: row.Group})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}

	slices.SortFunc(groups, func(a, b AnalysisGroup) int {
		switch {
		case a.Key == b.Key:
			return 0
		case a.Key == NotSpecified:
			return 1
		case b.Key == NotSpecified:
			return -1
		case a.Key < b.Key:
			return -1
		default:
			return 1
		}
	})

	for i := range groups {
		if len(groups[i].Rows) > 1 {
			groups[i].Subtotal = subtotal(groups[i].Rows)
		}
	}
	return groups
}

func subtotal(rows []AnalysisRow) *Subtotal {
	st := &Subtotal{Count: len(rows)}
	for _, row := range rows {
		st.MeasuredTotal = st.MeasuredTotal.Add(row.MeasuredValue)
		st.TargetTotal = st.TargetTotal.Add(row.target)
	}
	if !st.TargetTotal.IsZero() {
		variance := st.MeasuredTotal.Sub(st.TargetTotal)
		st.Variance = decimal.NewNullDecimal(variance)
		st.VariancePercent = decimal.NewNullDecimal(variance.Div(st.TargetTotal).Mul(hundred))
	}
	return st
}

func summarise(rows []AnalysisRow) AnalysisSummary {
	sum := AnalysisSummary{Entries: len(rows)}
	for _, row := range rows {
		sum.MeasuredTotal = sum.MeasuredTotal.Add(row.MeasuredValue)
		sum.TargetTotal = sum.TargetTotal.Add(row.target)
		switch scoring.Performance(row.Performance) {
		case scoring.PerformanceGreen:
			sum.Green++
		case scoring.PerformanceYellow:
			sum.Yellow++
		case scoring.PerformanceRed:
			sum.Red++
		}
		switch scoring.VerificationStatus(row.VerificationStatus) {
		case scoring.VerificationVerified:
			sum.Verified++
		case scoring.VerificationPending:
			sum.Pending++
		}
	}
	if !sum.TargetTotal.IsZero() {
		sum.Variance = sum.MeasuredTotal.Sub(sum.TargetTotal)
		sum.VariancePercent = sum.Variance.Div(sum.TargetTotal).Mul(hundred)
	}
	return sum
}

func analysisChart(rows []AnalysisRow) AnalysisChart {
	chart := AnalysisChart{
		TotalEntries:            len(rows),
		PerformanceDistribution: make(map[string]int),
	}

	type monthKey struct {
		year  int
		month time.Month
	}
	monthly := make(map[monthKey]*MonthlyTotal)
	var keys []monthKey

	for _, row := range rows {
		perf := row.Performance
		if perf == "" {
			perf = "Not Set"
		}
		chart.PerformanceDistribution[perf]++

		switch scoring.VerificationStatus(row.VerificationStatus) {
		case scoring.VerificationVerified:
			chart.Verification.Verified++
		case scoring.VerificationPending:
			chart.Verification.Pending++
		case scoring.VerificationRejected:
			chart.Verification.Rejected++
		}

		if row.EntryDate.IsZero() {
			continue
		}
		k := monthKey{row.EntryDate.Year(), row.EntryDate.Month()}
		m, ok := monthly[k]
		if !ok {
			m = &MonthlyTotal{Month: row.EntryDate.Format(monthLabelLayout)}
			monthly[k] = m
			keys = append(keys, k)
		}
		m.Count++
		m.Total = m.Total.Add(row.MeasuredValue)
	}

	slices.SortFunc(keys, func(a, b monthKey) int {
		if a.year != b.year {
			return a.year - b.year
		}
		return int(a.month) - int(b.month)
	})
	chart.Monthly = make([]MonthlyTotal, len(keys))
	for i, k := range keys {
		chart.Monthly[i] = *monthly[k]
	}
	return chart
}
