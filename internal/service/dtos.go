package service

import (
	"time"

	"github.com/KiruiElisha/esg-compliance/internal/scoring"
)

// Filters narrows the dashboard. Nil dates and an empty company mean no restriction.
type Filters struct {
	Company  string     `json:"company,omitempty"`
	FromDate *time.Time `json:"from_date,omitempty"`
	ToDate   *time.Time `json:"to_date,omitempty"`
}

type PolicyStats struct {
	Active       int `json:"active"`
	Total        int `json:"total"`
	ExpiringSoon int `json:"expiring_soon"`
}

type InitiativeStats struct {
	Running           int `json:"running"`
	AvgCompletion     int `json:"avg_completion"`
	BudgetUtilization int `json:"budget_utilization"`
}

type ActionStats struct {
	Overdue     int `json:"overdue"`
	DueThisWeek int `json:"due_this_week"`
}

type Statistics struct {
	Policies    PolicyStats     `json:"policies"`
	Initiatives InitiativeStats `json:"initiatives"`
	Actions     ActionStats     `json:"actions"`
}

type Activity struct {
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	Action     string    `json:"action"`
	User       string    `json:"user"`
	ModifiedAt time.Time `json:"modified_at"`
}

type AlertPriority string

const (
	AlertHigh   AlertPriority = "high"
	AlertMedium AlertPriority = "medium"
	AlertLow    AlertPriority = "low"
)

type Alert struct {
	Message  string        `json:"message"`
	Priority AlertPriority `json:"priority"`
	Days     int           `json:"days"`
}

// CategoryCounts is a per-category tally.
type CategoryCounts struct {
	Environmental int `json:"environmental"`
	Social        int `json:"social"`
	Governance    int `json:"governance"`
}

type TrendSeries struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// MetricsTrend is a six-point monthly progress series per category, oldest first.
type MetricsTrend struct {
	Labels   []string      `json:"labels"`
	Datasets []TrendSeries `json:"datasets"`
}

// Dashboard is everything the overview page shows for one filter set.
type Dashboard struct {
	Scores      scoring.ScoreSnapshot `json:"scores"`
	Statistics  Statistics            `json:"statistics"`
	Initiatives CategoryCounts        `json:"initiatives_by_category"`
	Trend       MetricsTrend          `json:"metrics_trend"`
	Activities  []Activity            `json:"activities"`
	Alerts      []Alert               `json:"alerts"`
	GeneratedAt time.Time             `json:"generated_at"`
}
