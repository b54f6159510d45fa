package service

import (
	"time"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
)

var metricEntryFields = []string{
	"name", "metric", "company", "measured_value", "target_value",
	"performance", "source_doctype", "verification_status", "entry_date",
}

func metricEntryFromRecord(r models.Record) scoring.MetricEntry {
	return scoring.MetricEntry{
		Name:               r.String("name"),
		Metric:             r.String("metric"),
		Company:            r.String("company"),
		MeasuredValue:      r.FloatPtr("measured_value"),
		TargetValue:        r.FloatPtr("target_value"),
		Performance:        scoring.Performance(r.String("performance")),
		SourceDoctype:      r.String("source_doctype"),
		VerificationStatus: scoring.VerificationStatus(r.String("verification_status")),
		EntryDate:          r.Date("entry_date"),
	}
}

// Initiative statuses.
const (
	StatusPlanned   = "Planned"
	StatusOngoing   = "Ongoing"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

type initiative struct {
	Name              string
	InitiativeName    string
	Status            string
	RelatedPolicy     string
	Priority          string
	StartDate         time.Time
	EndDate           time.Time
	Progress          float64
	Budget            float64
	ActualCost        float64
	ResponsiblePerson string
	Company           string
	Creation          time.Time
	Modified          time.Time
	ModifiedBy        string
}

func initiativeFromRecord(r models.Record) initiative {
	return initiative{
		Name:              r.String("name"),
		InitiativeName:    r.String("initiative_name"),
		Status:            r.String("status"),
		RelatedPolicy:     r.String("related_policy"),
		Priority:          r.String("priority"),
		StartDate:         r.Date("start_date"),
		EndDate:           r.Date("end_date"),
		Progress:          r.Float("progress"),
		Budget:            r.Float("budget"),
		ActualCost:        r.Float("actual_cost"),
		ResponsiblePerson: r.String("responsible_person"),
		Company:           r.String("company"),
		Creation:          r.Time("creation"),
		Modified:          r.Time("modified"),
		ModifiedBy:        r.String("modified_by"),
	}
}

// DisplayName is the initiative title, falling back to its record name.
func (i initiative) DisplayName() string {
	if i.InitiativeName != "" {
		return i.InitiativeName
	}
	return i.Name
}

type policy struct {
	Name        string
	PolicyName  string
	Description string
	ExpiryDate  time.Time
}

func policyFromRecord(r models.Record) policy {
	return policy{
		Name:        r.String("name"),
		PolicyName:  r.String("policy_name"),
		Description: r.String("description"),
		ExpiryDate:  r.Date("expiry_date"),
	}
}

func (p policy) DisplayName() string {
	if p.PolicyName != "" {
		return p.PolicyName
	}
	return p.Name
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween is the whole number of calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}
