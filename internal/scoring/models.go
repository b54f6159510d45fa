package scoring

import "time"

// Performance reports whether a metric entry met its target.
type Performance string

const (
	PerformanceUnset  Performance = ""
	PerformanceGreen  Performance = "Green"
	PerformanceYellow Performance = "Yellow"
	PerformanceRed    Performance = "Red"
)

// VerificationStatus is the review state of a metric entry.
type VerificationStatus string

const (
	VerificationUnset    VerificationStatus = ""
	VerificationPending  VerificationStatus = "Pending"
	VerificationVerified VerificationStatus = "Verified"
	VerificationRejected VerificationStatus = "Rejected"
)

// Source document kinds that drive categorization.
const (
	DoctypeStockEntry      = "Stock Entry"
	DoctypeWorkOrder       = "Work Order"
	DoctypeProductionPlan  = "Production Plan"
	DoctypePurchaseInvoice = "Purchase Invoice"
)

// carbonMarker is matched as a raw, case-sensitive substring of MetricEntry.Metric.
const carbonMarker = "Carbon"

// MetricEntry is one observation of an ESG metric. Empty strings, nil pointers and a
// zero EntryDate all mean the field was absent on the source record.
type MetricEntry struct {
	Name               string             `json:"name,omitempty" yaml:"name,omitempty"`
	Metric             string             `json:"metric,omitempty" yaml:"metric,omitempty"`
	Company            string             `json:"company,omitempty" yaml:"company,omitempty"`
	MeasuredValue      *float64           `json:"measured_value,omitempty" yaml:"measured_value,omitempty"`
	TargetValue        *float64           `json:"target_value,omitempty" yaml:"target_value,omitempty"`
	Performance        Performance        `json:"performance,omitempty" yaml:"performance,omitempty"`
	SourceDoctype      string             `json:"source_doctype,omitempty" yaml:"source_doctype,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status,omitempty" yaml:"verification_status,omitempty"`
	EntryDate          time.Time          `json:"entry_date,omitzero" yaml:"entry_date,omitempty"`
}

// HasEntryDate reports whether the entry carries a date.
func (e MetricEntry) HasEntryDate() bool {
	return !e.EntryDate.IsZero()
}

// CategoryScore is a percentage in [0,100].
type CategoryScore int

// TrendDelta is the current-period score minus the prior-period score, in percentage points.
type TrendDelta float64

// Buckets holds entries grouped per category. An entry may appear in more than one bucket.
type Buckets struct {
	Environmental []MetricEntry
	Social        []MetricEntry
	Governance    []MetricEntry
}

// Trends holds period-over-period deltas. Overall is the unrounded mean of the other three.
type Trends struct {
	Environmental TrendDelta `json:"environmental"`
	Social        TrendDelta `json:"social"`
	Governance    TrendDelta `json:"governance"`
	Overall       TrendDelta `json:"overall"`
}

// ScoreSnapshot is the computed score card for one request.
type ScoreSnapshot struct {
	Environmental CategoryScore `json:"environmental"`
	Social        CategoryScore `json:"social"`
	Governance    CategoryScore `json:"governance"`
	Overall       CategoryScore `json:"overall"`
	Trends        Trends        `json:"trends"`
	ReferenceDate time.Time     `json:"reference_date"`
	EntryCount    int           `json:"entry_count"`
}
