package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
)

// Source document types that generate metric entries when submitted.
const (
	DoctypeSalesInvoice    = "Sales Invoice"
	DoctypePurchaseInvoice = "Purchase Invoice"
	DoctypeStockEntry      = "Stock Entry"
	DoctypeWorkOrder       = "Work Order"
	DoctypeProductionPlan  = "Production Plan"
	DoctypeDeliveryNote    = "Delivery Note"
)

const (
	systemGenerated      = "System Generated"
	verificationLeadDays = 7
	materialReceipt      = "Material Receipt"
)

// DefaultBaselineEmissions is the target used when the company has no baseline set.
var DefaultBaselineEmissions = decimal.NewFromInt(5000)

var (
	ErrInvalidDocument = errors.New("invalid source document")
	ErrWriteFailure    = errors.New("write failure")
)

// DocumentAction is the lifecycle event reported for a source document.
type DocumentAction string

const (
	ActionSubmit DocumentAction = "submit"
	ActionCancel DocumentAction = "cancel"
)

// SourceDocument carries the fields of a business document that metric generation reads.
// TotalEmissions is the document's carbon total in kg CO2e; a zero total generates nothing.
type SourceDocument struct {
	Doctype          string
	Name             string
	Company          string
	PostingDate      time.Time
	PlannedStartDate time.Time

	TotalEmissions          decimal.Decimal
	SupplierCarbonCertified bool
	RawMaterialEmissions    decimal.Decimal
	ProcessEmissions        decimal.Decimal
	ProductEmissions        decimal.Decimal
	TransportEmissions      decimal.Decimal
	ReductionTargetPercent  decimal.Decimal

	Customer       string
	CustomerName   string
	Supplier       string
	Purpose        string
	FromWarehouse  string
	ToWarehouse    string
	ProductionItem string
	ItemName       string
}

// MetricEntryDraft is the metric entry derived from one submitted document.
type MetricEntryDraft struct {
	Metric             string
	PeriodDate         time.Time
	Measured           decimal.Decimal
	Target             decimal.Decimal
	Variance           decimal.Decimal
	Performance        scoring.Performance
	VerificationStatus scoring.VerificationStatus
	PartyType          string
	Party              string
	Remarks            string
}

// BuildMetricEntry applies the per-doctype rules. ok is false when the document carries
// no emissions total. baseline is the company target in the same unit as the totals.
func BuildMetricEntry(doc SourceDocument, baseline decimal.Decimal) (draft MetricEntryDraft, ok bool, err error) {
	rule, known := doctypeRules[doc.Doctype]
	if !known {
		return MetricEntryDraft{}, false, fmt.Errorf("%w: unsupported doctype %q", ErrInvalidDocument, doc.Doctype)
	}
	if doc.TotalEmissions.IsZero() {
		return MetricEntryDraft{}, false, nil
	}

	draft = MetricEntryDraft{
		PeriodDate:         doc.PostingDate,
		Measured:           doc.TotalEmissions,
		Target:             baseline,
		Variance:           baseline.Sub(doc.TotalEmissions),
		VerificationStatus: scoring.VerificationPending,
	}
	rule(doc, &draft)
	return draft, true, nil
}

func performanceIf(green bool) scoring.Performance {
	if green {
		return scoring.PerformanceGreen
	}
	return scoring.PerformanceRed
}

var doctypeRules = map[string]func(SourceDocument, *MetricEntryDraft){
	DoctypeSalesInvoice: func(doc SourceDocument, d *MetricEntryDraft) {
		d.Metric = "Carbon Footprint"
		d.Performance = performanceIf(!d.Variance.IsNegative())
		d.PartyType, d.Party = "Customer", doc.Customer
		d.Remarks = "Carbon emissions from Sales Invoice " + doc.Name
	},
	DoctypePurchaseInvoice: func(doc SourceDocument, d *MetricEntryDraft) {
		d.Metric = "Supplier Carbon Footprint"
		d.Performance = performanceIf(doc.SupplierCarbonCertified)
		if doc.SupplierCarbonCertified {
			d.VerificationStatus = scoring.VerificationVerified
		}
		d.PartyType, d.Party = "Supplier", doc.Supplier
		d.Remarks = "Carbon emissions from Purchase Invoice " + doc.Name
	},
	DoctypeStockEntry: func(doc SourceDocument, d *MetricEntryDraft) {
		d.Metric = doc.Purpose + " Carbon Impact"
		d.Performance = performanceIf(doc.Purpose == materialReceipt)
		d.PartyType, d.Party = "Warehouse", doc.ToWarehouse
		if d.Party == "" {
			d.Party = doc.FromWarehouse
		}
		d.Remarks = fmt.Sprintf("Carbon impact from %s %s", doc.Purpose, doc.Name)
	},
	DoctypeWorkOrder: func(doc SourceDocument, d *MetricEntryDraft) {
		d.Metric = "Manufacturing Carbon Impact"
		d.PeriodDate = doc.PlannedStartDate
		impact := doc.RawMaterialEmissions.Add(doc.ProcessEmissions)
		d.Performance = performanceIf(!impact.GreaterThan(d.Target))
		d.PartyType, d.Party = "Item", doc.ProductionItem
		d.Remarks = fmt.Sprintf("Manufacturing emissions for %s (WO: %s)", doc.ItemName, doc.Name)
	},
	DoctypeProductionPlan: func(doc SourceDocument, d *MetricEntryDraft) {
		d.Metric = "Production Planning Carbon Impact"
		factor := decimal.NewFromInt(1).Sub(doc.ReductionTargetPercent.Div(hundred))
		d.Target = d.Target.Mul(factor)
		d.Variance = d.Target.Sub(d.Measured)
		d.Performance = performanceIf(d.Measured.LessThanOrEqual(d.Target))
		d.PartyType, d.Party = "Production Plan", doc.Name
		d.Remarks = fmt.Sprintf("Estimated carbon emissions for Production Plan %s (Target reduction: %s%%)",
			doc.Name, doc.ReductionTargetPercent)
	},
	DoctypeDeliveryNote: func(doc SourceDocument, d *MetricEntryDraft) {
		d.Metric = "Delivery Carbon Impact"
		limit := doc.ProductEmissions.Mul(decimal.NewFromFloat(0.1))
		d.Performance = performanceIf(doc.TransportEmissions.LessThan(limit))
		d.PartyType, d.Party = "Customer", doc.Customer
		d.Remarks = fmt.Sprintf("Delivery emissions for %s (Product: %skg, Transport: %skg)",
			doc.CustomerName, doc.ProductEmissions, doc.TransportEmissions)
	},
}

// MetricEntryStore reads company baselines and writes generated metric entries.
type MetricEntryStore interface {
	List(ctx context.Context, q models.Query) ([]models.Record, error)
	ReplaceBySource(ctx context.Context, rec models.Record) (int64, error)
	DeleteBySource(ctx context.Context, doctype, document string) (int64, error)
}

// DocumentEventResult reports what a document event changed.
type DocumentEventResult struct {
	Action   DocumentAction `json:"action"`
	Doctype  string         `json:"doctype"`
	Document string         `json:"document"`
	Created  string         `json:"created,omitempty"`
	Replaced int64          `json:"replaced,omitempty"`
	Deleted  int64          `json:"deleted,omitempty"`
	Skipped  bool           `json:"skipped,omitempty"`
}

// DocumentEventsOption configures DocumentEvents.
type DocumentEventsOption func(*DocumentEvents)

// WithEventClock sets the source of "now" for entry and verification dates.
func WithEventClock(clock scoring.Clock) DocumentEventsOption {
	return func(e *DocumentEvents) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithEntryNames overrides how generated entries are named.
func WithEntryNames(next func() string) DocumentEventsOption {
	return func(e *DocumentEvents) {
		if next != nil {
			e.nextName = next
		}
	}
}

// DocumentEvents keeps metric entries in step with the lifecycle of their source documents.
type DocumentEvents struct {
	store    MetricEntryStore
	logger   *zap.Logger
	clock    scoring.Clock
	nextName func() string
}

func NewDocumentEvents(store MetricEntryStore, logger *zap.Logger, opts ...DocumentEventsOption) *DocumentEvents {
	if store == nil {
		panic("store must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &DocumentEvents{
		store:    store,
		logger:   logger,
		clock:    time.Now,
		nextName: func() string { return "ESG-ME-" + strings.ToUpper(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordDocumentEvent creates the metric entry for a submitted document, replacing any
// earlier one, or removes the entries of a canceled document.
func (e *DocumentEvents) RecordDocumentEvent(ctx context.Context, action DocumentAction, doc SourceDocument) (DocumentEventResult, error) {
	doc.Doctype = strings.TrimSpace(doc.Doctype)
	doc.Name = strings.TrimSpace(doc.Name)
	if _, known := doctypeRules[doc.Doctype]; !known {
		return DocumentEventResult{}, fmt.Errorf("%w: unsupported doctype %q", ErrInvalidDocument, doc.Doctype)
	}
	if doc.Name == "" {
		return DocumentEventResult{}, fmt.Errorf("%w: name is required", ErrInvalidDocument)
	}
	res := DocumentEventResult{Action: action, Doctype: doc.Doctype, Document: doc.Name}

	switch action {
	case ActionSubmit:
		return e.submit(ctx, doc, res)
	case ActionCancel:
		dbCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		n, err := e.store.DeleteBySource(dbCtx, doc.Doctype, doc.Name)
		if err != nil {
			return DocumentEventResult{}, fmt.Errorf("%w: delete entries for %s %s: %w", ErrWriteFailure, doc.Doctype, doc.Name, err)
		}
		res.Deleted = n
		e.logger.Info("metric entries removed",
			zap.String("doctype", doc.Doctype), zap.String("document", doc.Name), zap.Int64("deleted", n))
		return res, nil
	default:
		return DocumentEventResult{}, fmt.Errorf("%w: unknown action %q", ErrInvalidDocument, action)
	}
}

func (e *DocumentEvents) submit(ctx context.Context, doc SourceDocument, res DocumentEventResult) (DocumentEventResult, error) {
	if strings.TrimSpace(doc.Company) == "" {
		return DocumentEventResult{}, fmt.Errorf("%w: company is required", ErrInvalidDocument)
	}
	if doc.TotalEmissions.IsZero() {
		e.logger.Debug("document has no emissions total, skipped",
			zap.String("doctype", doc.Doctype), zap.String("document", doc.Name))
		res.Skipped = true
		return res, nil
	}

	baseline, err := e.baseline(ctx, doc.Company)
	if err != nil {
		return DocumentEventResult{}, err
	}
	draft, _, err := BuildMetricEntry(doc, baseline)
	if err != nil {
		return DocumentEventResult{}, err
	}

	name := e.nextName()
	dbCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	replaced, err := e.store.ReplaceBySource(dbCtx, e.record(name, doc, draft))
	if err != nil {
		return DocumentEventResult{}, fmt.Errorf("%w: store entry for %s %s: %w", ErrWriteFailure, doc.Doctype, doc.Name, err)
	}
	res.Created, res.Replaced = name, replaced
	e.logger.Info("metric entry generated",
		zap.String("doctype", doc.Doctype),
		zap.String("document", doc.Name),
		zap.String("entry", name),
		zap.String("performance", string(draft.Performance)),
		zap.Int64("replaced", replaced))
	return res, nil
}

// baseline is the company's baseline emissions, or DefaultBaselineEmissions when unset or zero.
func (e *DocumentEvents) baseline(ctx context.Context, company string) (decimal.Decimal, error) {
	dbCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	records, err := e.store.List(dbCtx, models.Query{
		Kind:    models.KindCompany,
		Fields:  []string{"baseline_emissions_tonnes_co2e"},
		Filters: []models.Filter{models.Eq("name", company)},
		Limit:   1,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: company baseline: %w", ErrFetchFailure, err)
	}
	if len(records) == 0 {
		return DefaultBaselineEmissions, nil
	}
	if v, ok := records[0].Decimal("baseline_emissions_tonnes_co2e"); ok && !v.IsZero() {
		return v, nil
	}
	return DefaultBaselineEmissions, nil
}

func (e *DocumentEvents) record(name string, doc SourceDocument, d MetricEntryDraft) models.Record {
	now := e.clock().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	rec := models.Record{
		"name":                name,
		"metric":              d.Metric,
		"company":             doc.Company,
		"entry_date":          today,
		"value":               d.Measured,
		"measured_value":      d.Measured,
		"target_value":        d.Target,
		"unit":                defaultUnit,
		"variance":            d.Variance,
		"performance":         string(d.Performance),
		"data_source":         systemGenerated,
		"verification_status": string(d.VerificationStatus),
		"verification_date":   today.AddDate(0, 0, verificationLeadDays),
		"remarks":             d.Remarks,
		"source_doctype":      doc.Doctype,
		"source_document":     doc.Name,
		"party_type":          d.PartyType,
		"docstatus":           0,
		"creation":            now,
		"modified":            now,
		"modified_by":         "System",
	}
	if d.Party != "" {
		rec["party"] = d.Party
	}
	if !d.PeriodDate.IsZero() {
		rec["reporting_period"] = d.PeriodDate.Format(models.DateLayout)
		rec["period_from"] = d.PeriodDate
		rec["period_to"] = d.PeriodDate
	}
	return rec
}
