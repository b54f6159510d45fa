package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
	"github.com/KiruiElisha/esg-compliance/internal/scoring"
	"github.com/KiruiElisha/esg-compliance/internal/service/mocks"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildMetricEntry(t *testing.T) {
	posted := day(2025, 3, 3)
	planned := day(2025, 3, 10)
	baseline := dec("5000")

	tests := []struct {
		name         string
		doc          SourceDocument
		metric       string
		performance  scoring.Performance
		verification scoring.VerificationStatus
		partyType    string
		party        string
		period       string
		target       string
		variance     string
		remarks      string
	}{
		{
			name: "sales invoice within target",
			doc: SourceDocument{Doctype: DoctypeSalesInvoice, Name: "SI-1", PostingDate: posted,
				TotalEmissions: dec("1200.5"), Customer: "CUST-1"},
			metric: "Carbon Footprint", performance: scoring.PerformanceGreen, verification: scoring.VerificationPending,
			partyType: "Customer", party: "CUST-1", period: "2025-03-03", target: "5000", variance: "3799.5",
			remarks: "Carbon emissions from Sales Invoice SI-1",
		},
		{
			name: "sales invoice over target",
			doc: SourceDocument{Doctype: DoctypeSalesInvoice, Name: "SI-2", PostingDate: posted,
				TotalEmissions: dec("5000.01"), Customer: "CUST-1"},
			metric: "Carbon Footprint", performance: scoring.PerformanceRed, verification: scoring.VerificationPending,
			partyType: "Customer", party: "CUST-1", period: "2025-03-03", target: "5000", variance: "-0.01",
			remarks: "Carbon emissions from Sales Invoice SI-2",
		},
		{
			name: "sales invoice exactly on target",
			doc: SourceDocument{Doctype: DoctypeSalesInvoice, Name: "SI-3", PostingDate: posted,
				TotalEmissions: dec("5000"), Customer: "CUST-1"},
			metric: "Carbon Footprint", performance: scoring.PerformanceGreen, verification: scoring.VerificationPending,
			partyType: "Customer", party: "CUST-1", period: "2025-03-03", target: "5000", variance: "0",
			remarks: "Carbon emissions from Sales Invoice SI-3",
		},
		{
			name: "purchase invoice from a certified supplier",
			doc: SourceDocument{Doctype: DoctypePurchaseInvoice, Name: "PI-1", PostingDate: posted,
				TotalEmissions: dec("9000"), Supplier: "SUP-1", SupplierCarbonCertified: true},
			metric: "Supplier Carbon Footprint", performance: scoring.PerformanceGreen, verification: scoring.VerificationVerified,
			partyType: "Supplier", party: "SUP-1", period: "2025-03-03", target: "5000", variance: "-4000",
			remarks: "Carbon emissions from Purchase Invoice PI-1",
		},
		{
			name: "purchase invoice from an uncertified supplier",
			doc: SourceDocument{Doctype: DoctypePurchaseInvoice, Name: "PI-2", PostingDate: posted,
				TotalEmissions: dec("10"), Supplier: "SUP-2"},
			metric: "Supplier Carbon Footprint", performance: scoring.PerformanceRed, verification: scoring.VerificationPending,
			partyType: "Supplier", party: "SUP-2", period: "2025-03-03", target: "5000", variance: "4990",
			remarks: "Carbon emissions from Purchase Invoice PI-2",
		},
		{
			name: "material receipt",
			doc: SourceDocument{Doctype: DoctypeStockEntry, Name: "STE-1", PostingDate: posted,
				TotalEmissions: dec("40"), Purpose: "Material Receipt", ToWarehouse: "Stores", FromWarehouse: "Transit"},
			metric: "Material Receipt Carbon Impact", performance: scoring.PerformanceGreen, verification: scoring.VerificationPending,
			partyType: "Warehouse", party: "Stores", period: "2025-03-03", target: "5000", variance: "4960",
			remarks: "Carbon impact from Material Receipt STE-1",
		},
		{
			name: "material issue falls back to the source warehouse",
			doc: SourceDocument{Doctype: DoctypeStockEntry, Name: "STE-2", PostingDate: posted,
				TotalEmissions: dec("40"), Purpose: "Material Issue", FromWarehouse: "Stores"},
			metric: "Material Issue Carbon Impact", performance: scoring.PerformanceRed, verification: scoring.VerificationPending,
			partyType: "Warehouse", party: "Stores", period: "2025-03-03", target: "5000", variance: "4960",
			remarks: "Carbon impact from Material Issue STE-2",
		},
		{
			name: "work order within target uses the planned start date",
			doc: SourceDocument{Doctype: DoctypeWorkOrder, Name: "WO-1", PostingDate: posted, PlannedStartDate: planned,
				TotalEmissions: dec("3000"), RawMaterialEmissions: dec("2000"), ProcessEmissions: dec("1000"),
				ProductionItem: "ITEM-1", ItemName: "Steel Beam"},
			metric: "Manufacturing Carbon Impact", performance: scoring.PerformanceGreen, verification: scoring.VerificationPending,
			partyType: "Item", party: "ITEM-1", period: "2025-03-10", target: "5000", variance: "2000",
			remarks: "Manufacturing emissions for Steel Beam (WO: WO-1)",
		},
		{
			name: "work order judged on raw and process emissions",
			doc: SourceDocument{Doctype: DoctypeWorkOrder, Name: "WO-2", PlannedStartDate: planned,
				TotalEmissions: dec("100"), RawMaterialEmissions: dec("4000"), ProcessEmissions: dec("1500"),
				ProductionItem: "ITEM-1", ItemName: "Steel Beam"},
			metric: "Manufacturing Carbon Impact", performance: scoring.PerformanceRed, verification: scoring.VerificationPending,
			partyType: "Item", party: "ITEM-1", period: "2025-03-10", target: "5000", variance: "4900",
			remarks: "Manufacturing emissions for Steel Beam (WO: WO-2)",
		},
		{
			name: "production plan against the reduced target",
			doc: SourceDocument{Doctype: DoctypeProductionPlan, Name: "PP-1", PostingDate: posted,
				TotalEmissions: dec("4000"), ReductionTargetPercent: dec("10")},
			metric: "Production Planning Carbon Impact", performance: scoring.PerformanceGreen, verification: scoring.VerificationPending,
			partyType: "Production Plan", party: "PP-1", period: "2025-03-03", target: "4500", variance: "500",
			remarks: "Estimated carbon emissions for Production Plan PP-1 (Target reduction: 10%)",
		},
		{
			name: "production plan over the reduced target",
			doc: SourceDocument{Doctype: DoctypeProductionPlan, Name: "PP-2", PostingDate: posted,
				TotalEmissions: dec("4600"), ReductionTargetPercent: dec("10")},
			metric: "Production Planning Carbon Impact", performance: scoring.PerformanceRed, verification: scoring.VerificationPending,
			partyType: "Production Plan", party: "PP-2", period: "2025-03-03", target: "4500", variance: "-100",
			remarks: "Estimated carbon emissions for Production Plan PP-2 (Target reduction: 10%)",
		},
		{
			name: "delivery with light transport",
			doc: SourceDocument{Doctype: DoctypeDeliveryNote, Name: "DN-1", PostingDate: posted,
				TotalEmissions: dec("1050"), ProductEmissions: dec("1000"), TransportEmissions: dec("50"),
				Customer: "CUST-1", CustomerName: "Acme Retail"},
			metric: "Delivery Carbon Impact", performance: scoring.PerformanceGreen, verification: scoring.VerificationPending,
			partyType: "Customer", party: "CUST-1", period: "2025-03-03", target: "5000", variance: "3950",
			remarks: "Delivery emissions for Acme Retail (Product: 1000kg, Transport: 50kg)",
		},
		{
			name: "delivery with transport at ten percent",
			doc: SourceDocument{Doctype: DoctypeDeliveryNote, Name: "DN-2", PostingDate: posted,
				TotalEmissions: dec("1100"), ProductEmissions: dec("1000"), TransportEmissions: dec("100"),
				Customer: "CUST-1", CustomerName: "Acme Retail"},
			metric: "Delivery Carbon Impact", performance: scoring.PerformanceRed, verification: scoring.VerificationPending,
			partyType: "Customer", party: "CUST-1", period: "2025-03-03", target: "5000", variance: "3900",
			remarks: "Delivery emissions for Acme Retail (Product: 1000kg, Transport: 100kg)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok, err := BuildMetricEntry(tt.doc, baseline)
			require.NoError(t, err)
			require.True(t, ok)

			assert.Equal(t, tt.metric, d.Metric)
			assert.Equal(t, tt.performance, d.Performance)
			assert.Equal(t, tt.verification, d.VerificationStatus)
			assert.Equal(t, tt.partyType, d.PartyType)
			assert.Equal(t, tt.party, d.Party)
			assert.Equal(t, tt.period, d.PeriodDate.Format(models.DateLayout))
			assertDecimal(t, tt.target, d.Target)
			assertDecimal(t, tt.variance, d.Variance)
			assert.True(t, tt.doc.TotalEmissions.Equal(d.Measured))
			assert.Equal(t, tt.remarks, d.Remarks)
		})
	}

	t.Run("no emissions total", func(t *testing.T) {
		_, ok, err := BuildMetricEntry(SourceDocument{Doctype: DoctypeDeliveryNote, Name: "DN-3"}, baseline)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unsupported doctype", func(t *testing.T) {
		_, _, err := BuildMetricEntry(SourceDocument{Doctype: "Journal Entry", TotalEmissions: dec("1")}, baseline)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})
}

func companyBaseline(value any) func(ctx context.Context, q models.Query) ([]models.Record, error) {
	return func(ctx context.Context, q models.Query) ([]models.Record, error) {
		if value == nil {
			return nil, nil
		}
		return []models.Record{{"baseline_emissions_tonnes_co2e": value}}, nil
	}
}

func TestRecordDocumentEvent(t *testing.T) {
	ctx := context.Background()
	opts := []DocumentEventsOption{
		WithEventClock(fixedClock(2025, 3, 15)),
		WithEntryNames(func() string { return "ESG-ME-TEST" }),
	}
	invoice := SourceDocument{
		Doctype: DoctypeSalesInvoice, Name: "SI-1", Company: "Acme", PostingDate: day(2025, 3, 3),
		TotalEmissions: dec("1200.5"), Customer: "CUST-1",
	}

	t.Run("submit stores a generated entry", func(t *testing.T) {
		var query models.Query
		var stored models.Record
		store := &mocks.MockMetricEntryStore{
			MockRecordFetcher: mocks.MockRecordFetcher{
				ListFunc: func(ctx context.Context, q models.Query) ([]models.Record, error) {
					query = q
					return []models.Record{{"baseline_emissions_tonnes_co2e": "2000"}}, nil
				},
			},
			ReplaceBySourceFunc: func(ctx context.Context, rec models.Record) (int64, error) {
				stored = rec
				return 0, nil
			},
		}
		e := NewDocumentEvents(store, zap.NewNop(), opts...)

		res, err := e.RecordDocumentEvent(ctx, ActionSubmit, invoice)
		require.NoError(t, err)

		assert.Equal(t, DocumentEventResult{Action: ActionSubmit, Doctype: DoctypeSalesInvoice, Document: "SI-1", Created: "ESG-ME-TEST"}, res)
		assert.Equal(t, models.KindCompany, query.Kind)
		assert.Equal(t, []models.Filter{models.Eq("name", "Acme")}, query.Filters)

		require.NotNil(t, stored)
		assert.Equal(t, "ESG-ME-TEST", stored["name"])
		assert.Equal(t, "Carbon Footprint", stored["metric"])
		assert.Equal(t, "Acme", stored["company"])
		assert.Equal(t, day(2025, 3, 15), stored["entry_date"])
		assert.Equal(t, day(2025, 3, 22), stored["verification_date"])
		assert.Equal(t, "2025-03-03", stored["reporting_period"])
		assert.Equal(t, day(2025, 3, 3), stored["period_from"])
		assert.Equal(t, "kg", stored["unit"])
		assert.Equal(t, "System Generated", stored["data_source"])
		assert.Equal(t, "Pending", stored["verification_status"])
		assert.Equal(t, "Green", stored["performance"])
		assert.Equal(t, "Sales Invoice", stored["source_doctype"])
		assert.Equal(t, "SI-1", stored["source_document"])
		assert.Equal(t, "CUST-1", stored["party"])
		assert.Equal(t, 0, stored["docstatus"])
		assertDecimal(t, "2000", stored["target_value"].(decimal.Decimal))
		assertDecimal(t, "799.5", stored["variance"].(decimal.Decimal))
	})

	t.Run("resubmission reports the replaced entries", func(t *testing.T) {
		store := &mocks.MockMetricEntryStore{
			MockRecordFetcher:   mocks.MockRecordFetcher{ListFunc: companyBaseline(nil)},
			ReplaceBySourceFunc: func(ctx context.Context, rec models.Record) (int64, error) { return 1, nil },
		}

		res, err := NewDocumentEvents(store, zap.NewNop(), opts...).RecordDocumentEvent(ctx, ActionSubmit, invoice)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Replaced)
	})

	t.Run("missing or zero baseline uses the default", func(t *testing.T) {
		for _, baseline := range []any{nil, "0", ""} {
			var target decimal.Decimal
			store := &mocks.MockMetricEntryStore{
				MockRecordFetcher: mocks.MockRecordFetcher{ListFunc: companyBaseline(baseline)},
				ReplaceBySourceFunc: func(ctx context.Context, rec models.Record) (int64, error) {
					target = rec["target_value"].(decimal.Decimal)
					return 0, nil
				},
			}

			_, err := NewDocumentEvents(store, zap.NewNop(), opts...).RecordDocumentEvent(ctx, ActionSubmit, invoice)
			require.NoError(t, err)
			assertDecimal(t, "5000", target)
		}
	})

	t.Run("documents without emissions are skipped", func(t *testing.T) {
		doc := invoice
		doc.TotalEmissions = decimal.Zero

		res, err := NewDocumentEvents(&mocks.MockMetricEntryStore{}, zap.NewNop(), opts...).RecordDocumentEvent(ctx, ActionSubmit, doc)
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.Empty(t, res.Created)
	})

	t.Run("cancel deletes by the document's own doctype", func(t *testing.T) {
		var gotDoctype, gotDocument string
		store := &mocks.MockMetricEntryStore{
			DeleteBySourceFunc: func(ctx context.Context, doctype, document string) (int64, error) {
				gotDoctype, gotDocument = doctype, document
				return 2, nil
			},
		}
		doc := SourceDocument{Doctype: DoctypeDeliveryNote, Name: "DN-1"}

		res, err := NewDocumentEvents(store, zap.NewNop(), opts...).RecordDocumentEvent(ctx, ActionCancel, doc)
		require.NoError(t, err)
		assert.Equal(t, "Delivery Note", gotDoctype)
		assert.Equal(t, "DN-1", gotDocument)
		assert.Equal(t, int64(2), res.Deleted)
	})

	t.Run("invalid events", func(t *testing.T) {
		e := NewDocumentEvents(&mocks.MockMetricEntryStore{}, zap.NewNop(), opts...)
		noCompany := invoice
		noCompany.Company = " "

		for name, call := range map[string]func() error{
			"unknown doctype": func() error {
				_, err := e.RecordDocumentEvent(ctx, ActionSubmit, SourceDocument{Doctype: "Quotation", Name: "Q-1"})
				return err
			},
			"missing name": func() error {
				_, err := e.RecordDocumentEvent(ctx, ActionCancel, SourceDocument{Doctype: DoctypeWorkOrder})
				return err
			},
			"missing company": func() error {
				_, err := e.RecordDocumentEvent(ctx, ActionSubmit, noCompany)
				return err
			},
			"unknown action": func() error {
				_, err := e.RecordDocumentEvent(ctx, "amend", invoice)
				return err
			},
		} {
			assert.ErrorIs(t, call(), ErrInvalidDocument, name)
		}
	})

	t.Run("store failures", func(t *testing.T) {
		boom := errors.New("database is locked")
		store := &mocks.MockMetricEntryStore{
			MockRecordFetcher:   mocks.MockRecordFetcher{ListFunc: companyBaseline(nil)},
			ReplaceBySourceFunc: func(ctx context.Context, rec models.Record) (int64, error) { return 0, boom },
			DeleteBySourceFunc:  func(ctx context.Context, doctype, document string) (int64, error) { return 0, boom },
		}
		e := NewDocumentEvents(store, zap.NewNop(), opts...)

		_, err := e.RecordDocumentEvent(ctx, ActionSubmit, invoice)
		assert.ErrorIs(t, err, ErrWriteFailure)
		assert.ErrorIs(t, err, boom)

		_, err = e.RecordDocumentEvent(ctx, ActionCancel, invoice)
		assert.ErrorIs(t, err, ErrWriteFailure)

		failingLookup := &mocks.MockMetricEntryStore{}
		_, err = NewDocumentEvents(failingLookup, zap.NewNop(), opts...).RecordDocumentEvent(ctx, ActionSubmit, invoice)
		assert.ErrorIs(t, err, ErrFetchFailure)
	})
}
