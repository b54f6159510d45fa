package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
)

type columnType int

const (
	colText columnType = iota
	colNumber
	colDate
	colTimestamp
)

type table struct {
	name    string
	columns map[string]columnType
}

var tables = map[models.Kind]table{
	models.KindMetricEntry: {
		name: "esg_metric_entries",
		columns: map[string]columnType{
			"name":                colText,
			"metric":              colText,
			"company":             colText,
			"entry_date":          colDate,
			"reporting_period":    colText,
			"period_from":         colDate,
			"period_to":           colDate,
			"value":               colNumber,
			"measured_value":      colNumber,
			"target_value":        colNumber,
			"unit":                colText,
			"variance":            colNumber,
			"variance_percent":    colNumber,
			"performance":         colText,
			"data_source":         colText,
			"verification_status": colText,
			"verified_by":         colText,
			"verification_date":   colDate,
			"remarks":             colText,
			"source_doctype":      colText,
			"source_document":     colText,
			"party_type":          colText,
			"party":               colText,
			"docstatus":           colNumber,
			"creation":            colTimestamp,
			"modified":            colTimestamp,
			"modified_by":         colText,
		},
	},
	models.KindInitiative: {
		name: "esg_initiatives",
		columns: map[string]columnType{
			"name":               colText,
			"initiative_name":    colText,
			"company":            colText,
			"status":             colText,
			"related_policy":     colText,
			"start_date":         colDate,
			"end_date":           colDate,
			"progress":           colNumber,
			"priority":           colText,
			"budget":             colNumber,
			"actual_cost":        colNumber,
			"responsible_person": colText,
			"docstatus":          colNumber,
			"creation":           colTimestamp,
			"modified":           colTimestamp,
			"modified_by":        colText,
		},
	},
	models.KindPolicy: {
		name: "esg_policies",
		columns: map[string]columnType{
			"name":           colText,
			"policy_name":    colText,
			"description":    colText,
			"company":        colText,
			"effective_date": colDate,
			"expiry_date":    colDate,
			"docstatus":      colNumber,
			"creation":       colTimestamp,
			"modified":       colTimestamp,
		},
	},
	models.KindActionItem: {
		name: "esg_action_items",
		columns: map[string]columnType{
			"name":      colText,
			"title":     colText,
			"company":   colText,
			"status":    colText,
			"due_date":  colDate,
			"docstatus": colNumber,
			"creation":  colTimestamp,
			"modified":  colTimestamp,
		},
	},
	models.KindEmployee: {
		name: "employees",
		columns: map[string]columnType{
			"name":          colText,
			"employee_name": colText,
			"company":       colText,
			"status":        colText,
		},
	},
	models.KindCompany: {
		name: "companies",
		columns: map[string]columnType{
			"name":                           colText,
			"baseline_emissions_tonnes_co2e": colNumber,
		},
	},
}

// Dates and decimal quantities are kept as TEXT so the driver returns them verbatim.
const schema = `
	CREATE TABLE IF NOT EXISTS esg_metric_entries (
		name TEXT PRIMARY KEY,
		metric TEXT,
		company TEXT,
		entry_date TEXT,
		reporting_period TEXT,
		period_from TEXT,
		period_to TEXT,
		value TEXT,
		measured_value TEXT,
		target_value TEXT,
		unit TEXT,
		variance TEXT,
		variance_percent TEXT,
		performance TEXT,
		data_source TEXT,
		verification_status TEXT,
		verified_by TEXT,
		verification_date TEXT,
		remarks TEXT,
		source_doctype TEXT,
		source_document TEXT,
		party_type TEXT,
		party TEXT,
		docstatus INTEGER NOT NULL DEFAULT 0,
		creation TEXT,
		modified TEXT,
		modified_by TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_metric_entries_company_date ON esg_metric_entries (company, entry_date);

	CREATE TABLE IF NOT EXISTS esg_initiatives (
		name TEXT PRIMARY KEY,
		initiative_name TEXT,
		company TEXT,
		status TEXT,
		related_policy TEXT,
		start_date TEXT,
		end_date TEXT,
		progress REAL,
		priority TEXT,
		budget TEXT,
		actual_cost TEXT,
		responsible_person TEXT,
		docstatus INTEGER NOT NULL DEFAULT 0,
		creation TEXT,
		modified TEXT,
		modified_by TEXT
	);

	CREATE TABLE IF NOT EXISTS esg_policies (
		name TEXT PRIMARY KEY,
		policy_name TEXT,
		description TEXT,
		company TEXT,
		effective_date TEXT,
		expiry_date TEXT,
		docstatus INTEGER NOT NULL DEFAULT 0,
		creation TEXT,
		modified TEXT
	);

	CREATE TABLE IF NOT EXISTS esg_action_items (
		name TEXT PRIMARY KEY,
		title TEXT,
		company TEXT,
		status TEXT,
		due_date TEXT,
		docstatus INTEGER NOT NULL DEFAULT 0,
		creation TEXT,
		modified TEXT
	);

	CREATE TABLE IF NOT EXISTS employees (
		name TEXT PRIMARY KEY,
		employee_name TEXT,
		company TEXT,
		status TEXT
	);

	CREATE TABLE IF NOT EXISTS companies (
		name TEXT PRIMARY KEY,
		baseline_emissions_tonnes_co2e TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_metric_entries_source ON esg_metric_entries (source_doctype, source_document);
`

// Migrate creates the record tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
