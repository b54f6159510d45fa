package repository_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/KiruiElisha/esg-compliance/internal/repository"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, repository.Migrate(context.Background(), db))
	return db
}

func seedTestData(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`
	INSERT INTO esg_metric_entries
		(name, metric, company, entry_date, measured_value, target_value, performance, source_doctype, verification_status, docstatus, modified)
	VALUES
		('ME-001', 'Carbon Footprint', 'Acme', '2025-01-05', '1200.50', '5000', 'Green', 'Sales Invoice', 'Pending', 0, '2025-01-05 10:00:00'),
		('ME-002', 'Supplier Carbon Footprint', 'Acme', '2025-01-20', '6100', '5000', 'Red', 'Purchase Invoice', 'Verified', 0, '2025-01-20 09:00:00'),
		('ME-003', 'Manufacturing Carbon Impact', 'Acme', '2025-02-02', '300', '5000', 'Green', 'Work Order', NULL, 0, '2025-02-02 08:00:00'),
		('ME-004', 'Material Receipt Carbon Impact', 'Globex', '2025-02-10', '100', '5000', 'Green', 'Stock Entry', 'Pending', 0, '2025-02-10 08:00:00'),
		('ME-005', 'Carbon Footprint', 'Acme', '2025-02-15', NULL, NULL, 'Red', 'Sales Invoice', 'Pending', 1, '2025-02-15 08:00:00');

	INSERT INTO esg_initiatives
		(name, initiative_name, company, status, related_policy, start_date, end_date, progress, budget, actual_cost, responsible_person, modified, modified_by)
	VALUES
		('INI-001', 'Solar Rollout', 'Acme', 'Ongoing', 'Carbon Policy', '2025-01-01', '2025-12-31', 40, '10000', '2500', 'EMP-1', '2025-02-01 12:00:00', 'admin'),
		('INI-002', 'Safety Training', 'Acme', 'Planned', 'Employee Welfare', '2025-03-01', '2025-06-30', NULL, NULL, NULL, NULL, '2025-02-02 12:00:00', 'admin'),
		('INI-003', 'Audit Upgrade', 'Acme', 'Completed', 'Governance Charter', '2024-01-01', '2024-12-31', 100, '5000', '5000', 'EMP-2', '2025-01-01 12:00:00', 'admin');

	INSERT INTO employees (name, employee_name) VALUES ('EMP-1', 'Jane Wanjiku'), ('EMP-2', 'Peter Otieno');
	`)
	require.NoError(t, err)
}
