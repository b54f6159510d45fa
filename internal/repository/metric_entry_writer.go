package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
)

var ErrMissingSource = errors.New("metric entry has no source document")

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ReplaceBySource stores rec as the only metric entry for its source_doctype and
// source_document, removing any earlier ones in the same transaction. It returns how
// many entries were replaced.
func (r *RecordRepository) ReplaceBySource(ctx context.Context, rec models.Record) (int64, error) {
	doctype, document := rec.String("source_doctype"), rec.String("source_document")
	if doctype == "" || document == "" {
		return 0, ErrMissingSource
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin metric entry replace: %w", err)
	}
	defer tx.Rollback()

	replaced, err := deleteBySource(ctx, tx, doctype, document)
	if err != nil {
		return 0, err
	}
	if err := insertRecord(ctx, tx, tables[models.KindMetricEntry], rec); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit metric entry replace: %w", err)
	}
	return replaced, nil
}

// DeleteBySource removes the metric entries generated from one source document.
func (r *RecordRepository) DeleteBySource(ctx context.Context, doctype, document string) (int64, error) {
	if doctype == "" || document == "" {
		return 0, ErrMissingSource
	}
	return deleteBySource(ctx, r.db, doctype, document)
}

func deleteBySource(ctx context.Context, db execer, doctype, document string) (int64, error) {
	t := tables[models.KindMetricEntry]
	res, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE source_doctype = ? AND source_document = ?", t.name),
		doctype, document)
	if err != nil {
		return 0, fmt.Errorf("delete %s for %s %s: %w", t.name, doctype, document, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", t.name, err)
	}
	return n, nil
}

func insertRecord(ctx context.Context, db execer, t table, rec models.Record) error {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		if _, ok := t.columns[c]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, t.name, c)
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return fmt.Errorf("insert %s: empty record", t.name)
	}
	slices.Sort(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = bindValue(t.columns[c], rec[c])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return nil
}
