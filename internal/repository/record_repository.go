package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/KiruiElisha/esg-compliance/internal/repository/models"
)

// DefaultPageSize caps List results when a query sets no limit.
const DefaultPageSize = 1000

var (
	ErrUnknownKind     = errors.New("unknown record kind")
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidOperator = errors.New("invalid filter operator")
)

// RecordRepository lists and counts business records stored in SQL tables.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// List returns the records matching q, projected to q.Fields (all columns when empty).
func (r *RecordRepository) List(ctx context.Context, q models.Query) ([]models.Record, error) {
	t, ok := tables[q.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, q.Kind)
	}

	fields := q.Fields
	if len(fields) == 0 {
		fields = allColumns(t)
	}
	for _, f := range fields {
		if _, ok := t.columns[f]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, q.Kind, f)
		}
	}

	where, args, err := buildWhere(t, q.Filters)
	if err != nil {
		return nil, err
	}
	order, err := buildOrder(t, q.OrderBy)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s", strings.Join(fields, ", "), t.name, where)
	if order != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(order)
	}
	limit := q.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Kind, err)
	}
	defer rows.Close()

	var results []models.Record
	for rows.Next() {
		values := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", q.Kind, err)
		}

		rec := make(models.Record, len(fields))
		for i, f := range fields {
			if values[i] != nil {
				rec[f] = values[i]
			}
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Kind, err)
	}
	return results, nil
}

// Count returns the number of records matching q's filters. Fields, order and limit
// are ignored.
func (r *RecordRepository) Count(ctx context.Context, q models.Query) (int64, error) {
	t, ok := tables[q.Kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, q.Kind)
	}

	where, args, err := buildWhere(t, q.Filters)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", t.name, where)

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Kind, err)
	}
	return count, nil
}

func allColumns(t table) []string {
	cols := make([]string, 0, len(t.columns))
	for c := range t.columns {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}

func buildWhere(t table, filters []models.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "1=1", nil, nil
	}

	conds := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		ct, ok := t.columns[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, t.name, f.Field)
		}

		switch f.Op {
		case models.OpEq, models.OpNe, models.OpLt, models.OpLte, models.OpGt, models.OpGte:
			if isList(f.Value) {
				return "", nil, fmt.Errorf("%w: %s expects a scalar for %s", ErrInvalidOperator, f.Op, f.Field)
			}
			// NULL never satisfies a comparison, but != keeps NULL rows.
			if f.Op == models.OpNe {
				conds = append(conds, fmt.Sprintf("(%s IS NULL OR %s <> ?)", f.Field, f.Field))
			} else {
				conds = append(conds, fmt.Sprintf("%s %s ?", f.Field, f.Op))
			}
			args = append(args, bindValue(ct, f.Value))

		case models.OpIn, models.OpNotIn:
			vs, ok := asList(f.Value)
			if !ok {
				return "", nil, fmt.Errorf("%w: %s expects a list for %s", ErrInvalidOperator, f.Op, f.Field)
			}
			if len(vs) == 0 {
				if f.Op == models.OpIn {
					conds = append(conds, "1=0")
				}
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(vs)), ", ")
			if f.Op == models.OpIn {
				conds = append(conds, fmt.Sprintf("%s IN (%s)", f.Field, placeholders))
			} else {
				conds = append(conds, fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", f.Field, f.Field, placeholders))
			}
			for _, v := range vs {
				args = append(args, bindValue(ct, v))
			}

		case models.OpBetween:
			vs, ok := asList(f.Value)
			if !ok || len(vs) != 2 {
				return "", nil, fmt.Errorf("%w: between expects two bounds for %s", ErrInvalidOperator, f.Field)
			}
			conds = append(conds, fmt.Sprintf("%s BETWEEN ? AND ?", f.Field))
			args = append(args, bindValue(ct, vs[0]), bindValue(ct, vs[1]))

		default:
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidOperator, f.Op)
		}
	}

	if len(conds) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(conds, " AND "), args, nil
}

func buildOrder(t table, orders []models.Order) (string, error) {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if _, ok := t.columns[o.Field]; !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, t.name, o.Field)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, o.Field+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}

// bindValue converts times to the text layout the column is stored in.
func bindValue(ct columnType, v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	switch ct {
	case colDate:
		return t.Format(models.DateLayout)
	default:
		return t.UTC().Format(models.TimestampLayout)
	}
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func asList(v any) ([]any, bool) {
	if !isList(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
