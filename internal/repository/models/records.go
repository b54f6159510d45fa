package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind names a record type exposed by the record store.
type Kind string

const (
	KindMetricEntry Kind = "metric_entry"
	KindInitiative  Kind = "initiative"
	KindPolicy      Kind = "policy"
	KindActionItem  Kind = "action_item"
	KindEmployee    Kind = "employee"
	KindCompany     Kind = "company"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "!="
	OpLt      Op = "<"
	OpLte     Op = "<="
	OpGt      Op = ">"
	OpGte     Op = ">="
	OpIn      Op = "in"
	OpNotIn   Op = "not in"
	OpBetween Op = "between"
)

// Filter restricts a query on one field. Value is a scalar for comparison operators,
// a slice for In/NotIn and a two-element slice for Between.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality filter.
func Eq(field string, v any) Filter { return Filter{Field: field, Op: OpEq, Value: v} }

// Ne builds an inequality filter.
func Ne(field string, v any) Filter { return Filter{Field: field, Op: OpNe, Value: v} }

func Lt(field string, v any) Filter  { return Filter{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Filter { return Filter{Field: field, Op: OpLte, Value: v} }
func Gt(field string, v any) Filter  { return Filter{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Filter { return Filter{Field: field, Op: OpGte, Value: v} }

// In matches any of the given values.
func In[T any](field string, vs ...T) Filter {
	return Filter{Field: field, Op: OpIn, Value: toAnys(vs)}
}

// NotIn matches none of the given values.
func NotIn[T any](field string, vs ...T) Filter {
	return Filter{Field: field, Op: OpNotIn, Value: toAnys(vs)}
}

// Between matches lo <= field <= hi.
func Between(field string, lo, hi any) Filter {
	return Filter{Field: field, Op: OpBetween, Value: []any{lo, hi}}
}

func toAnys[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// Order sorts results by Field.
type Order struct {
	Field string
	Desc  bool
}

// Query describes one list or count request.
type Query struct {
	Kind    Kind
	Fields  []string
	Filters []Filter
	OrderBy []Order
	// Limit caps the number of rows. Zero applies the store's default page size,
	// a negative value disables the cap.
	Limit int
}

// Record is one row keyed by column name. Columns that were not selected or are NULL
// are absent.
type Record map[string]any

// DateLayout is the storage format of calendar dates.
const DateLayout = "2006-01-02"

// TimestampLayout is the storage format of timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// String returns the text value of field, or "" when missing.
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Decimal returns the numeric value of field. Missing or unparsable values give ok=false.
func (r Record) Decimal(field string) (decimal.Decimal, bool) {
	switch v := r[field].(type) {
	case int64:
		return decimal.NewFromInt(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		return parseDecimal(v)
	case []byte:
		return parseDecimal(string(v))
	default:
		return decimal.Zero, false
	}
}

// Float returns the numeric value of field, or 0 when missing.
func (r Record) Float(field string) float64 {
	d, _ := r.Decimal(field)
	return d.InexactFloat64()
}

// FloatPtr returns the numeric value of field, or nil when missing.
func (r Record) FloatPtr(field string) *float64 {
	d, ok := r.Decimal(field)
	if !ok {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// Int returns the integer value of field, or 0 when missing.
func (r Record) Int(field string) int64 {
	d, _ := r.Decimal(field)
	return d.IntPart()
}

// Time returns the timestamp or date in field as UTC, or the zero time when missing.
func (r Record) Time(field string) time.Time {
	switch v := r[field].(type) {
	case time.Time:
		return v.UTC()
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	default:
		return time.Time{}
	}
}

// Date returns the calendar date in field at midnight UTC.
func (r Record) Date(field string) time.Time {
	t := r.Time(field)
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	DateLayout,
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
