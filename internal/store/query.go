package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// Op is a comparison operator for filters.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "<>"
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpIn  Op = "IN"
)

// System attributes usable in filters and ordering.
const (
	FieldID        = "$id"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

var systemColumns = map[string]string{
	FieldID:        "id",
	FieldCreatedAt: "created_at",
	FieldUpdatedAt: "updated_at",
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter restricts a list or count to documents whose field compares true
// against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Filter  { return Filter{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Filter  { return Filter{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v any) Filter  { return Filter{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Filter { return Filter{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Filter  { return Filter{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Filter { return Filter{Field: field, Op: OpLte, Value: v} }

// In matches documents whose field equals any of vs. An empty set matches
// nothing.
func In[T any](field string, vs []T) Filter {
	vals := make([]any, len(vs))
	for i, v := range vs {
		vals[i] = v
	}
	return Filter{Field: field, Op: OpIn, Value: vals}
}

// Query configures List.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int // 0 = unlimited
	Offset  int
}

// fieldExpr returns the SQL expression for a document field. System
// attributes map to their columns.
func fieldExpr(d, field string) (expr string, column bool, err error) {
	if col, ok := systemColumns[field]; ok {
		return col, true, nil
	}
	if !fieldPattern.MatchString(field) {
		return "", false, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	if d == dialect.Postgres {
		return fmt.Sprintf("(data->'%s')", field), false, nil
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", field), false, nil
}

// writeArg appends a bound value to b in the form the backend compares
// against the field expression.
func writeArg(b *entsql.Builder, d string, column bool, v any) error {
	if column {
		if t, ok := v.(time.Time); ok {
			v = t.UnixMilli()
		}
		b.Arg(v)
		return nil
	}
	if d == dialect.Postgres {
		enc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode filter value: %w", err)
		}
		b.Arg(string(enc))
		b.WriteString("::jsonb")
		return nil
	}
	switch x := v.(type) {
	case bool:
		if x {
			v = 1
		} else {
			v = 0
		}
	case time.Time:
		v = x.UTC().Format(time.RFC3339Nano)
	}
	b.Arg(v)
	return nil
}

func filterPredicate(d string, f Filter) (*entsql.Predicate, error) {
	expr, column, err := fieldExpr(d, f.Field)
	if err != nil {
		return nil, err
	}
	switch f.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
	case OpIn:
		if _, ok := f.Value.([]any); !ok {
			return nil, fmt.Errorf("filter %s: IN expects a list, got %T", f.Field, f.Value)
		}
	default:
		return nil, fmt.Errorf("filter %s: unsupported operator %q", f.Field, f.Op)
	}

	var argErr error
	p := entsql.P(func(b *entsql.Builder) {
		if f.Op != OpIn {
			b.WriteString(expr + " " + string(f.Op) + " ")
			argErr = writeArg(b, d, column, f.Value)
			return
		}
		vals := f.Value.([]any)
		if len(vals) == 0 {
			b.WriteString("1 = 0")
			return
		}
		b.WriteString(expr + " IN (")
		for i, v := range vals {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeArg(b, d, column, v); err != nil {
				argErr = err
			}
		}
		b.WriteString(")")
	})
	return p, argErr
}

// whereClause builds the predicate selecting documents of a collection that
// match all filters.
func whereClause(d, collection string, filters []Filter) (*entsql.Predicate, error) {
	preds := []*entsql.Predicate{entsql.EQ("collection", collection)}
	for _, f := range filters {
		p, err := filterPredicate(d, f)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return entsql.And(preds...), nil
}

// selectQuery renders the SELECT for List.
func selectQuery(d, collection string, q Query) (string, []any, error) {
	where, err := whereClause(d, collection, q.Filters)
	if err != nil {
		return "", nil, err
	}
	sel := entsql.Dialect(d).
		Select("id", "data", "version", "created_at", "updated_at").
		From(entsql.Dialect(d).Table(tableName)).
		Where(where)

	if q.OrderBy != "" {
		expr, _, err := fieldExpr(d, q.OrderBy)
		if err != nil {
			return "", nil, err
		}
		dir := " ASC"
		if q.Desc {
			dir = " DESC"
			if d == dialect.Postgres {
				dir += " NULLS LAST"
			}
		}
		sel.OrderExpr(entsql.Expr(expr + dir))
	}
	sel.OrderExpr(entsql.Expr("id ASC"))

	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}
	if q.Offset > 0 {
		if q.Limit <= 0 && d == dialect.SQLite {
			// SQLite only accepts OFFSET after a LIMIT clause.
			sel.Limit(-1)
		}
		sel.Offset(q.Offset)
	}
	query, args := sel.Query()
	return query, args, nil
}

// countQuery renders the SELECT COUNT for Count.
func countQuery(d, collection string, filters []Filter) (string, []any, error) {
	where, err := whereClause(d, collection, filters)
	if err != nil {
		return "", nil, err
	}
	query, args := entsql.Dialect(d).
		Select(entsql.Count("*")).
		From(entsql.Dialect(d).Table(tableName)).
		Where(where).
		Query()
	return query, args, nil
}
