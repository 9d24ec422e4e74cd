package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// FilterKind says how a query-string filter value is parsed before it is
// compared with its column.
type FilterKind int

const (
	FilterString FilterKind = iota
	FilterInt
	FilterBool
)

// TableSpec describes one table: which columns are read, which may be
// written through Insert/Update, and which may be filtered on.
type TableSpec struct {
	Name     string
	Columns  []string
	Writable []string
	Filters  map[string]FilterKind
	Search   []string
	OrderBy  string
	// Touch sets updated_at = NOW() on every update.
	Touch bool
}

// ListQuery is a page of rows. Filters outside the table's whitelist are
// ignored.
type ListQuery struct {
	Filters map[string]string
	Search  string
	Limit   int
	Offset  int
}

func (q ListQuery) limit() uint64 {
	switch {
	case q.Limit <= 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	}
	return uint64(q.Limit)
}

// Table runs whitelisted CRUD statements for T, which must carry db tags
// matching spec.Columns.
type Table[T any] struct {
	db       sqlx.ExtContext
	spec     TableSpec
	writable map[string]bool
}

func NewTable[T any](db sqlx.ExtContext, spec TableSpec) *Table[T] {
	writable := make(map[string]bool, len(spec.Writable))
	for _, col := range spec.Writable {
		writable[col] = true
	}
	if spec.OrderBy == "" {
		spec.OrderBy = "id DESC"
	}
	return &Table[T]{db: db, spec: spec, writable: writable}
}

// With returns the same table bound to another handle, usually a tx.
func (t *Table[T]) With(db sqlx.ExtContext) *Table[T] {
	return &Table[T]{db: db, spec: t.spec, writable: t.writable}
}

func (t *Table[T]) Name() string {
	return t.spec.Name
}

func (t *Table[T]) returning() string {
	return "RETURNING " + strings.Join(t.spec.Columns, ", ")
}

func (t *Table[T]) hasColumn(col string) bool {
	for _, c := range t.spec.Columns {
		if c == col {
			return true
		}
	}
	return false
}

func (t *Table[T]) checkWritable(fields map[string]any) error {
	for col := range fields {
		if !t.writable[col] {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.spec.Name, col)
		}
	}
	return nil
}

func (t *Table[T]) List(ctx context.Context, q ListQuery) ([]T, error) {
	query, args, err := t.listQuery(q)
	if err != nil {
		return nil, err
	}

	rows := []T{}
	if err := sqlx.SelectContext(ctx, t.db, &rows, query, args...); err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (t *Table[T]) listQuery(q ListQuery) (string, []any, error) {
	b := psql.Select(t.spec.Columns...).From(t.spec.Name)

	keys := make([]string, 0, len(q.Filters))
	for key := range q.Filters {
		if _, ok := t.spec.Filters[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, err := parseFilter(t.spec.Filters[key], q.Filters[key])
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s", ErrInvalidFilter, key)
		}
		b = b.Where(sq.Eq{key: value})
	}

	if search := strings.TrimSpace(q.Search); search != "" && len(t.spec.Search) > 0 {
		or := sq.Or{}
		for _, col := range t.spec.Search {
			or = append(or, sq.ILike{col: "%" + search + "%"})
		}
		b = b.Where(or)
	}

	b = b.OrderBy(t.spec.OrderBy).Limit(q.limit())
	if q.Offset > 0 {
		b = b.Offset(uint64(q.Offset))
	}
	return b.ToSql()
}

func (t *Table[T]) Get(ctx context.Context, id int64) (T, error) {
	return t.GetBy(ctx, "id", id)
}

// GetBy fetches one row by any readable column, e.g. slug.
func (t *Table[T]) GetBy(ctx context.Context, column string, value any) (T, error) {
	var row T
	if !t.hasColumn(column) {
		return row, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.spec.Name, column)
	}

	query, args, err := psql.Select(t.spec.Columns...).
		From(t.spec.Name).
		Where(sq.Eq{column: value}).
		Limit(1).
		ToSql()
	if err != nil {
		return row, err
	}

	err = sqlx.GetContext(ctx, t.db, &row, query, args...)
	return row, translate(err)
}

func (t *Table[T]) Insert(ctx context.Context, fields map[string]any) (T, error) {
	var row T
	if len(fields) == 0 {
		return row, ErrNoFields
	}
	if err := t.checkWritable(fields); err != nil {
		return row, err
	}

	query, args, err := psql.Insert(t.spec.Name).
		SetMap(fields).
		Suffix(t.returning()).
		ToSql()
	if err != nil {
		return row, err
	}

	err = sqlx.GetContext(ctx, t.db, &row, query, args...)
	return row, translate(err)
}

// Update writes only the given fields. An empty field set returns the
// current row.
func (t *Table[T]) Update(ctx context.Context, id int64, fields map[string]any) (T, error) {
	if len(fields) == 0 {
		return t.Get(ctx, id)
	}

	var row T
	query, args, err := t.updateQuery(id, fields)
	if err != nil {
		return row, err
	}

	err = sqlx.GetContext(ctx, t.db, &row, query, args...)
	return row, translate(err)
}

func (t *Table[T]) updateQuery(id int64, fields map[string]any) (string, []any, error) {
	if err := t.checkWritable(fields); err != nil {
		return "", nil, err
	}

	b := psql.Update(t.spec.Name).SetMap(fields)
	if t.spec.Touch {
		b = b.Set("updated_at", sq.Expr("NOW()"))
	}
	return b.Where(sq.Eq{"id": id}).Suffix(t.returning()).ToSql()
}

// Upsert inserts fields or, on a conflict over the conflict columns,
// overwrites the update columns.
func (t *Table[T]) Upsert(ctx context.Context, fields map[string]any, conflict, update []string) (T, error) {
	var row T
	if len(fields) == 0 {
		return row, ErrNoFields
	}
	if err := t.checkWritable(fields); err != nil {
		return row, err
	}

	sets := make([]string, 0, len(update)+1)
	for _, col := range update {
		sets = append(sets, col+" = EXCLUDED."+col)
	}
	if t.spec.Touch {
		sets = append(sets, "updated_at = NOW()")
	}
	suffix := fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s %s",
		strings.Join(conflict, ", "), strings.Join(sets, ", "), t.returning())

	query, args, err := psql.Insert(t.spec.Name).SetMap(fields).Suffix(suffix).ToSql()
	if err != nil {
		return row, err
	}

	err = sqlx.GetContext(ctx, t.db, &row, query, args...)
	return row, translate(err)
}

func (t *Table[T]) Delete(ctx context.Context, id int64) error {
	query, args, err := psql.Delete(t.spec.Name).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseFilter(kind FilterKind, raw string) (any, error) {
	switch kind {
	case FilterInt:
		return strconv.ParseInt(raw, 10, 64)
	case FilterBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

// StampOnce is an update value that sets a timestamp column to NOW() only
// when it is still NULL.
func StampOnce(column string) sq.Sqlizer {
	return sq.Expr("COALESCE(" + column + ", NOW())")
}
