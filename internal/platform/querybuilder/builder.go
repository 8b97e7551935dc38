// Package querybuilder writes the handful of Postgres statements the
// dataset layer needs, with positional placeholders and checked
// identifiers.
package querybuilder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether name is a plain or schema qualified SQL
// identifier. Table names come from configuration and are interpolated, so
// callers must check them first.
func ValidIdentifier(name string) bool {
	return identifierRegex.MatchString(name)
}

type sqlWriter struct {
	buf  strings.Builder
	args []any
}

func (w *sqlWriter) write(parts ...string) {
	for _, p := range parts {
		w.buf.WriteString(p)
	}
}

func (w *sqlWriter) bind(value any) {
	w.args = append(w.args, value)
	w.buf.WriteString("$")
	w.buf.WriteString(strconv.Itoa(len(w.args)))
}

type Condition interface {
	writeSQL(w *sqlWriter)
}

type eqCondition struct {
	column string
	value  any
}

func Eq(column string, value any) Condition {
	return eqCondition{column: column, value: value}
}

func (c eqCondition) writeSQL(w *sqlWriter) {
	w.write(c.column, " = ")
	w.bind(c.value)
}

type inCondition[T any] struct {
	column string
	values []T
}

// In matches column against values. An empty list matches nothing.
func In[T any](column string, values []T) Condition {
	return inCondition[T]{column: column, values: append([]T(nil), values...)}
}

func (c inCondition[T]) writeSQL(w *sqlWriter) {
	if len(c.values) == 0 {
		w.write("FALSE")
		return
	}
	w.write(c.column, " IN (")
	for i, v := range c.values {
		if i > 0 {
			w.write(", ")
		}
		w.bind(v)
	}
	w.write(")")
}

type SelectBuilder struct {
	columns []string
	table   string
	where   []Condition
	orderBy []string
	limit   int
}

func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: append([]string(nil), columns...)}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

// Where adds conditions joined with AND.
func (b *SelectBuilder) Where(conditions ...Condition) *SelectBuilder {
	b.where = append(b.where, conditions...)
	return b
}

func (b *SelectBuilder) OrderBy(parts ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, parts...)
	return b
}

func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

func (b *SelectBuilder) ToSQL() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("select columns are required")
	}
	if !ValidIdentifier(b.table) {
		return "", nil, fmt.Errorf("invalid select table %q", b.table)
	}

	var w sqlWriter
	w.write("SELECT ", strings.Join(b.columns, ", "), " FROM ", b.table)
	for i, c := range b.where {
		if i == 0 {
			w.write(" WHERE ")
		} else {
			w.write(" AND ")
		}
		c.writeSQL(&w)
	}
	if len(b.orderBy) > 0 {
		w.write(" ORDER BY ", strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		w.write(" LIMIT ", strconv.Itoa(b.limit))
	}
	return w.buf.String(), w.args, nil
}

type InsertBuilder struct {
	table    string
	columns  []string
	rows     [][]any
	conflict []string
	updates  []string
	touched  []string
}

func InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

// Values appends one row. Call it once per row for multi-row inserts.
func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.rows = append(b.rows, append([]any(nil), values...))
	return b
}

// Rows is the number of rows added so far.
func (b *InsertBuilder) Rows() int {
	return len(b.rows)
}

// OnConflict turns the insert into an upsert on the given unique key.
func (b *InsertBuilder) OnConflict(target ...string) *InsertBuilder {
	b.conflict = append([]string(nil), target...)
	return b
}

// DoUpdate overwrites columns with the incoming values on conflict.
func (b *InsertBuilder) DoUpdate(columns ...string) *InsertBuilder {
	b.updates = append(b.updates, columns...)
	return b
}

// Touch sets columns to NOW() on conflict.
func (b *InsertBuilder) Touch(columns ...string) *InsertBuilder {
	b.touched = append(b.touched, columns...)
	return b
}

func (b *InsertBuilder) ToSQL() (string, []any, error) {
	if !ValidIdentifier(b.table) {
		return "", nil, fmt.Errorf("invalid insert table %q", b.table)
	}
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("insert columns are required")
	}
	if len(b.rows) == 0 {
		return "", nil, fmt.Errorf("insert values are required")
	}
	if len(b.conflict) == 0 && len(b.updates)+len(b.touched) > 0 {
		return "", nil, fmt.Errorf("conflict target is required for an upsert")
	}

	var w sqlWriter
	w.args = make([]any, 0, len(b.rows)*len(b.columns))
	w.write("INSERT INTO ", b.table, " (", strings.Join(b.columns, ", "), ") VALUES ")
	for rowIdx, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, fmt.Errorf("insert row %d has %d values, expected %d", rowIdx, len(row), len(b.columns))
		}
		if rowIdx > 0 {
			w.write(", ")
		}
		w.write("(")
		for colIdx, value := range row {
			if colIdx > 0 {
				w.write(", ")
			}
			w.bind(value)
		}
		w.write(")")
	}

	if len(b.conflict) > 0 {
		w.write(" ON CONFLICT (", strings.Join(b.conflict, ", "), ")")
		sets := make([]string, 0, len(b.updates)+len(b.touched))
		for _, col := range b.updates {
			sets = append(sets, col+" = EXCLUDED."+col)
		}
		for _, col := range b.touched {
			sets = append(sets, col+" = NOW()")
		}
		if len(sets) == 0 {
			w.write(" DO NOTHING")
		} else {
			w.write(" DO UPDATE SET ", strings.Join(sets, ", "))
		}
	}
	return w.buf.String(), w.args, nil
}
