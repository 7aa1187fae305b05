package store

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/monitorasaude/api/internal/schema"
)

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func columnList[T any](m *schema.Mapping[T]) string {
	names := m.ColumnNames()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}

// whereClause traduz filtros em predicados parametrizados a partir de $start.
func whereClause[T any](m *schema.Mapping[T], filters []schema.Filter, start int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	n := start
	for _, f := range filters {
		col, ok := m.Column(f.Field)
		if !ok {
			return "", nil, fmt.Errorf("store %s: campo desconhecido %q", m.Entity, f.Field)
		}
		switch {
		case f.Value == nil:
			parts = append(parts, ident(col.Name)+" IS NULL")
		case f.Fold:
			parts = append(parts, fmt.Sprintf("lower(%s) = lower($%d)", ident(col.Name), n))
			args = append(args, f.Value)
			n++
		default:
			parts = append(parts, fmt.Sprintf("%s = $%d", ident(col.Name), n))
			args = append(args, f.Value)
			n++
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func selectSQL[T any](m *schema.Mapping[T], filters []schema.Filter) (string, []any, error) {
	where, args, err := whereClause(m, filters, 1)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s", columnList(m), ident(m.Table), where, ident(m.OrderBy))
	return q, args, nil
}

func selectByKeySQL[T any](m *schema.Mapping[T]) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", columnList(m), ident(m.Table), ident(m.KeyColumn().Name))
}

func countSQL[T any](m *schema.Mapping[T], filters []schema.Filter) (string, []any, error) {
	where, args, err := whereClause(m, filters, 1)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT count(*) FROM %s%s", ident(m.Table), where), args, nil
}

func insertSQL[T any](m *schema.Mapping[T]) string {
	cols := m.Columns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ident(m.Table), columnList(m), strings.Join(placeholders, ", "))
}

func upsertSQL[T any](m *schema.Mapping[T]) string {
	var sets []string
	for _, col := range m.Columns() {
		if col.Key || col.Immutable {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident(col.Name), ident(col.Name)))
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) %s", insertSQL(m), ident(m.KeyColumn().Name), action)
}

// updateSQL grava as colunas mutáveis; a chave é o último parâmetro.
func updateSQL[T any](m *schema.Mapping[T], e *T) (string, []any) {
	var (
		sets []string
		args []any
	)
	for _, col := range m.Columns() {
		if col.Key || col.Immutable {
			continue
		}
		args = append(args, col.Get(e))
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(col.Name), len(args)))
	}
	args = append(args, m.ID(e))
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", ident(m.Table), strings.Join(sets, ", "), ident(m.KeyColumn().Name), len(args))
	return q, args
}

func deleteSQL[T any](m *schema.Mapping[T]) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1", ident(m.Table), ident(m.KeyColumn().Name))
}
