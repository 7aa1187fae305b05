// Package schema concentra os modelos persistidos e o mapeamento bidirecional
// entre o formato do cliente (camelCase, JSON local) e as colunas remotas
// (snake_case). Cada entidade tem exatamente um Mapping.
package schema

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column liga um campo do modelo a uma coluna remota.
type Column[T any] struct {
	Field string
	Name  string
	// Get devolve o valor a ser gravado (nil para NULL).
	Get func(*T) any
	// Ptr devolve o destino de Scan.
	Ptr       func(*T) any
	Key       bool
	Immutable bool
}

// Mapping descreve uma entidade: tabela, colunas e ordenação padrão.
type Mapping[T any] struct {
	Entity  string
	Table   string
	OrderBy string

	columns []Column[T]
	byField map[string]int
	byName  map[string]int
	key     int
}

// NewMapping valida e indexa as colunas. Entra em pânico com definição inválida.
func NewMapping[T any](entity, table, orderBy string, cols ...Column[T]) *Mapping[T] {
	m := &Mapping[T]{
		Entity:  entity,
		Table:   table,
		OrderBy: orderBy,
		columns: cols,
		byField: make(map[string]int, len(cols)),
		byName:  make(map[string]int, len(cols)),
		key:     -1,
	}

	for i, col := range cols {
		if _, dup := m.byField[col.Field]; dup {
			panic(fmt.Sprintf("schema: campo duplicado %s.%s", entity, col.Field))
		}
		if _, dup := m.byName[col.Name]; dup {
			panic(fmt.Sprintf("schema: coluna duplicada %s.%s", table, col.Name))
		}
		m.byField[col.Field] = i
		m.byName[col.Name] = i
		if col.Key {
			if m.key >= 0 {
				panic("schema: mais de uma chave em " + entity)
			}
			m.key = i
		}
	}
	if m.key < 0 {
		panic("schema: chave ausente em " + entity)
	}
	if _, ok := m.byName[orderBy]; !ok {
		panic("schema: coluna de ordenação desconhecida em " + entity)
	}
	return m
}

// Columns devolve as colunas na ordem declarada.
func (m *Mapping[T]) Columns() []Column[T] {
	return m.columns
}

// ColumnNames devolve os nomes remotos na ordem declarada.
func (m *Mapping[T]) ColumnNames() []string {
	names := make([]string, len(m.columns))
	for i, col := range m.columns {
		names[i] = col.Name
	}
	return names
}

// Column traduz um campo camelCase para a coluna correspondente.
func (m *Mapping[T]) Column(field string) (Column[T], bool) {
	i, ok := m.byField[field]
	if !ok {
		return Column[T]{}, false
	}
	return m.columns[i], true
}

// ByName localiza a coluna pelo nome remoto.
func (m *Mapping[T]) ByName(name string) (Column[T], bool) {
	i, ok := m.byName[name]
	if !ok {
		return Column[T]{}, false
	}
	return m.columns[i], true
}

// KeyColumn devolve a coluna chave.
func (m *Mapping[T]) KeyColumn() Column[T] {
	return m.columns[m.key]
}

// ID lê a chave do registro.
func (m *Mapping[T]) ID(e *T) string {
	v, _ := normalize(m.KeyColumn().Get(e))
	return v
}

// SetID grava a chave do registro.
func (m *Mapping[T]) SetID(e *T, id string) {
	if p, ok := m.KeyColumn().Ptr(e).(*string); ok {
		*p = id
	}
}

// Values devolve os valores na ordem das colunas.
func (m *Mapping[T]) Values(e *T) []any {
	out := make([]any, len(m.columns))
	for i, col := range m.columns {
		out[i] = col.Get(e)
	}
	return out
}

// ScanTargets devolve os destinos de Scan na ordem das colunas.
func (m *Mapping[T]) ScanTargets(e *T) []any {
	out := make([]any, len(m.columns))
	for i, col := range m.columns {
		out[i] = col.Ptr(e)
	}
	return out
}

// ToRow converte o registro para o formato de linha remota.
func (m *Mapping[T]) ToRow(e *T) map[string]any {
	row := make(map[string]any, len(m.columns))
	for _, col := range m.columns {
		row[col.Name] = col.Get(e)
	}
	return row
}

// FromRow converte uma linha remota (snake_case) para o modelo.
// Colunas desconhecidas são ignoradas.
func (m *Mapping[T]) FromRow(row map[string]any) (T, error) {
	var out T
	shaped := make(map[string]any, len(row))
	for name, val := range row {
		col, ok := m.ByName(name)
		if !ok {
			continue
		}
		shaped[col.Field] = val
	}
	raw, err := json.Marshal(shaped)
	if err != nil {
		return out, fmt.Errorf("schema %s: %w", m.Entity, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("schema %s: %w", m.Entity, err)
	}
	return out, nil
}

// Compare ordena dois registros pela coluna OrderBy, em ordem crescente como o
// ORDER BY remoto. NULL vem por último.
func (m *Mapping[T]) Compare(a, b *T) int {
	col := m.columns[m.byName[m.OrderBy]]
	return compareValues(col.Get(a), col.Get(b))
}

func compareValues(a, b any) int {
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb)
		}
	}
	switch x := a.(type) {
	case int:
		if y, ok := b.(int); ok {
			return cmp.Compare(x, y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	}
	sa, okA := normalize(a)
	sb, okB := normalize(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return strings.Compare(sa, sb)
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

// Filter restringe listagens por igualdade de campo.
type Filter struct {
	Field string
	Value any
	Fold  bool
}

// Eq cria filtro de igualdade exata.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// EqFold cria filtro de igualdade sem diferenciar maiúsculas.
func EqFold(field, value string) Filter {
	return Filter{Field: field, Value: value, Fold: true}
}

// Match avalia os filtros em memória, com a mesma semântica da consulta remota.
func (m *Mapping[T]) Match(e *T, filters []Filter) (bool, error) {
	for _, f := range filters {
		col, ok := m.Column(f.Field)
		if !ok {
			return false, fmt.Errorf("schema %s: campo desconhecido %q", m.Entity, f.Field)
		}

		got, gotSet := normalize(col.Get(e))
		want, wantSet := normalize(f.Value)
		if !wantSet {
			if gotSet {
				return false, nil
			}
			continue
		}
		if !gotSet {
			return false, nil
		}
		if f.Fold {
			if !strings.EqualFold(got, want) {
				return false, nil
			}
			continue
		}
		if got != want {
			return false, nil
		}
	}
	return true, nil
}

// normalize converte valores de coluna para comparação textual.
// O segundo retorno é false para NULL.
func normalize(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case *string:
		if val == nil {
			return "", false
		}
		return *val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), true
	case *time.Time:
		if val == nil {
			return "", false
		}
		return val.UTC().Format(time.RFC3339Nano), true
	default:
		return fmt.Sprint(val), true
	}
}
