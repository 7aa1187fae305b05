// Package store implementa a API de entidades sobre duas fontes: o banco
// remoto (pgx) e o armazenamento local. A fonte de cada chamada vem da decisão
// fixada em link; não há fallback silencioso nem mistura de resultados.
package store

import (
	"context"
	"errors"

	"github.com/monitorasaude/api/internal/schema"
)

var (
	// ErrNotFound indica registro inexistente.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrConflict indica violação de unicidade ou referência.
	ErrConflict = errors.New("registro em conflito")
)

// ConflictError carrega a restrição violada.
type ConflictError struct {
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Constraint == "" {
		return ErrConflict.Error()
	}
	return ErrConflict.Error() + " (" + e.Constraint + ")"
}

func (e *ConflictError) Unwrap() []error {
	return []error{ErrConflict, e.Err}
}

// ConstraintOf devolve a restrição violada, se houver.
func ConstraintOf(err error) string {
	var c *ConflictError
	if errors.As(err, &c) {
		return c.Constraint
	}
	return ""
}

// Backend é uma fonte de dados para uma entidade.
type Backend[T any] interface {
	List(ctx context.Context, filters []schema.Filter) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, e *T) error
	Update(ctx context.Context, e *T) error
	Upsert(ctx context.Context, e *T) error
	Modify(ctx context.Context, id string, fn func(*T) error) (T, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, filters []schema.Filter) (int, error)
}
