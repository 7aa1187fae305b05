package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/monitorasaude/api/internal/db"
	"github.com/monitorasaude/api/internal/schema"
)

// Querier é o subconjunto de *pgxpool.Pool usado pelo backend remoto.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGBackend persiste uma entidade no Postgres remoto.
type PGBackend[T any] struct {
	q Querier
	m *schema.Mapping[T]
}

// NewPGBackend cria o backend remoto da entidade.
func NewPGBackend[T any](q Querier, m *schema.Mapping[T]) *PGBackend[T] {
	return &PGBackend[T]{q: q, m: m}
}

func (b *PGBackend[T]) List(ctx context.Context, filters []schema.Filter) ([]T, error) {
	q, args, err := selectSQL(b.m, filters)
	if err != nil {
		return nil, err
	}
	rows, err := b.q.Query(ctx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var e T
		if err := rows.Scan(b.m.ScanTargets(&e)...); err != nil {
			return nil, mapError(err)
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err())
}

func (b *PGBackend[T]) Get(ctx context.Context, id string) (T, error) {
	var e T
	err := b.q.QueryRow(ctx, selectByKeySQL(b.m), id).Scan(b.m.ScanTargets(&e)...)
	return e, mapError(err)
}

func (b *PGBackend[T]) Insert(ctx context.Context, e *T) error {
	_, err := b.q.Exec(ctx, insertSQL(b.m), b.m.Values(e)...)
	return mapError(err)
}

func (b *PGBackend[T]) Update(ctx context.Context, e *T) error {
	q, args := updateSQL(b.m, e)
	tag, err := b.q.Exec(ctx, q, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *PGBackend[T]) Upsert(ctx context.Context, e *T) error {
	_, err := b.q.Exec(ctx, upsertSQL(b.m), b.m.Values(e)...)
	return mapError(err)
}

// Modify lê com FOR UPDATE, aplica fn e grava na mesma transação.
func (b *PGBackend[T]) Modify(ctx context.Context, id string, fn func(*T) error) (T, error) {
	var out T
	err := db.WithTx(ctx, b.q, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, selectByKeySQL(b.m)+" FOR UPDATE", id).Scan(b.m.ScanTargets(&out)...); err != nil {
			return err
		}
		if err := fn(&out); err != nil {
			return err
		}
		b.m.SetID(&out, id)
		q, args := updateSQL(b.m, &out)
		_, err := tx.Exec(ctx, q, args...)
		return err
	})
	return out, mapError(err)
}

func (b *PGBackend[T]) Delete(ctx context.Context, id string) error {
	tag, err := b.q.Exec(ctx, deleteSQL(b.m), id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *PGBackend[T]) Count(ctx context.Context, filters []schema.Filter) (int, error) {
	q, args, err := countSQL(b.m, filters)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := b.q.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

// mapError traduz erros do pgx para os sentinelas do pacote.
// Demais erros seguem intactos para a classificação em link.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return &ConflictError{Constraint: pgErr.ConstraintName, Err: err}
		}
	}
	return err
}
