package store

import (
	"context"
	"slices"

	"github.com/monitorasaude/api/internal/localstore"
	"github.com/monitorasaude/api/internal/schema"
)

// LocalBackend guarda a entidade numa coleção local, filtrando em memória.
type LocalBackend[T any] struct {
	c *localstore.Collection[T]
	m *schema.Mapping[T]
}

// NewLocalBackend cria o backend local na chave monitora:<tabela>.
func NewLocalBackend[T any](kv localstore.KV, m *schema.Mapping[T]) *LocalBackend[T] {
	return &LocalBackend[T]{c: localstore.NewCollection[T](kv, localstore.Key(m.Table)), m: m}
}

func (b *LocalBackend[T]) List(ctx context.Context, filters []schema.Filter) ([]T, error) {
	items, err := b.c.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := []T{}
	for i := range items {
		ok, err := b.m.Match(&items[i], filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, items[i])
		}
	}
	slices.SortStableFunc(out, func(x, y T) int { return b.m.Compare(&x, &y) })
	return out, nil
}

func (b *LocalBackend[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	items, err := b.c.Load(ctx)
	if err != nil {
		return zero, err
	}
	if i := b.index(items, id); i >= 0 {
		return items[i], nil
	}
	return zero, ErrNotFound
}

func (b *LocalBackend[T]) Insert(ctx context.Context, e *T) error {
	id := b.m.ID(e)
	return b.c.Mutate(ctx, func(items []T) ([]T, error) {
		if b.index(items, id) >= 0 {
			return nil, &ConflictError{Constraint: b.m.Table + "_pkey"}
		}
		return append(items, *e), nil
	})
}

func (b *LocalBackend[T]) Update(ctx context.Context, e *T) error {
	id := b.m.ID(e)
	return b.c.Mutate(ctx, func(items []T) ([]T, error) {
		i := b.index(items, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		items[i] = *e
		return items, nil
	})
}

func (b *LocalBackend[T]) Upsert(ctx context.Context, e *T) error {
	id := b.m.ID(e)
	return b.c.Mutate(ctx, func(items []T) ([]T, error) {
		if i := b.index(items, id); i >= 0 {
			items[i] = *e
			return items, nil
		}
		return append(items, *e), nil
	})
}

func (b *LocalBackend[T]) Modify(ctx context.Context, id string, fn func(*T) error) (T, error) {
	var out T
	err := b.c.Mutate(ctx, func(items []T) ([]T, error) {
		i := b.index(items, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		current := items[i]
		if err := fn(&current); err != nil {
			return nil, err
		}
		b.m.SetID(&current, id)
		items[i] = current
		out = current
		return items, nil
	})
	return out, err
}

func (b *LocalBackend[T]) Delete(ctx context.Context, id string) error {
	return b.c.Mutate(ctx, func(items []T) ([]T, error) {
		i := b.index(items, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(items[:i], items[i+1:]...), nil
	})
}

func (b *LocalBackend[T]) Count(ctx context.Context, filters []schema.Filter) (int, error) {
	items, err := b.List(ctx, filters)
	return len(items), err
}

func (b *LocalBackend[T]) index(items []T, id string) int {
	for i := range items {
		if b.m.ID(&items[i]) == id {
			return i
		}
	}
	return -1
}
