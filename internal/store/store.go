package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/monitorasaude/api/internal/link"
	"github.com/monitorasaude/api/internal/localstore"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/util"
)

// Store é a API de uma entidade. Cada chamada usa a fonte fixada pelo link.
type Store[T any] struct {
	m      *schema.Mapping[T]
	link   *link.Link
	remote Backend[T]
	local  Backend[T]
	outbox *Outbox
	now    func() time.Time
}

// New monta a API sobre backends explícitos. remote pode ser nil.
func New[T any](m *schema.Mapping[T], ln *link.Link, remote, local Backend[T], outbox *Outbox) *Store[T] {
	return &Store[T]{
		m:      m,
		link:   ln,
		remote: remote,
		local:  local,
		outbox: outbox,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Deps agrupa o que toda entidade precisa.
type Deps struct {
	Link     *link.Link
	KV       localstore.KV
	DB       Querier
	Registry *Registry
}

// Open cria a API da entidade com backend local, remoto (se houver DB) e registro para sincronização.
func Open[T any](d Deps, m *schema.Mapping[T]) *Store[T] {
	var remote Backend[T]
	if d.DB != nil {
		remote = NewPGBackend(d.DB, m)
	}
	var outbox *Outbox
	if d.Registry != nil {
		outbox = d.Registry.outbox
	}
	s := New[T](m, d.Link, remote, NewLocalBackend(d.KV, m), outbox)
	if d.Registry != nil {
		d.Registry.Register(s)
	}
	return s
}

// Mapping devolve o mapeamento da entidade.
func (s *Store[T]) Mapping() *schema.Mapping[T] {
	return s.m
}

// route resolve a fonte da chamada.
func (s *Store[T]) route(ctx context.Context) (link.Mode, error) {
	mode := s.link.Mode(ctx)
	switch mode {
	case link.ModeRemote:
		if s.remote == nil {
			return mode, link.ErrNotConfigured
		}
		return mode, nil
	case link.ModeLocal:
		return mode, nil
	default:
		if err := ctx.Err(); err != nil {
			return mode, err
		}
		return mode, link.ErrRemoteUnavailable
	}
}

// List devolve os registros que atendem os filtros.
func (s *Store[T]) List(ctx context.Context, filters ...schema.Filter) ([]T, error) {
	mode, err := s.route(ctx)
	if err != nil {
		return nil, err
	}
	if mode == link.ModeLocal {
		return s.local.List(ctx, filters)
	}
	var out []T
	err = s.link.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.remote.List(ctx, filters)
		return err
	})
	return out, err
}

// Get busca pelo identificador.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	mode, err := s.route(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if mode == link.ModeLocal {
		return s.local.Get(ctx, id)
	}
	var out T
	err = s.link.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.remote.Get(ctx, id)
		return err
	})
	return out, err
}

// FindOne devolve o primeiro registro que atende os filtros.
func (s *Store[T]) FindOne(ctx context.Context, filters ...schema.Filter) (T, error) {
	var zero T
	items, err := s.List(ctx, filters...)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrNotFound
	}
	return items[0], nil
}

// Exists informa se há registro que atende os filtros.
func (s *Store[T]) Exists(ctx context.Context, filters ...schema.Filter) (bool, error) {
	n, err := s.Count(ctx, filters...)
	return n > 0, err
}

// Count conta os registros que atendem os filtros.
func (s *Store[T]) Count(ctx context.Context, filters ...schema.Filter) (int, error) {
	mode, err := s.route(ctx)
	if err != nil {
		return 0, err
	}
	if mode == link.ModeLocal {
		return s.local.Count(ctx, filters)
	}
	var n int
	err = s.link.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.remote.Count(ctx, filters)
		return err
	})
	return n, err
}

// Create grava um novo registro. ID e datas são atribuídos antes de escolher a fonte.
func (s *Store[T]) Create(ctx context.Context, e *T) error {
	defer s.link.HoldWrites()()

	if s.m.ID(e) == "" {
		s.m.SetID(e, util.NewID())
	}
	s.touch(e, true)

	mode, err := s.route(ctx)
	if err != nil {
		return err
	}
	if mode == link.ModeLocal {
		if err := s.local.Insert(ctx, e); err != nil {
			return err
		}
		return s.journal(ctx, OpUpsert, s.m.ID(e), e)
	}
	return s.link.Do(ctx, func(ctx context.Context) error {
		return s.remote.Insert(ctx, e)
	})
}

// Put grava o registro substituindo o existente com a mesma chave.
func (s *Store[T]) Put(ctx context.Context, e *T) error {
	defer s.link.HoldWrites()()

	if s.m.ID(e) == "" {
		s.m.SetID(e, util.NewID())
	}
	s.touch(e, true)

	mode, err := s.route(ctx)
	if err != nil {
		return err
	}
	if mode == link.ModeLocal {
		if err := s.local.Upsert(ctx, e); err != nil {
			return err
		}
		return s.journal(ctx, OpUpsert, s.m.ID(e), e)
	}
	return s.link.Do(ctx, func(ctx context.Context) error {
		return s.remote.Upsert(ctx, e)
	})
}

// Update aplica fn ao registro atual e grava o resultado.
func (s *Store[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, error) {
	defer s.link.HoldWrites()()

	var out T
	mode, err := s.route(ctx)
	if err != nil {
		return out, err
	}

	apply := func(e *T) error {
		if err := fn(e); err != nil {
			return err
		}
		s.touch(e, false)
		return nil
	}

	if mode == link.ModeLocal {
		out, err = s.local.Modify(ctx, id, apply)
		if err != nil {
			return out, err
		}
		return out, s.journal(ctx, OpUpsert, id, &out)
	}
	err = s.link.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.remote.Modify(ctx, id, apply)
		return err
	})
	return out, err
}

// Delete remove o registro.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	defer s.link.HoldWrites()()

	mode, err := s.route(ctx)
	if err != nil {
		return err
	}
	if mode == link.ModeLocal {
		if err := s.local.Delete(ctx, id); err != nil {
			return err
		}
		return s.journal(ctx, OpDelete, id, nil)
	}
	return s.link.Do(ctx, func(ctx context.Context) error {
		return s.remote.Delete(ctx, id)
	})
}

// DeleteWhere remove todos os registros que atendem os filtros.
func (s *Store[T]) DeleteWhere(ctx context.Context, filters ...schema.Filter) (int, error) {
	items, err := s.List(ctx, filters...)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := range items {
		if err := s.Delete(ctx, s.m.ID(&items[i])); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// journal registra a escrita local para envio posterior ao remoto.
func (s *Store[T]) journal(ctx context.Context, op Op, id string, e *T) error {
	if s.outbox == nil || !s.link.Configured() {
		return nil
	}
	var payload any
	if e != nil {
		payload = e
	}
	if err := s.outbox.Append(ctx, s.m.Entity, op, id, payload); err != nil {
		return fmt.Errorf("registrar escrita local: %w", err)
	}
	return nil
}

func (s *Store[T]) touch(e *T, created bool) {
	now := s.now()
	if created {
		if col, ok := s.m.Column("createdAt"); ok {
			if p, ok := col.Ptr(e).(*time.Time); ok && p.IsZero() {
				*p = now
			}
		}
	}
	if col, ok := s.m.Column("updatedAt"); ok {
		if p, ok := col.Ptr(e).(*time.Time); ok {
			*p = now
		}
	}
}

// Replay aplica uma entrada da fila diretamente no remoto.
func (s *Store[T]) Replay(ctx context.Context, e Entry) error {
	if s.remote == nil {
		return link.ErrNotConfigured
	}
	switch e.Op {
	case OpDelete:
		err := s.remote.Delete(ctx, e.RecordID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	case OpUpsert:
		var rec T
		if err := json.Unmarshal(e.Payload, &rec); err != nil {
			return err
		}
		return s.remote.Upsert(ctx, &rec)
	default:
		return fmt.Errorf("operação desconhecida %q", e.Op)
	}
}

// Entity devolve o nome da entidade na fila.
func (s *Store[T]) Entity() string {
	return s.m.Entity
}
