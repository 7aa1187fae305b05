// Package storetest monta ambientes de dados para testes: modo local com o
// remoto fora do ar, ou modo remoto emulado por um segundo armazenamento.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/monitorasaude/api/internal/link"
	"github.com/monitorasaude/api/internal/localstore"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
)

// Pinger controla a saúde simulada do remoto.
type Pinger struct {
	mu  sync.Mutex
	err error
}

func (p *Pinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Set altera o resultado dos próximos pings.
func (p *Pinger) Set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Env agrupa link, fila e os dois armazenamentos.
type Env struct {
	Pinger   *Pinger
	Link     *link.Link
	LocalKV  localstore.KV
	RemoteKV localstore.KV
	Registry *store.Registry
}

// Local cria um ambiente cujo remoto está indisponível.
func Local(t testing.TB) *Env {
	t.Helper()
	return newEnv(errors.New("dial tcp: connection refused"))
}

// Remote cria um ambiente com remoto saudável.
func Remote(t testing.TB) *Env {
	t.Helper()
	return newEnv(nil)
}

func newEnv(pingErr error) *Env {
	p := &Pinger{err: pingErr}
	env := &Env{
		Pinger:   p,
		LocalKV:  localstore.NewMemoryKV(),
		RemoteKV: localstore.NewMemoryKV(),
	}
	env.Link = link.New(p, link.Options{
		HealthTimeout: time.Second,
		RetryAttempts: 2,
		RetryInitial:  time.Millisecond,
		RetryMax:      time.Millisecond,
	})
	outbox := store.NewOutbox(env.LocalKV, env.Link.SetPending)
	env.Registry = store.NewRegistry(outbox)
	return env
}

// Open cria a API da entidade no ambiente.
func Open[T any](env *Env, m *schema.Mapping[T]) *store.Store[T] {
	s := store.New[T](m, env.Link, store.NewLocalBackend(env.RemoteKV, m), store.NewLocalBackend(env.LocalKV, m), env.Registry.Outbox())
	env.Registry.Register(s)
	return s
}

// Both executa fn nos modos local e remoto.
func Both(t *testing.T, fn func(t *testing.T, env *Env)) {
	t.Helper()
	t.Run("local", func(t *testing.T) { fn(t, Local(t)) })
	t.Run("remote", func(t *testing.T) { fn(t, Remote(t)) })
}
