package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/monitorasaude/api/internal/link"
	"github.com/monitorasaude/api/internal/localstore"
	"github.com/monitorasaude/api/internal/schema"
)

type stubPinger struct {
	mu  sync.Mutex
	err error
}

func (p *stubPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *stubPinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// flakyBackend falha as operações de escrita e leitura com err enquanto err != nil.
type flakyBackend[T any] struct {
	Backend[T]
	mu  sync.Mutex
	err error
}

func (f *flakyBackend[T]) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *flakyBackend[T]) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *flakyBackend[T]) List(ctx context.Context, filters []schema.Filter) ([]T, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Backend.List(ctx, filters)
}

func (f *flakyBackend[T]) Insert(ctx context.Context, e *T) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Backend.Insert(ctx, e)
}

func (f *flakyBackend[T]) Upsert(ctx context.Context, e *T) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Backend.Upsert(ctx, e)
}

type fixture struct {
	pinger   *stubPinger
	link     *link.Link
	remote   *flakyBackend[schema.Patient]
	local    *LocalBackend[schema.Patient]
	outbox   *Outbox
	registry *Registry
	patients *Store[schema.Patient]
	pending  int
}

func newFixture(t *testing.T, remoteUp bool) *fixture {
	t.Helper()
	f := &fixture{pinger: &stubPinger{}}
	if !remoteUp {
		f.pinger.err = errors.New("dial tcp: connection refused")
	}
	f.link = link.New(f.pinger, link.Options{
		HealthTimeout: time.Second,
		RetryAttempts: 2,
		RetryInitial:  time.Millisecond,
		RetryMax:      time.Millisecond,
	})

	f.remote = &flakyBackend[schema.Patient]{Backend: NewLocalBackend(localstore.NewMemoryKV(), schema.Patients)}
	localKV := localstore.NewMemoryKV()
	f.local = NewLocalBackend(localKV, schema.Patients)
	f.outbox = NewOutbox(localKV, func(n int) { f.pending = n })
	f.registry = NewRegistry(f.outbox)
	f.patients = New[schema.Patient](schema.Patients, f.link, f.remote, f.local, f.outbox)
	f.registry.Register(f.patients)
	return f
}

func TestLocalRoundTripExampleScenario(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	p := schema.Patient{Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	if err := f.patients.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatalf("id and timestamps must be assigned, got %+v", p)
	}

	list, err := f.patients.List(ctx, schema.Eq("doctorId", "d1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Ana" || list[0].ID != p.ID {
		t.Fatalf("expected exactly Ana with id %s, got %+v", p.ID, list)
	}

	got, err := f.patients.Get(ctx, p.ID)
	if err != nil || got.ID != p.ID || !got.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("get mismatch: %+v %v", got, err)
	}

	remote, _ := f.remote.Backend.List(ctx, nil)
	if len(remote) != 0 {
		t.Fatal("local write must not reach the remote backend directly")
	}
	if f.pending != 1 {
		t.Fatalf("expected one pending outbox entry, got %d", f.pending)
	}
}

func TestRemoteRoundTripIsIndependent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	p := schema.Patient{ID: "p1", Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	if err := f.patients.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := f.patients.List(ctx, schema.Eq("doctorId", "d1"))
	if err != nil || len(list) != 1 || list[0].ID != "p1" {
		t.Fatalf("expected p1 on remote path, got %+v %v", list, err)
	}

	local, _ := f.local.List(ctx, nil)
	if len(local) != 0 {
		t.Fatal("remote write must not be mirrored locally")
	}
	if n, _ := f.outbox.Pending(ctx); n != 0 {
		t.Fatalf("remote writes are not journaled, got %d", n)
	}
}

func TestRemoteFailureIsSurfacedNotRedirected(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.link.Mode(ctx)

	f.remote.setErr(&pgconn.PgError{Code: "08006"})
	p := schema.Patient{Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	err := f.patients.Create(ctx, &p)
	if !errors.Is(err, link.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
	if local, _ := f.local.List(ctx, nil); len(local) != 0 {
		t.Fatal("failed remote write must not land locally")
	}
	if f.link.Status().Mode != link.ModeUnknown {
		t.Fatal("decision must be invalidated")
	}
}

func TestTerminalRemoteErrorKeepsMode(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	p := schema.Patient{ID: "p1", Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	if err := f.patients.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := p
	err := f.patients.Create(ctx, &dup)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.link.Status().Mode != link.ModeRemote {
		t.Fatal("conflict must not invalidate the decision")
	}
}

func TestUpdateAndDeleteLocal(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	p := schema.Patient{Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	if err := f.patients.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := f.patients.Update(ctx, p.ID, func(e *schema.Patient) error {
		e.Status = schema.StatusInactive
		e.ID = "outro"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != p.ID || updated.Status != schema.StatusInactive {
		t.Fatalf("unexpected update result %+v", updated)
	}

	failure := errors.New("campo inválido")
	if _, err := f.patients.Update(ctx, p.ID, func(*schema.Patient) error { return failure }); !errors.Is(err, failure) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err := f.patients.Update(ctx, "nope", func(*schema.Patient) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := f.patients.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.patients.Get(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := f.patients.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestFlushReplaysInOrderThenPromotes(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	a := schema.Patient{Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	b := schema.Patient{Name: "Bia", DoctorID: "d1", Status: schema.StatusActive}
	for _, p := range []*schema.Patient{&a, &b} {
		if err := f.patients.Create(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := f.patients.Update(ctx, a.ID, func(e *schema.Patient) error { e.Age = 40; return nil }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.patients.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	f.pinger.set(nil)
	var res FlushResult
	err := f.link.Promote(ctx, func(ctx context.Context) error {
		var err error
		res, err = f.registry.Flush(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if res.Applied != 4 || res.Rejected != 0 {
		t.Fatalf("unexpected flush result %+v", res)
	}
	if f.pending != 0 {
		t.Fatalf("outbox must be empty, got %d", f.pending)
	}

	list, err := f.patients.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID || list[0].Age != 40 {
		t.Fatalf("remote must reflect local history, got %+v", list)
	}
}

func TestWriteDuringPromoteLandsRemote(t *testing.T) {
	ctx := context.Background()
	pinger := &stubPinger{err: errors.New("dial tcp: connection refused")}
	ln := link.New(pinger, link.Options{
		HealthTimeout: time.Second,
		RetryAttempts: 1,
		RetryInitial:  time.Millisecond,
		RetryMax:      time.Millisecond,
	})
	remote := NewLocalBackend(localstore.NewMemoryKV(), schema.Patients)
	localKV := localstore.NewMemoryKV()
	outbox := NewOutbox(localKV, ln.SetPending)
	registry := NewRegistry(outbox)
	patients := New[schema.Patient](schema.Patients, ln, remote, NewLocalBackend(localKV, schema.Patients), outbox)
	registry.Register(patients)

	bia := schema.Patient{Name: "Bia", DoctorID: "d1", Status: schema.StatusActive}
	if err := patients.Create(ctx, &bia); err != nil {
		t.Fatalf("create: %v", err)
	}
	pinger.set(nil)

	flushed := make(chan struct{})
	promoted := make(chan error, 1)
	go func() {
		promoted <- ln.Promote(ctx, func(ctx context.Context) error {
			if _, err := registry.Flush(ctx); err != nil {
				return err
			}
			close(flushed)
			// janela entre o envio da fila e a troca de modo
			time.Sleep(50 * time.Millisecond)
			return nil
		})
	}()

	<-flushed
	ana := schema.Patient{Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	if err := patients.Create(ctx, &ana); err != nil {
		t.Fatalf("create during promote: %v", err)
	}
	if err := <-promoted; err != nil {
		t.Fatalf("promote: %v", err)
	}

	st := ln.Status()
	if st.Mode != link.ModeRemote || st.Pending != 0 {
		t.Fatalf("expected remote with empty queue, got %+v", st)
	}
	list, err := patients.List(ctx, schema.Eq("doctorId", "d1"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("both patients must be visible after promotion, got %+v", list)
	}
}

func TestLocalListFollowsOrderColumn(t *testing.T) {
	ctx := context.Background()
	local := NewLocalBackend(localstore.NewMemoryKV(), schema.Patients)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, p := range []schema.Patient{
		{ID: "c", Name: "Carla", DoctorID: "d1", Status: schema.StatusActive, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "a", Name: "Ana", DoctorID: "d1", Status: schema.StatusActive, CreatedAt: base},
		{ID: "b", Name: "Bia", DoctorID: "d1", Status: schema.StatusActive, CreatedAt: base.Add(time.Hour)},
	} {
		if err := local.Insert(ctx, &p); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	list, err := local.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, p := range list {
		got = append(got, p.ID)
	}
	if strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("expected created_at order, got %v", got)
	}
}

func TestFlushStopsOnTransientFailure(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	p := schema.Patient{Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	if err := f.patients.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}

	f.remote.setErr(&pgconn.PgError{Code: "57P01"})
	res, err := f.registry.Flush(ctx)
	if err == nil || res.Pending != 1 {
		t.Fatalf("expected interrupted flush, got %+v %v", res, err)
	}
	if n, _ := f.outbox.Pending(ctx); n != 1 {
		t.Fatalf("entry must stay queued, got %d", n)
	}
}

func TestFlushRejectsTerminalFailure(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	p := schema.Patient{Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	if err := f.patients.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.outbox.Append(ctx, "desconhecida", OpUpsert, "x", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	res, err := f.registry.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if res.Applied != 1 || res.Rejected != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	failed, _ := f.outbox.Failed(ctx)
	if len(failed) != 1 || failed[0].Entity != "desconhecida" || failed[0].Error == "" {
		t.Fatalf("unexpected failed entries %+v", failed)
	}
}

func TestNotConfiguredRunsLocalWithoutJournal(t *testing.T) {
	ln := link.New(nil, link.Options{})
	kv := localstore.NewMemoryKV()
	outbox := NewOutbox(kv, nil)
	s := New[schema.Patient](schema.Patients, ln, nil, NewLocalBackend(kv, schema.Patients), outbox)
	ctx := context.Background()

	p := schema.Patient{Name: "Ana", DoctorID: "d1", Status: schema.StatusActive}
	if err := s.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if n, _ := outbox.Pending(ctx); n != 0 {
		t.Fatalf("nothing to sync without remote, got %d", n)
	}
}

func TestDeleteWhereAndCount(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for _, name := range []string{"Ana", "Bia", "Caio"} {
		doctor := "d1"
		if name == "Caio" {
			doctor = "d2"
		}
		p := schema.Patient{Name: name, DoctorID: doctor, Status: schema.StatusActive}
		if err := f.patients.Create(ctx, &p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if ok, _ := f.patients.Exists(ctx, schema.Eq("doctorId", "d2")); !ok {
		t.Fatal("expected d2 patient")
	}
	removed, err := f.patients.DeleteWhere(ctx, schema.Eq("doctorId", "d1"))
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 removed, got %d %v", removed, err)
	}
	if n, _ := f.patients.Count(ctx); n != 1 {
		t.Fatalf("expected 1 remaining, got %d", n)
	}
	if _, err := f.patients.FindOne(ctx, schema.Eq("doctorId", "d1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
