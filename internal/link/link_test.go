package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type fakePinger struct {
	mu    sync.Mutex
	err   error
	calls int32
}

func (f *fakePinger) Ping(context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakePinger) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

var testOpts = Options{
	HealthTimeout: time.Second,
	RetryAttempts: 3,
	RetryInitial:  time.Millisecond,
	RetryMax:      2 * time.Millisecond,
}

var errConn = &pgconn.PgError{Code: "08006", Message: "connection failure"}

func TestModeIsDecidedOnce(t *testing.T) {
	p := &fakePinger{}
	l := New(p, testOpts)

	if st := l.Status(); st.Mode != ModeUnknown || !st.Configured {
		t.Fatalf("unexpected initial status %+v", st)
	}
	for i := 0; i < 5; i++ {
		if got := l.Mode(context.Background()); got != ModeRemote {
			t.Fatalf("expected remote, got %s", got)
		}
	}
	if n := atomic.LoadInt32(&p.calls); n != 1 {
		t.Fatalf("expected one health check, got %d", n)
	}
}

// ctxPinger só falha quando o contexto recebido já terminou.
type ctxPinger struct{}

func (ctxPinger) Ping(ctx context.Context) error { return ctx.Err() }

func TestCancelledRequestDoesNotPinLocal(t *testing.T) {
	l := New(ctxPinger{}, testOpts)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	if got := l.Mode(cancelled); got != ModeRemote {
		t.Fatalf("expected remote despite cancelled request, got %s", got)
	}
	if got := l.Mode(context.Background()); got != ModeRemote {
		t.Fatalf("expected remote, got %s", got)
	}
	if st := l.Status(); st.LastError != "" {
		t.Fatalf("cancellation must not be recorded as outage: %+v", st)
	}
}

func TestPromoteRefusesWhilePending(t *testing.T) {
	l := New(&fakePinger{}, testOpts)
	l.SetPending(1)

	if err := l.Promote(context.Background(), func(context.Context) error { return nil }); err == nil {
		t.Fatal("promote must fail while the queue is not empty")
	}
	if got := l.Status().Mode; got == ModeRemote {
		t.Fatalf("mode must not flip with pending writes, got %s", got)
	}
}

func TestConcurrentModeSharesHealthCheck(t *testing.T) {
	p := &fakePinger{}
	l := New(p, testOpts)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Mode(context.Background())
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&p.calls); n != 1 {
		t.Fatalf("expected one health check, got %d", n)
	}
}

func TestFailedHealthCheckPinsLocal(t *testing.T) {
	p := &fakePinger{err: errors.New("dial tcp: refused")}
	l := New(p, testOpts)

	if got := l.Mode(context.Background()); got != ModeLocal {
		t.Fatalf("expected local, got %s", got)
	}
	p.set(nil)
	if got := l.Mode(context.Background()); got != ModeLocal {
		t.Fatal("local decision must hold until promoted")
	}
	if st := l.Status(); st.LastError == "" || st.CheckedAt == nil {
		t.Fatalf("expected recorded failure, got %+v", st)
	}
}

func TestPendingQueueKeepsLocalUntilPromote(t *testing.T) {
	l := New(&fakePinger{}, testOpts)
	l.SetPending(2)
	ctx := context.Background()

	if got := l.Mode(ctx); got != ModeLocal {
		t.Fatalf("pending writes must keep the session local, got %s", got)
	}
	if err := l.Promote(ctx, func(context.Context) error {
		l.SetPending(0)
		return nil
	}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if got := l.Mode(ctx); got != ModeRemote {
		t.Fatalf("expected remote after promote, got %s", got)
	}
}

func TestNotConfigured(t *testing.T) {
	l := New(nil, testOpts)
	if got := l.Mode(context.Background()); got != ModeLocal {
		t.Fatalf("expected local, got %s", got)
	}
	err := l.Do(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if ErrNotConfigured.Error() != "banco remoto não configurado" {
		t.Fatal("unexpected message")
	}
	if st := l.Status(); st.Configured {
		t.Fatal("status must report not configured")
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	l := New(&fakePinger{}, testOpts)
	l.Mode(context.Background())

	calls := 0
	err := l.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errConn
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if l.Status().Mode != ModeRemote {
		t.Fatal("successful retry must keep remote mode")
	}
}

func TestDoTerminalErrorIsNotRetried(t *testing.T) {
	l := New(&fakePinger{}, testOpts)
	l.Mode(context.Background())

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	calls := 0
	err := l.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("insert: %w", unique)
	})

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if l.Status().Mode != ModeRemote {
		t.Fatal("terminal error must not invalidate the decision")
	}
}

func TestDoExhaustionInvalidates(t *testing.T) {
	p := &fakePinger{}
	l := New(p, testOpts)
	l.Mode(context.Background())
	updates, cancel := l.Subscribe()
	defer cancel()

	calls := 0
	err := l.Do(context.Background(), func(context.Context) error {
		calls++
		return errConn
	})
	if !errors.Is(err, ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
	if calls != testOpts.RetryAttempts {
		t.Fatalf("expected %d attempts, got %d", testOpts.RetryAttempts, calls)
	}
	if st := l.Status(); st.Mode != ModeUnknown || st.LastError == "" {
		t.Fatalf("expected invalidated status, got %+v", st)
	}

	select {
	case st := <-updates:
		if st.Mode != ModeUnknown {
			t.Fatalf("unexpected notification %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a status notification")
	}

	p.set(errors.New("down"))
	if got := l.Mode(context.Background()); got != ModeLocal {
		t.Fatalf("expected new decision local, got %s", got)
	}
	if n := atomic.LoadInt32(&p.calls); n != 2 {
		t.Fatalf("expected a second health check, got %d", n)
	}
}

func TestPromoteRequiresFlush(t *testing.T) {
	p := &fakePinger{err: errors.New("down")}
	l := New(p, testOpts)
	l.Mode(context.Background())

	p.set(nil)
	flushErr := errors.New("flush falhou")
	if err := l.Promote(context.Background(), func(context.Context) error { return flushErr }); !errors.Is(err, flushErr) {
		t.Fatalf("expected flush error, got %v", err)
	}
	if l.Status().Mode != ModeLocal {
		t.Fatal("failed flush must keep local mode")
	}

	flushed := false
	if err := l.Promote(context.Background(), func(context.Context) error { flushed = true; return nil }); err != nil {
		t.Fatalf("promote: %v", err)
	}
	st := l.Status()
	if !flushed || st.Mode != ModeRemote || st.LastSyncAt == nil {
		t.Fatalf("expected remote after flush, got %+v", st)
	}
}

func TestForceLocalAndResume(t *testing.T) {
	l := New(&fakePinger{}, testOpts)
	l.Mode(context.Background())

	l.ForceLocal("demonstração")
	if got := l.Mode(context.Background()); got != ModeLocal {
		t.Fatalf("expected local, got %s", got)
	}
	if err := l.Promote(context.Background(), nil); err == nil {
		t.Fatal("promote must be refused while forced")
	}

	l.Resume()
	if got := l.Mode(context.Background()); got != ModeRemote {
		t.Fatalf("expected remote after resume, got %s", got)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection exception", &pgconn.PgError{Code: "08001"}, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, false},
		{"permission denied", &pgconn.PgError{Code: "42501"}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"plain", errors.New("validação"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
