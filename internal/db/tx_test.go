package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	committed   bool
	rolledBack  bool
	rollbackErr error
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return f.rollbackErr
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithTx(t *testing.T) {
	boom := errors.New("boom")

	t.Run("commit", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{}}
		if err := WithTx(context.Background(), b, func(pgx.Tx) error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !b.tx.committed || b.tx.rolledBack {
			t.Fatalf("expected commit only: %+v", b.tx)
		}
	})

	t.Run("fn error rolls back", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{rollbackErr: errors.New("conexão perdida")}}
		err := WithTx(context.Background(), b, func(pgx.Tx) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if b.tx.committed || !b.tx.rolledBack {
			t.Fatalf("expected rollback only: %+v", b.tx)
		}
		if err.Error() == boom.Error() {
			t.Fatal("rollback failure must be reported")
		}
	})

	t.Run("begin error", func(t *testing.T) {
		b := &fakeBeginner{err: boom}
		if err := WithTx(context.Background(), b, func(pgx.Tx) error { return nil }); !errors.Is(err, boom) {
			t.Fatalf("expected wrapped begin error, got %v", err)
		}
	})

	t.Run("panic rolls back", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{}}
		defer func() {
			if recover() == nil {
				t.Fatal("panic must propagate")
			}
			if !b.tx.rolledBack {
				t.Fatal("expected rollback on panic")
			}
		}()
		_ = WithTx(context.Background(), b, func(pgx.Tx) error { panic("falha") })
	})
}
