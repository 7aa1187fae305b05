package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/monitorasaude/api/internal/schema"
)

func TestSelectSQL(t *testing.T) {
	q, args, err := selectSQL(schema.Users, []schema.Filter{
		schema.EqFold("email", "Ana@Example.com"),
		schema.Eq("profession", schema.ProfessionDoctor),
		schema.Eq("hospitalId", nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `WHERE lower("email") = lower($1) AND "profession" = $2 AND "hospital_id" IS NULL ORDER BY "created_at"`
	if !strings.HasSuffix(q, want) {
		t.Fatalf("unexpected sql %q", q)
	}
	if !strings.HasPrefix(q, `SELECT "id", "email", "password_hash"`) || !strings.Contains(q, `FROM "users"`) {
		t.Fatalf("unexpected projection %q", q)
	}
	if len(args) != 2 || args[0] != "Ana@Example.com" {
		t.Fatalf("unexpected args %v", args)
	}

	if _, _, err := selectSQL(schema.Users, []schema.Filter{schema.Eq("senha", "x")}); err == nil {
		t.Fatal("unknown field must fail")
	}
}

func TestWriteSQL(t *testing.T) {
	ins := insertSQL(schema.Sharing)
	if ins != `INSERT INTO "doctor_patient_sharing" ("id", "patient_id", "doctor_id", "shared_at", "is_active", "revoked_at") VALUES ($1, $2, $3, $4, $5, $6)` {
		t.Fatalf("unexpected insert %q", ins)
	}

	up := upsertSQL(schema.PersonalDataSet)
	if !strings.Contains(up, `ON CONFLICT ("user_id") DO UPDATE SET "full_name" = EXCLUDED."full_name"`) {
		t.Fatalf("unexpected upsert %q", up)
	}

	p := schema.Patient{ID: "p1", Name: "Ana"}
	q, args := updateSQL(schema.Patients, &p)
	if strings.Contains(q, `"created_at" =`) || strings.Contains(q, `SET "id"`) {
		t.Fatalf("immutable columns must not be updated: %q", q)
	}
	if !strings.HasSuffix(q, `WHERE "id" = $11`) || len(args) != 11 || args[10] != "p1" {
		t.Fatalf("unexpected update %q %v", q, args)
	}

	if deleteSQL(schema.Patients) != `DELETE FROM "patients" WHERE "id" = $1` {
		t.Fatal("unexpected delete")
	}

	count, cargs, err := countSQL(schema.Patients, []schema.Filter{schema.Eq("doctorId", "d1")})
	if err != nil || count != `SELECT count(*) FROM "patients" WHERE "doctor_id" = $1` || len(cargs) != 1 {
		t.Fatalf("unexpected count %q %v", count, err)
	}
}

func TestMapError(t *testing.T) {
	if !errors.Is(mapError(pgx.ErrNoRows), ErrNotFound) {
		t.Fatal("no rows must map to ErrNotFound")
	}
	err := mapError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	if !errors.Is(err, ErrConflict) || ConstraintOf(err) != "users_email_key" {
		t.Fatalf("unexpected mapping %v", err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatal("original error must stay reachable")
	}
	transient := &pgconn.PgError{Code: "08006"}
	if mapError(transient) != error(transient) {
		t.Fatal("other errors pass through")
	}
}
