package sharing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/store/storetest"
)

type fixture struct {
	svc     *Service
	shares  *store.Store[schema.SharedData]
	patient schema.User
	doctor  schema.User
	clock   *time.Time
}

func newFixture(t *testing.T, env *storetest.Env) fixture {
	t.Helper()
	ctx := context.Background()
	users := storetest.Open(env, schema.Users)
	shares := storetest.Open(env, schema.Sharing)

	patient := schema.User{Email: "ana@example.com", Profession: schema.ProfessionPatient, FullName: "Ana"}
	doctor := schema.User{Email: "d1@example.com", Profession: schema.ProfessionDoctor, FullName: "Dr. Bruno", CRM: "1", CRMState: "SP"}
	for _, u := range []*schema.User{&patient, &doctor} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(shares, users)
	svc.now = func() time.Time { return clock }
	return fixture{svc: svc, shares: shares, patient: patient, doctor: doctor, clock: &clock}
}

func TestShareIsIdempotent(t *testing.T) {
	storetest.Both(t, func(t *testing.T, env *storetest.Env) {
		f := newFixture(t, env)
		ctx := context.Background()

		first, err := f.svc.Share(ctx, f.patient.ID, f.doctor.ID)
		if err != nil {
			t.Fatalf("share: %v", err)
		}
		*f.clock = f.clock.Add(time.Hour)
		second, err := f.svc.Share(ctx, f.patient.ID, f.doctor.ID)
		if err != nil {
			t.Fatalf("share again: %v", err)
		}
		if second.ID != first.ID || !second.SharedAt.Equal(first.SharedAt) {
			t.Fatalf("active share must be returned unchanged: %+v vs %+v", first, second)
		}
		if n, _ := f.shares.Count(ctx); n != 1 {
			t.Fatalf("expected one row, got %d", n)
		}
	})
}

func TestConcurrentShareKeepsOneRow(t *testing.T) {
	f := newFixture(t, storetest.Local(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Share(ctx, f.patient.ID, f.doctor.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("share: %v", err)
	}
	if n, _ := f.shares.Count(ctx); n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}
}

func TestRevokeThenReshare(t *testing.T) {
	storetest.Both(t, func(t *testing.T, env *storetest.Env) {
		f := newFixture(t, env)
		ctx := context.Background()

		first, err := f.svc.Share(ctx, f.patient.ID, f.doctor.ID)
		if err != nil {
			t.Fatalf("share: %v", err)
		}
		*f.clock = f.clock.Add(time.Hour)
		if err := f.svc.Revoke(ctx, f.patient.ID, f.doctor.ID); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		shared, _ := f.svc.IsShared(ctx, f.patient.ID, f.doctor.ID)
		if shared {
			t.Fatal("pair must not be shared after revoke")
		}
		doctors, _ := f.svc.ListForDoctor(ctx, f.doctor.ID)
		if len(doctors) != 0 {
			t.Fatalf("revoked share must not be listed for doctor: %+v", doctors)
		}
		history, _ := f.svc.ListForPatient(ctx, f.patient.ID)
		if len(history) != 1 || history[0].IsActive || history[0].RevokedAt == nil {
			t.Fatalf("unexpected patient history %+v", history)
		}

		*f.clock = f.clock.Add(time.Hour)
		again, err := f.svc.Share(ctx, f.patient.ID, f.doctor.ID)
		if err != nil {
			t.Fatalf("reshare: %v", err)
		}
		if again.ID != first.ID || !again.IsActive || again.RevokedAt != nil {
			t.Fatalf("reshare must reactivate the same row: %+v", again)
		}
		if !again.SharedAt.Equal(*f.clock) {
			t.Fatalf("sharedAt must be reset, got %v", again.SharedAt)
		}
		if n, _ := f.shares.Count(ctx); n != 1 {
			t.Fatalf("expected one row, got %d", n)
		}
	})
}

func TestRevokeNeverSharedIsNoop(t *testing.T) {
	storetest.Both(t, func(t *testing.T, env *storetest.Env) {
		f := newFixture(t, env)
		if err := f.svc.Revoke(context.Background(), f.patient.ID, f.doctor.ID); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if n, _ := f.shares.Count(context.Background()); n != 0 {
			t.Fatalf("revoke must not create rows, got %d", n)
		}
	})
}

func TestShareValidatesParties(t *testing.T) {
	f := newFixture(t, storetest.Local(t))
	ctx := context.Background()

	if _, err := f.svc.Share(ctx, f.patient.ID, "inexistente"); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
	if _, err := f.svc.Share(ctx, f.doctor.ID, f.doctor.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	if _, err := f.svc.Share(ctx, f.patient.ID, f.patient.ID); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("patient must not be accepted as doctor, got %v", err)
	}
}

func TestHandlerFlow(t *testing.T) {
	f := newFixture(t, storetest.Local(t))
	router := chi.NewRouter()
	var session auth.Session
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	})
	NewHandler(f.svc).RegisterRoutes(router)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rr
	}

	session = auth.Session{ID: "s1", Subject: f.doctor.ID, Role: auth.RoleDoctor}
	if rr := do(http.MethodPost, "/sharing", `{"doctorId":"`+f.doctor.ID+`"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("doctor must not share, got %d", rr.Code)
	}

	session = auth.Session{ID: "s2", Subject: f.patient.ID, Role: auth.RolePatient}
	if rr := do(http.MethodPost, "/sharing", `{"doctorId":"`+f.doctor.ID+`"}`); rr.Code != http.StatusOK {
		t.Fatalf("share: %d %s", rr.Code, rr.Body.String())
	}

	session = auth.Session{ID: "s1", Subject: f.doctor.ID, Role: auth.RoleDoctor}
	rr := do(http.MethodGet, "/sharing", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"patientName":"Ana"`) {
		t.Fatalf("doctor list: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(http.MethodDelete, "/sharing/patients/"+f.patient.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("doctor drop: %d", rr.Code)
	}

	session = auth.Session{ID: "s2", Subject: f.patient.ID, Role: auth.RolePatient}
	if rr := do(http.MethodDelete, "/sharing/"+f.doctor.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("revoke already revoked must succeed, got %d", rr.Code)
	}
}
