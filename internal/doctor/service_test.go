package doctor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/monitorasaude/api/internal/account"
	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/mail"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/store/storetest"
)

type hospitals map[string]bool

func (h hospitals) Exists(_ context.Context, id string) (bool, error) {
	return h[id], nil
}

type fixture struct {
	svc      *Service
	patients *store.Store[schema.Patient]
}

func newFixture(env *storetest.Env) fixture {
	users := storetest.Open(env, schema.Users)
	patients := storetest.Open(env, schema.Patients)
	sessions := auth.NewSessions(auth.NewMemorySessionStore(), auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute), time.Hour)
	accounts := account.NewService(users, storetest.Open(env, schema.Admins), sessions, mail.LogSender{}, account.Options{})
	return fixture{
		svc:      NewService(users, patients, accounts, hospitals{"h1": true, "h2": true}),
		patients: patients,
	}
}

func input(email, crm string) CreateInput {
	return CreateInput{Email: email, Password: "segredo123", Name: "Dra. Clara", CRM: crm, CRMState: "sp", Specialty: "Cardiologia"}
}

func TestDeleteRefusedWithPatients(t *testing.T) {
	storetest.Both(t, func(t *testing.T, env *storetest.Env) {
		f := newFixture(env)
		ctx := context.Background()

		d, err := f.svc.Create(ctx, "h1", input("clara@example.com", "12345"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if d.CRMState != "SP" || d.HospitalID == nil || *d.HospitalID != "h1" {
			t.Fatalf("unexpected doctor %+v", d)
		}

		p := schema.Patient{Name: "Ana", Status: schema.StatusActive, DoctorID: d.ID}
		if err := f.patients.Create(ctx, &p); err != nil {
			t.Fatalf("create patient: %v", err)
		}
		if err := f.svc.Delete(ctx, d.ID); !errors.Is(err, ErrHasPatients) {
			t.Fatalf("expected ErrHasPatients, got %v", err)
		}

		if err := f.patients.Delete(ctx, p.ID); err != nil {
			t.Fatalf("delete patient: %v", err)
		}
		if err := f.svc.Delete(ctx, d.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := f.svc.Get(ctx, d.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(storetest.Local(t))
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, "nenhum", input("a@example.com", "1")); !errors.Is(err, ErrNoHospital) {
		t.Fatalf("expected ErrNoHospital, got %v", err)
	}
	if _, err := f.svc.Create(ctx, "h1", input("a@example.com", "1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Create(ctx, "h2", input("b@example.com", "1")); !errors.Is(err, ErrDuplicateCRM) {
		t.Fatalf("expected duplicate CRM, got %v", err)
	}
	in := input("c@example.com", "1")
	in.CRMState = "RJ"
	if _, err := f.svc.Create(ctx, "h2", in); err != nil {
		t.Fatalf("same CRM in another state must be accepted: %v", err)
	}
}

func TestListFiltersAndFindByCRM(t *testing.T) {
	f := newFixture(storetest.Local(t))
	ctx := context.Background()

	a, _ := f.svc.Create(ctx, "h1", input("a@example.com", "1"))
	b := input("b@example.com", "2")
	b.Specialty = "Pediatria"
	if _, err := f.svc.Create(ctx, "h2", b); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := f.svc.List(ctx, Filter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("list: %d %v", len(all), err)
	}
	byHospital, _ := f.svc.List(ctx, Filter{HospitalID: "h1"})
	if len(byHospital) != 1 || byHospital[0].ID != a.ID {
		t.Fatalf("unexpected hospital filter result %+v", byHospital)
	}
	bySpecialty, _ := f.svc.List(ctx, Filter{Specialty: "pediatria"})
	if len(bySpecialty) != 1 || bySpecialty[0].Specialty != "Pediatria" {
		t.Fatalf("unexpected specialty filter result %+v", bySpecialty)
	}

	found, err := f.svc.FindByCRM(ctx, "1", "sp")
	if err != nil || found.ID != a.ID {
		t.Fatalf("find by crm: %+v %v", found, err)
	}
}

func TestHandlerPermissions(t *testing.T) {
	f := newFixture(storetest.Local(t))
	ctx := context.Background()
	d, err := f.svc.Create(ctx, "h1", input("clara@example.com", "12345"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

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

	session = auth.Session{ID: "s1", Subject: "h2", Role: auth.RoleHospital}
	if rr := do(http.MethodDelete, "/doctors/"+d.ID, ""); rr.Code != http.StatusForbidden {
		t.Fatalf("other hospital must not delete, got %d", rr.Code)
	}
	if rr := do(http.MethodPut, "/doctors/"+d.ID, `{"specialty":"Neurologia"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("other hospital must not update, got %d", rr.Code)
	}

	session = auth.Session{ID: "s2", Subject: d.ID, Role: auth.RoleDoctor}
	rr := do(http.MethodPut, "/doctors/"+d.ID, `{"specialty":"Neurologia"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Neurologia") {
		t.Fatalf("doctor must update self, got %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(http.MethodPost, "/doctors", `{}`); rr.Code != http.StatusForbidden {
		t.Fatalf("doctor must not create doctors, got %d", rr.Code)
	}

	session = auth.Session{ID: "s3", Subject: "h1", Role: auth.RoleHospital}
	rr = do(http.MethodPost, "/doctors", `{"email":"novo@example.com","password":"segredo123","name":"Dr. Novo","crm":"999","crmState":"MG"}`)
	if rr.Code != http.StatusCreated || strings.Contains(rr.Body.String(), "passwordHash") {
		t.Fatalf("expected 201, got %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(http.MethodDelete, "/doctors/"+d.ID, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("owning hospital must delete, got %d %s", rr.Code, rr.Body.String())
	}
}
