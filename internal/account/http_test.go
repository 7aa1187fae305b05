package account

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/store/storetest"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v (%s)", err, rr.Body.String())
		}
	}
	return rr, env
}

func TestRegisterAndLoginHTTP(t *testing.T) {
	svc, _ := newService(t, storetest.Local(t))
	router := chi.NewRouter()
	NewHandler(svc).RegisterPublicRoutes(router)

	body := map[string]string{"email": "ana@example.com", "password": "segredo123", "profession": "paciente", "fullName": "Ana"}
	rr, env := doJSON(t, router, http.MethodPost, "/auth/register", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if bytes.Contains(env.Data, []byte("passwordHash")) {
		t.Fatal("password hash must not leak")
	}

	rr, env = doJSON(t, router, http.MethodPost, "/auth/register", body)
	if rr.Code != http.StatusConflict || env.Error == nil || env.Error.Code != "CONFLICT" {
		t.Fatalf("expected 409 CONFLICT, got %d %s", rr.Code, rr.Body.String())
	}

	rr, env = doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{"email": "ana@example.com", "password": "errada123"})
	if rr.Code != http.StatusUnauthorized || env.Error.Code != "AUTH" {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr, env = doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{"email": "ana@example.com", "password": "segredo123"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var res struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil || res.Token == "" || res.Role != auth.RolePatient {
		t.Fatalf("unexpected login payload %s", env.Data)
	}
}

func TestRegisterValidationHTTP(t *testing.T) {
	svc, _ := newService(t, storetest.Local(t))
	router := chi.NewRouter()
	NewHandler(svc).RegisterPublicRoutes(router)

	rr, env := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{"email": "x"})
	if rr.Code != http.StatusBadRequest || env.Error.Code != "VALIDATION" {
		t.Fatalf("expected 400 VALIDATION, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestMeRequiresSession(t *testing.T) {
	svc, _ := newService(t, storetest.Local(t))
	router := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(router)

	rr, _ := doJSON(t, router, http.MethodGet, "/me", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestForgotAlwaysAccepted(t *testing.T) {
	svc, _ := newService(t, storetest.Local(t))
	router := chi.NewRouter()
	NewHandler(svc).RegisterPublicRoutes(router)

	rr, _ := doJSON(t, router, http.MethodPost, "/auth/password/forgot", map[string]string{"email": "ninguem@example.com"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
}
