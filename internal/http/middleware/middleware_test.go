package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/monitorasaude/api/internal/auth"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestOriginMatcher(t *testing.T) {
	match := OriginMatcher([]string{"https://app.monitorasaude.com.br", "*.hospital.com.br", " "})

	cases := []struct {
		origin string
		want   bool
	}{
		{"https://app.monitorasaude.com.br", true},
		{"https://sul.hospital.com.br", true},
		{"https://a.sul.hospital.com.br", true},
		{"https://hospital.com.br", false},
		{"http://app.monitorasaude.com.br", false},
		{"https://app.monitorasaude.com.br:8443", false},
		{"https://evilhospital.com.br", false},
		{"https://outro.com.br", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := match(tc.origin); got != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.origin, tc.want, got)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.monitorasaude.com.br"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/patients", nil)
	req.Header.Set("Origin", "https://app.monitorasaude.com.br")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://app.monitorasaude.com.br" {
		t.Fatal("expected origin echoed")
	}
	if rr.Header().Get("Access-Control-Max-Age") == "" || rr.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("preflight headers missing: %v", rr.Header())
	}

	foreign := httptest.NewRequest(http.MethodOptions, "/patients", nil)
	foreign.Header.Set("Origin", "https://outro.com.br")
	foreign.Header.Set("Access-Control-Request-Method", "POST")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, foreign)
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin must not be echoed: %d %v", rr.Code, rr.Header())
	}
}

func TestRequireRoles(t *testing.T) {
	h := RequireRoles(auth.RoleDoctor, auth.RoleHospital)(ok)

	cases := []struct {
		name    string
		session *auth.Session
		status  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"patient", &auth.Session{Subject: "p1", Role: auth.RolePatient}, http.StatusForbidden},
		{"doctor", &auth.Session{Subject: "d1", Role: auth.RoleDoctor}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.session != nil {
				req = req.WithContext(auth.WithSession(req.Context(), *tc.session))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestIPRateLimit(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	h := IPRateLimit(limiter)(ok)

	var last *httptest.ResponseRecorder
	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
	if last.Header().Get("Retry-After") != "1" {
		t.Fatalf("unexpected Retry-After %q", last.Header().Get("Retry-After"))
	}
	if limiter.Len() != 1 {
		t.Fatalf("expected one key, got %d", limiter.Len())
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	if rr.Code != http.StatusOK {
		t.Fatalf("other client must not share the bucket, got %d", rr.Code)
	}
}

func TestRateLimiterSweepsIdleKeys(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	limiter.reserve("a")
	limiter.reserve("b")
	if limiter.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", limiter.Len())
	}

	now = now.Add(limiterIdle + time.Minute)
	limiter.reserve("c")
	if limiter.Len() != 1 {
		t.Fatalf("idle keys must expire, got %d", limiter.Len())
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
