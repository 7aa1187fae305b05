package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("segredo123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if strings.Contains(hash, "segredo123") || !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format %q", hash)
	}
	ok, err := Verify("segredo123", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	ok, _ = Verify("outra", hash)
	if ok {
		t.Fatal("wrong password must not match")
	}
	if VerifyMissing("qualquer") {
		t.Fatal("missing account must never verify")
	}
}

func TestNeedsRehash(t *testing.T) {
	current, err := Hash("segredo123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	legacy, err := argon2id.CreateHash("segredo123", &argon2id.Params{
		Memory: 32 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("legacy hash: %v", err)
	}

	cases := []struct {
		name string
		hash string
		want bool
	}{
		{"current params", current, false},
		{"legacy params", legacy, true},
		{"garbage", "nao-e-hash", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsRehash(tc.hash); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager(secret, time.Minute)
	s := Session{ID: "s1", Subject: "u1", Role: RoleDoctor, ExpiresAt: time.Now().Add(time.Hour)}

	token, exp, err := m.GenerateAccessToken(s)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(exp) > time.Minute+time.Second {
		t.Fatalf("expiration beyond access ttl: %v", exp)
	}

	claims, err := m.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != RoleDoctor || claims.SessionID() != "s1" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := NewJWTManager("ffffffffffffffffffffffffffffffff", time.Minute)
	if _, err := other.ParseAndValidate(token); err == nil {
		t.Fatal("token signed with another secret must fail")
	}

	orphan, _, err := m.GenerateAccessToken(Session{Subject: "u1", Role: RoleDoctor})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.ParseAndValidate(orphan); err == nil {
		t.Fatal("token without session id must fail")
	}
}

func TestJWTCappedBySessionExpiry(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	end := time.Now().Add(10 * time.Minute).UTC()
	_, exp, err := m.GenerateAccessToken(Session{ID: "s1", Subject: "u1", ExpiresAt: end})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !exp.Equal(end) {
		t.Fatalf("expected %v, got %v", end, exp)
	}
}

func sessionStores(t *testing.T) map[string]SessionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]SessionStore{
		"memory": NewMemorySessionStore(),
		"redis":  NewRedisSessionStore(client),
	}
}

func TestSessionLifecycle(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := NewSessions(store, NewJWTManager(secret, time.Minute), time.Hour)

			s, token, err := m.Issue(ctx, "u1", RolePatient, "ana@example.com", "Ana")
			if err != nil {
				t.Fatalf("issue: %v", err)
			}

			got, err := m.Resolve(ctx, token)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got.ID != s.ID || got.Subject != "u1" || !got.Is(RolePatient) {
				t.Fatalf("unexpected session %+v", got)
			}

			if err := m.End(ctx, s.ID); err != nil {
				t.Fatalf("end: %v", err)
			}
			if _, err := m.Resolve(ctx, token); !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
			}
		})
	}
}

func TestOneTimeTokens(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := NewSessions(store, NewJWTManager(secret, time.Minute), time.Hour)

			raw, err := m.IssueToken(ctx, "reset", "u1", time.Hour)
			if err != nil {
				t.Fatalf("issue token: %v", err)
			}
			subject, err := m.ConsumeToken(ctx, "reset", raw)
			if err != nil || subject != "u1" {
				t.Fatalf("expected u1, got %q %v", subject, err)
			}
			if _, err := m.ConsumeToken(ctx, "reset", raw); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("token must be single use, got %v", err)
			}
			if _, err := m.ConsumeToken(ctx, "reset", ""); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("empty token must be invalid, got %v", err)
			}
		})
	}
}

func TestMemoryTokenExpires(t *testing.T) {
	store := NewMemorySessionStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.PutToken(ctx, "reset", "h", "u1", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.ConsumeToken(ctx, "reset", "h"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestSessionContext(t *testing.T) {
	if _, ok := SessionFrom(context.Background()); ok {
		t.Fatal("empty context must not carry a session")
	}
	ctx := WithSession(context.Background(), Session{ID: "s1"})
	if s, ok := SessionFrom(ctx); !ok || s.ID != "s1" {
		t.Fatalf("unexpected session %+v", s)
	}
}
