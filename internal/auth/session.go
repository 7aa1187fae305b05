package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/monitorasaude/api/internal/util"
)

const (
	RoleDoctor   = "medico"
	RolePatient  = "paciente"
	RoleHospital = "hospital"
	RoleAdmin    = "admin"
)

// ErrSessionNotFound indica sessão inexistente, expirada ou encerrada.
var ErrSessionNotFound = errors.New("sessão não encontrada")

// Session é o usuário autenticado de uma requisição. Login cria, logout destrói.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Is informa se a sessão possui um dos papéis.
func (s Session) Is(roles ...string) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// SessionStore persiste sessões e tokens de uso único.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	PutToken(ctx context.Context, purpose, hash, subject string, ttl time.Duration) error
	ConsumeToken(ctx context.Context, purpose, hash string) (string, error)
}

// Sessions emite e resolve sessões autenticadas.
type Sessions struct {
	store SessionStore
	jwt   *JWTManager
	ttl   time.Duration
}

// NewSessions cria o gerenciador de sessões.
func NewSessions(store SessionStore, jwt *JWTManager, ttl time.Duration) *Sessions {
	return &Sessions{store: store, jwt: jwt, ttl: ttl}
}

// Issue abre uma sessão e devolve o token de acesso.
func (m *Sessions) Issue(ctx context.Context, subject, role, email, name string) (Session, string, error) {
	now := time.Now().UTC()
	s := Session{
		ID:        util.NewID(),
		Subject:   subject,
		Role:      role,
		Email:     email,
		Name:      name,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, "", fmt.Errorf("salvar sessão: %w", err)
	}
	token, _, err := m.jwt.GenerateAccessToken(s)
	if err != nil {
		return Session{}, "", err
	}
	return s, token, nil
}

// Resolve valida o token e carrega a sessão ativa.
func (m *Sessions) Resolve(ctx context.Context, token string) (Session, error) {
	claims, err := m.jwt.ParseAndValidate(token)
	if err != nil {
		return Session{}, err
	}
	s, err := m.store.Get(ctx, claims.SessionID())
	if err != nil {
		return Session{}, err
	}
	if s.Subject != claims.Subject || time.Now().After(s.ExpiresAt) {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// Refresh emite um novo token de acesso para a sessão.
func (m *Sessions) Refresh(s Session) (string, error) {
	token, _, err := m.jwt.GenerateAccessToken(s)
	return token, err
}

// End encerra a sessão.
func (m *Sessions) End(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// IssueToken gera token de uso único e guarda apenas o hash.
func (m *Sessions) IssueToken(ctx context.Context, purpose, subject string, ttl time.Duration) (string, error) {
	raw, hashed, err := GenerateToken()
	if err != nil {
		return "", err
	}
	if err := m.store.PutToken(ctx, purpose, hashed, subject, ttl); err != nil {
		return "", err
	}
	return raw, nil
}

// ConsumeToken valida e invalida o token, devolvendo o dono.
func (m *Sessions) ConsumeToken(ctx context.Context, purpose, raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidToken
	}
	return m.store.ConsumeToken(ctx, purpose, HashToken(raw))
}

// RedisSessionStore guarda sessões no Redis com expiração nativa.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore cria o store sobre um cliente existente.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(id string) string {
	return "monitora:session:" + id
}

func tokenKey(purpose, hash string) string {
	return fmt.Sprintf("monitora:token:%s:%s", purpose, hash)
}

func (r *RedisSessionStore) Save(ctx context.Context, s Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionNotFound
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(s.ID), raw, ttl).Err()
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

func (r *RedisSessionStore) PutToken(ctx context.Context, purpose, hash, subject string, ttl time.Duration) error {
	return r.client.Set(ctx, tokenKey(purpose, hash), subject, ttl).Err()
}

func (r *RedisSessionStore) ConsumeToken(ctx context.Context, purpose, hash string) (string, error) {
	subject, err := r.client.GetDel(ctx, tokenKey(purpose, hash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	return subject, nil
}

type memoryToken struct {
	subject   string
	expiresAt time.Time
}

// MemorySessionStore mantém sessões no processo. Usado sem REDIS_URL e em testes.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	tokens   map[string]memoryToken
	now      func() time.Time
}

// NewMemorySessionStore cria o store em memória.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]Session),
		tokens:   make(map[string]memoryToken),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if m.now().After(s.ExpiresAt) {
		delete(m.sessions, id)
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) PutToken(_ context.Context, purpose, hash, subject string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenKey(purpose, hash)] = memoryToken{subject: subject, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessionStore) ConsumeToken(_ context.Context, purpose, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tokenKey(purpose, hash)
	tok, ok := m.tokens[key]
	if !ok {
		return "", ErrInvalidToken
	}
	delete(m.tokens, key)
	if m.now().After(tok.expiresAt) {
		return "", ErrInvalidToken
	}
	return tok.subject, nil
}

type sessionCtxKey struct{}

// WithSession injeta a sessão no contexto.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFrom recupera a sessão do contexto.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(Session)
	return s, ok
}
