package hospital

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/util"
)

var (
	ErrHasDoctors         = errors.New("hospital possui médicos vinculados")
	ErrDuplicateEmail     = errors.New("email de hospital já cadastrado")
	ErrInvalidCredentials = errors.New("email ou senha inválidos")
)

// Input cria ou altera um hospital.
type Input struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// View é a forma pública do hospital.
type View struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func toView(h schema.Hospital) View {
	return View{ID: h.ID, Name: h.Name, Email: h.Email, CreatedAt: h.CreatedAt}
}

// Service implementa a API de hospitais.
type Service struct {
	hospitals *store.Store[schema.Hospital]
	users     *store.Store[schema.User]
	sessions  *auth.Sessions
	mu        sync.Mutex
}

func NewService(hospitals *store.Store[schema.Hospital], users *store.Store[schema.User], sessions *auth.Sessions) *Service {
	return &Service{hospitals: hospitals, users: users, sessions: sessions}
}

// List devolve todos os hospitais.
func (s *Service) List(ctx context.Context) ([]View, error) {
	items, err := s.hospitals.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(items))
	for _, h := range items {
		out = append(out, toView(h))
	}
	return out, nil
}

// Get devolve um hospital.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	h, err := s.hospitals.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return toView(h), nil
}

// Exists informa se o hospital existe.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.hospitals.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Create cadastra um hospital com senha própria.
func (s *Service) Create(ctx context.Context, in Input) (View, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = util.NormalizeEmail(in.Email)
	if err := util.RequireString(in.Name, "nome"); err != nil {
		return View{}, err
	}
	if err := util.ValidateEmail(in.Email); err != nil {
		return View{}, err
	}
	if err := util.ValidatePassword(in.Password); err != nil {
		return View{}, err
	}
	hash, err := auth.Hash(in.Password)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUnique(ctx, "", in.Email); err != nil {
		return View{}, err
	}
	h := schema.Hospital{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.hospitals.Create(ctx, &h); err != nil {
		if store.ConstraintOf(err) == "hospitals_email_key" {
			return View{}, ErrDuplicateEmail
		}
		return View{}, err
	}
	return toView(h), nil
}

func (s *Service) ensureUnique(ctx context.Context, selfID, email string) error {
	existing, err := s.hospitals.FindOne(ctx, schema.EqFold("email", email))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return ErrDuplicateEmail
	}
	return nil
}

// Update altera nome, email e opcionalmente a senha.
func (s *Service) Update(ctx context.Context, id string, in Input) (View, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = util.NormalizeEmail(in.Email)
	if in.Email != "" {
		if err := util.ValidateEmail(in.Email); err != nil {
			return View{}, err
		}
	}
	var hash string
	if in.Password != "" {
		if err := util.ValidatePassword(in.Password); err != nil {
			return View{}, err
		}
		var err error
		if hash, err = auth.Hash(in.Password); err != nil {
			return View{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Email != "" {
		if err := s.ensureUnique(ctx, id, in.Email); err != nil {
			return View{}, err
		}
	}
	h, err := s.hospitals.Update(ctx, id, func(h *schema.Hospital) error {
		if in.Name != "" {
			h.Name = in.Name
		}
		if in.Email != "" {
			h.Email = in.Email
		}
		if hash != "" {
			h.PasswordHash = hash
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return toView(h), nil
}

// Delete remove o hospital se nenhum médico estiver vinculado. Vale nos dois modos.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.hospitals.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.users.Count(ctx, schema.Eq("hospitalId", id))
	if err != nil {
		return fmt.Errorf("verificar médicos: %w", err)
	}
	if n > 0 {
		return ErrHasDoctors
	}
	if err := s.hospitals.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrHasDoctors
		}
		return err
	}
	return nil
}

// Login autentica o hospital.
func (s *Service) Login(ctx context.Context, email, password string) (string, auth.Session, View, error) {
	email = util.NormalizeEmail(email)
	h, err := s.hospitals.FindOne(ctx, schema.EqFold("email", email))
	if errors.Is(err, store.ErrNotFound) {
		auth.VerifyMissing(password)
		return "", auth.Session{}, View{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", auth.Session{}, View{}, err
	}
	if ok, err := auth.Verify(password, h.PasswordHash); err != nil || !ok {
		return "", auth.Session{}, View{}, ErrInvalidCredentials
	}
	session, token, err := s.sessions.Issue(ctx, h.ID, auth.RoleHospital, h.Email, h.Name)
	if err != nil {
		return "", auth.Session{}, View{}, err
	}
	return token, session, toView(h), nil
}
