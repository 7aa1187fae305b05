package account

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/mail"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/util"
)

const resetPurpose = "reset"

var (
	ErrDuplicateEmail     = errors.New("email já cadastrado")
	ErrDuplicateCRM       = errors.New("CRM já cadastrado para este estado")
	ErrInvalidCredentials = errors.New("email ou senha inválidos")
)

// Options configura o fluxo de redefinição de senha.
type Options struct {
	ResetURL string
	ResetTTL time.Duration
}

// Service concentra contas de médicos, pacientes e administradores.
type Service struct {
	users    *store.Store[schema.User]
	admins   *store.Store[schema.Admin]
	sessions *auth.Sessions
	mailer   mail.Sender
	opts     Options
	logger   zerolog.Logger

	// serializa checagem de unicidade + gravação
	createMu sync.Mutex
}

// NewService cria o serviço de contas.
func NewService(users *store.Store[schema.User], admins *store.Store[schema.Admin], sessions *auth.Sessions, mailer mail.Sender, opts Options) *Service {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	return &Service{
		users:    users,
		admins:   admins,
		sessions: sessions,
		mailer:   mailer,
		opts:     opts,
		logger:   log.With().Str("component", "account").Logger(),
	}
}

func normalizeRegister(in *RegisterInput) {
	in.Email = util.NormalizeEmail(in.Email)
	in.Profession = strings.ToLower(strings.TrimSpace(in.Profession))
	in.FullName = strings.TrimSpace(in.FullName)
	in.CRM = strings.TrimSpace(in.CRM)
	in.CRMState = strings.ToUpper(strings.TrimSpace(in.CRMState))
	in.Specialty = strings.TrimSpace(in.Specialty)
}

func validateRegister(in RegisterInput) error {
	if err := util.ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := util.ValidatePassword(in.Password); err != nil {
		return err
	}
	if err := util.RequireString(in.FullName, "nome"); err != nil {
		return err
	}
	switch in.Profession {
	case schema.ProfessionDoctor:
		if err := util.RequireString(in.CRM, "CRM"); err != nil {
			return err
		}
		if len(in.CRMState) != 2 {
			return util.Invalid("UF do CRM inválida")
		}
	case schema.ProfessionPatient:
	default:
		return util.Invalid("profissão inválida")
	}
	return nil
}

// Register cria a conta. Email é único sem diferenciar maiúsculas; CRM+UF é único entre médicos.
func (s *Service) Register(ctx context.Context, in RegisterInput) (schema.User, error) {
	normalizeRegister(&in)
	if err := validateRegister(in); err != nil {
		return schema.User{}, err
	}
	if in.Profession != schema.ProfessionDoctor {
		in.CRM, in.CRMState, in.Specialty, in.HospitalID = "", "", "", nil
	}

	hash, err := auth.Hash(in.Password)
	if err != nil {
		return schema.User{}, fmt.Errorf("hash senha: %w", err)
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if err := s.ensureUnique(ctx, "", in.Email); err != nil {
		return schema.User{}, err
	}
	if in.Profession == schema.ProfessionDoctor {
		taken, err := s.users.Exists(ctx,
			schema.Eq("profession", schema.ProfessionDoctor),
			schema.Eq("crm", in.CRM),
			schema.Eq("crmState", in.CRMState),
		)
		if err != nil {
			return schema.User{}, err
		}
		if taken {
			return schema.User{}, ErrDuplicateCRM
		}
	}

	user := schema.User{
		Email:        in.Email,
		PasswordHash: hash,
		Profession:   in.Profession,
		FullName:     in.FullName,
		CRM:          in.CRM,
		CRMState:     in.CRMState,
		Specialty:    in.Specialty,
		HospitalID:   in.HospitalID,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return schema.User{}, translateConflict(err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("profession", user.Profession).Msg("conta criada")
	return user, nil
}

func (s *Service) ensureUnique(ctx context.Context, selfID, email string) error {
	existing, err := s.users.FindOne(ctx, schema.EqFold("email", email))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return ErrDuplicateEmail
	default:
		return nil
	}
}

func translateConflict(err error) error {
	switch store.ConstraintOf(err) {
	case "users_email_key":
		return ErrDuplicateEmail
	case "users_crm_key":
		return ErrDuplicateCRM
	}
	return err
}

// Login autentica médico ou paciente e abre uma sessão.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = util.NormalizeEmail(email)
	user, err := s.users.FindOne(ctx, schema.EqFold("email", email))
	if errors.Is(err, store.ErrNotFound) {
		auth.VerifyMissing(password)
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}

	ok, err := auth.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, ErrInvalidCredentials
	}
	if auth.NeedsRehash(user.PasswordHash) {
		// falha aqui não impede o login; tenta de novo na próxima vez
		_ = s.setPassword(ctx, user.ID, password)
	}

	session, token, err := s.sessions.Issue(ctx, user.ID, user.Profession, user.Email, user.FullName)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: session.ExpiresAt, Role: session.Role, User: View(user)}, nil
}

// Logout encerra a sessão.
func (s *Service) Logout(ctx context.Context, session auth.Session) error {
	return s.sessions.End(ctx, session.ID)
}

// Me devolve o usuário da sessão.
func (s *Service) Me(ctx context.Context, userID string) (schema.User, error) {
	return s.users.Get(ctx, userID)
}

// Get devolve um usuário.
func (s *Service) Get(ctx context.Context, id string) (schema.User, error) {
	return s.users.Get(ctx, id)
}

// UpdateProfile altera nome, email e especialidade.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (schema.User, error) {
	if in.Email != nil {
		email := util.NormalizeEmail(*in.Email)
		if err := util.ValidateEmail(email); err != nil {
			return schema.User{}, err
		}
		in.Email = &email
	}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if err := util.RequireString(name, "nome"); err != nil {
			return schema.User{}, err
		}
		in.FullName = &name
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if in.Email != nil {
		if err := s.ensureUnique(ctx, userID, *in.Email); err != nil {
			return schema.User{}, err
		}
	}

	user, err := s.users.Update(ctx, userID, func(u *schema.User) error {
		if in.Email != nil {
			u.Email = *in.Email
		}
		if in.FullName != nil {
			u.FullName = *in.FullName
		}
		if in.Specialty != nil && u.IsDoctor() {
			u.Specialty = strings.TrimSpace(*in.Specialty)
		}
		return nil
	})
	if err != nil {
		return schema.User{}, translateConflict(err)
	}
	return user, nil
}

// ChangePassword troca a senha após conferir a atual.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := util.ValidatePassword(next); err != nil {
		return err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if ok, err := auth.Verify(current, user.PasswordHash); err != nil || !ok {
		return ErrInvalidCredentials
	}
	return s.setPassword(ctx, userID, next)
}

func (s *Service) setPassword(ctx context.Context, userID, password string) error {
	hash, err := auth.Hash(password)
	if err != nil {
		return err
	}
	_, err = s.users.Update(ctx, userID, func(u *schema.User) error {
		u.PasswordHash = hash
		return nil
	})
	return err
}

// RequestPasswordReset envia o link de redefinição quando o email existe.
// A resposta é a mesma para emails desconhecidos.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = util.NormalizeEmail(email)
	if err := util.ValidateEmail(email); err != nil {
		return err
	}

	user, err := s.users.FindOne(ctx, schema.EqFold("email", email))
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info().Msg("redefinição solicitada para email inexistente")
		return nil
	}
	if err != nil {
		return err
	}

	raw, err := s.sessions.IssueToken(ctx, resetPurpose, user.ID, s.opts.ResetTTL)
	if err != nil {
		return err
	}

	link := s.opts.ResetURL + "?token=" + url.QueryEscape(raw)
	msg, err := mail.PasswordResetMessage(user.Email, user.FullName, link, s.opts.ResetTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("falha ao enviar e-mail de redefinição")
	}
	return nil
}

// ResetPassword troca a senha a partir de um token válido (uso único).
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if err := util.ValidatePassword(password); err != nil {
		return err
	}
	userID, err := s.sessions.ConsumeToken(ctx, resetPurpose, token)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, userID, password); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("senha redefinida")
	return nil
}

// LoginAdmin autentica um administrador.
func (s *Service) LoginAdmin(ctx context.Context, email, password string) (LoginResult, error) {
	email = util.NormalizeEmail(email)
	admin, err := s.admins.FindOne(ctx, schema.EqFold("email", email))
	if errors.Is(err, store.ErrNotFound) {
		auth.VerifyMissing(password)
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if ok, err := auth.Verify(password, admin.PasswordHash); err != nil || !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	session, token, err := s.sessions.Issue(ctx, admin.ID, auth.RoleAdmin, admin.Email, admin.Name)
	if err != nil {
		return LoginResult{}, err
	}
	view := map[string]any{"id": admin.ID, "email": admin.Email, "name": admin.Name}
	return LoginResult{Token: token, ExpiresAt: session.ExpiresAt, Role: auth.RoleAdmin, User: view}, nil
}

// CreateAdmin cadastra um administrador (usado pela CLI).
func (s *Service) CreateAdmin(ctx context.Context, email, name, password string) (schema.Admin, error) {
	email = util.NormalizeEmail(email)
	if err := util.ValidateEmail(email); err != nil {
		return schema.Admin{}, err
	}
	if err := util.ValidatePassword(password); err != nil {
		return schema.Admin{}, err
	}
	if err := util.RequireString(name, "nome"); err != nil {
		return schema.Admin{}, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	taken, err := s.admins.Exists(ctx, schema.EqFold("email", email))
	if err != nil {
		return schema.Admin{}, err
	}
	if taken {
		return schema.Admin{}, ErrDuplicateEmail
	}
	hash, err := auth.Hash(password)
	if err != nil {
		return schema.Admin{}, err
	}
	admin := schema.Admin{Email: email, Name: strings.TrimSpace(name), PasswordHash: hash}
	if err := s.admins.Create(ctx, &admin); err != nil {
		return schema.Admin{}, err
	}
	return admin, nil
}
