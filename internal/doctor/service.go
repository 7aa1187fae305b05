// Package doctor expõe médicos, uma projeção de users com profissão "medico".
package doctor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/monitorasaude/api/internal/account"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/util"
)

var (
	ErrHasPatients  = errors.New("médico possui pacientes vinculados")
	ErrDuplicateCRM = account.ErrDuplicateCRM
	ErrNoHospital   = errors.New("hospital não encontrado")
)

// Doctor é a visão pública do médico.
type Doctor struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	CRM        string    `json:"crm"`
	CRMState   string    `json:"crmState"`
	Specialty  string    `json:"specialty"`
	HospitalID *string   `json:"hospitalId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func fromUser(u schema.User) Doctor {
	return Doctor{
		ID:         u.ID,
		Name:       u.FullName,
		Email:      u.Email,
		CRM:        u.CRM,
		CRMState:   u.CRMState,
		Specialty:  u.Specialty,
		HospitalID: u.HospitalID,
		CreatedAt:  u.CreatedAt,
	}
}

// Filter restringe a listagem.
type Filter struct {
	HospitalID string
	Specialty  string
}

// CreateInput cadastra um médico pelo hospital.
type CreateInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	CRM       string `json:"crm"`
	CRMState  string `json:"crmState"`
	Specialty string `json:"specialty"`
}

// UpdateInput altera dados do médico.
type UpdateInput struct {
	Name      *string `json:"name"`
	Specialty *string `json:"specialty"`
}

// HospitalChecker confirma a existência de hospitais.
type HospitalChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service implementa a API de médicos.
type Service struct {
	users     *store.Store[schema.User]
	patients  *store.Store[schema.Patient]
	accounts  *account.Service
	hospitals HospitalChecker
	mu        sync.Mutex
}

func NewService(users *store.Store[schema.User], patients *store.Store[schema.Patient], accounts *account.Service, hospitals HospitalChecker) *Service {
	return &Service{users: users, patients: patients, accounts: accounts, hospitals: hospitals}
}

// List devolve médicos, opcionalmente por hospital e especialidade.
func (s *Service) List(ctx context.Context, f Filter) ([]Doctor, error) {
	filters := []schema.Filter{schema.Eq("profession", schema.ProfessionDoctor)}
	if f.HospitalID != "" {
		filters = append(filters, schema.Eq("hospitalId", f.HospitalID))
	}
	if spec := strings.TrimSpace(f.Specialty); spec != "" {
		filters = append(filters, schema.EqFold("specialty", spec))
	}
	users, err := s.users.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]Doctor, 0, len(users))
	for _, u := range users {
		out = append(out, fromUser(u))
	}
	return out, nil
}

// Get devolve o médico; usuários que não são médicos resultam em ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Doctor, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return Doctor{}, err
	}
	if !u.IsDoctor() {
		return Doctor{}, store.ErrNotFound
	}
	return fromUser(u), nil
}

// FindByCRM localiza o médico pelo CRM e UF.
func (s *Service) FindByCRM(ctx context.Context, crm, state string) (Doctor, error) {
	u, err := s.users.FindOne(ctx,
		schema.Eq("profession", schema.ProfessionDoctor),
		schema.Eq("crm", strings.TrimSpace(crm)),
		schema.Eq("crmState", strings.ToUpper(strings.TrimSpace(state))),
	)
	if err != nil {
		return Doctor{}, err
	}
	return fromUser(u), nil
}

// Create cadastra um médico vinculado ao hospital.
func (s *Service) Create(ctx context.Context, hospitalID string, in CreateInput) (Doctor, error) {
	if hospitalID == "" {
		return Doctor{}, util.Invalid("hospital obrigatório")
	}
	ok, err := s.hospitals.Exists(ctx, hospitalID)
	if err != nil {
		return Doctor{}, err
	}
	if !ok {
		return Doctor{}, ErrNoHospital
	}

	u, err := s.accounts.Register(ctx, account.RegisterInput{
		Email:      in.Email,
		Password:   in.Password,
		Profession: schema.ProfessionDoctor,
		FullName:   in.Name,
		CRM:        in.CRM,
		CRMState:   in.CRMState,
		Specialty:  in.Specialty,
		HospitalID: &hospitalID,
	})
	if err != nil {
		return Doctor{}, err
	}
	return fromUser(u), nil
}

// Update altera nome e especialidade.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Doctor, error) {
	if in.Name != nil {
		if err := util.RequireString(strings.TrimSpace(*in.Name), "nome"); err != nil {
			return Doctor{}, err
		}
	}
	u, err := s.users.Update(ctx, id, func(u *schema.User) error {
		if !u.IsDoctor() {
			return store.ErrNotFound
		}
		if in.Name != nil {
			u.FullName = strings.TrimSpace(*in.Name)
		}
		if in.Specialty != nil {
			u.Specialty = strings.TrimSpace(*in.Specialty)
		}
		return nil
	})
	if err != nil {
		return Doctor{}, err
	}
	return fromUser(u), nil
}

// Delete remove o médico se não houver pacientes vinculados. Vale nos dois modos.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.patients.Count(ctx, schema.Eq("doctorId", id))
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrHasPatients
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrHasPatients
		}
		return err
	}
	return nil
}
