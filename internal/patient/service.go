// Package patient gerencia pacientes cadastrados por médicos e os dados
// pessoais e clínicos mantidos pelo próprio paciente.
package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/util"
)

// Shares consulta compartilhamentos ativos.
type Shares interface {
	PatientsOf(ctx context.Context, doctorID string) ([]string, error)
	IsShared(ctx context.Context, patientID, doctorID string) (bool, error)
}

// Stores agrupa as coleções usadas pelo serviço.
type Stores struct {
	Patients *store.Store[schema.Patient]
	Users    *store.Store[schema.User]
	Personal *store.Store[schema.PersonalData]
	Medical  *store.Store[schema.MedicalData]
	Values   *store.Store[schema.IndicatorValue]
}

type Service struct {
	stores Stores
	shares Shares
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(stores Stores, shares Shares) *Service {
	return &Service{
		stores: stores,
		shares: shares,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.With().Str("component", "patient").Logger(),
	}
}

// List devolve os pacientes do médico seguidos dos que compartilharam dados com ele.
func (s *Service) List(ctx context.Context, doctorID string, f Filter) ([]schema.Patient, error) {
	status := strings.ToLower(strings.TrimSpace(f.Status))
	if status != "" && status != schema.StatusShared && !validStatus(status) {
		return nil, util.Invalid("status inválido")
	}

	var out []schema.Patient
	if status != schema.StatusShared {
		filters := []schema.Filter{schema.Eq("doctorId", doctorID)}
		if status != "" {
			filters = append(filters, schema.Eq("status", status))
		}
		own, err := s.stores.Patients.List(ctx, filters...)
		if err != nil {
			return nil, err
		}
		out = append(out, own...)
	}

	if status == "" || status == schema.StatusShared {
		ids, err := s.shares.PatientsOf(ctx, doctorID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			p, err := s.synthesize(ctx, id, doctorID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}

	if name := strings.TrimSpace(f.Name); name != "" {
		filtered := out[:0]
		for _, p := range out {
			if strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}
	if out == nil {
		out = []schema.Patient{}
	}
	return out, nil
}

// synthesize monta a visão de um paciente compartilhado a partir da conta e dos dados próprios.
func (s *Service) synthesize(ctx context.Context, userID, doctorID string) (schema.Patient, error) {
	u, err := s.stores.Users.Get(ctx, userID)
	if err != nil {
		return schema.Patient{}, err
	}
	p := schema.Patient{
		ID:        u.ID,
		Name:      u.FullName,
		Status:    schema.StatusShared,
		DoctorID:  doctorID,
		UserID:    &u.ID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}

	personal, err := s.stores.Personal.Get(ctx, userID)
	switch {
	case err == nil:
		if personal.FullName != "" {
			p.Name = personal.FullName
		}
		p.City, p.State = personal.City, personal.State
		p.Age = ageAt(personal.BirthDate, s.now())
	case !errors.Is(err, store.ErrNotFound):
		return schema.Patient{}, err
	}

	medical, err := s.stores.Medical.Get(ctx, userID)
	switch {
	case err == nil:
		p.Weight, p.Height = medical.Weight, medical.Height
	case !errors.Is(err, store.ErrNotFound):
		return schema.Patient{}, err
	}
	return p, nil
}

// Get devolve o paciente cadastrado.
func (s *Service) Get(ctx context.Context, id string) (schema.Patient, error) {
	return s.stores.Patients.Get(ctx, id)
}

// Resolve devolve o paciente como visto pela sessão, ou ErrNotFound sem acesso.
func (s *Service) Resolve(ctx context.Context, viewer auth.Session, id string) (schema.Patient, error) {
	p, err := s.stores.Patients.Get(ctx, id)
	if err == nil {
		if viewer.Is(auth.RoleDoctor) && p.DoctorID == viewer.Subject {
			return p, nil
		}
		if viewer.Is(auth.RolePatient) && p.UserID != nil && *p.UserID == viewer.Subject {
			return p, nil
		}
		return schema.Patient{}, store.ErrNotFound
	}
	if !errors.Is(err, store.ErrNotFound) {
		return schema.Patient{}, err
	}

	switch {
	case viewer.Is(auth.RolePatient) && viewer.Subject == id:
		return s.synthesize(ctx, id, "")
	case viewer.Is(auth.RoleDoctor):
		ok, err := s.shares.IsShared(ctx, id, viewer.Subject)
		if err != nil {
			return schema.Patient{}, err
		}
		if ok {
			return s.synthesize(ctx, id, viewer.Subject)
		}
	}
	return schema.Patient{}, store.ErrNotFound
}

// CanView informa se a sessão pode ler dados do paciente (registro ou conta).
func (s *Service) CanView(ctx context.Context, viewer auth.Session, id string) (bool, error) {
	_, err := s.Resolve(ctx, viewer, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CanEdit informa se a sessão pode registrar dados do paciente.
// Médicos só editam pacientes próprios; o paciente edita os próprios dados.
func (s *Service) CanEdit(ctx context.Context, viewer auth.Session, id string) (bool, error) {
	p, err := s.Resolve(ctx, viewer, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if viewer.Is(auth.RolePatient) {
		return true, nil
	}
	return p.Status != schema.StatusShared, nil
}

// Create cadastra um paciente para o médico. Status padrão: ativo.
func (s *Service) Create(ctx context.Context, doctorID string, in Input) (schema.Patient, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if in.Status == "" {
		in.Status = schema.StatusActive
	}
	if err := util.RequireString(in.Name, "nome"); err != nil {
		return schema.Patient{}, err
	}
	if !validStatus(in.Status) {
		return schema.Patient{}, util.Invalid("status inválido")
	}
	if err := validateMeasures(in.Age, in.Weight, in.Height); err != nil {
		return schema.Patient{}, err
	}
	state := strings.ToUpper(strings.TrimSpace(in.State))
	if err := validateState(state); err != nil {
		return schema.Patient{}, err
	}

	p := schema.Patient{
		Name:     in.Name,
		Age:      in.Age,
		City:     strings.TrimSpace(in.City),
		State:    state,
		Weight:   in.Weight,
		Height:   in.Height,
		Status:   in.Status,
		DoctorID: doctorID,
		UserID:   in.UserID,
	}
	if err := s.stores.Patients.Create(ctx, &p); err != nil {
		return schema.Patient{}, err
	}
	s.logger.Info().Str("patient_id", p.ID).Str("doctor_id", doctorID).Msg("paciente cadastrado")
	return p, nil
}

// Update altera os campos informados de um paciente do médico.
func (s *Service) Update(ctx context.Context, doctorID, id string, in UpdateInput) (schema.Patient, error) {
	return s.stores.Patients.Update(ctx, id, func(p *schema.Patient) error {
		if p.DoctorID != doctorID {
			return store.ErrNotFound
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if err := util.RequireString(name, "nome"); err != nil {
				return err
			}
			p.Name = name
		}
		if in.Status != nil {
			status := strings.ToLower(strings.TrimSpace(*in.Status))
			if !validStatus(status) {
				return util.Invalid("status inválido")
			}
			p.Status = status
		}
		if in.Age != nil {
			p.Age = *in.Age
		}
		if in.City != nil {
			p.City = strings.TrimSpace(*in.City)
		}
		if in.State != nil {
			p.State = strings.ToUpper(strings.TrimSpace(*in.State))
		}
		if in.Weight != nil {
			p.Weight = *in.Weight
		}
		if in.Height != nil {
			p.Height = *in.Height
		}
		if err := validateMeasures(p.Age, p.Weight, p.Height); err != nil {
			return err
		}
		return validateState(p.State)
	})
}

// Delete remove o paciente do médico junto com seus valores de indicadores.
func (s *Service) Delete(ctx context.Context, doctorID, id string) error {
	p, err := s.stores.Patients.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.DoctorID != doctorID {
		return store.ErrNotFound
	}
	removed, err := s.stores.Values.DeleteWhere(ctx, schema.Eq("patientId", id))
	if err != nil {
		return err
	}
	if err := s.stores.Patients.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id).Int("values", removed).Msg("paciente removido")
	return nil
}

// GetPersonalData devolve os dados pessoais; sem registro, devolve campos vazios.
func (s *Service) GetPersonalData(ctx context.Context, userID string) (schema.PersonalData, error) {
	d, err := s.stores.Personal.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return schema.PersonalData{UserID: userID}, nil
	}
	return d, err
}

// SavePersonalData substitui os dados pessoais do paciente.
func (s *Service) SavePersonalData(ctx context.Context, userID string, in PersonalInput) (schema.PersonalData, error) {
	if err := in.normalize(); err != nil {
		return schema.PersonalData{}, err
	}
	d := schema.PersonalData{
		UserID:    userID,
		FullName:  in.FullName,
		BirthDate: in.BirthDate,
		Gender:    in.Gender,
		Phone:     in.Phone,
		City:      in.City,
		State:     in.State,
	}
	if err := s.stores.Personal.Put(ctx, &d); err != nil {
		return schema.PersonalData{}, err
	}
	return d, nil
}

// GetMedicalData devolve os dados clínicos; sem registro, devolve campos vazios.
func (s *Service) GetMedicalData(ctx context.Context, userID string) (schema.MedicalData, error) {
	d, err := s.stores.Medical.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return schema.MedicalData{UserID: userID}, nil
	}
	return d, err
}

// SaveMedicalData substitui os dados clínicos do paciente.
func (s *Service) SaveMedicalData(ctx context.Context, userID string, in MedicalInput) (schema.MedicalData, error) {
	if err := in.normalize(); err != nil {
		return schema.MedicalData{}, err
	}
	d := schema.MedicalData{
		UserID:      userID,
		BloodType:   in.BloodType,
		Allergies:   strings.TrimSpace(in.Allergies),
		Conditions:  strings.TrimSpace(in.Conditions),
		Medications: strings.TrimSpace(in.Medications),
		Height:      in.Height,
		Weight:      in.Weight,
	}
	if err := s.stores.Medical.Put(ctx, &d); err != nil {
		return schema.MedicalData{}, err
	}
	return d, nil
}
