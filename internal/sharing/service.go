// Package sharing mantém o consentimento do paciente para que um médico veja seus dados.
// Cada par paciente/médico tem no máximo um registro, reativado a cada novo compartilhamento.
package sharing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/util"
)

var (
	ErrPatientNotFound = errors.New("paciente não encontrado")
	ErrDoctorNotFound  = errors.New("médico não encontrado")
)

// View é o compartilhamento com o nome da outra parte.
type View struct {
	schema.SharedData
	DoctorName      string `json:"doctorName,omitempty"`
	DoctorSpecialty string `json:"doctorSpecialty,omitempty"`
	PatientName     string `json:"patientName,omitempty"`
}

// Service implementa a máquina de estados de compartilhamento.
type Service struct {
	shares *store.Store[schema.SharedData]
	users  *store.Store[schema.User]
	locks  *pairLocks
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(shares *store.Store[schema.SharedData], users *store.Store[schema.User]) *Service {
	return &Service{
		shares: shares,
		users:  users,
		locks:  newPairLocks(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.With().Str("component", "sharing").Logger(),
	}
}

func (s *Service) requireUser(ctx context.Context, id, profession string, missing error) (schema.User, error) {
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return u, missing
	}
	if err != nil {
		return u, err
	}
	if u.Profession != profession {
		return u, missing
	}
	return u, nil
}

func (s *Service) find(ctx context.Context, patientID, doctorID string) (schema.SharedData, error) {
	return s.shares.FindOne(ctx, schema.Eq("patientId", patientID), schema.Eq("doctorId", doctorID))
}

// Share autoriza o médico. Ativo: devolvido sem alteração. Revogado: reativado com sharedAt novo.
func (s *Service) Share(ctx context.Context, patientID, doctorID string) (schema.SharedData, error) {
	patientID, doctorID = strings.TrimSpace(patientID), strings.TrimSpace(doctorID)
	if err := util.RequireString(doctorID, "médico"); err != nil {
		return schema.SharedData{}, err
	}
	if _, err := s.requireUser(ctx, patientID, schema.ProfessionPatient, ErrPatientNotFound); err != nil {
		return schema.SharedData{}, err
	}
	if _, err := s.requireUser(ctx, doctorID, schema.ProfessionDoctor, ErrDoctorNotFound); err != nil {
		return schema.SharedData{}, err
	}

	unlock := s.locks.lock(patientID + "|" + doctorID)
	defer unlock()

	rec, err := s.share(ctx, patientID, doctorID)
	if errors.Is(err, store.ErrConflict) {
		// outra instância criou o par entre a leitura e a escrita
		rec, err = s.share(ctx, patientID, doctorID)
	}
	if err != nil {
		return schema.SharedData{}, err
	}
	return rec, nil
}

func (s *Service) share(ctx context.Context, patientID, doctorID string) (schema.SharedData, error) {
	current, err := s.find(ctx, patientID, doctorID)
	switch {
	case err == nil && current.IsActive:
		return current, nil
	case err == nil:
		updated, err := s.shares.Update(ctx, current.ID, func(r *schema.SharedData) error {
			r.IsActive = true
			r.RevokedAt = nil
			r.SharedAt = s.now()
			return nil
		})
		if err == nil {
			s.logger.Info().Str("patient_id", patientID).Str("doctor_id", doctorID).Msg("compartilhamento reativado")
		}
		return updated, err
	case !errors.Is(err, store.ErrNotFound):
		return schema.SharedData{}, err
	}

	rec := schema.SharedData{PatientID: patientID, DoctorID: doctorID, SharedAt: s.now(), IsActive: true}
	if err := s.shares.Create(ctx, &rec); err != nil {
		return schema.SharedData{}, err
	}
	s.logger.Info().Str("patient_id", patientID).Str("doctor_id", doctorID).Msg("dados compartilhados")
	return rec, nil
}

// Revoke encerra o compartilhamento ativo. Par nunca compartilhado não é erro.
func (s *Service) Revoke(ctx context.Context, patientID, doctorID string) error {
	unlock := s.locks.lock(patientID + "|" + doctorID)
	defer unlock()

	current, err := s.find(ctx, patientID, doctorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !current.IsActive {
		return nil
	}
	_, err = s.shares.Update(ctx, current.ID, func(r *schema.SharedData) error {
		now := s.now()
		r.IsActive = false
		r.RevokedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", patientID).Str("doctor_id", doctorID).Msg("compartilhamento revogado")
	return nil
}

// IsShared informa se há compartilhamento ativo para o par.
func (s *Service) IsShared(ctx context.Context, patientID, doctorID string) (bool, error) {
	current, err := s.find(ctx, patientID, doctorID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return current.IsActive, nil
}

// ListForPatient devolve todos os registros do paciente, incluindo revogados.
func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]View, error) {
	rows, err := s.shares.List(ctx, schema.Eq("patientId", patientID))
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rows))
	for _, r := range rows {
		v := View{SharedData: r}
		if d, err := s.users.Get(ctx, r.DoctorID); err == nil {
			v.DoctorName, v.DoctorSpecialty = d.FullName, d.Specialty
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ListForDoctor devolve apenas os compartilhamentos ativos do médico.
func (s *Service) ListForDoctor(ctx context.Context, doctorID string) ([]View, error) {
	rows, err := s.shares.List(ctx, schema.Eq("doctorId", doctorID), schema.Eq("isActive", true))
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rows))
	for _, r := range rows {
		v := View{SharedData: r}
		if p, err := s.users.Get(ctx, r.PatientID); err == nil {
			v.PatientName = p.FullName
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// PatientsOf devolve os ids de pacientes que compartilham com o médico.
func (s *Service) PatientsOf(ctx context.Context, doctorID string) ([]string, error) {
	rows, err := s.shares.List(ctx, schema.Eq("doctorId", doctorID), schema.Eq("isActive", true))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.PatientID)
	}
	return ids, nil
}

// DoctorsOf devolve os ids de médicos autorizados pelo paciente.
func (s *Service) DoctorsOf(ctx context.Context, patientID string) ([]string, error) {
	rows, err := s.shares.List(ctx, schema.Eq("patientId", patientID), schema.Eq("isActive", true))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.DoctorID)
	}
	return ids, nil
}

// pairLocks serializa operações por par paciente/médico.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[string]*pairLock)}
}

func (p *pairLocks) lock(key string) func() {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pairLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}
