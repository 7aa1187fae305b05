// Package indicator mantém os indicadores de saúde e as medições dos pacientes.
package indicator

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/monitorasaude/api/internal/auth"
	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/util"
)

var ErrStandardImmutable = errors.New("indicador padrão não pode ser alterado")

var errIndicatorMissing = util.Invalid("indicador não encontrado")

// DoctorSource devolve os médicos autorizados por um paciente.
type DoctorSource interface {
	DoctorsOf(ctx context.Context, patientID string) ([]string, error)
}

type Service struct {
	indicators *store.Store[schema.Indicator]
	values     *store.Store[schema.IndicatorValue]
	doctors    DoctorSource
	standard   map[string]schema.Indicator
	order      []string
	logger     zerolog.Logger
}

func NewService(indicators *store.Store[schema.Indicator], values *store.Store[schema.IndicatorValue], doctors DoctorSource) *Service {
	s := &Service{
		indicators: indicators,
		values:     values,
		doctors:    doctors,
		standard:   make(map[string]schema.Indicator),
		logger:     log.With().Str("component", "indicator").Logger(),
	}
	for _, ind := range schema.StandardIndicators() {
		s.standard[ind.ID] = ind
		s.order = append(s.order, ind.ID)
	}
	return s
}

// EnsureStandard grava os indicadores padrão, necessários às chaves estrangeiras remotas.
func (s *Service) EnsureStandard(ctx context.Context) error {
	for _, id := range s.order {
		ind := s.standard[id]
		if err := s.indicators.Put(ctx, &ind); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) standardList() []schema.Indicator {
	out := make([]schema.Indicator, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.standard[id])
	}
	return out
}

// List devolve os indicadores visíveis à sessão: padrão mais os do médico,
// ou, para pacientes, padrão mais os visíveis dos médicos autorizados.
func (s *Service) List(ctx context.Context, viewer auth.Session) ([]schema.Indicator, error) {
	out := s.standardList()
	switch viewer.Role {
	case auth.RoleDoctor:
		own, err := s.indicators.List(ctx, schema.Eq("doctorId", viewer.Subject), schema.Eq("isStandard", false))
		if err != nil {
			return nil, err
		}
		out = append(out, own...)
	case auth.RolePatient:
		doctors, err := s.doctors.DoctorsOf(ctx, viewer.Subject)
		if err != nil {
			return nil, err
		}
		for _, doctorID := range doctors {
			items, err := s.indicators.List(ctx,
				schema.Eq("doctorId", doctorID),
				schema.Eq("isStandard", false),
				schema.Eq("visible", true),
			)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
	}
	return out, nil
}

// Get devolve um indicador padrão ou personalizado.
func (s *Service) Get(ctx context.Context, id string) (schema.Indicator, error) {
	if ind, ok := s.standard[id]; ok {
		return ind, nil
	}
	return s.indicators.Get(ctx, id)
}

// Create cadastra um indicador do médico com nomes resolvidos pela taxonomia.
func (s *Service) Create(ctx context.Context, doctorID string, in Input) (schema.Indicator, error) {
	if err := in.validate(); err != nil {
		return schema.Indicator{}, err
	}
	ind := schema.Indicator{DoctorID: doctorID, Visible: true}
	in.apply(&ind)
	if err := s.indicators.Create(ctx, &ind); err != nil {
		return schema.Indicator{}, err
	}
	s.logger.Info().Str("indicator_id", ind.ID).Str("doctor_id", doctorID).Msg("indicador criado")
	return ind, nil
}

// Update substitui a definição de um indicador do médico.
func (s *Service) Update(ctx context.Context, doctorID, id string, in Input) (schema.Indicator, error) {
	if _, ok := s.standard[id]; ok {
		return schema.Indicator{}, ErrStandardImmutable
	}
	if err := in.validate(); err != nil {
		return schema.Indicator{}, err
	}
	return s.indicators.Update(ctx, id, func(ind *schema.Indicator) error {
		if ind.IsStandard {
			return ErrStandardImmutable
		}
		if ind.DoctorID != doctorID {
			return store.ErrNotFound
		}
		in.apply(ind)
		return nil
	})
}

// Delete remove o indicador do médico e suas medições.
func (s *Service) Delete(ctx context.Context, doctorID, id string) error {
	if _, ok := s.standard[id]; ok {
		return ErrStandardImmutable
	}
	ind, err := s.indicators.Get(ctx, id)
	if err != nil {
		return err
	}
	if ind.DoctorID != doctorID {
		return store.ErrNotFound
	}
	if _, err := s.values.DeleteWhere(ctx, schema.Eq("indicatorId", id)); err != nil {
		return err
	}
	return s.indicators.Delete(ctx, id)
}

// AddValue registra uma medição copiando os nomes do indicador.
func (s *Service) AddValue(ctx context.Context, patientID string, in ValueInput) (schema.IndicatorValue, error) {
	ind, err := s.Get(ctx, strings.TrimSpace(in.IndicatorID))
	if errors.Is(err, store.ErrNotFound) {
		return schema.IndicatorValue{}, errIndicatorMissing
	}
	if err != nil {
		return schema.IndicatorValue{}, err
	}

	v := schema.IndicatorValue{
		PatientID:       patientID,
		IndicatorID:     ind.ID,
		Value:           strings.TrimSpace(in.Value),
		Date:            strings.TrimSpace(in.Date),
		Time:            strings.TrimSpace(in.Time),
		CategoryName:    ind.CategoryName,
		SubcategoryName: ind.SubcategoryName,
		Parameter:       ind.Parameter,
		UnitSymbol:      ind.UnitSymbol,
		VisibleToMedics: true,
	}
	if in.VisibleToMedics != nil {
		v.VisibleToMedics = *in.VisibleToMedics
	}
	if err := validateValue(ind, v); err != nil {
		return schema.IndicatorValue{}, err
	}
	if err := s.values.Create(ctx, &v); err != nil {
		return schema.IndicatorValue{}, err
	}
	return v, nil
}

// ListValues devolve as medições do paciente. Para médicos, só as visíveis a eles.
func (s *Service) ListValues(ctx context.Context, patientID, indicatorID string, forDoctor bool) ([]schema.IndicatorValue, error) {
	filters := []schema.Filter{schema.Eq("patientId", patientID)}
	if indicatorID != "" {
		filters = append(filters, schema.Eq("indicatorId", indicatorID))
	}
	if forDoctor {
		filters = append(filters, schema.Eq("visibleToMedics", true))
	}
	return s.values.List(ctx, filters...)
}

// UpdateValue altera uma medição do paciente.
func (s *Service) UpdateValue(ctx context.Context, patientID, id string, in ValueUpdate) (schema.IndicatorValue, error) {
	current, err := s.values.Get(ctx, id)
	if err != nil {
		return schema.IndicatorValue{}, err
	}
	if current.PatientID != patientID {
		return schema.IndicatorValue{}, store.ErrNotFound
	}
	ind, err := s.Get(ctx, current.IndicatorID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return schema.IndicatorValue{}, err
	}

	return s.values.Update(ctx, id, func(v *schema.IndicatorValue) error {
		if in.Value != nil {
			v.Value = strings.TrimSpace(*in.Value)
		}
		if in.Date != nil {
			v.Date = strings.TrimSpace(*in.Date)
		}
		if in.Time != nil {
			v.Time = strings.TrimSpace(*in.Time)
		}
		if in.VisibleToMedics != nil {
			v.VisibleToMedics = *in.VisibleToMedics
		}
		return validateValue(ind, *v)
	})
}

// DeleteValue remove uma medição do paciente.
func (s *Service) DeleteValue(ctx context.Context, patientID, id string) error {
	current, err := s.values.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.PatientID != patientID {
		return store.ErrNotFound
	}
	return s.values.Delete(ctx, id)
}
