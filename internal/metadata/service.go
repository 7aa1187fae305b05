// Package metadata mantém as listas administráveis de contextos e tipos de dado.
package metadata

import (
	"context"
	"errors"
	"strings"

	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/store"
	"github.com/monitorasaude/api/internal/util"
)

const (
	KindContexts  = "contexts"
	KindDataTypes = "data-types"
)

var ErrUnknownKind = errors.New("tipo de metadado desconhecido")

// Input cria ou altera uma opção.
type Input struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

type Service struct {
	kinds map[string]*store.Store[schema.MetadataOption]
}

func NewService(contexts, dataTypes *store.Store[schema.MetadataOption]) *Service {
	return &Service{kinds: map[string]*store.Store[schema.MetadataOption]{
		KindContexts:  contexts,
		KindDataTypes: dataTypes,
	}}
}

func (s *Service) collection(kind string) (*store.Store[schema.MetadataOption], error) {
	st, ok := s.kinds[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	return st, nil
}

// List devolve as opções, opcionalmente só as ativas.
func (s *Service) List(ctx context.Context, kind string, activeOnly bool) ([]schema.MetadataOption, error) {
	st, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	if activeOnly {
		return st.List(ctx, schema.Eq("active", true))
	}
	return st.List(ctx)
}

// Create cadastra uma opção ativa por padrão. Nomes são únicos sem diferenciar maiúsculas.
func (s *Service) Create(ctx context.Context, kind string, in Input) (schema.MetadataOption, error) {
	st, err := s.collection(kind)
	if err != nil {
		return schema.MetadataOption{}, err
	}
	opt := schema.MetadataOption{Active: true}
	if in.Name != nil {
		opt.Name = strings.TrimSpace(*in.Name)
	}
	if err := util.RequireString(opt.Name, "nome"); err != nil {
		return schema.MetadataOption{}, err
	}
	if in.Description != nil {
		opt.Description = strings.TrimSpace(*in.Description)
	}
	if in.Active != nil {
		opt.Active = *in.Active
	}

	taken, err := st.Exists(ctx, schema.EqFold("name", opt.Name))
	if err != nil {
		return schema.MetadataOption{}, err
	}
	if taken {
		return schema.MetadataOption{}, &store.ConflictError{Constraint: st.Mapping().Table + "_name_key", Err: errors.New("nome já cadastrado")}
	}
	if err := st.Create(ctx, &opt); err != nil {
		return schema.MetadataOption{}, err
	}
	return opt, nil
}

// Update altera os campos informados.
func (s *Service) Update(ctx context.Context, kind, id string, in Input) (schema.MetadataOption, error) {
	st, err := s.collection(kind)
	if err != nil {
		return schema.MetadataOption{}, err
	}
	return st.Update(ctx, id, func(opt *schema.MetadataOption) error {
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if err := util.RequireString(name, "nome"); err != nil {
				return err
			}
			opt.Name = name
		}
		if in.Description != nil {
			opt.Description = strings.TrimSpace(*in.Description)
		}
		if in.Active != nil {
			opt.Active = *in.Active
		}
		return nil
	})
}

// Delete remove a opção.
func (s *Service) Delete(ctx context.Context, kind, id string) error {
	st, err := s.collection(kind)
	if err != nil {
		return err
	}
	return st.Delete(ctx, id)
}
