package indicator

import (
	"strings"
	"time"

	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/util"
)

// Input cria ou substitui um indicador do médico.
type Input struct {
	CategoryID    string `json:"categoryId"`
	SubcategoryID string `json:"subcategoryId"`
	Parameter     string `json:"parameter"`
	UnitID        string `json:"unitId"`
	RequiresDate  bool   `json:"requiresDate"`
	RequiresTime  bool   `json:"requiresTime"`
	Visible       *bool  `json:"visible"`
}

func (in *Input) validate() error {
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.SubcategoryID = strings.TrimSpace(in.SubcategoryID)
	in.Parameter = strings.TrimSpace(in.Parameter)
	in.UnitID = strings.TrimSpace(in.UnitID)

	if !schema.IsCategory(in.CategoryID) {
		return util.Invalid("categoria inválida")
	}
	if in.SubcategoryID != "" && !schema.SubcategoryBelongs(in.SubcategoryID, in.CategoryID) {
		return util.Invalid("subcategoria não pertence à categoria")
	}
	if in.UnitID != "" && !schema.IsUnit(in.UnitID) {
		return util.Invalid("unidade inválida")
	}
	return util.RequireString(in.Parameter, "parâmetro")
}

func (in Input) apply(ind *schema.Indicator) {
	ind.CategoryID = in.CategoryID
	ind.SubcategoryID = in.SubcategoryID
	ind.Parameter = in.Parameter
	ind.UnitID = in.UnitID
	ind.RequiresDate = in.RequiresDate
	ind.RequiresTime = in.RequiresTime
	if in.Visible != nil {
		ind.Visible = *in.Visible
	}
	ind.ResolveNames()
}

// ValueInput registra uma medição.
type ValueInput struct {
	IndicatorID     string `json:"indicatorId"`
	Value           string `json:"value"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	VisibleToMedics *bool  `json:"visibleToMedics"`
}

// ValueUpdate altera campos informados de uma medição.
type ValueUpdate struct {
	Value           *string `json:"value"`
	Date            *string `json:"date"`
	Time            *string `json:"time"`
	VisibleToMedics *bool   `json:"visibleToMedics"`
}

// validateValue confere valor, data e hora contra as exigências do indicador.
func validateValue(ind schema.Indicator, v schema.IndicatorValue) error {
	if strings.TrimSpace(v.Value) == "" {
		return util.Invalid("valor obrigatório")
	}
	if v.Date == "" && ind.RequiresDate {
		return util.Invalid("data obrigatória para este indicador")
	}
	if v.Date != "" {
		if _, err := time.Parse(time.DateOnly, v.Date); err != nil {
			return util.Invalid("data inválida")
		}
	}
	if v.Time == "" && ind.RequiresTime {
		return util.Invalid("hora obrigatória para este indicador")
	}
	if v.Time != "" {
		if _, err := time.Parse("15:04", v.Time); err != nil {
			return util.Invalid("hora inválida")
		}
	}
	return nil
}
