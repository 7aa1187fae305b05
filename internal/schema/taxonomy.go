package schema

import "sort"

// Unknown é o nome exibido para identificadores fora da taxonomia.
const Unknown = "Não informado"

// Category agrupa subcategorias de indicadores.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subcategory pertence a uma categoria.
type Subcategory struct {
	ID         string `json:"id"`
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
}

// Unit é uma unidade de medida.
type Unit struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

var categories = []Category{
	{ID: "sinais_vitais", Name: "Sinais Vitais"},
	{ID: "medidas_corporais", Name: "Medidas Corporais"},
	{ID: "exames_laboratoriais", Name: "Exames Laboratoriais"},
	{ID: "habitos", Name: "Hábitos de Vida"},
	{ID: "saude_mental", Name: "Saúde Mental"},
	{ID: "medicamentos", Name: "Medicamentos"},
}

var subcategories = []Subcategory{
	{ID: "pressao_arterial", CategoryID: "sinais_vitais", Name: "Pressão Arterial"},
	{ID: "frequencia_cardiaca", CategoryID: "sinais_vitais", Name: "Frequência Cardíaca"},
	{ID: "temperatura", CategoryID: "sinais_vitais", Name: "Temperatura Corporal"},
	{ID: "saturacao", CategoryID: "sinais_vitais", Name: "Saturação de Oxigênio"},
	{ID: "frequencia_respiratoria", CategoryID: "sinais_vitais", Name: "Frequência Respiratória"},
	{ID: "peso", CategoryID: "medidas_corporais", Name: "Peso"},
	{ID: "altura", CategoryID: "medidas_corporais", Name: "Altura"},
	{ID: "imc", CategoryID: "medidas_corporais", Name: "Índice de Massa Corporal"},
	{ID: "circunferencia_abdominal", CategoryID: "medidas_corporais", Name: "Circunferência Abdominal"},
	{ID: "glicemia", CategoryID: "exames_laboratoriais", Name: "Glicemia"},
	{ID: "colesterol", CategoryID: "exames_laboratoriais", Name: "Colesterol"},
	{ID: "hemoglobina_glicada", CategoryID: "exames_laboratoriais", Name: "Hemoglobina Glicada"},
	{ID: "triglicerideos", CategoryID: "exames_laboratoriais", Name: "Triglicerídeos"},
	{ID: "sono", CategoryID: "habitos", Name: "Sono"},
	{ID: "atividade_fisica", CategoryID: "habitos", Name: "Atividade Física"},
	{ID: "hidratacao", CategoryID: "habitos", Name: "Hidratação"},
	{ID: "humor", CategoryID: "saude_mental", Name: "Humor"},
	{ID: "ansiedade", CategoryID: "saude_mental", Name: "Ansiedade"},
	{ID: "adesao", CategoryID: "medicamentos", Name: "Adesão ao Tratamento"},
}

var units = []Unit{
	{ID: "mmhg", Symbol: "mmHg", Name: "milímetros de mercúrio"},
	{ID: "bpm", Symbol: "bpm", Name: "batimentos por minuto"},
	{ID: "celsius", Symbol: "°C", Name: "graus Celsius"},
	{ID: "percent", Symbol: "%", Name: "percentual"},
	{ID: "irpm", Symbol: "irpm", Name: "incursões respiratórias por minuto"},
	{ID: "kg", Symbol: "kg", Name: "quilogramas"},
	{ID: "cm", Symbol: "cm", Name: "centímetros"},
	{ID: "kg_m2", Symbol: "kg/m²", Name: "quilogramas por metro quadrado"},
	{ID: "mg_dl", Symbol: "mg/dL", Name: "miligramas por decilitro"},
	{ID: "horas", Symbol: "h", Name: "horas"},
	{ID: "minutos", Symbol: "min", Name: "minutos"},
	{ID: "ml", Symbol: "mL", Name: "mililitros"},
	{ID: "escala", Symbol: "0-10", Name: "escala de 0 a 10"},
	{ID: "unidade", Symbol: "un", Name: "unidades"},
}

var (
	categoryIndex    = make(map[string]Category, len(categories))
	subcategoryIndex = make(map[string]Subcategory, len(subcategories))
	unitIndex        = make(map[string]Unit, len(units))
)

func init() {
	for _, c := range categories {
		categoryIndex[c.ID] = c
	}
	for _, s := range subcategories {
		subcategoryIndex[s.ID] = s
	}
	for _, u := range units {
		unitIndex[u.ID] = u
	}
}

// Categories devolve as categorias em ordem de exibição.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Subcategories devolve as subcategorias de uma categoria (todas se vazio).
func Subcategories(categoryID string) []Subcategory {
	var out []Subcategory
	for _, s := range subcategories {
		if categoryID == "" || s.CategoryID == categoryID {
			out = append(out, s)
		}
	}
	return out
}

// Units devolve as unidades ordenadas por símbolo.
func Units() []Unit {
	out := append([]Unit(nil), units...)
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// CategoryName resolve o nome de exibição da categoria.
func CategoryName(id string) string {
	if c, ok := categoryIndex[id]; ok {
		return c.Name
	}
	return Unknown
}

// SubcategoryName resolve o nome de exibição da subcategoria.
func SubcategoryName(id string) string {
	if s, ok := subcategoryIndex[id]; ok {
		return s.Name
	}
	return Unknown
}

// UnitSymbol resolve o símbolo da unidade.
func UnitSymbol(id string) string {
	if u, ok := unitIndex[id]; ok {
		return u.Symbol
	}
	return Unknown
}

// IsCategory informa se o id existe na taxonomia.
func IsCategory(id string) bool {
	_, ok := categoryIndex[id]
	return ok
}

// SubcategoryBelongs informa se a subcategoria pertence à categoria.
func SubcategoryBelongs(subcategoryID, categoryID string) bool {
	s, ok := subcategoryIndex[subcategoryID]
	return ok && s.CategoryID == categoryID
}

// IsUnit informa se a unidade existe.
func IsUnit(id string) bool {
	_, ok := unitIndex[id]
	return ok
}

// StandardIndicators devolve os indicadores padrão disponíveis a todos os médicos.
func StandardIndicators() []Indicator {
	defs := []struct {
		id, category, subcategory, parameter, unit string
		date, time                                 bool
	}{
		{"padrao_pressao_sistolica", "sinais_vitais", "pressao_arterial", "Pressão sistólica", "mmhg", true, true},
		{"padrao_pressao_diastolica", "sinais_vitais", "pressao_arterial", "Pressão diastólica", "mmhg", true, true},
		{"padrao_frequencia_cardiaca", "sinais_vitais", "frequencia_cardiaca", "Frequência cardíaca em repouso", "bpm", true, true},
		{"padrao_temperatura", "sinais_vitais", "temperatura", "Temperatura axilar", "celsius", true, true},
		{"padrao_saturacao", "sinais_vitais", "saturacao", "SpO2", "percent", true, true},
		{"padrao_peso", "medidas_corporais", "peso", "Peso", "kg", true, false},
		{"padrao_imc", "medidas_corporais", "imc", "IMC", "kg_m2", true, false},
		{"padrao_glicemia_jejum", "exames_laboratoriais", "glicemia", "Glicemia em jejum", "mg_dl", true, true},
		{"padrao_sono", "habitos", "sono", "Horas de sono", "horas", true, false},
		{"padrao_humor", "saude_mental", "humor", "Humor do dia", "escala", true, false},
	}

	out := make([]Indicator, 0, len(defs))
	for _, d := range defs {
		ind := Indicator{
			ID:            d.id,
			CategoryID:    d.category,
			SubcategoryID: d.subcategory,
			Parameter:     d.parameter,
			UnitID:        d.unit,
			RequiresDate:  d.date,
			RequiresTime:  d.time,
			IsStandard:    true,
			Visible:       true,
		}
		ind.ResolveNames()
		out = append(out, ind)
	}
	return out
}
