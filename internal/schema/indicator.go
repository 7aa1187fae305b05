package schema

import "time"

// Indicator é um indicador de saúde (padrão ou criado por um médico).
type Indicator struct {
	ID              string    `json:"id"`
	CategoryID      string    `json:"categoryId"`
	CategoryName    string    `json:"categoryName"`
	SubcategoryID   string    `json:"subcategoryId"`
	SubcategoryName string    `json:"subcategoryName"`
	Parameter       string    `json:"parameter"`
	UnitID          string    `json:"unitId"`
	UnitSymbol      string    `json:"unitSymbol"`
	RequiresDate    bool      `json:"requiresDate"`
	RequiresTime    bool      `json:"requiresTime"`
	DoctorID        string    `json:"doctorId"`
	IsStandard      bool      `json:"isStandard"`
	Visible         bool      `json:"visible"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ResolveNames preenche os nomes desnormalizados a partir da taxonomia.
func (i *Indicator) ResolveNames() {
	i.CategoryName = CategoryName(i.CategoryID)
	i.SubcategoryName = ""
	if i.SubcategoryID != "" {
		i.SubcategoryName = SubcategoryName(i.SubcategoryID)
	}
	i.UnitSymbol = ""
	if i.UnitID != "" {
		i.UnitSymbol = UnitSymbol(i.UnitID)
	}
}

var Indicators = NewMapping("indicator", "indicators", "created_at",
	keyCol("id", "id", func(i *Indicator) *string { return &i.ID }),
	strCol("categoryId", "category_id", func(i *Indicator) *string { return &i.CategoryID }),
	strCol("categoryName", "category_name", func(i *Indicator) *string { return &i.CategoryName }),
	strCol("subcategoryId", "subcategory_id", func(i *Indicator) *string { return &i.SubcategoryID }),
	strCol("subcategoryName", "subcategory_name", func(i *Indicator) *string { return &i.SubcategoryName }),
	strCol("parameter", "parameter", func(i *Indicator) *string { return &i.Parameter }),
	strCol("unitId", "unit_id", func(i *Indicator) *string { return &i.UnitID }),
	strCol("unitSymbol", "unit_symbol", func(i *Indicator) *string { return &i.UnitSymbol }),
	boolCol("requiresDate", "requires_date", func(i *Indicator) *bool { return &i.RequiresDate }),
	boolCol("requiresTime", "requires_time", func(i *Indicator) *bool { return &i.RequiresTime }),
	strCol("doctorId", "doctor_id", func(i *Indicator) *string { return &i.DoctorID }),
	boolCol("isStandard", "is_standard", func(i *Indicator) *bool { return &i.IsStandard }),
	boolCol("visible", "visible", func(i *Indicator) *bool { return &i.Visible }),
	createdCol("createdAt", "created_at", func(i *Indicator) *time.Time { return &i.CreatedAt }),
)

// IndicatorValue é uma medição registrada para um paciente.
type IndicatorValue struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patientId"`
	IndicatorID     string    `json:"indicatorId"`
	Value           string    `json:"value"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	CategoryName    string    `json:"categoryName"`
	SubcategoryName string    `json:"subcategoryName"`
	Parameter       string    `json:"parameter"`
	UnitSymbol      string    `json:"unitSymbol"`
	VisibleToMedics bool      `json:"visibleToMedics"`
	CreatedAt       time.Time `json:"createdAt"`
}

var IndicatorValues = NewMapping("indicator_value", "patient_indicator_values", "created_at",
	keyCol("id", "id", func(v *IndicatorValue) *string { return &v.ID }),
	strCol("patientId", "patient_id", func(v *IndicatorValue) *string { return &v.PatientID }),
	strCol("indicatorId", "indicator_id", func(v *IndicatorValue) *string { return &v.IndicatorID }),
	strCol("value", "value", func(v *IndicatorValue) *string { return &v.Value }),
	strCol("date", "date", func(v *IndicatorValue) *string { return &v.Date }),
	strCol("time", "time", func(v *IndicatorValue) *string { return &v.Time }),
	strCol("categoryName", "category_name", func(v *IndicatorValue) *string { return &v.CategoryName }),
	strCol("subcategoryName", "subcategory_name", func(v *IndicatorValue) *string { return &v.SubcategoryName }),
	strCol("parameter", "parameter", func(v *IndicatorValue) *string { return &v.Parameter }),
	strCol("unitSymbol", "unit_symbol", func(v *IndicatorValue) *string { return &v.UnitSymbol }),
	boolCol("visibleToMedics", "visible_to_medics", func(v *IndicatorValue) *bool { return &v.VisibleToMedics }),
	createdCol("createdAt", "created_at", func(v *IndicatorValue) *time.Time { return &v.CreatedAt }),
)
