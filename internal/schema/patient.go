package schema

import "time"

const (
	StatusActive   = "ativo"
	StatusInactive = "inativo"
	// StatusShared nunca é gravado: marca pacientes visíveis por compartilhamento.
	StatusShared = "compartilhado"
)

// Patient é um paciente cadastrado por um médico.
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Weight    float64   `json:"weight"`
	Height    float64   `json:"height"`
	Status    string    `json:"status"`
	DoctorID  string    `json:"doctorId"`
	UserID    *string   `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var Patients = NewMapping("patient", "patients", "created_at",
	keyCol("id", "id", func(p *Patient) *string { return &p.ID }),
	strCol("name", "name", func(p *Patient) *string { return &p.Name }),
	intCol("age", "age", func(p *Patient) *int { return &p.Age }),
	strCol("city", "city", func(p *Patient) *string { return &p.City }),
	strCol("state", "state", func(p *Patient) *string { return &p.State }),
	floatCol("weight", "weight", func(p *Patient) *float64 { return &p.Weight }),
	floatCol("height", "height", func(p *Patient) *float64 { return &p.Height }),
	strCol("status", "status", func(p *Patient) *string { return &p.Status }),
	strCol("doctorId", "doctor_id", func(p *Patient) *string { return &p.DoctorID }),
	optStrCol("userId", "user_id", func(p *Patient) **string { return &p.UserID }),
	createdCol("createdAt", "created_at", func(p *Patient) *time.Time { return &p.CreatedAt }),
	timeCol("updatedAt", "updated_at", func(p *Patient) *time.Time { return &p.UpdatedAt }),
)

// PersonalData são os dados pessoais mantidos pelo próprio paciente.
type PersonalData struct {
	UserID    string    `json:"userId"`
	FullName  string    `json:"fullName"`
	BirthDate string    `json:"birthDate"`
	Gender    string    `json:"gender"`
	Phone     string    `json:"phone"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var PersonalDataSet = NewMapping("personal_data", "patient_personal_data", "updated_at",
	keyCol("userId", "user_id", func(d *PersonalData) *string { return &d.UserID }),
	strCol("fullName", "full_name", func(d *PersonalData) *string { return &d.FullName }),
	strCol("birthDate", "birth_date", func(d *PersonalData) *string { return &d.BirthDate }),
	strCol("gender", "gender", func(d *PersonalData) *string { return &d.Gender }),
	strCol("phone", "phone", func(d *PersonalData) *string { return &d.Phone }),
	strCol("city", "city", func(d *PersonalData) *string { return &d.City }),
	strCol("state", "state", func(d *PersonalData) *string { return &d.State }),
	timeCol("updatedAt", "updated_at", func(d *PersonalData) *time.Time { return &d.UpdatedAt }),
)

// MedicalData são os dados clínicos informados pelo paciente.
type MedicalData struct {
	UserID      string    `json:"userId"`
	BloodType   string    `json:"bloodType"`
	Allergies   string    `json:"allergies"`
	Conditions  string    `json:"conditions"`
	Medications string    `json:"medications"`
	Height      float64   `json:"height"`
	Weight      float64   `json:"weight"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var MedicalDataSet = NewMapping("medical_data", "patient_medical_data", "updated_at",
	keyCol("userId", "user_id", func(d *MedicalData) *string { return &d.UserID }),
	strCol("bloodType", "blood_type", func(d *MedicalData) *string { return &d.BloodType }),
	strCol("allergies", "allergies", func(d *MedicalData) *string { return &d.Allergies }),
	strCol("conditions", "conditions", func(d *MedicalData) *string { return &d.Conditions }),
	strCol("medications", "medications", func(d *MedicalData) *string { return &d.Medications }),
	floatCol("height", "height", func(d *MedicalData) *float64 { return &d.Height }),
	floatCol("weight", "weight", func(d *MedicalData) *float64 { return &d.Weight }),
	timeCol("updatedAt", "updated_at", func(d *MedicalData) *time.Time { return &d.UpdatedAt }),
)
