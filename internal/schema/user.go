package schema

import "time"

const (
	ProfessionDoctor  = "medico"
	ProfessionPatient = "paciente"
)

// User é uma conta de médico ou paciente.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Profession   string    `json:"profession"`
	FullName     string    `json:"fullName"`
	CRM          string    `json:"crm"`
	CRMState     string    `json:"crmState"`
	Specialty    string    `json:"specialty"`
	HospitalID   *string   `json:"hospitalId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsDoctor informa se a conta é de médico.
func (u User) IsDoctor() bool {
	return u.Profession == ProfessionDoctor
}

var Users = NewMapping("user", "users", "created_at",
	keyCol("id", "id", func(u *User) *string { return &u.ID }),
	strCol("email", "email", func(u *User) *string { return &u.Email }),
	strCol("passwordHash", "password_hash", func(u *User) *string { return &u.PasswordHash }),
	strCol("profession", "profession", func(u *User) *string { return &u.Profession }),
	strCol("fullName", "full_name", func(u *User) *string { return &u.FullName }),
	strCol("crm", "crm", func(u *User) *string { return &u.CRM }),
	strCol("crmState", "crm_state", func(u *User) *string { return &u.CRMState }),
	strCol("specialty", "specialty", func(u *User) *string { return &u.Specialty }),
	optStrCol("hospitalId", "hospital_id", func(u *User) **string { return &u.HospitalID }),
	createdCol("createdAt", "created_at", func(u *User) *time.Time { return &u.CreatedAt }),
	timeCol("updatedAt", "updated_at", func(u *User) *time.Time { return &u.UpdatedAt }),
)

// Admin administra metadados e sincronização.
type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
}

var Admins = NewMapping("admin", "admins", "created_at",
	keyCol("id", "id", func(a *Admin) *string { return &a.ID }),
	strCol("email", "email", func(a *Admin) *string { return &a.Email }),
	strCol("passwordHash", "password_hash", func(a *Admin) *string { return &a.PasswordHash }),
	strCol("name", "name", func(a *Admin) *string { return &a.Name }),
	createdCol("createdAt", "created_at", func(a *Admin) *time.Time { return &a.CreatedAt }),
)

// Hospital agrupa médicos vinculados.
type Hospital struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var Hospitals = NewMapping("hospital", "hospitals", "created_at",
	keyCol("id", "id", func(h *Hospital) *string { return &h.ID }),
	strCol("name", "name", func(h *Hospital) *string { return &h.Name }),
	strCol("email", "email", func(h *Hospital) *string { return &h.Email }),
	strCol("passwordHash", "password_hash", func(h *Hospital) *string { return &h.PasswordHash }),
	createdCol("createdAt", "created_at", func(h *Hospital) *time.Time { return &h.CreatedAt }),
	timeCol("updatedAt", "updated_at", func(h *Hospital) *time.Time { return &h.UpdatedAt }),
)
