package account

import (
	"time"

	"github.com/monitorasaude/api/internal/schema"
)

// RegisterInput são os dados de cadastro de médico ou paciente.
type RegisterInput struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	Profession string  `json:"profession"`
	FullName   string  `json:"fullName"`
	CRM        string  `json:"crm"`
	CRMState   string  `json:"crmState"`
	Specialty  string  `json:"specialty"`
	HospitalID *string `json:"-"`
}

// ProfileInput altera dados do próprio usuário.
type ProfileInput struct {
	Email     *string `json:"email"`
	FullName  *string `json:"fullName"`
	Specialty *string `json:"specialty"`
}

// UserView é a forma pública de User, sem hash de senha.
type UserView struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Profession string    `json:"profession"`
	FullName   string    `json:"fullName"`
	CRM        string    `json:"crm,omitempty"`
	CRMState   string    `json:"crmState,omitempty"`
	Specialty  string    `json:"specialty,omitempty"`
	HospitalID *string   `json:"hospitalId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// View converte o usuário para a forma pública.
func View(u schema.User) UserView {
	return UserView{
		ID:         u.ID,
		Email:      u.Email,
		Profession: u.Profession,
		FullName:   u.FullName,
		CRM:        u.CRM,
		CRMState:   u.CRMState,
		Specialty:  u.Specialty,
		HospitalID: u.HospitalID,
		CreatedAt:  u.CreatedAt,
	}
}

// LoginResult é devolvido após autenticação.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Role      string    `json:"role"`
	User      any       `json:"user"`
}
