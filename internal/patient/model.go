package patient

import (
	"strings"
	"time"

	"github.com/monitorasaude/api/internal/schema"
	"github.com/monitorasaude/api/internal/util"
)

// Filter restringe a listagem do médico.
type Filter struct {
	Status string
	Name   string
}

// Input cria um paciente.
type Input struct {
	Name   string  `json:"name"`
	Age    int     `json:"age"`
	City   string  `json:"city"`
	State  string  `json:"state"`
	Weight float64 `json:"weight"`
	Height float64 `json:"height"`
	Status string  `json:"status"`
	UserID *string `json:"userId"`
}

// UpdateInput altera campos informados.
type UpdateInput struct {
	Name   *string  `json:"name"`
	Age    *int     `json:"age"`
	City   *string  `json:"city"`
	State  *string  `json:"state"`
	Weight *float64 `json:"weight"`
	Height *float64 `json:"height"`
	Status *string  `json:"status"`
}

// PersonalInput são os dados pessoais editáveis pelo paciente.
type PersonalInput struct {
	FullName  string `json:"fullName"`
	BirthDate string `json:"birthDate"`
	Gender    string `json:"gender"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	State     string `json:"state"`
}

// MedicalInput são os dados clínicos editáveis pelo paciente.
type MedicalInput struct {
	BloodType   string  `json:"bloodType"`
	Allergies   string  `json:"allergies"`
	Conditions  string  `json:"conditions"`
	Medications string  `json:"medications"`
	Height      float64 `json:"height"`
	Weight      float64 `json:"weight"`
}

var bloodTypes = map[string]bool{
	"": true, "A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

func validStatus(status string) bool {
	return status == schema.StatusActive || status == schema.StatusInactive
}

func validateMeasures(age int, weight, height float64) error {
	if age < 0 || age > 150 {
		return util.Invalid("idade inválida")
	}
	if weight < 0 || height < 0 {
		return util.Invalid("peso e altura não podem ser negativos")
	}
	return nil
}

func validateState(state string) error {
	if state != "" && len(state) != 2 {
		return util.Invalid("UF inválida")
	}
	return nil
}

func (in *PersonalInput) normalize() error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.BirthDate = strings.TrimSpace(in.BirthDate)
	in.Gender = strings.TrimSpace(in.Gender)
	in.Phone = strings.TrimSpace(in.Phone)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.ToUpper(strings.TrimSpace(in.State))

	if in.BirthDate != "" {
		if _, err := time.Parse(time.DateOnly, in.BirthDate); err != nil {
			return util.Invalid("data de nascimento inválida")
		}
	}
	return validateState(in.State)
}

func (in *MedicalInput) normalize() error {
	in.BloodType = strings.ToUpper(strings.TrimSpace(in.BloodType))
	if !bloodTypes[in.BloodType] {
		return util.Invalid("tipo sanguíneo inválido")
	}
	if in.Height < 0 || in.Weight < 0 {
		return util.Invalid("peso e altura não podem ser negativos")
	}
	return nil
}

// ageAt calcula a idade em anos completos.
func ageAt(birthDate string, now time.Time) int {
	born, err := time.Parse(time.DateOnly, birthDate)
	if err != nil {
		return 0
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
