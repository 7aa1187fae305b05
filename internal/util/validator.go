package util

import (
	"errors"
	"net/mail"
	"strings"
)

// ValidationError descreve falha de validação exibível ao usuário.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid cria um ValidationError com a mensagem informada.
func Invalid(message string) error {
	return &ValidationError{Message: message}
}

// IsValidation informa se err (ou algum erro encadeado) é de validação.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NormalizeEmail remove espaços e converte para minúsculas.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return Invalid("email obrigatório")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return Invalid("email inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return Invalid("senha deve ter pelo menos 8 caracteres")
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return Invalid(field + " obrigatório")
	}
	return nil
}
