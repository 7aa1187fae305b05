package util

import "github.com/google/uuid"

// NewID gera identificador UUIDv7 (ordenável pelo tempo de criação).
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
