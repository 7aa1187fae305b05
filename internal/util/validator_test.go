package util

import (
	"fmt"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		email string
		ok    bool
	}{
		{"ana@exemplo.com", true},
		{"", false},
		{"sem-arroba", false},
		{"Ana <ana@exemplo.com>", false},
	}

	for _, tc := range cases {
		err := ValidateEmail(tc.email)
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.email, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("%q: expected error", tc.email)
			}
			if !IsValidation(err) {
				t.Fatalf("%q: expected validation error, got %T", tc.email, err)
			}
		}
	}
}

func TestIsValidationWrapped(t *testing.T) {
	err := fmt.Errorf("cadastro: %w", Invalid("nome obrigatório"))
	if !IsValidation(err) {
		t.Fatal("expected wrapped validation error to be detected")
	}
	if IsValidation(fmt.Errorf("outro")) {
		t.Fatal("plain error must not be validation")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ana@Exemplo.COM "); got != "ana@exemplo.com" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicated id %s", id)
		}
		seen[id] = struct{}{}
	}
}
