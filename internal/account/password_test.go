package account

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "too short", password: "weak", wantErr: true},
		{name: "strong", password: "Str0ng!Pass", wantErr: false},
		{name: "no upper", password: "str0ng!pass", wantErr: true},
		{name: "no lower", password: "STR0NG!PASS", wantErr: true},
		{name: "no digit", password: "Strong!Pass", wantErr: true},
		{name: "no symbol", password: "Str0ngPass", wantErr: true},
		{name: "symbol outside set", password: "Str0ng#Pass", wantErr: true},
		{name: "space", password: "Str0ng! Pass", wantErr: true},
		{name: "exactly eight", password: "Ab1@abcd", wantErr: false},
		{name: "over bcrypt limit", password: "Aa1@" + strings.Repeat("a", 69), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				if !errors.Is(err, ErrWeakPassword) {
					t.Errorf("expected ErrWeakPassword, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateResetPassword(t *testing.T) {
	if err := ValidateResetPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
	if err := ValidateResetPassword("longenough"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pass", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if hash == "Str0ng!Pass" {
		t.Fatal("hash must not equal the plaintext")
	}

	a := &Account{PasswordHash: hash}
	if !CheckPassword(a, "Str0ng!Pass") {
		t.Error("expected password to match")
	}
	if CheckPassword(a, "Wr0ng!Pass") {
		t.Error("expected wrong password not to match")
	}
}
