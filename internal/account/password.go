package account

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used for password digests.
const DefaultCost = 10

const (
	// MinPasswordLength applies to registration and to resets.
	MinPasswordLength = 8
	// maxPasswordBytes is the longest input bcrypt accepts.
	maxPasswordBytes = 72
	passwordSymbols  = "@$!%*?&"
)

// ValidatePassword enforces the registration policy: at least eight characters
// drawn from letters, digits and @$!%*?&, with at least one uppercase letter,
// one lowercase letter, one digit and one symbol.
func ValidatePassword(password string) error {
	weak := fmt.Errorf("%w: use at least %d characters with an uppercase letter, a lowercase letter, a number and one of %s",
		ErrWeakPassword, MinPasswordLength, passwordSymbols)

	if len(password) < MinPasswordLength || len(password) > maxPasswordBytes {
		return weak
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		default:
			return weak
		}
	}
	if !upper || !lower || !digit || !symbol {
		return weak
	}
	return nil
}

// ValidateResetPassword enforces the looser reset policy: a minimum length only.
func ValidateResetPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: it must be at least %d characters long", ErrWeakPassword, MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: it must be at most %d bytes long", ErrWeakPassword, maxPasswordBytes)
	}
	return nil
}

// HashPassword returns the salted bcrypt digest of password.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against the account's digest.
func CheckPassword(a *Account, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}
