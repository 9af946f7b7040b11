package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tinoosan/finman/internal/errs"
)

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 3

// MaxPasswordLen is the longest password bcrypt can hash, in bytes.
const MaxPasswordLen = 72

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters: %w", MinPasswordLen, errs.ErrUnprocessable)
	}
	if len(password) > MaxPasswordLen {
		return "", fmt.Errorf("password must be at most %d bytes: %w", MaxPasswordLen, errs.ErrUnprocessable)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
