package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// AdminChecker verifies the admin password against a bcrypt hash.
type AdminChecker struct {
	hash []byte
}

// NewAdminChecker creates a checker. An empty hash disables admin access.
func NewAdminChecker(hash string) *AdminChecker {
	return &AdminChecker{hash: []byte(hash)}
}

// Enabled reports whether an admin credential is configured.
func (a *AdminChecker) Enabled() bool {
	return a != nil && len(a.hash) > 0
}

// Check returns ErrUnauthorized unless password matches.
func (a *AdminChecker) Check(password string) error {
	if !a.Enabled() || password == "" {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for auth.admin_password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
