// internal/app/system/authutil/authutil.go
// Package authutil provides centralized password hashing and
// credential validation for account and share passwords.
package authutil

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The email address users type to log in

import (
	"errors"
	"strings"
)

// Credential validation errors
var (
	ErrEmailRequired    = errors.New("Email is required.")
	ErrInvalidEmail     = errors.New("Please enter a valid email address.")
	ErrPasswordRequired = errors.New("Password is required.")
)

// isValidEmail performs a basic email format validation.
// It checks for the presence of @ and at least one character on each side.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	// Local part must not be empty
	if len(parts[0]) == 0 {
		return false
	}
	// Domain must contain at least one dot after @
	domain := parts[1]
	dotIdx := strings.LastIndex(domain, ".")
	if dotIdx < 1 || dotIdx >= len(domain)-1 {
		return false
	}
	return true
}

// CredentialInput holds the raw form values for account credentials.
type CredentialInput struct {
	Email    string
	Password string
	IsEdit   bool // If true, password is optional (leave blank to keep existing)
}

// CredentialResult holds the validated and processed fields ready for storage.
type CredentialResult struct {
	LoginID      string  // normalized email to store as login_id
	PasswordHash *string // bcrypt hash (set if password provided)
}

// ValidateAndResolve validates account credentials and returns the resolved
// fields ready for storage.
func ValidateAndResolve(input CredentialInput) (*CredentialResult, error) {
	if input.Email == "" {
		return nil, ErrEmailRequired
	}
	if !isValidEmail(input.Email) {
		return nil, ErrInvalidEmail
	}
	if input.Password == "" && !input.IsEdit {
		return nil, ErrPasswordRequired
	}

	result := &CredentialResult{
		LoginID: strings.ToLower(strings.TrimSpace(input.Email)),
	}

	if input.Password != "" {
		if err := ValidatePassword(input.Password); err != nil {
			return nil, err
		}
		hash, err := HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		result.PasswordHash = &hash
	}

	return result, nil
}
