package account

import (
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/dugoutlabs/dugout/internal/platform/errors"
)

// MinPasswordLength is the local floor for password length. The credential
// provider enforces its own policy on top; both surface as WEAK_PASSWORD.
const MinPasswordLength = 8

var (
	// ErrEmptyEmail indicates a missing email address.
	ErrEmptyEmail = apperrors.New(apperrors.CodeEmailEmpty, "email is required")
	// ErrInvalidEmail indicates an email that does not match the required shape.
	ErrInvalidEmail = apperrors.New(apperrors.CodeEmailInvalid, "email address is invalid")

	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail enforces the canonical email shape used across signup,
// sign-in, and invite lookup.
func ValidateEmail(email string) error {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return ErrEmptyEmail
	}
	if !emailPattern.MatchString(normalized) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the local password floor.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperrors.WithMetadata(
			apperrors.CodePasswordTooShort,
			"password is too short",
			map[string]string{"MinLength": strconv.Itoa(MinPasswordLength)},
		)
	}
	return nil
}
