package services

import (
	"errors"
	"strings"

	"healthcare-companion-server/internal/utils"
)

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden: insufficient permissions")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("refresh token is invalid, expired, or revoked")
)

// ValidationError reports request fields that failed a rule.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func invalid(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// validateCommand runs the struct's binding rules and converts failures
// into a ValidationError.
func validateCommand(cmd any) error {
	if err := utils.Validate(cmd); err != nil {
		return &ValidationError{Fields: utils.ValidationMessages(err)}
	}
	return nil
}
