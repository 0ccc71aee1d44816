// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"chirp/internal/models"

	"github.com/google/uuid"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 6
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// Required fails when any of the named fields is absent, nil or an empty string.
func Required(fields []string, data map[string]any) error {
	var missing []string
	for _, field := range fields {
		value, ok := data[field]
		if !ok || value == nil {
			missing = append(missing, field)
			continue
		}
		if s, isString := value.(string); isString && s == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return models.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// Email checks the local@domain.tld shape.
func Email(email string) error {
	if !emailPattern.MatchString(email) {
		return models.NewValidationError("invalid email format")
	}
	return nil
}

// StringLength checks that value has between min and max characters.
// A max of zero or less leaves the upper bound open.
func StringLength(value any, minLen, maxLen int, label string) error {
	s, ok := value.(string)
	if !ok {
		return models.NewValidationError(label + " must be a string")
	}
	n := utf8.RuneCountInString(s)
	if n < minLen {
		return models.NewValidationError(fmt.Sprintf("%s must have at least %d characters (current: %d)", label, minLen, n))
	}
	if maxLen > 0 && n > maxLen {
		return models.NewValidationError(fmt.Sprintf("%s must have at most %d characters (current: %d)", label, maxLen, n))
	}
	return nil
}

// ObjectID checks that value is a well-formed identifier.
func ObjectID(value, label string) error {
	if value == "" {
		return models.NewValidationError(label + " is required")
	}
	if _, err := uuid.Parse(value); err != nil {
		return models.NewValidationError("invalid " + label)
	}
	return nil
}

// Username checks length and charset (letters, digits, underscore).
func Username(username string) error {
	if err := StringLength(username, MinUsernameLength, MaxUsernameLength, "username"); err != nil {
		return err
	}
	if !usernamePattern.MatchString(username) {
		return models.NewValidationError("username may only contain letters, numbers and underscores")
	}
	return nil
}

// Password checks the minimum credential length.
func Password(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return models.NewValidationError(fmt.Sprintf("password must have at least %d characters", MinPasswordLength))
	}
	return nil
}

// Array fails unless value is a slice or an array.
func Array(value any, label string) error {
	if value == nil {
		return models.NewValidationError(label + " must be an array")
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return nil
	default:
		return models.NewValidationError(label + " must be an array")
	}
}
