package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 20
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NormalizeUsername folds compatibility characters, trims and lowercases a username
func NormalizeUsername(input string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(input)))
}

// ValidateUsername checks a username against the claim rules.
// The Message of a returned ValidationError is safe to show to the learner.
func ValidateUsername(input string) error {
	name := strings.TrimSpace(norm.NFKC.String(input))
	if name == "" {
		return ValidationError{Field: "username", Message: "Please choose a username."}
	}
	length := utf8.RuneCountInString(name)
	if length < UsernameMinLength || length > UsernameMaxLength {
		return ValidationError{
			Field:   "username",
			Message: fmt.Sprintf("Username must be between %d and %d characters.", UsernameMinLength, UsernameMaxLength),
		}
	}
	if !usernameRegex.MatchString(name) {
		return ValidationError{Field: "username", Message: "Username may only contain letters, numbers, hyphens and underscores."}
	}
	return nil
}

// UserMessage extracts the learner-facing message from a validation error
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}
