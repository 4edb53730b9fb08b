package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxFamilyNameLength  = 80
	MaxBoardTitleLength  = 200
	MaxDescriptionLength = 2000
	MaxPostBodyLength    = 10000
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NormalizeEmail checks an email address, which may carry a display name
// ("Gran <gran@example.com>"), and returns the bare lower-cased address
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ValidationError{Field: "email", Message: "email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || !emailRegex.MatchString(addr.Address) {
		return "", ValidationError{Field: "email", Message: "invalid email format"}
	}
	return strings.ToLower(addr.Address), nil
}

// FamilyName trims and checks a family name
func FamilyName(name string) (string, error) {
	return text("name", name, MaxFamilyNameLength, true)
}

// BoardTitle trims and checks a board title
func BoardTitle(title string) (string, error) {
	return text("title", title, MaxBoardTitleLength, true)
}

// Description trims and checks an optional board description
func Description(description string) (string, error) {
	return text("description", description, MaxDescriptionLength, false)
}

// PostBody trims and checks a post body
func PostBody(body string) (string, error) {
	return text("body", body, MaxPostBodyLength, true)
}

func text(field, value string, maxLen int, required bool) (string, error) {
	value = strings.TrimSpace(value)
	if required && value == "" {
		return "", ValidationError{Field: field, Message: field + " is required"}
	}
	if utf8.RuneCountInString(value) > maxLen {
		return "", ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, maxLen)}
	}
	return value, nil
}
