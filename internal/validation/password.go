// Package validation contains input validation rules for accounts and
// user-submitted content.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	passwordMinLength = 12
	passwordMaxLength = 128
)

// ValidatePassword enforces the account password policy: length bounds plus
// at least one upper, lower, digit and special character.
func ValidatePassword(password string) error {
	length := len([]rune(password))
	if length < passwordMinLength {
		return fmt.Errorf("password must be at least %d characters", passwordMinLength)
	}
	if length > passwordMaxLength {
		return fmt.Errorf("password must be at most %d characters", passwordMaxLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("password must contain an uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain a lowercase letter")
	}
	if !hasDigit {
		return fmt.Errorf("password must contain a digit")
	}
	if !hasSpecial {
		return fmt.Errorf("password must contain a special character")
	}
	return nil
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_]*[a-zA-Z0-9]$`)

// ValidateUsername enforces the username format: 3-32 characters, letters,
// digits and underscores, starting and ending with a letter or digit.
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 32 {
		return fmt.Errorf("username must be 3-32 characters")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may contain only letters, digits and underscores, and must start and end with a letter or digit")
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[a-zA-Z]{2,}$`)

// ValidateEmail performs a pragmatic email format check.
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email is too long")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at > 64 {
		return fmt.Errorf("email format is invalid")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("email format is invalid")
	}
	return nil
}
