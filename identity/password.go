package identity

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password registration accepts.
const MinPasswordLength = 6

// Local password rules, checked before the provider is contacted.
var (
	ErrPasswordTooShort    = errors.New("password must be at least 6 characters long")
	ErrPasswordNoUppercase = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLowercase = errors.New("password must contain at least one lowercase letter")
)

// ValidatePassword applies the registration rules in order and reports the
// first one that fails.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		return ErrPasswordNoUppercase
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		return ErrPasswordNoLowercase
	}
	return nil
}

// validEmail accepts a bare address such as "a@b.co".
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}
