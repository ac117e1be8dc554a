// utils/validation.go
package utils

import (
	"net/mail"
	"regexp"
	"strings"
)

var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// NormalizePhone strips spaces, dashes and parentheses from a phone number.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
}

// ValidatePhone checks if a phone number is in a valid international format
func ValidatePhone(phone string) bool {
	// Allows + prefix followed by 2-15 digits
	return phoneRegex.MatchString(NormalizePhone(phone))
}

// ValidateEmail checks that the address parses as a single RFC 5322 mailbox.
func ValidateEmail(email string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	return err == nil && addr.Name == "" && strings.Contains(addr.Address, "@")
}
