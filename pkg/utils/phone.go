package utils

import (
	"regexp"
	"strings"
)

// Vietnamese numbers: 9-11 digits, optionally prefixed +84 or 0.
var phoneRegex = regexp.MustCompile(`^(\+84|0)?[0-9]{9,11}$`)

// NormalizePhone strips spaces before validation and storage.
func NormalizePhone(phone string) string {
	return strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
}

// ValidatePhone validates phone number format. Empty is handled by callers;
// the fields are optional.
func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(NormalizePhone(phone)) {
		return &ValidationError{Field: "phone", Message: "Invalid phone number format"}
	}
	return nil
}
