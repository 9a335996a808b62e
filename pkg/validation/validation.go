package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxResourceIDLength matches the lock_key column size.
	MaxResourceIDLength = 255

	nssLength  = 11
	curpLength = 18
)

// ValidateResourceID validates a lock key
func ValidateResourceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("resource id cannot be empty")
	}
	if n := utf8.RuneCountInString(id); n > MaxResourceIDLength {
		return fmt.Errorf("resource id too long: at most %d characters, got %d", MaxResourceIDLength, n)
	}
	return nil
}

// ValidateNSS validates a social security number (11 digits)
func ValidateNSS(nss string) error {
	if nss == "" {
		return fmt.Errorf("nss cannot be empty")
	}
	if len(nss) != nssLength {
		return fmt.Errorf("invalid nss length: expected %d digits, got %d", nssLength, len(nss))
	}
	for _, r := range nss {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid nss: %q is not a digit", r)
		}
	}
	return nil
}

// NormalizeCURP converts a CURP to upper case without surrounding spaces
func NormalizeCURP(curp string) string {
	return strings.ToUpper(strings.TrimSpace(curp))
}

// ValidateCURP validates a population registry key (18 alphanumeric characters)
func ValidateCURP(curp string) error {
	if curp == "" {
		return fmt.Errorf("curp cannot be empty")
	}
	normalized := NormalizeCURP(curp)
	if len(normalized) != curpLength {
		return fmt.Errorf("invalid curp length: expected %d characters, got %d", curpLength, len(normalized))
	}
	for _, r := range normalized {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("invalid curp: %q is not alphanumeric", r)
		}
	}
	return nil
}

// ValidateAndNormalizeCURP validates a CURP and returns its normalized form
func ValidateAndNormalizeCURP(curp string) (string, error) {
	if err := ValidateCURP(curp); err != nil {
		return "", err
	}
	return NormalizeCURP(curp), nil
}
