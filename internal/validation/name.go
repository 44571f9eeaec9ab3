package validation

import (
	"errors"
	"strings"
)

// ValidateName validates the display name
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if len(trimmed) < 2 {
		return errors.New("name must be at least 2 characters")
	}

	if len(trimmed) > 50 {
		return errors.New("name is too long (max 50 characters)")
	}

	return nil
}
