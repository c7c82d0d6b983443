package validation

import "fmt"

// IsValidIdentifierChar checks if a character is valid for identifiers
// (alphanumeric, hyphen, or underscore).
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// ValidateGraphName checks that a graph name can be used as a file name in
// the graphs directory.
func ValidateGraphName(name string) error {
	if name == "" {
		return fmt.Errorf("graph name cannot be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("graph name too long: %d characters", len(name))
	}
	for _, ch := range name {
		if !IsValidIdentifierChar(ch) {
			return fmt.Errorf("graph name %q contains invalid character %q", name, ch)
		}
	}
	return nil
}
