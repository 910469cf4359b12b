package types

import (
	"fmt"
	"strings"
	"unicode"
)

// KeyValidationConfig controls cache key validation rules.
type KeyValidationConfig struct {
	ReservedPrefixes  []string
	MaxKeyLength      int
	AllowEmpty        bool
	AllowControlChars bool
	AllowWhitespace   bool
}

// DefaultKeyValidationConfig returns the default validation rules.
func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{
		MaxKeyLength:      1024,
		AllowEmpty:        false,
		AllowControlChars: false,
		AllowWhitespace:   true,
	}
}

// KeyValidator rejects keys that would misbehave in a shared namespace.
type KeyValidator struct {
	config KeyValidationConfig
}

func NewKeyValidator(config KeyValidationConfig) *KeyValidator {
	if config.MaxKeyLength <= 0 {
		config.MaxKeyLength = 1024
	}
	return &KeyValidator{config: config}
}

// Validate checks a cache key against the configured rules.
func (v *KeyValidator) Validate(key string) error {
	if key == "" {
		if v.config.AllowEmpty {
			return nil
		}
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}

	if len(key) > v.config.MaxKeyLength {
		return fmt.Errorf("%w: key length %d exceeds maximum %d",
			ErrInvalidKey, len(key), v.config.MaxKeyLength)
	}

	for _, r := range key {
		if !v.config.AllowControlChars && unicode.IsControl(r) {
			return fmt.Errorf("%w: key contains control character", ErrInvalidKey)
		}
		if !v.config.AllowWhitespace && unicode.IsSpace(r) {
			return fmt.Errorf("%w: key contains whitespace", ErrInvalidKey)
		}
	}

	for _, prefix := range v.config.ReservedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return fmt.Errorf("%w: key uses reserved prefix %q", ErrInvalidKey, prefix)
		}
	}

	return nil
}
