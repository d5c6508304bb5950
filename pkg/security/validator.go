package security

import (
	"errors"
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// SafeTextTag is the validator tag that rejects unsafe free text
const SafeTextTag = "safetext"

// dangerousPatterns contains patterns that indicate markup injection.
// Values only reach SQL as bound parameters.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(<script|</script|javascript:|vbscript:|onload\s*=|onerror\s*=)`),
}

var (
	// ErrControlCharacter is returned when text contains non-printable characters
	ErrControlCharacter = errors.New("text contains control characters")
	// ErrDangerousPattern is returned when text matches a markup injection pattern
	ErrDangerousPattern = errors.New("text contains invalid characters")
)

// ValidateText checks that a free-text value is safe to store and echo back.
// Empty text is valid; presence is enforced by the "required" tag.
func ValidateText(text string) error {
	for _, char := range text {
		if unicode.IsControl(char) {
			return ErrControlCharacter
		}
	}

	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(text) {
			return ErrDangerousPattern
		}
	}

	return nil
}

// RegisterValidators installs the security tags on v
func RegisterValidators(v *validator.Validate) error {
	return v.RegisterValidation(SafeTextTag, func(fl validator.FieldLevel) bool {
		return ValidateText(fl.Field().String()) == nil
	})
}
