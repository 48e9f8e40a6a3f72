// Package validation checks user input before it reaches the engine or an upstream
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/giygas/medcompare-api/entities"
	"github.com/giygas/medcompare-api/interfaces"
	"github.com/go-playground/validator/v10"
)

var (
	// Medication names: letters in any script, digits and the punctuation found in brand names
	inputRegex = regexp.MustCompile(`^[\p{L}\p{M}0-9\s\-\.\+'(),/%]+$`)

	medicationIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "url(",
		// SQL injection patterns
		"' or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

const (
	minInputLength = 2
	maxInputLength = 100
	maxInputWords  = 8
	maxRepetition  = 10
)

// Validator implements interfaces.InputValidator
type Validator struct {
	structs *validator.Validate
}

// Compile-time check to ensure Validator implements InputValidator
var _ interfaces.InputValidator = (*Validator)(nil)

// NewValidator creates a validator that reports struct errors by JSON field name
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{structs: v}
}

// ValidateInput checks a free-text medication name
func (v *Validator) ValidateInput(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if n := len([]rune(trimmed)); n < minInputLength {
		return fmt.Errorf("input too short: minimum %d characters", minInputLength)
	} else if n > maxInputLength {
		return fmt.Errorf("input too long: maximum %d characters", maxInputLength)
	}

	if len(strings.Fields(trimmed)) > maxInputWords {
		return fmt.Errorf("search query too complex: maximum %d words allowed", maxInputWords)
	}

	lowerInput := strings.ToLower(trimmed)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(trimmed) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces and - . + ' ( ) , / %% are allowed")
	}

	if hasExcessiveRepetition(trimmed) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateMedicationID checks an identifier taken from a path or body
func (v *Validator) ValidateMedicationID(input string) (entities.MedicationID, error) {
	id := strings.TrimSpace(input)
	if id == "" {
		return "", fmt.Errorf("medication id cannot be empty")
	}
	if !medicationIDRegex.MatchString(id) {
		return "", fmt.Errorf("medication id must be 1-64 letters, digits, '-' or '_'")
	}
	return entities.MedicationID(id), nil
}

// ValidateStruct applies the `validate` tags of a decoded body and joins every
// violation into one readable error
func (v *Validator) ValidateStruct(s any) error {
	err := v.structs.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
}

// hasExcessiveRepetition flags the same character repeated more than maxRepetition times
func hasExcessiveRepetition(input string) bool {
	run := 1
	var prev rune
	for i, r := range input {
		if i > 0 && r == prev {
			run++
			if run > maxRepetition {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	return false
}
