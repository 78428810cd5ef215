package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kbukum/photoflow/errors"
)

// DateLayout is the accepted calendar date format.
const DateLayout = "2006-01-02"

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns a configuration fault if there are validation errors, nil otherwise.
func (v *Validator) Validate() *errors.AppError {
	if !v.HasErrors() {
		return nil
	}
	return fieldsError(v.errors)
}

// Err is Validate returning a plain error, so a nil result compares equal to nil.
func (v *Validator) Err() error {
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func fieldsError(fields []FieldError) *errors.AppError {
	messages := make([]string, len(fields))
	for i, e := range fields {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	appErr := errors.New(errors.ErrCodeInvalidArgument, strings.Join(messages, "; "))
	appErr.Details = map[string]any{
		"fields": fields,
	}
	return appErr
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// DateOrder checks that start is not after end when both are valid dates.
func (v *Validator) DateOrder(startField, start, endField, end string) *Validator {
	s, err1 := time.Parse(DateLayout, start)
	e, err2 := time.Parse(DateLayout, end)
	if err1 != nil || err2 != nil {
		return v
	}
	if s.After(e) {
		v.AddError(startField, fmt.Sprintf("must not be after %s", endField))
	}
	return v
}

// Positive checks that a number is greater than zero.
func (v *Validator) Positive(field string, value int) *Validator {
	if value <= 0 {
		v.AddError(field, "must be positive")
	}
	return v
}

// Pattern checks if a string matches a regex pattern.
func (v *Validator) Pattern(field, value, pattern string) *Validator {
	if value == "" {
		return v
	}
	matched, err := regexp.MatchString(pattern, value)
	if err != nil || !matched {
		v.AddError(field, "does not match required format")
	}
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}

// Required validates a single required field and returns an error if empty.
func Required(field, value string) error {
	return New().Required(field, value).Err()
}

// ParseDate parses a YYYY-MM-DD date, returning a configuration fault on failure.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, errors.InvalidArgument(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}
