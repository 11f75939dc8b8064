package common

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError is one failed rule for one setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s=%q %s", e.Field, fmt.Sprint(e.Value), e.Message)
}

// Validator collects every failure instead of stopping at the first one.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules to value and records each failure under name.
func (v *Validator) Field(name string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(name, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// ErrorMessage joins all failures with "; ".
func (v *Validator) ErrorMessage() string {
	msgs := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

type ValidationRule func(name string, value any) *ValidationError

// Required rejects nil and blank strings.
func Required(name string, value any) *ValidationError {
	blank := value == nil
	if s, ok := value.(string); ok {
		blank = strings.TrimSpace(s) == ""
	}
	if blank {
		return &ValidationError{Field: name, Value: value, Message: "is required"}
	}
	return nil
}

// OneOf accepts only the listed string values.
func OneOf(allowed ...string) ValidationRule {
	return func(name string, value any) *ValidationError {
		s, _ := value.(string)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return &ValidationError{
			Field:   name,
			Value:   value,
			Message: "must be one of " + strings.Join(allowed, ", "),
		}
	}
}

// Matches accepts strings matching re.
func Matches(re *regexp.Regexp, message string) ValidationRule {
	return func(name string, value any) *ValidationError {
		if s, _ := value.(string); re.MatchString(s) {
			return nil
		}
		return &ValidationError{Field: name, Value: value, Message: message}
	}
}
