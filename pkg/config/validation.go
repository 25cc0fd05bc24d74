package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError is a single configuration problem, keyed by env var name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Fields lists the offending env var names in order.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, err := range e {
		fields = append(fields, err.Field)
	}
	return fields
}

// Validator checks one config section.
type Validator func() ValidationErrors

// Validate runs every validator and returns the combined errors, or nil.
func Validate(validators ...Validator) error {
	var all ValidationErrors
	for _, validator := range validators {
		all = append(all, validator()...)
	}
	if len(all) > 0 {
		return all
	}
	return nil
}

func RequireNonEmpty(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

func RequirePositive(field string, value int) *ValidationError {
	if value <= 0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be positive, got %d", value)}
	}
	return nil
}

func RequirePositiveDuration(field string, value time.Duration) *ValidationError {
	if value <= 0 {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be positive, got %v", value)}
	}
	return nil
}

func RequireMinLength(field, value string, minLength int) *ValidationError {
	if len(value) < minLength {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters, got %d", minLength, len(value))}
	}
	return nil
}

// RequireValidURL checks that value parses and carries a scheme and host.
func RequireValidURL(field, value string) *ValidationError {
	if err := RequireNonEmpty(field, value); err != nil {
		return err
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return &ValidationError{Field: field, Message: "URL must be absolute (http:// or https://)"}
	}
	return nil
}

func RequireOneOf(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v, got %q", allowed, value)}
}

// CollectErrors drops the nils.
func CollectErrors(errors ...*ValidationError) ValidationErrors {
	var result ValidationErrors
	for _, err := range errors {
		if err != nil {
			result = append(result, *err)
		}
	}
	return result
}
