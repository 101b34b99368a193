// package validate
package validate

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Validator is a function that validates a string and returns an error if invalid
type Validator func(value string) error

// Field creates a labeled validator with a custom name for better error messages
func Field(name string, validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				if !strings.Contains(err.Error(), name) {
					return fmt.Errorf("%s: %w", name, err)
				}
				return err
			}
		}
		return nil
	}
}

// Compose chains multiple validators, first error wins
func Compose(validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				return err
			}
		}
		return nil
	}
}

// Required ensures the field is not empty
func Required() Validator {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	}
}

// MaxLength checks maximum length
func MaxLength(max int) Validator {
	return func(v string) error {
		if len(v) > max {
			return fmt.Errorf("must be no more than %d characters", max)
		}
		return nil
	}
}

// Printable rejects control characters
func Printable() Validator {
	return func(v string) error {
		for _, r := range v {
			if unicode.IsControl(r) && r != '\n' && r != '\t' {
				return fmt.Errorf("must not contain control characters")
			}
		}
		return nil
	}
}

// HTTPURL accepts empty values or absolute http(s) URLs
func HTTPURL() Validator {
	return func(v string) error {
		if v == "" {
			return nil
		}
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("must be an absolute http(s) URL")
		}
		return nil
	}
}

// NonNegative checks a numeric field
func NonNegative[T int64 | float64](name string, v T) error {
	if v < 0 {
		return fmt.Errorf("%s: must not be negative", name)
	}
	return nil
}
