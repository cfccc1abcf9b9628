package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// validate is shared by the rules below; validator caches parsed tags and is
// safe for concurrent use.
var validate = validator.New()

// emailPattern: local-part "@" domain "." tld, no whitespace and no second "@".
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// PasswordSymbols is the fixed set a strong password must draw at least one
// character from.
const PasswordSymbols = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"

// MinPasswordLength is the shortest password PasswordStrength accepts.
const MinPasswordLength = 8

// Required fails on nil (absent) and on the empty string. Zero numbers and
// false booleans count as present.
func Required(field string) Rule {
	return Rule{
		Validate: func(value any) bool {
			switch v := value.(type) {
			case nil:
				return false
			case string:
				return v != ""
			default:
				return true
			}
		},
		Message: fmt.Sprintf("%s is required", field),
	}
}

// Email fails unless value is a string shaped like an email address.
func Email(field string) Rule {
	return Rule{
		Validate: func(value any) bool {
			s, ok := value.(string)
			return ok && emailPattern.MatchString(s)
		},
		Message: fmt.Sprintf("%s must be a valid email address", field),
	}
}

// MinLength fails unless value is a string of at least n characters.
func MinLength(field string, n int) Rule {
	tag := fmt.Sprintf("min=%d", n)
	return Rule{
		Validate: func(value any) bool {
			s, ok := value.(string)
			return ok && validate.Var(s, tag) == nil
		},
		Message: fmt.Sprintf("%s must be at least %d characters", field, n),
	}
}

// PasswordStrength fails unless value is a string of at least
// MinPasswordLength characters with a lowercase letter, an uppercase letter,
// a digit and one of PasswordSymbols.
func PasswordStrength(field string) Rule {
	return Rule{
		Validate: func(value any) bool {
			s, ok := value.(string)
			if !ok || utf8.RuneCountInString(s) < MinPasswordLength {
				return false
			}

			var lower, upper, digit, symbol bool
			for _, r := range s {
				switch {
				case r >= 'a' && r <= 'z':
					lower = true
				case r >= 'A' && r <= 'Z':
					upper = true
				case unicode.IsDigit(r):
					digit = true
				case strings.ContainsRune(PasswordSymbols, r):
					symbol = true
				}
			}
			return lower && upper && digit && symbol
		},
		Message: fmt.Sprintf("%s must include upper and lower case letters, a number and a symbol", field),
	}
}
