package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-todo-auth/internal/domain"
)

// PasswordSymbols is the set of special characters that satisfies the symbol rule.
const PasswordSymbols = "!@#$%^&*"

var (
	nameRe  = regexp.MustCompile(`^[A-Za-z.\s]+$`)
	emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

// v is the package-level singleton validator. Custom tags are registered in
// init before the first call to Struct.
var v = validator.New()

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister("personname", func(fl validator.FieldLevel) bool {
		return PersonName(fl.Field().String())
	})
	mustRegister("emailaddr", func(fl validator.FieldLevel) bool {
		return Email(fl.Field().String())
	})
	mustRegister("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	// bcrypt rejects input over 72 bytes; max= counts runes.
	mustRegister("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("register validation " + tag + ": " + err.Error())
	}
}

// Struct validates the given struct using its validate tags.
// Field failures are returned as a *domain.ValidationError keyed by JSON field name.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe)
	}
	return &domain.ValidationError{Fields: fields}
}

// PersonName accepts letters, whitespace and dots, with at least one non-space character.
func PersonName(s string) bool {
	return strings.TrimSpace(s) != "" && nameRe.MatchString(s)
}

// Email is a deliberately loose syntactic check: something@something.tld.
func Email(s string) bool {
	return emailRe.MatchString(s)
}

// StrongPassword requires at least 6 characters including one uppercase
// letter, one digit and one of PasswordSymbols.
func StrongPassword(s string) bool {
	if len([]rune(s)) < 6 {
		return false
	}
	var upper, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}
	return upper && digit && symbol
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "personname":
		return "Name can contain only letters, spaces, and dots"
	case "emailaddr":
		return "Invalid email format"
	case "strongpassword":
		return "Password must be at least 6 chars, 1 uppercase, 1 digit, 1 special char (" + PasswordSymbols + ")"
	case "max":
		return label + " must be at most " + fe.Param() + " characters"
	case "maxbytes":
		return label + " must be at most " + fe.Param() + " bytes"
	default:
		return label + " is invalid"
	}
}
