package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	return v
}

// ValidationError lists the constraints a payload failed.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Violations, "; ")
}

// Validate checks s against its validate tags.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	violations := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "strongpassword" {
			violations = append(violations, "Weak password.")
			continue
		}
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		violations = append(violations, fmt.Sprintf("%s failed on the '%s' constraint", field, fe.Tag()))
	}
	return &ValidationError{Violations: violations}
}

// IsStrongPassword requires an upper and a lower case letter plus a digit or
// a symbol, and rejects passwords starting with a dot or a newline.
func IsStrongPassword(password string) bool {
	if password == "" || password[0] == '.' || password[0] == '\n' {
		return false
	}

	var upper, lower, digitOrSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digitOrSymbol = true
		case r != '_' && !unicode.IsLetter(r):
			digitOrSymbol = true
		}
	}
	return upper && lower && digitOrSymbol
}
