// Package validator plugs go-playground/validator into echo.
package validator

import (
	"reflect"
	"strings"

	"idlink/internal/domain/entity"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// CustomValidator implements echo.Validator.
type CustomValidator struct {
	validate *validator.Validate
}

// New builds the validator. The "username" tag enforces the username charset and usernameMaxLength.
func New(usernameMaxLength int) *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their form name so clients can match errors to inputs.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}

		return name
	})

	// The function never fails for a non-empty tag, so the error is only a programming mistake.
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return entity.IsValidUsername(fl.Field().String(), usernameMaxLength)
	}); err != nil {
		panic(err)
	}

	return &CustomValidator{validate: v}
}

// Validate runs the struct tags of i.
func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validate.Struct(i); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// FieldErrors maps each failing field to the rule it broke. It returns nil when err
// does not carry validation errors.
func FieldErrors(err error) map[string]string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	fields := make(map[string]string, len(validationErrs))
	for _, fe := range validationErrs {
		fields[fe.Field()] = fe.Tag()
	}

	return fields
}
