package flows

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/goSession/apierr"
)

const (
	minPasswordBytes = 8
	maxPasswordBytes = 72
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkInput runs struct-tag validation and turns the first failure into a
// Validation error with a readable message.
func checkInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apierr.Validation("invalid input")
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return apierr.Validation(field + " is required")
	case "email":
		return apierr.Validation("email address is invalid")
	default:
		return apierr.Validation(fmt.Sprintf("%s is invalid", field))
	}
}

// checkPassword enforces the byte-length window the identity service accepts.
func checkPassword(field, password string) error {
	switch {
	case len(password) < minPasswordBytes:
		return apierr.Validation(fmt.Sprintf("%s must be at least %d characters", field, minPasswordBytes))
	case len(password) > maxPasswordBytes:
		return apierr.Validation(fmt.Sprintf("%s must not exceed %d bytes", field, maxPasswordBytes))
	}
	return nil
}

func validEmail(email string) bool {
	return validate.Var(email, "email") == nil
}
