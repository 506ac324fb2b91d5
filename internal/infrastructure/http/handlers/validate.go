package handlers

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cookbookhq/backend/pkg/errors"
)

// validate checks request payloads. Field names in violation messages come
// from the json tags so they match what the caller actually sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// required rejects the zero value; notblank also rejects whitespace.
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// validateRequest maps the first violation to a BAD_REQUEST error.
func validateRequest(payload interface{}) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		switch first.Tag() {
		case "required", "notblank":
			return errors.NewBadRequestError(fmt.Sprintf("%s must not be blank", first.Field()))
		default:
			return errors.NewBadRequestError(fmt.Sprintf("%s is invalid", first.Field()))
		}
	}

	return errors.NewBadRequestError("invalid request payload")
}
