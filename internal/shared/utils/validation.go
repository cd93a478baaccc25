package utils

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	vo "github.com/rackgrid/rackgrid/internal/domain/subscription/valueobjects"
	"github.com/rackgrid/rackgrid/internal/shared/errors"
)

// RegisterValidators installs the json tag name func and the catalog
// validators ("plan", "period") on v. The router calls it with gin's
// binding engine.
func RegisterValidators(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("plan", func(fl validator.FieldLevel) bool {
		_, err := vo.ParsePlanID(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("register plan validator: %w", err)
	}

	if err := v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		_, err := vo.ParseBillingPeriod(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("register period validator: %w", err)
	}
	return nil
}

// BindingError turns a ShouldBind failure into a validation AppError with a
// readable message per field.
func BindingError(err error) error {
	var validationErrors validator.ValidationErrors
	if stderrors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			messages = append(messages, fieldErrorMessage(fe))
		}
		return errors.NewValidationError("Validation failed", strings.Join(messages, "; "))
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.Is(err, io.EOF):
		return errors.NewValidationError("request body is required")
	case stderrors.As(err, &syntaxErr):
		return errors.NewValidationError("request body is not valid JSON")
	case stderrors.As(err, &typeErr):
		return errors.NewValidationError("invalid request body", fmt.Sprintf("%s has the wrong type", typeErr.Field))
	default:
		return errors.NewValidationError("invalid request body", err.Error())
	}
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "plan":
		return fmt.Sprintf("%s must be one of [%s]", field, planIDs())
	case "period":
		return fmt.Sprintf("%s must be one of [%s]", field, periodIDs())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, param)
	default:
		return fmt.Sprintf("%s failed validation for '%s'", field, fe.Tag())
	}
}

func planIDs() string {
	ids := make([]string, 0, len(vo.Plans()))
	for _, p := range vo.Plans() {
		ids = append(ids, p.ID.String())
	}
	return strings.Join(ids, " ")
}

func periodIDs() string {
	ids := make([]string, 0, len(vo.BillingPeriods()))
	for _, p := range vo.BillingPeriods() {
		ids = append(ids, p.String())
	}
	return strings.Join(ids, " ")
}
