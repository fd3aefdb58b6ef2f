package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/realaman90/koda-sub002/domain/core/entities"
	"github.com/realaman90/koda-sub002/domain/core/valueobjects"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("nodekind", func(fl validator.FieldLevel) bool {
		return entities.NodeKind(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		h := valueobjects.HandleID(fl.Field().String())
		return h == "" || h == valueobjects.HandleOutput || h == valueobjects.HandleText ||
			h == valueobjects.HandleVideo || h == valueobjects.HandleAudio ||
			h.IsImageInput() || h.IsStructuralImageInput()
	})
	return v
}

// ValidateStruct validates a struct based on its validation tags. Failures
// are returned as a validation AppError.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return pkgerrors.NewValidationError(formatValidationError(err))
	}
	return nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatFieldError(e))
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "nodekind":
		return fmt.Sprintf("%s is not a known node kind", field)
	case "handle":
		return fmt.Sprintf("%s is not a known handle", field)
	case "dive":
		return fmt.Sprintf("%s contains invalid values", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
