package service

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// newValidator returns a validator reporting fields by their json names and
// knowing the "phone" and "vendor_code" tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return domain.ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("vendor_code", func(fl validator.FieldLevel) bool {
		return domain.ValidVendorCode(fl.Field().String())
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Valid()
	})
	return v
}

// validateStruct runs v against input and converts failures into a
// VALIDATION_FAILED error whose details map each field to the broken rule.
func validateStruct(v *validator.Validate, input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}
	return apperrors.NewValidationError("validation failed", details)
}

func trimAll(values ...*string) {
	for _, v := range values {
		if v != nil {
			*v = strings.TrimSpace(*v)
		}
	}
}
