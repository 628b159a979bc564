// Package validation checks request DTOs with go-playground/validator and
// reports failures keyed by JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/case-service/internal/domain"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

var v *validator.Validate

func init() {
	v = validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("case_status", func(fl validator.FieldLevel) bool {
		return domain.CaseStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("case_priority", func(fl validator.FieldLevel) bool {
		return domain.CasePriority(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("case_category", func(fl validator.FieldLevel) bool {
		return domain.CaseCategory(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Valid()
	})
}

// Fields returns field -> messages for every failed rule, or nil when s is valid.
func Fields(s any) (map[string][]string, error) {
	err := v.Struct(s)
	if err == nil {
		return nil, nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, err
	}

	out := make(map[string][]string)
	for _, e := range ve {
		field := e.Field()
		out[field] = append(out[field], message(e))
	}
	return out, nil
}

// Validate checks s and wraps failures in a VALIDATION_FAILED error whose
// details.fields lists the messages per field.
func Validate(s any) error {
	fields, err := Fields(s)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	return apperrors.NewValidationError("validation failed", map[string]any{"fields": fields})
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Must be at least %s characters", e.Param())
		}
		return fmt.Sprintf("Must be at least %s", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters", e.Param())
		}
		return fmt.Sprintf("Must be at most %s", e.Param())
	case "uuid", "uuid4":
		return "Invalid UUID format"
	case "case_status":
		return "Unknown case status"
	case "case_priority":
		return "Unknown priority"
	case "case_category":
		return "Unknown category"
	case "role":
		return "Unknown role"
	default:
		return e.Error()
	}
}
