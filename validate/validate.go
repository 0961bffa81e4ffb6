// Package validate turns struct validation tags into field messages.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Seeker220/letswatch/models"

	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their json names
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}

// Map returns field->message errors for struct validation tags.
func Map(s any) map[string]string {
	if err := v.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			m := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				m[fieldName(fe)] = messageFor(fe)
			}
			return m
		}
		return map[string]string{"_error": err.Error()}
	}
	return nil
}

// Struct validates s and returns a *models.ValidationError when it fails
func Struct(s any) error {
	if fields := Map(s); len(fields) > 0 {
		return &models.ValidationError{Message: "invalid request", Fields: fields}
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	if fe.Field() != "" {
		return fe.Field()
	}
	return fe.StructField()
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return fe.Error()
	}
}
