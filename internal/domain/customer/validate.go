package customer

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports fields by their JSON name.
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateFields(v *validatorv10.Validate, f Fields) error {
	err := v.Struct(f)
	if err == nil {
		return nil
	}
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		return err
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = describe(fe)
	}
	return &InvalidFieldsError{Fields: out}
}

func describe(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email"
	default:
		return "failed " + fe.Tag()
	}
}
