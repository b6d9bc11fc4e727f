package serverutils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"pdf-chat-be/internal/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// "required" on a string should reject whitespace too.
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// ValidateRequest runs struct validation and returns a Validation apperror
// describing the first failing field.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.Validation(err.Error())
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return apperror.Validation(fmt.Sprintf("%s cannot be empty.", fe.Field()))
	default:
		return apperror.Validation(fmt.Sprintf("%s is too long or malformed (%s)", fe.Field(), fe.Tag()))
	}
}
