package validators

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bazario-dev/bazario-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSONBody decodes and validates a request body. Unknown fields are
// rejected so typos surface instead of being silently dropped.
func DecodeJSONBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errors.New(errors.CodeValidation, "invalid request body").
			WithDetails(map[string]any{"decode": err.Error()})
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrors validator.ValidationErrors
		if !stdErrors.As(err, &fieldErrors) {
			return errors.New(errors.CodeValidation, "invalid request body")
		}
		details := make(map[string]string, len(fieldErrors))
		for _, fe := range fieldErrors {
			details[fe.Field()] = fmt.Sprintf("failed %q validation", fe.Tag())
		}
		return errors.New(errors.CodeValidation, "invalid request body").WithDetails(details)
	}
	return nil
}
