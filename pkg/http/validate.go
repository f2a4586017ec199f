package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// ReadAndValidateRequest binds the request body or query, applies struct
// defaults, and validates. Returns nil on success or a []ValidationError
// payload ready for BadRequestResponse.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) interface{} {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		errs := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			errs = append(errs, describeFieldError(fe))
		}
		return errs
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: fmt.Sprintf("%v", he.Message)}}
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

func describeFieldError(fe validator.FieldError) ValidationError {
	field, param := fe.Field(), fe.Param()
	ve := ValidationError{Code: "ERR_" + strings.ToUpper(fe.Tag()), Field: field}

	switch fe.Tag() {
	case "required":
		ve.Message = fmt.Sprintf("%s is required", field)
	case "min":
		ve.Message = fmt.Sprintf("%s must be at least %s%s", field, param, charSuffix(fe))
		ve.Params = map[string]interface{}{"min": param}
	case "max":
		ve.Message = fmt.Sprintf("%s must be at most %s%s", field, param, charSuffix(fe))
		ve.Params = map[string]interface{}{"max": param}
	case "gt":
		ve.Message = fmt.Sprintf("%s must be greater than %s", field, param)
		ve.Params = map[string]interface{}{"value": param}
	case "gte":
		ve.Message = fmt.Sprintf("%s must be at least %s", field, param)
		ve.Params = map[string]interface{}{"min": param}
	case "lt":
		ve.Message = fmt.Sprintf("%s must be less than %s", field, param)
		ve.Params = map[string]interface{}{"value": param}
	case "lte":
		ve.Message = fmt.Sprintf("%s must be at most %s", field, param)
		ve.Params = map[string]interface{}{"max": param}
	case "oneof":
		ve.Message = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
		ve.Params = map[string]interface{}{"options": strings.Split(param, " ")}
	default:
		ve.Message = fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
	return ve
}

func charSuffix(fe validator.FieldError) string {
	if fe.Type().Kind() == reflect.String {
		return " characters"
	}
	return ""
}
