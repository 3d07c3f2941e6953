package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/tenantcore/backend/internal/interfaces/http/dto"
)

// SetupValidator makes binding errors report the json (or form) name of a field
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			switch name {
			case "-":
				return ""
			case "":
				continue
			default:
				return name
			}
		}
		return ""
	})
}

// FormatValidationErrors turns a binding error into the validation response.
// Malformed JSON is reported against the "body" field.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var (
		fieldErrs validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		details   []dto.ValidationDetail
	)
	switch {
	case errors.As(err, &fieldErrs):
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	case errors.As(err, &typeErr):
		details = []dto.ValidationDetail{{Field: typeErr.Field, Message: "Must be a " + typeErr.Type.String()}}
	case errors.As(err, &syntaxErr):
		details = []dto.ValidationDetail{{Field: "body", Message: "Malformed JSON"}}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError answers a failed bind. A body cut off by BodyLimit is a 413.
func HandleValidationError(c *gin.Context, err error) {
	if IsBodyTooLarge(err) {
		abortBodyTooLarge(c)
		return
	}
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, c.GetString(RequestIDKey)))
}

var fieldMessages = map[string]func(fe validator.FieldError) string{
	"required": func(validator.FieldError) string { return "This field is required" },
	"min":      func(fe validator.FieldError) string { return "Must be at least " + fe.Param() + lengthUnit(fe) },
	"max":      func(fe validator.FieldError) string { return "Must be at most " + fe.Param() + lengthUnit(fe) },
	"uuid":     func(validator.FieldError) string { return "Invalid UUID format" },
	"oneof":    func(fe validator.FieldError) string { return "Must be one of: " + fe.Param() },
	"hostname": func(validator.FieldError) string { return "Invalid host name" },
	"fqdn":     func(validator.FieldError) string { return "Invalid host name" },
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Tag()]; ok {
		return msg(fe)
	}
	return "Invalid value"
}

func lengthUnit(fe validator.FieldError) string {
	if fe.Kind() == reflect.String {
		return " characters"
	}
	return ""
}
