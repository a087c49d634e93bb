package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	prefixPattern = regexp.MustCompile(`^[A-Z]{1,16}$`)
	periodPattern = regexp.MustCompile(`^[0-9]{4}$`)
)

// SetupValidator reports JSON field names in validation errors and registers
// the numbering tags:
//
//	seqprefix   uppercase letters, 1-16 long
//	period      4-digit year
//	recordtype  a known record type
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return RegisterValidations(v)
}

// RegisterValidations installs the tag name function and custom tags on v.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	tags := map[string]validator.Func{
		"seqprefix": func(fl validator.FieldLevel) bool {
			return prefixPattern.MatchString(fl.Field().String())
		},
		"period": func(fl validator.FieldLevel) bool {
			return periodPattern.MatchString(fl.Field().String())
		},
		"recordtype": func(fl validator.FieldLevel) bool {
			switch numbering.RecordType(fl.Field().String()) {
			case numbering.RecordTypeCustomer, numbering.RecordTypeBooking, numbering.RecordTypePaymentRequest:
				return true
			}
			return false
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// FormatValidationErrors builds the validation envelope for err.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: validationMessage(e),
			})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 for a binding error. Malformed JSON is
// reported as ERR_INVALID_JSON.
func HandleValidationError(c *gin.Context, err error) {
	requestID := GetRequestID(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Request body is not valid JSON", requestID))
		return
	}
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "This field is required"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	case "seqprefix":
		return "Must be 1 to 16 uppercase letters"
	case "period":
		return "Must be a 4-digit year"
	case "recordtype":
		return "Must be one of: customer booking payment_request"
	default:
		return "Invalid value"
	}
}
