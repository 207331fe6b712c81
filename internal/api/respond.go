package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"veron/internal/apperr"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	}
}

func (h *Handler) ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// fail renders err in the error envelope and attaches it to the context so the
// request logger can log and audit it. public is the message shown in production.
func (h *Handler) fail(c *gin.Context, err error, public string) {
	_ = c.Error(err)
	status := apperr.Status(err)
	body := gin.H{"success": false}

	var ve *apperr.ValidationError
	var up *apperr.UpstreamError
	switch {
	case errors.As(err, &ve):
		body["error"] = "Validation failed"
		body["details"] = ve.Fields
	case status == http.StatusNotFound:
		body["error"] = public
	case errors.As(err, &up):
		body["error"] = public
		if !h.cfg.Server.Production() {
			body["details"] = gin.H{"category": up.Category, "message": up.PublicMessage()}
		}
	default:
		body["error"] = public
		if !h.cfg.Server.Production() {
			body["details"] = err.Error()
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// bind decodes the JSON body into dst and reports binding failures as
// field-level validation errors.
func bind(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bindError(err)
	}
	return nil
}

func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fieldMessage(fe)
		}
		return &apperr.ValidationError{Fields: fields}
	}
	return apperr.Validation("body", "Invalid JSON body")
}

func fieldMessage(fe validator.FieldError) string {
	isLen := fe.Kind() == reflect.String || fe.Kind() == reflect.Slice
	switch fe.Tag() {
	case "required":
		return "Missing data for required field."
	case "min":
		if isLen {
			return fmt.Sprintf("Length must be at least %s.", fe.Param())
		}
		return fmt.Sprintf("Must be greater than or equal to %s.", fe.Param())
	case "max":
		if isLen {
			return fmt.Sprintf("Length must be at most %s.", fe.Param())
		}
		return fmt.Sprintf("Must be less than or equal to %s.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return "Invalid value."
	}
}
