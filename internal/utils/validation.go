package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// validate reads the same `binding` tags gin uses, so request structs and
// service commands share one set of rules.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// ValidationMessages turns validator errors into one message per field.
func ValidationMessages(err error) []string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Namespace() + " failed on '" + e.Tag() + "'"
		if e.Param() != "" {
			msg += " (" + e.Param() + ")"
		}
		messages = append(messages, msg)
	}
	return messages
}

// Normalizer is implemented by request structs that clean up their fields
// (trimming, case folding) before validation runs.
type Normalizer interface {
	Normalize()
}

// BindAndValidate binds the request body to a struct, normalizes it and
// validates it. If any step fails, it sends a BadRequest response and
// returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		BadRequest(c, "Invalid request payload: empty body")
		return false
	}
	if err := json.NewDecoder(c.Request.Body).Decode(obj); err != nil {
		BadRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	if n, ok := obj.(Normalizer); ok {
		n.Normalize()
	}
	if err := Validate(obj); err != nil {
		ValidationFailed(c, ValidationMessages(err))
		return false
	}
	return true
}
