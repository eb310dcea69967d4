// Package validators decodes and checks request input, reporting failures
// as VALIDATION_ERROR with per-field details.
package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
)

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 64 << 10

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}()

var messages = map[string]string{
	"required": "is required",
	"uuid":     "must be a valid uuid",
	"email":    "must be a valid email",
}

// DecodeJSON reads a single JSON object into dest, rejecting unknown fields
// and bodies over 64 KiB, then runs the struct's validate tags.
func DecodeJSON(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]string{"body": describeDecodeError(err)})
	}
	if dec.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid request body").
			WithDetails(map[string]string{"body": "must contain a single JSON object"})
	}
	return Struct(dest)
}

// Struct runs validate tags on v.
func Struct(v any) error {
	err := validate.Struct(v)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
		}
		return nil
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := messages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

func describeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var sizeErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return "must not be empty"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	case errors.As(err, &sizeErr):
		return fmt.Sprintf("must be at most %d bytes", sizeErr.Limit)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	}
	return err.Error()
}

// Clean trims s and cuts it to at most max bytes without splitting a rune.
func Clean(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// QueryInt reads an optional integer query parameter bounded by [min, max].
func QueryInt(r *http.Request, key string, fallback, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
			WithDetails(map[string]string{key: "must be an integer"})
	}
	if n < min || n > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
			WithDetails(map[string]string{key: fmt.Sprintf("must be between %d and %d", min, max)})
	}
	return n, nil
}
