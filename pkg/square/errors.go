package square

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/ayurkart/storefront-backend/pkg/errors"
)

var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

// DeclinedError means the refund definitely did not happen: Square answered
// with a 4xx or the request was never sent. StatusCode is zero for the latter.
type DeclinedError struct {
	StatusCode int
	Detail     string
}

func (e *DeclinedError) Error() string { return e.Detail }

// Declined reports whether err is a definitive rejection. Timeouts, transport
// failures and 5xx answers leave the refund outcome unknown.
func Declined(err error) bool {
	var d *DeclinedError
	return errors.As(err, &d)
}

// classify maps an SDK failure to a domain code. When Square explains the
// rejection, its detail text becomes the cause so callers can show it.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square refund timed out")
	}
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "square refund failed")
	}

	code := codeForStatus(apiErr.StatusCode)
	if code == pkgerrors.CodeDependency {
		return pkgerrors.Wrap(code, err, "square refund failed")
	}
	detail := err.Error()
	sqErrs := squareErrors(apiErr)
	for _, e := range sqErrs {
		if e.Code == sq.ErrorCodeIdempotencyKeyReused {
			code = pkgerrors.CodeIdempotency
			break
		}
		if e.Category == sq.ErrorCategoryAuthenticationError {
			code = pkgerrors.CodeUnauthorized
			break
		}
	}
	if len(sqErrs) > 0 {
		detail = describe(sqErrs[0])
	}
	return pkgerrors.Wrap(code, &DeclinedError{StatusCode: apiErr.StatusCode, Detail: detail}, "square refund failed")
}

func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

// squareErrors decodes the {"errors": [...]} body the SDK keeps as the
// APIError cause.
func squareErrors(apiErr *sqcore.APIError) []*sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(inner.Error())), &body); err != nil {
		return nil
	}
	out := body.Errors[:0]
	for _, e := range body.Errors {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func describe(e *sq.Error) string {
	if e.Detail != nil && strings.TrimSpace(*e.Detail) != "" {
		return *e.Detail
	}
	return string(e.Code)
}
