// Package apperror defines the error taxonomy of the webhook pipeline and maps
// validation and pipeline errors onto HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MaxBodySize caps the upstream response body kept on an UpstreamError.
const MaxBodySize = 500

var (
	errRequired         = errors.New("is required")
	errMustBePositive   = errors.New("must be a positive number")
	errInvalidEventTime = errors.New("must be a unix timestamp or RFC3339 datetime")
)

var customErrors = map[string]error{
	"WebhookEvent.ObjectType.required":     errRequired,
	"WebhookEvent.ObjectID.required":       errRequired,
	"WebhookEvent.ObjectID.gt":             errMustBePositive,
	"WebhookEvent.AspectType.required":     errRequired,
	"WebhookEvent.OwnerID.required":        errRequired,
	"WebhookEvent.OwnerID.gt":              errMustBePositive,
	"WebhookEvent.SubscriptionID.required": errRequired,
	"WebhookEvent.SubscriptionID.gt":       errMustBePositive,
	"WebhookEvent.EventTime.required":      errInvalidEventTime,
}

// UpstreamError is a non-2xx answer from the fitness platform.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Data       map[string]any
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: upstream status %d", e.Op, e.StatusCode)
}

// AuthError is a local credential precondition failure: no refresh token,
// a refresh the platform rejected, or a credential store failure.
type AuthError struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	msg := "auth: " + e.Reason
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// GenerationError means the language model produced no usable post.
type GenerationError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation: %s: %v", e.Reason, e.Err)
	}
	return "generation: " + e.Reason
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError rejects a malformed inbound body or update patch before
// any upstream call is made.
type ValidationError struct {
	Fields []map[string]string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return "validation: " + e.Err.Error()
	}
	return "validation failed"
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps a validator error together with its field list.
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Fields: CustomValidationError(err), Err: err}
}

// Truncate shortens s to at most MaxBodySize bytes, marking the cut with
// "...". The cut never splits a UTF-8 sequence.
func Truncate(s string) string {
	if len(s) <= MaxBodySize {
		return s
	}
	cut := MaxBodySize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// CustomValidationError converts validator errors into a standardized format.
func CustomValidationError(err error) []map[string]string {
	errList := make([]map[string]string, 0)

	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		for _, e := range validationErr {
			field := e.StructNamespace()
			key := field + "." + e.Tag()

			errMsg := fmt.Sprintf("%s is invalid", field)
			if v, ok := customErrors[key]; ok {
				errMsg = v.Error()
			}

			errList = append(errList, map[string]string{e.Field(): errMsg})
		}
	}
	return errList
}

// Describe maps a pipeline error to an HTTP status and a response body that
// names the error kind and, for upstream failures, the platform's status and
// body. Credentials never appear in these errors.
func Describe(err error) (int, map[string]any) {
	var (
		upstreamErr   *UpstreamError
		authErr       *AuthError
		generationErr *GenerationError
		validationErr *ValidationError
	)

	switch {
	case errors.As(err, &validationErr):
		body := map[string]any{"error": "invalid request", "kind": "validation"}
		if len(validationErr.Fields) > 0 {
			body["fields"] = validationErr.Fields
		} else if validationErr.Err != nil {
			body["detail"] = validationErr.Err.Error()
		}
		return http.StatusBadRequest, body
	case errors.As(err, &upstreamErr):
		status := http.StatusBadGateway
		if upstreamErr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		}
		body := map[string]any{
			"error":           upstreamErr.Op + " failed",
			"kind":            "upstream",
			"upstream_status": upstreamErr.StatusCode,
		}
		if upstreamErr.Data != nil {
			body["detail"] = upstreamErr.Data
		} else if upstreamErr.Body != "" {
			body["detail"] = upstreamErr.Body
		}
		return status, body
	case errors.As(err, &authErr):
		body := map[string]any{"error": authErr.Reason, "kind": "auth"}
		if authErr.StatusCode != 0 {
			body["upstream_status"] = authErr.StatusCode
		}
		return http.StatusBadGateway, body
	case errors.As(err, &generationErr):
		return http.StatusBadGateway, map[string]any{"error": generationErr.Reason, "kind": "generation"}
	default:
		return http.StatusInternalServerError, map[string]any{"error": "internal error", "kind": "internal"}
	}
}
