package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrTokenInvalid means the stored cart token no longer identifies an open
// cart. It triggers the reset-and-retry path instead of a shopper-facing error.
var ErrTokenInvalid = errors.New("cart token rejected by backend")

type Violation struct {
	PropertyPath string `json:"propertyPath"`
	Message      string `json:"message"`
}

// RequestFailedError is returned for every non-2xx backend response.
type RequestFailedError struct {
	Status     int
	Message    string
	Violations []Violation

	// tokenLookup is set for fetch-by-token calls so rejected tokens match ErrTokenInvalid.
	tokenLookup bool
}

func NewRequestFailed(status int, message string, violations []Violation) *RequestFailedError {
	return &RequestFailedError{Status: status, Message: message, Violations: violations}
}

// AsTokenLookup marks the error as the result of a fetch by cart token.
func (e *RequestFailedError) AsTokenLookup() *RequestFailedError {
	e.tokenLookup = true
	return e
}

func (e *RequestFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

func (e *RequestFailedError) Is(target error) bool {
	if target != ErrTokenInvalid || !e.tokenLookup {
		return false
	}
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return true
	}
	return false
}

// ValidationError carries field level messages keyed by form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	return "validation failed: " + strings.Join(names, ", ")
}

// NewValidationError maps backend violations to form fields. The prefix, if
// any, is stripped from property paths ("billingAddress.firstName" -> "firstName").
func NewValidationError(violations []Violation, prefix string) *ValidationError {
	fields := make(map[string]string, len(violations))
	for _, v := range violations {
		name := strings.TrimPrefix(v.PropertyPath, prefix)
		if name == "" {
			name = "form"
		}
		if _, seen := fields[name]; !seen {
			fields[name] = v.Message
		}
	}
	return &ValidationError{Fields: fields}
}
