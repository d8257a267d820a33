// Package common holds the error type shared by the HTTP layer.
package common

import "fmt"

// APIError is an error that knows which HTTP status it maps to. The
// error-handler middleware renders it as the response body; Fields
// carries per-field validation detail when present.
type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

// Errf builds an APIError from a format string.
func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewAPIError builds an APIError with optional field detail.
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Message: message,
		Fields:  fields,
	}
}
