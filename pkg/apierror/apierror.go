// Package apierror carries transport-level errors that already know their
// HTTP status. Handlers use it for request-shape problems (bad JSON, missing
// fields, state mismatch); domain outcomes travel as sentinel errors in
// internal/model and are mapped to statuses centrally.
package apierror

import "fmt"

// APIError is the wire form of a request-level failure. Details names the
// offending field when there is one.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}
