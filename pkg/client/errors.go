package client

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the error envelope of a failed API call
type APIError struct {
	StatusCode int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Retryable  bool        `json:"retryable,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

func (e *APIError) IsNotFound() bool     { return e.StatusCode == http.StatusNotFound }
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }
func (e *APIError) IsForbidden() bool    { return e.StatusCode == http.StatusForbidden }

// IsConflict covers every lifecycle rejection: a second open subscription,
// an already active one and invalid transitions
func (e *APIError) IsConflict() bool { return e.StatusCode == http.StatusConflict }

func (e *APIError) IsServerError() bool { return e.StatusCode >= http.StatusInternalServerError }

// HasCode reports whether err is an APIError carrying code, e.g.
// "DUPLICATE_ACTIVE_SUBSCRIPTION"
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsRetryable reports whether the server marked the failure as transient
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable
}
