package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Retryable  bool        `json:"-"`
	Internal   error       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Common error codes
const (
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDatabase           = "DATABASE_ERROR"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Subscription lifecycle
	ErrCodeUnknownPlan         = "UNKNOWN_PLAN"
	ErrCodeDuplicateActive     = "DUPLICATE_ACTIVE_SUBSCRIPTION"
	ErrCodeAlreadyActive       = "ALREADY_ACTIVE"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeStorageUnavailable  = "STORAGE_UNAVAILABLE"

	// Payments
	ErrCodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ErrCodeUnmatchedPayment   = "UNMATCHED_PAYMENT"
	ErrCodeMalformedCallback  = "MALFORMED_CALLBACK"
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether the operation that produced err may succeed if repeated.
func IsRetryable(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Retryable
}

// Common error constructors

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// ValidationError creates a validation error
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest).WithDetails(details)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, message, http.StatusInternalServerError)
}

// StorageUnavailable is returned when the store timed out or lost its connection.
// The caller may retry.
func StorageUnavailable(err error) *AppError {
	e := Wrap(err, ErrCodeStorageUnavailable, "Storage temporarily unavailable", http.StatusServiceUnavailable)
	e.Retryable = true
	return e
}

// UnknownPlan creates an error for a plan id missing from the catalog
func UnknownPlan(planID string) *AppError {
	return New(ErrCodeUnknownPlan, fmt.Sprintf("Unknown plan: %s", planID), http.StatusNotFound)
}

// DuplicateActiveSubscription is returned when a user already holds a pending or active subscription
func DuplicateActiveSubscription() *AppError {
	return New(ErrCodeDuplicateActive, "User already has an active or pending subscription", http.StatusConflict)
}

// AlreadyActive is returned when a subscription was activated by a different payment
func AlreadyActive(subscriptionID string) *AppError {
	return New(ErrCodeAlreadyActive,
		fmt.Sprintf("Subscription %s is already active", subscriptionID),
		http.StatusConflict)
}

// InvalidTransition creates an error for a status change the lifecycle does not allow
func InvalidTransition(from, to string) *AppError {
	return New(ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot move subscription from %s to %s", from, to),
		http.StatusConflict).WithDetails(map[string]string{"from": from, "to": to})
}

// GatewayUnavailable wraps a payment gateway failure
func GatewayUnavailable(err error) *AppError {
	e := Wrap(err, ErrCodeGatewayUnavailable, "Payment gateway unavailable, try again", http.StatusServiceUnavailable)
	e.Retryable = true
	return e
}

// UnmatchedPayment is raised when a confirmed payment cannot be tied to a subscription
func UnmatchedPayment(reference string) *AppError {
	return New(ErrCodeUnmatchedPayment,
		fmt.Sprintf("No pending payment matches %s", reference),
		http.StatusUnprocessableEntity)
}

// MalformedCallback wraps a callback payload that could not be understood
func MalformedCallback(err error) *AppError {
	return Wrap(err, ErrCodeMalformedCallback, "Malformed payment callback", http.StatusBadRequest)
}

// RateLimited creates a rate limited error
func RateLimited(message string) *AppError {
	return New(ErrCodeRateLimited, message, http.StatusTooManyRequests)
}

// ServiceUnavailable creates a service unavailable error
func ServiceUnavailable(message string) *AppError {
	return New(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}
