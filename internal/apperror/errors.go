// Package apperror provides the error taxonomy shared by services and the HTTP boundary.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	CodeValidation           ErrorCode = "VALIDATION_ERROR"
	CodeUnauthenticated      ErrorCode = "UNAUTHENTICATED"
	CodeAuthorization        ErrorCode = "AUTHORIZATION_ERROR"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	CodeConflict             ErrorCode = "CONFLICT"
	CodeLocationVerification ErrorCode = "LOCATION_VERIFICATION_FAILED"
	CodeGatewayUnavailable   ErrorCode = "GATEWAY_UNAVAILABLE"
	CodeGatewayRejected      ErrorCode = "GATEWAY_REJECTED"
	CodePaymentNotSucceeded  ErrorCode = "PAYMENT_NOT_SUCCEEDED"
	CodeNoPayoutAccount      ErrorCode = "NO_PAYOUT_ACCOUNT"
	CodeMissingEmail         ErrorCode = "MISSING_EMAIL"
	CodeInvalidSignature     ErrorCode = "INVALID_SIGNATURE"
	CodeRateLimited          ErrorCode = "RATE_LIMITED"
	CodeServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
)

var statusByCode = map[ErrorCode]int{
	CodeValidation:           http.StatusBadRequest,
	CodeUnauthenticated:      http.StatusUnauthorized,
	CodeAuthorization:        http.StatusForbidden,
	CodeNotFound:             http.StatusNotFound,
	CodeInvalidTransition:    http.StatusBadRequest,
	CodeConflict:             http.StatusConflict,
	CodeLocationVerification: http.StatusConflict,
	CodeGatewayUnavailable:   http.StatusBadGateway,
	CodeGatewayRejected:      http.StatusBadRequest,
	CodePaymentNotSucceeded:  http.StatusBadRequest,
	CodeNoPayoutAccount:      http.StatusBadRequest,
	CodeMissingEmail:         http.StatusBadRequest,
	CodeInvalidSignature:     http.StatusBadRequest,
	CodeRateLimited:          http.StatusTooManyRequests,
	CodeServiceUnavailable:   http.StatusServiceUnavailable,
}

// Error is a structured application error.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Metadata  map[string]interface{}
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the error code to a response status.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New creates an error with the given code.
func New(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with the given code around cause.
func Wrap(cause error, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// As extracts *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func Validation(format string, args ...interface{}) *Error {
	return New(CodeValidation, format, args...)
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return New(CodeUnauthenticated, format, args...)
}

func Authorization(format string, args ...interface{}) *Error {
	return New(CodeAuthorization, format, args...)
}

func NotFound(entity string, id interface{}) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s %v not found", entity, id),
		Metadata: map[string]interface{}{"entity": entity, "id": id},
	}
}

func Conflict(format string, args ...interface{}) *Error {
	return New(CodeConflict, format, args...)
}

// InvalidTransition reports a status change the transition table does not allow,
// or one that lost a compare-and-swap race.
func InvalidTransition(entity string, from, to interface{}) *Error {
	return &Error{
		Code:     CodeInvalidTransition,
		Message:  fmt.Sprintf("%s cannot move from %v to %v", entity, from, to),
		Metadata: map[string]interface{}{"entity": entity, "from": from, "to": to},
	}
}

// LocationVerification carries the measured distance so clients can show it.
func LocationVerification(distanceFeet, radiusFeet float64) *Error {
	return &Error{
		Code:    CodeLocationVerification,
		Message: fmt.Sprintf("you are %.0f feet from the job site, must be within %.0f feet", distanceFeet, radiusFeet),
		Metadata: map[string]interface{}{
			"distance_feet":        distanceFeet,
			"required_radius_feet": radiusFeet,
		},
	}
}

// GatewayUnavailable marks transient gateway failures that callers may retry.
func GatewayUnavailable(cause error, operation string) *Error {
	return &Error{
		Code:      CodeGatewayUnavailable,
		Message:   fmt.Sprintf("payment gateway unavailable during %s", operation),
		Retryable: true,
		Metadata:  map[string]interface{}{"operation": operation},
		cause:     cause,
	}
}

// GatewayRejected marks a request the gateway refused on business grounds.
func GatewayRejected(cause error, operation, reason string) *Error {
	return &Error{
		Code:     CodeGatewayRejected,
		Message:  fmt.Sprintf("payment gateway rejected %s: %s", operation, reason),
		Metadata: map[string]interface{}{"operation": operation},
		cause:    cause,
	}
}

func PaymentNotSucceeded(status string) *Error {
	return &Error{
		Code:     CodePaymentNotSucceeded,
		Message:  fmt.Sprintf("payment has not succeeded (status %s)", status),
		Metadata: map[string]interface{}{"status": status},
	}
}

func NoPayoutAccount(workerID uint) *Error {
	return &Error{
		Code:     CodeNoPayoutAccount,
		Message:  "worker has no payout account set up",
		Metadata: map[string]interface{}{"worker_id": workerID},
	}
}

func MissingEmail() *Error {
	return New(CodeMissingEmail, "an email address is required to create a payout account")
}

func InvalidSignature(cause error) *Error {
	return &Error{Code: CodeInvalidSignature, Message: "webhook signature verification failed", cause: cause}
}
