// Package apierror maps security failures onto HTTP responses.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

type Code string

const (
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeCSRFInvalid        Code = "CSRF_INVALID"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeAccountLocked      Code = "ACCOUNT_LOCKED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeEmailNotVerified   Code = "EMAIL_NOT_VERIFIED"
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeConflict           Code = "CONFLICT"
	CodeSystemError        Code = "SYSTEM_ERROR"
)

// Error is a terminal, caller-visible failure.
type Error struct {
	Code       Code
	Status     int
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Status:     http.StatusTooManyRequests,
		Message:    "too many requests",
		RetryAfter: retryAfter,
	}
}

func CSRFInvalid() *Error {
	return &Error{Code: CodeCSRFInvalid, Status: http.StatusForbidden, Message: "invalid csrf token"}
}

func Unauthenticated() *Error {
	return &Error{Code: CodeUnauthenticated, Status: http.StatusUnauthorized, Message: "authentication required"}
}

func Forbidden() *Error {
	return &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"}
}

func InvalidCredentials() *Error {
	return &Error{Code: CodeInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"}
}

func EmailNotVerified() *Error {
	return &Error{Code: CodeEmailNotVerified, Status: http.StatusUnauthorized, Message: "email address not verified"}
}

// AccountLocked carries a human-readable hint about when to retry.
func AccountLocked(retryAfter time.Duration) *Error {
	minutes := int((retryAfter + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return &Error{
		Code:       CodeAccountLocked,
		Status:     http.StatusUnauthorized,
		Message:    "account temporarily locked, try again in " + strconv.Itoa(minutes) + " minute(s)",
		RetryAfter: retryAfter,
	}
}

func BadRequest(msg string) *Error {
	return &Error{Code: CodeBadRequest, Status: http.StatusBadRequest, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Status: http.StatusConflict, Message: msg}
}

// Unavailable is the SystemError raised when a durable collaborator fails or times out.
func Unavailable(cause error) *Error {
	return &Error{
		Code:    CodeSystemError,
		Status:  http.StatusServiceUnavailable,
		Message: "service temporarily unavailable",
		Cause:   cause,
	}
}

func Internal(cause error) *Error {
	return &Error{
		Code:    CodeSystemError,
		Status:  http.StatusInternalServerError,
		Message: "internal error",
		Cause:   cause,
	}
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

type body struct {
	Error   string `json:"error"`
	Code    Code   `json:"code"`
	Details string `json:"details,omitempty"`
}

// Write renders err as the structured JSON error body. Causes are only
// exposed when development is true.
func Write(w http.ResponseWriter, err error, development bool) {
	e := From(err)

	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(e.RetryAfter)))
	}

	b := body{Error: e.Message, Code: e.Code}
	if development && e.Cause != nil {
		b.Details = e.Cause.Error()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(b)
}

// RetryAfterSeconds rounds up so clients never retry early.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
