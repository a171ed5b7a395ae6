package apperror

import "net/http"

// FieldError describes one violated constraint on a request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an error that carries the HTTP status it should be reported with.
type Error struct {
	Status  int
	Message string
	Details []FieldError
	Headers map[string]string
	Cause   error // logged, never sent
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of e that wraps cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func Validation(details []FieldError) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "Validation failed", Details: details}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

func RateLimited(message string, retryAfterSeconds string) *Error {
	return &Error{
		Status:  http.StatusTooManyRequests,
		Message: message,
		Headers: map[string]string{"Retry-After": retryAfterSeconds},
	}
}

// Provider reports a failed call to the database, auth or storage provider.
// The message is what the client sees; the cause is only logged.
func Provider(message string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message, Cause: cause}
}

func Unavailable(message string) *Error {
	return New(http.StatusServiceUnavailable, message)
}
