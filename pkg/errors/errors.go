package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable, client-visible identifier of a failure class.
type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeStateConflict   Code = "STATE_CONFLICT"
	CodeIdempotency     Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit       Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeDependency      Code = "DEPENDENCY_ERROR"
	CodeConfiguration   Code = "CONFIGURATION_ERROR"
	CodeCarrierRejected Code = "CARRIER_REJECTED"
	CodeLabelUnrecorded Code = "LABEL_NOT_RECORDED"
)

// Metadata drives how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	noRetry    = false
	retry      = true
	hideDetail = false
	showDetail = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:      {http.StatusBadRequest, noRetry, "validation failed", showDetail},
	CodeUnauthorized:    {http.StatusUnauthorized, noRetry, "authentication required", hideDetail},
	CodeForbidden:       {http.StatusForbidden, noRetry, "access denied", hideDetail},
	CodeNotFound:        {http.StatusNotFound, noRetry, "resource not found", hideDetail},
	CodeConflict:        {http.StatusConflict, noRetry, "conflict detected", hideDetail},
	CodeStateConflict:   {http.StatusUnprocessableEntity, noRetry, "state transition disallowed", showDetail},
	CodeIdempotency:     {http.StatusConflict, noRetry, "idempotency key reused", showDetail},
	CodeRateLimit:       {http.StatusTooManyRequests, noRetry, "rate limit exceeded", hideDetail},
	CodeInternal:        {http.StatusInternalServerError, retry, "internal server error", hideDetail},
	CodeDependency:      {http.StatusServiceUnavailable, retry, "dependency unavailable", showDetail},
	CodeConfiguration:   {http.StatusUnprocessableEntity, noRetry, "store configuration incomplete", showDetail},
	CodeCarrierRejected: {http.StatusPaymentRequired, noRetry, "carrier rejected the request", showDetail},
	// the carrier holds a paid label; a retry would buy another one
	CodeLabelUnrecorded: {http.StatusConflict, noRetry, "label purchased but not recorded, do not retry", showDetail},
}

// MetadataFor returns the rendering rules for code. Unknown codes are
// treated as internal errors.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded failure with an optional cause and client-safe details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether a client may retry the failed request as is.
func Retryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return MetadataFor(CodeInternal).Retryable
	}
	return MetadataFor(typed.code).Retryable
}
