package carriers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoCredentials      = errors.New("no carrier credentials configured")
	ErrLookupUnsupported  = errors.New("carrier does not support label lookup")
	ErrInvalidRateID      = errors.New("rate id is not recognized by this carrier")
	ErrTransactionMissing = errors.New("transaction id is required")
)

// Error is a non-2xx response from a carrier API.
type Error struct {
	Provider   string
	Operation  string
	StatusCode int
	Body       string
	Messages   []Message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	detail := strings.Join(MessageTexts(e.Messages), "; ")
	if detail == "" {
		detail = e.Body
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Operation, e.StatusCode, detail)
}

// UpstreamStatus exposes the carrier HTTP status to error dumps.
func (e *Error) UpstreamStatus() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// IsAuthClass reports whether the failure could be caused by the credential:
// rejected keys, or objects that live under a different account.
func (e *Error) IsAuthClass() bool {
	if e == nil {
		return false
	}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// IsValidation reports whether the carrier rejected the request content.
func (e *Error) IsValidation() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
}

// AsError extracts a carrier *Error from err.
func AsError(err error) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}
	return nil
}

// IsAuthClass reports whether err is an authorization-class carrier failure.
func IsAuthClass(err error) bool {
	cerr := AsError(err)
	return cerr != nil && cerr.IsAuthClass()
}
