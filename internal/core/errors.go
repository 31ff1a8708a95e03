// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps base with a formatted cause.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Series and indicator errors
	ErrMalformedSeries  = &Error{Code: "MALFORMED_SERIES", Message: "series timestamps must be strictly increasing"}
	ErrEmptySeries      = &Error{Code: "EMPTY_SERIES", Message: "series has no observations"}
	ErrInvalidParameter = &Error{Code: "INVALID_PARAMETER", Message: "invalid parameter"}
	ErrSeriesMismatch   = &Error{Code: "SERIES_MISMATCH", Message: "series are not aligned"}
	ErrDivisionByZero   = &Error{Code: "DIVISION_BY_ZERO", Message: "percentage deviation against zero reference"}

	// Data errors
	ErrAssetNotFound = &Error{Code: "ASSET_NOT_FOUND", Message: "asset not found"}
	ErrNoData        = &Error{Code: "NO_DATA", Message: "no data available"}

	// Provider errors
	ErrProviderFailed = &Error{Code: "PROVIDER_FAILED", Message: "data provider request failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// LLM errors
	ErrLLMFailed = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "archive storage failed"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// Notification errors
	ErrNotifyFailed = &Error{Code: "NOTIFY_FAILED", Message: "report notification failed"}
)
