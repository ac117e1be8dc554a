package utils

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	// Line is the approximate source line for table errors, 0 when unknown.
	Line  int
	Cause error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeNotFound        = "NOT_FOUND"
	CodeProcessingError = "PROCESSING_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
)

// NewAppError creates a new AppError
func NewAppError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{Code: appErr.Code, Message: message, Line: appErr.Line, Cause: err}
	}
	return &AppError{Code: CodeInternalError, Message: message, Cause: err}
}

// ErrorCode returns the code of the first AppError in err's chain, or "UNKNOWN".
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

func NotFound(resource string, cause error) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource), Cause: cause}
}

// ProcessingError tags a table read/parse failure with the line it happened at.
func ProcessingError(line int, cause error) *AppError {
	return &AppError{
		Code:    CodeProcessingError,
		Message: "unexpected error while processing appointments table",
		Line:    line,
		Cause:   cause,
	}
}

func ConfigInvalid(message string) *AppError {
	return NewAppError(CodeConfigInvalid, message)
}

func Unauthorized(message string) *AppError {
	return NewAppError(CodeUnauthorized, message)
}

func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeExternalService,
		Message: fmt.Sprintf("%s service error", service),
		Cause:   cause,
	}
}
