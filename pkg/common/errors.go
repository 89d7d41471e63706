package common

import (
	"errors"
	"net/http"
)

// Common error types
var (
	ErrNotFound       = errors.New("resource not found")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrConflict       = errors.New("resource conflict")
	ErrValidation     = errors.New("validation error")
	ErrUnavailable    = errors.New("upstream unavailable")
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, errorCode, message string, err error) *AppError {
	return &AppError{
		Code:      code,
		ErrorCode: errorCode,
		Message:   message,
		Err:       err,
	}
}

func NewNotFoundError(message string, err error) *AppError {
	if err == nil {
		err = ErrNotFound
	}
	return &AppError{Code: http.StatusNotFound, ErrorCode: "not_found", Message: message, Err: err}
}

func NewBadRequestError(message string, err error) *AppError {
	if err == nil {
		err = ErrBadRequest
	}
	return &AppError{Code: http.StatusBadRequest, ErrorCode: "bad_request", Message: message, Err: err}
}

func NewConflictError(message string) *AppError {
	return &AppError{Code: http.StatusConflict, ErrorCode: "conflict", Message: message, Err: ErrConflict}
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, ErrorCode: "validation_failed", Message: message, Err: ErrValidation}
}

// NewUpstreamError reports a failure of every configured provider.
func NewUpstreamError(errorCode, message string, err error) *AppError {
	return &AppError{Code: http.StatusBadGateway, ErrorCode: errorCode, Message: message, Err: err}
}

func NewInternalError(message string, err error) *AppError {
	if err == nil {
		err = ErrInternalServer
	}
	return &AppError{Code: http.StatusInternalServerError, ErrorCode: "internal", Message: message, Err: err}
}
