package errors

import (
	"fmt"
	"net/http"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeValidation           ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound             ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeInternal             ErrorType = "INTERNAL_ERROR"
	ErrorTypeInitialization       ErrorType = "INITIALIZATION_ERROR"
	ErrorTypeExporterConstruction ErrorType = "EXPORTER_CONSTRUCTION_ERROR"
	ErrorTypeRegistrationConflict ErrorType = "REGISTRATION_CONFLICT"
)

// AppError represents a structured error for the application
type AppError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	StatusCode    int       `json:"statusCode"`
	ErrorCode     string    `json:"errorCode"`
	IsOperational bool      `json:"isOperational"`
	Recovery      string    `json:"recoverySuggestion,omitempty"`
	Err           error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// IsFatal reports whether the error must abort startup.
// Startup errors are never retried or downgraded.
func (e *AppError) IsFatal() bool {
	switch e.Type {
	case ErrorTypeInitialization, ErrorTypeExporterConstruction, ErrorTypeRegistrationConflict:
		return true
	default:
		return false
	}
}

// NewValidationError creates a new validation error (400)
func NewValidationError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeValidation,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeNotFound,
		Message:       message,
		StatusCode:    http.StatusNotFound,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewInternalError creates a new internal error (500)
func NewInternalError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeInternal,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Err:           err,
	}
}

// NewInitializationError reports a storage backend that failed to come up.
func NewInitializationError(backend string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeInitialization,
		Message:    fmt.Sprintf("%s backend failed to initialize", backend),
		StatusCode: http.StatusServiceUnavailable,
		ErrorCode:  "BACKEND_INIT_FAILED",
		Recovery:   "Check that the storage address is reachable, or unset it to run with the local store.",
		Err:        err,
	}
}

// NewExporterConstructionError reports a trace exporter that could not be built.
func NewExporterConstructionError(kind string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeExporterConstruction,
		Message:    fmt.Sprintf("failed to construct %s trace exporter", kind),
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  "EXPORTER_INVALID",
		Recovery:   "Check the exporter endpoint configuration.",
		Err:        err,
	}
}

// NewRegistrationConflictError reports a second attempt to register a
// process-wide tracer provider. This is a programming error.
func NewRegistrationConflictError(err error) *AppError {
	return &AppError{
		Type:       ErrorTypeRegistrationConflict,
		Message:    "tracer provider already registered",
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  "TRACER_ALREADY_REGISTERED",
		Err:        err,
	}
}
