// Package errors provides the typed errors returned by the build pipeline.
//
// Only fatal conditions are represented here. Failures the pipeline is
// allowed to absorb (revision lookups, cachebuster reads) never produce a
// PipelineError; they are replaced by fallback values at the call site.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeValidation ErrorType = "validation"
)

// PipelineError is a structured error with the phase and file it came from.
type PipelineError struct {
	Type     ErrorType
	Code     string
	Message  string
	Phase    string
	FilePath string
	Cause    error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Phase != "" {
		parts = append(parts, "phase:"+e.Phase)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PipelineError with the same type and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithPhase records the pipeline phase the error surfaced in.
func (e *PipelineError) WithPhase(phase string) *PipelineError {
	e.Phase = phase

	return e
}

// WithFile records the file the error concerns.
func (e *PipelineError) WithFile(path string) *PipelineError {
	e.FilePath = path

	return e
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeBuild
	}

	return false
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeConfig
	}

	return false
}

// TypeOf returns the ErrorType of err, or the empty string if err is not a
// PipelineError.
func TypeOf(err error) ErrorType {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type
	}

	return ""
}

// InPhase records phase on err if it is a PipelineError without one.
// Other errors are returned unchanged.
func InPhase(err error, phase string) error {
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Phase == "" {
		pe.Phase = phase
	}

	return err
}
