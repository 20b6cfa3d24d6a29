package core

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Core Error Types
// =============================================================================

// PipelineError is returned by every stage or turn that fails. Cause is the
// underlying service, extraction, input or response error.
type PipelineError struct {
	Stage     string
	Cause     error
	Timestamp time.Time
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// InvalidInputError means a stage was called without its prerequisite. It is
// raised before any network call.
type InvalidInputError struct {
	Stage   string
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s: %s", e.Stage, e.Field, e.Message)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// InvalidResponseError means the reply parsed but lacked a required field.
type InvalidResponseError struct {
	Stage   string
	Field   string
	Message string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid response for %s: %s: %s", e.Stage, e.Field, e.Message)
}

func (e *InvalidResponseError) Unwrap() error {
	return ErrInvalidResponse
}

// =============================================================================
// Predefined Error Values
// =============================================================================

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidResponse = errors.New("invalid response")
	ErrNoAPIKey        = errors.New("API key not configured")
	ErrSessionNotFound = errors.New("session not found")
)

// =============================================================================
// Error Creation Helpers
// =============================================================================

// NewPipelineError wraps cause for stage. An existing PipelineError is
// returned unchanged so stages never nest.
func NewPipelineError(stage string, cause error) *PipelineError {
	var pe *PipelineError
	if errors.As(cause, &pe) {
		return pe
	}
	return &PipelineError{
		Stage:     stage,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

func NewInvalidInputError(stage, field, message string) *InvalidInputError {
	return &InvalidInputError{Stage: stage, Field: field, Message: message}
}

func NewInvalidResponseError(stage, field, message string) *InvalidResponseError {
	return &InvalidResponseError{Stage: stage, Field: field, Message: message}
}

// =============================================================================
// Error Classification Functions
// =============================================================================

// IsInvalidInput reports whether err came from a missing stage prerequisite.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInvalidResponse reports whether err came from a reply missing a required
// field.
func IsInvalidResponse(err error) bool {
	return errors.Is(err, ErrInvalidResponse)
}

// StageOf returns the stage recorded on a PipelineError, or "".
func StageOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
