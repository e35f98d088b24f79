// Package errlog centralizes error classification, logging and retry bookkeeping for the AI services.
package errlog

import (
	"errors"
	"fmt"
)

// ErrorType is the closed taxonomy of handled errors.
type ErrorType string

const (
	// TypeValidation marks malformed event, notification or prediction payloads.
	TypeValidation ErrorType = "validation"
	// TypeAICall marks LLM or simulated external API failures, including schema-invalid replies.
	TypeAICall ErrorType = "ai_call"
	// TypePrediction marks prediction generation failures.
	TypePrediction ErrorType = "prediction"
	// TypeNotification marks notification generation or delivery failures.
	TypeNotification ErrorType = "notification"
	// TypeDataProcessing marks aggregation and persistence failures.
	TypeDataProcessing ErrorType = "data_processing"
	// TypeAIProcessing marks trigger and prediction pipeline failures.
	TypeAIProcessing ErrorType = "ai_processing"
)

// Error is a classified error carrying structured context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Type: TypeValidation, Message: msg}
}

// AICall creates an ai_call error.
func AICall(msg string, cause error) *Error {
	return &Error{Type: TypeAICall, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with a type and message.
func Wrap(cause error, errType ErrorType, msg string) *Error {
	return &Error{Type: errType, Message: msg, Cause: cause}
}

// IsType checks if an error chain carries the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errType
	}
	return false
}

// TypeOf extracts the error type from any error.
// Returns the provided default type if the chain has no *Error.
func TypeOf(err error, defaultType ErrorType) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return defaultType
}
