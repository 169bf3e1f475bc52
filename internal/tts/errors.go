package tts

import (
	"errors"
	"fmt"
)

// Common speech errors
var (
	// ErrNoEngineConfigured indicates no voice engine has been selected
	ErrNoEngineConfigured = errors.New("no voice engine configured - specify --engine espeak or --engine mock")

	// ErrInvalidEngine indicates an unknown engine was specified
	ErrInvalidEngine = errors.New("invalid voice engine specified")

	// ErrEmptyText indicates the input has no speakable content
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrTextTooLong indicates the input exceeds the configured maximum length
	ErrTextTooLong = errors.New("text exceeds maximum length")

	// ErrInvalidChunkSize indicates a non-positive chunk bound
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrUnknownVoice indicates the requested voice is not offered by the engine
	ErrUnknownVoice = errors.New("voice not available")

	// ErrNothingToPause indicates pause/resume was requested without an active utterance
	ErrNothingToPause = errors.New("no active utterance")
)

// TTSError represents a speech-specific error with additional context
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// Input errors
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorCodeTextTooLong  ErrorCode = "TEXT_TOO_LONG"

	// Export errors
	ErrorCodeExportExhausted ErrorCode = "EXPORT_EXHAUSTED"
	ErrorCodeSaveFailed      ErrorCode = "SAVE_FAILED"

	// Engine errors
	ErrorCodeEngineFailure     ErrorCode = "ENGINE_FAILURE"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"

	// System errors
	ErrorCodeTimeout  ErrorCode = "TIMEOUT"
	ErrorCodeCanceled ErrorCode = "CANCELED"
)

// NewTTSError creates a new speech error with context
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	e.Context[key] = value
	return e
}

// IsFatal returns true if the error should stop the current session
func (e *TTSError) IsFatal() bool {
	switch e.Code {
	case ErrorCodeEngineUnavailable:
		return true
	default:
		return false
	}
}

// IsRetryable returns true if the user can simply try again
func (e *TTSError) IsRetryable() bool {
	switch e.Code {
	case ErrorCodeTimeout,
		ErrorCodeExportExhausted:
		return true
	default:
		return false
	}
}

// CodeOf extracts the ErrorCode of err, or "" when err is not a *TTSError.
func CodeOf(err error) ErrorCode {
	var te *TTSError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
