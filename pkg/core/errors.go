package core

import (
	"errors"
	"fmt"
)

// Sentinel errors used for control flow across the session pipeline.
var (
	// ErrConnectionClosed reports that the live transport connection was
	// closed by the remote side. The multiplexer treats it as a distinct
	// "connection lost" condition rather than a generic failure.
	ErrConnectionClosed = errors.New("live connection closed")

	// ErrUserRequestedExit is the expected, non-error shutdown trigger
	// raised by the interactive input loop.
	ErrUserRequestedExit = errors.New("user requested exit")

	// ErrSourceExhausted reports that a capture device has no more data
	// (for example, the camera was closed). It terminates the owning
	// producer only.
	ErrSourceExhausted = errors.New("capture source exhausted")
)

// Error is a structured session error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Task    string    `json:"task,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("%s: %s (task: %s)", e.Type, e.Message, e.Task)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors per the session failure taxonomy.
type ErrorType string

const (
	ErrConfiguration ErrorType = "configuration_error"
	ErrDevice        ErrorType = "device_error"
	ErrToolExecution ErrorType = "tool_execution_error"
	ErrPersistence   ErrorType = "persistence_error"
	ErrTransport     ErrorType = "transport_error"
)

// NewConfigurationError creates a configuration error. Configuration errors
// are fatal at startup.
func NewConfigurationError(message string) *Error {
	return &Error{Type: ErrConfiguration, Message: message}
}

// NewDeviceError creates a device error scoped to one capture task.
func NewDeviceError(task, message string) *Error {
	return &Error{Type: ErrDevice, Message: message, Task: task}
}

// NewTransportError creates a generic transport error.
func NewTransportError(message string) *Error {
	return &Error{Type: ErrTransport, Message: message}
}

// IsFatalAtStartup returns true when the error must abort session
// establishment instead of being logged and skipped.
func (e *Error) IsFatalAtStartup() bool {
	return e.Type == ErrConfiguration
}
