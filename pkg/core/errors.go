package core

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrStreamClosed     = errors.New("stream closed")
	ErrStreamCancelled  = errors.New("stream cancelled")
	ErrMalformedSources = errors.New("malformed sources payload")
)

// ConfigError represents configuration-related errors
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field %s (value: %v): %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is reports ErrInvalidConfig as a match so callers can test for any
// configuration failure without knowing the field.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// TransportError represents a failure of the underlying byte stream: a
// rejected request, a dropped connection or an unreadable body.
type TransportError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("transport error in %s (status: %d): %v: %s", e.Operation, e.StatusCode, e.Err, e.Body)
		}
		return fmt.Sprintf("transport error in %s (status: %d): %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error in %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError represents protocol-level errors
type ProtocolError struct {
	Operation string
	Offset    int
	Err       error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in %s (offset: %d): %v", e.Operation, e.Offset, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
