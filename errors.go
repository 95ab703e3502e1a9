// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error categories for VNC capture operations.
type ErrorCode int

const (
	// ErrIncompleteStream indicates the byte stream ended in the middle of a
	// protocol element.
	ErrIncompleteStream ErrorCode = iota
	// ErrInvalidUpdateType indicates an update message type outside the
	// supported set.
	ErrInvalidUpdateType
	// ErrUnsupportedEncoding indicates a rectangle encoding outside the
	// negotiated set.
	ErrUnsupportedEncoding
	// ErrUnrecognizedPixelFormat indicates a server pixel format with no
	// matching video mode.
	ErrUnrecognizedPixelFormat
	// ErrEncoding indicates a rectangle payload decode failure.
	ErrEncoding
	// ErrNetwork indicates a stream transport failure.
	ErrNetwork
	// ErrValidation indicates a server-supplied value outside sane bounds.
	ErrValidation
	// ErrSession indicates an operation on a failed or closed session.
	ErrSession
)

// String returns the string representation of the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrIncompleteStream:
		return "incomplete-stream"
	case ErrInvalidUpdateType:
		return "invalid-update-type"
	case ErrUnsupportedEncoding:
		return "unsupported-encoding"
	case ErrUnrecognizedPixelFormat:
		return "unrecognized-pixel-format"
	case ErrEncoding:
		return "encoding"
	case ErrNetwork:
		return "network"
	case ErrValidation:
		return "validation"
	case ErrSession:
		return "session"
	default:
		return "unknown"
	}
}

// VNCError provides structured error information with operation context,
// error codes, and message wrapping for comprehensive error handling.
type VNCError struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the formatted error message.
func (e *VNCError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vnc %s: %s: %s: %v", e.Code.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("vnc %s: %s: %s", e.Code.String(), e.Op, e.Message)
}

// Unwrap returns the underlying error for error chain unwrapping.
func (e *VNCError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target error.
func (e *VNCError) Is(target error) bool {
	var vncErr *VNCError
	if errors.As(target, &vncErr) {
		return e.Code == vncErr.Code && e.Op == vncErr.Op
	}
	return false
}

// NewVNCError creates a new VNCError with the specified parameters.
// This is the primary constructor for structured VNC errors.
func NewVNCError(op string, code ErrorCode, message string, err error) *VNCError {
	return &VNCError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapError wraps an existing error with VNC-specific context.
// Returns nil if the input error is nil, otherwise creates a new VNCError.
func WrapError(op string, code ErrorCode, message string, err error) error {
	if err == nil {
		return nil
	}
	return &VNCError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsVNCError checks if an error is a VNCError and optionally matches specific
// error codes. If no codes are provided, returns true for any VNCError. If
// codes are provided, returns true only if the error matches one of the
// specified codes.
func IsVNCError(err error, code ...ErrorCode) bool {
	var vncErr *VNCError
	if !errors.As(err, &vncErr) {
		return false
	}

	if len(code) == 0 {
		return true
	}

	for _, c := range code {
		if vncErr.Code == c {
			return true
		}
	}
	return false
}

// GetErrorCode extracts the error code from a VNCError.
// Returns the error code if the error is a VNCError, otherwise returns -1.
func GetErrorCode(err error) ErrorCode {
	var vncErr *VNCError
	if errors.As(err, &vncErr) {
		return vncErr.Code
	}
	return ErrorCode(-1)
}

// incompleteStreamError creates a new incomplete stream error.
func incompleteStreamError(op, message string, err error) error {
	return NewVNCError(op, ErrIncompleteStream, message, err)
}

// invalidUpdateTypeError creates a new invalid update type error.
func invalidUpdateTypeError(op, message string, err error) error {
	return NewVNCError(op, ErrInvalidUpdateType, message, err)
}

// unsupportedEncodingError creates a new unsupported encoding error.
func unsupportedEncodingError(op, message string, err error) error {
	return NewVNCError(op, ErrUnsupportedEncoding, message, err)
}

// unrecognizedPixelFormatError creates a new unrecognized pixel format error.
func unrecognizedPixelFormatError(op, message string, err error) error {
	return NewVNCError(op, ErrUnrecognizedPixelFormat, message, err)
}

// encodingError creates a new encoding error.
func encodingError(op, message string, err error) error {
	return NewVNCError(op, ErrEncoding, message, err)
}

// networkError creates a new network error.
func networkError(op, message string, err error) error {
	return NewVNCError(op, ErrNetwork, message, err)
}

// validationError creates a new validation error.
func validationError(op, message string, err error) error {
	return NewVNCError(op, ErrValidation, message, err)
}

// sessionError creates a new session state error.
func sessionError(op, message string, err error) error {
	return NewVNCError(op, ErrSession, message, err)
}
