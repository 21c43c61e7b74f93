// Package errors provides standardized error handling for mfo.
// It defines the error kinds the organizer pipeline distinguishes between,
// plus helpers for consistent creation, wrapping and inspection.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package errors that we re-export for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidPath
	TargetExists
	CrossDevice
	FileOperationFailed
	// Config error kinds
	InvalidConfig
	ConfigNotFound
	// Lifecycle error kinds
	InvalidState
)

var kindNames = map[ErrorKind]string{
	Unknown:             "unknown",
	FileNotFound:        "file_not_found",
	FileAccessDenied:    "file_access_denied",
	InvalidPath:         "invalid_path",
	TargetExists:        "target_exists",
	CrossDevice:         "cross_device",
	FileOperationFailed: "file_operation_failed",
	InvalidConfig:       "invalid_config",
	ConfigNotFound:      "config_not_found",
	InvalidState:        "invalid_state",
}

// String returns a stable, log-friendly name for the kind.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// Common error constants for frequently occurring errors
var (
	ErrFileNotFound  = NewFileError("file not found", "", FileNotFound, nil)
	ErrTargetExists  = NewFileError("target already exists", "", TargetExists, nil)
	ErrInvalidConfig = NewConfigError("invalid configuration", "", InvalidConfig, nil)
)

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// FileError represents errors related to file operations
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		path: path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		param: param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// StateError is returned when a lifecycle transition is not allowed
// from the current state.
type StateError struct {
	ApplicationError
	from string
	op   string
}

// NewStateError creates a new lifecycle error for op attempted in state from.
func NewStateError(op, from string) *StateError {
	return &StateError{
		ApplicationError: ApplicationError{
			msg:  "invalid state transition",
			kind: InvalidState,
		},
		from: from,
		op:   op,
	}
}

// Error returns the state error message
func (e *StateError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s", e.msg, e.op, e.from)
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{
		msg:  msg,
		kind: Unknown,
	}
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		kind: Unknown,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  msg,
		err:  err,
		kind: Unknown,
	}
}

// Wrapf wraps an existing error with additional formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		err:  err,
		kind: Unknown,
	}
}

// KindOf returns the kind of the first ApplicationError-derived error in
// err's chain, or Unknown.
func KindOf(err error) ErrorKind {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind()
	}
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind()
	}
	var stateErr *StateError
	if errors.As(err, &stateErr) {
		return stateErr.Kind()
	}
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return Unknown
}

// IsFileNotFound checks if the error is a file not found error
func IsFileNotFound(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileNotFound
	}
	return false
}

// IsFileAccessDenied checks if the error is a file access denied error
func IsFileAccessDenied(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileAccessDenied
	}
	return false
}

// IsTargetExists checks if the error reports a destination that appeared
// between path resolution and the move.
func IsTargetExists(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == TargetExists
	}
	return false
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsInvalidState checks if the error is a rejected lifecycle transition
func IsInvalidState(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr)
}
