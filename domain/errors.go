package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the calculator and CRM pipeline can report.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfiguration
	KindRateLimited
	KindServer
	KindNetwork
	KindClient
	KindInvalidArgument
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration_error"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server_error"
	case KindNetwork:
		return "network_error"
	case KindClient:
		return "client_error"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Error is the tagged error used across the module. Status is the HTTP status
// of the remote response, or zero when no response was received.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Code    string
	Data    any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServer, KindNetwork:
		return true
	}
	return false
}

// NewInvalidArgument builds a KindInvalidArgument error for the named field.
func NewInvalidArgument(field, format string, args ...any) *Error {
	return &Error{
		Kind:    KindInvalidArgument,
		Code:    field,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewConfigurationError builds a KindConfiguration error for a missing setting.
func NewConfigurationError(setting string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Code:    setting,
		Message: fmt.Sprintf("%s is not configured", setting),
	}
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a transient *Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// StatusOf returns the remote HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
