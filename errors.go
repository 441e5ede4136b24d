package telemetry

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes why a telemetry operation failed, per the six
// kinds an operation can fail with.
type ErrorKind string

const (
	KindArgument  ErrorKind = "argument-error"
	KindState     ErrorKind = "state-error"
	KindPrivilege ErrorKind = "privilege-error"
	KindResource  ErrorKind = "resource-error"
	KindLossNotice ErrorKind = "loss-notice"
	KindHandler   ErrorKind = "handler-error"
)

// StatusCode is the stable integer surface every public operation
// maps its result onto.
type StatusCode int

const (
	StatusOK                    StatusCode = 0
	StatusGeneralError          StatusCode = 1000
	StatusAlreadyRunning        StatusCode = 1001
	StatusStopSignalUnexpected  StatusCode = 1002
	StatusNotRunning            StatusCode = 1003
	StatusStopFailed            StatusCode = 1004
	StatusInvalidArguments      StatusCode = 1005
	StatusBufferNotEmpty        StatusCode = 1006
	StatusPrivilegeCheckFailed  StatusCode = 1007
)

// Error is the structured error every telemetry operation returns on
// failure: an operation name, a Kind, a stable Code, a message, and an
// optional wrapped cause.
type Error struct {
	Op    string
	Kind  ErrorKind
	Code  StatusCode
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("telemetry: %s: %s (%s, code=%d)", e.Op, e.Msg, e.Kind, e.Code)
	}
	return fmt.Sprintf("telemetry: %s (%s, code=%d)", e.Msg, e.Kind, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError builds a structured Error for the given operation.
func NewError(op string, kind ErrorKind, code StatusCode, msg string) *Error {
	return &Error{Op: op, Kind: kind, Code: code, Msg: msg}
}

// WrapError wraps an existing error under a telemetry operation,
// preserving the inner error's kind/code when it is already an
// *Error, and otherwise classifying it as a general resource error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var te *Error
	if errors.As(inner, &te) {
		return &Error{
			Op:    op,
			Kind:  te.Kind,
			Code:  te.Code,
			Msg:   te.Msg,
			Inner: te.Inner,
		}
	}
	return &Error{
		Op:    op,
		Kind:  KindResource,
		Code:  StatusGeneralError,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// IsCode reports whether err is a *Error carrying the given code.
func IsCode(err error, code StatusCode) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// CodeOf extracts the StatusCode from err, or StatusOK if err is nil,
// or StatusGeneralError if err is a non-telemetry error.
func CodeOf(err error) StatusCode {
	if err == nil {
		return StatusOK
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return StatusGeneralError
}
