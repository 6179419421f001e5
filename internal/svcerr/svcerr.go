// Package svcerr defines the failure taxonomy of a reconciliation. Every error
// is fatal to the invocation that raised it; the kind tells the caller whether
// re-invoking later could help.
package svcerr

import (
	"errors"
	"fmt"

	"github.com/edvin/svcctl/internal/model"
)

// Kind classifies a reconciliation failure.
type Kind string

const (
	KindConnectivity      Kind = "Connectivity"
	KindClusterNotFound   Kind = "ClusterNotFound"
	KindMissingDependency Kind = "MissingDependency"
	KindCreationFailed    Kind = "CreationFailed"
	KindInitCommandFailed Kind = "InitCommandFailed"
	KindTimedOut          Kind = "TimedOut"
	KindStartFailed       Kind = "StartFailed"
	KindStopFailed        Kind = "StopFailed"
	KindConfiguration     Kind = "Configuration"
)

// Error is a typed reconciliation error.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	// Outcome is set when the failure came from a polled command.
	Outcome model.CommandOutcome
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg += " [" + e.Stage + "]"
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a typed error.
func New(kind Kind, stage, message string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

// Newf constructs a typed error with a formatted message and no cause.
func Newf(kind Kind, stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// Connectivity wraps a transport or authentication failure.
func Connectivity(stage string, err error) *Error {
	return New(KindConnectivity, stage, "control plane unreachable or rejected credentials", err)
}

// Configuration reports malformed input detected before any remote call.
func Configuration(format string, args ...any) *Error {
	return Newf(KindConfiguration, "validate", format, args...)
}

// As returns the typed error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" if err is not a typed error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsConnectivity reports whether err is a connectivity failure. The
// reconciler passes these through unchanged instead of re-wrapping them.
func IsConnectivity(err error) bool {
	return Is(err, KindConnectivity)
}

// ToReport converts any error into the report form. Untyped errors are
// reported with an empty kind.
func ToReport(err error) *model.ErrorReport {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		msg := e.Message
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return &model.ErrorReport{
			Kind:    string(e.Kind),
			Stage:   e.Stage,
			Message: msg,
			Outcome: string(e.Outcome),
		}
	}
	return &model.ErrorReport{Message: err.Error()}
}
