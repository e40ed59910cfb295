package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound       = errors.New("domain: not found")
	ErrConflict       = errors.New("domain: conflict")
	ErrPrecondition   = errors.New("domain: precondition violated")
	ErrInfrastructure = errors.New("domain: infrastructure failure")
	ErrTimeout        = errors.New("domain: timeout exceeded")
	ErrProtocol       = errors.New("domain: protocol violation")
	ErrUnauthorized   = errors.New("domain: unauthorized")
)

// ErrorKind classifies an operation-level failure. Findings are never errors.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not_found"
	KindPrecondition   ErrorKind = "precondition_violation"
	KindInfrastructure ErrorKind = "infrastructure_failure"
	KindProtocol       ErrorKind = "protocol_violation"
)

// OperationError is the typed failure carried on correlated responses.
// It survives a JSON round trip, so errors.Is works on both sides of the wire.
type OperationError struct {
	Kind    ErrorKind `json:"kind"`
	Reason  string    `json:"reason"`
	Timeout bool      `json:"timeout,omitempty"`
}

func (e *OperationError) Error() string {
	return string(e.Kind) + ": " + e.Reason
}

// Is maps the kind onto the package sentinels.
func (e *OperationError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPrecondition:
		return e.Kind == KindPrecondition
	case ErrInfrastructure:
		return e.Kind == KindInfrastructure
	case ErrProtocol:
		return e.Kind == KindProtocol
	case ErrTimeout:
		return e.Timeout
	}
	return false
}

func NotFoundf(format string, args ...any) *OperationError {
	return &OperationError{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

func Preconditionf(format string, args ...any) *OperationError {
	return &OperationError{Kind: KindPrecondition, Reason: fmt.Sprintf(format, args...)}
}

func Protocolf(format string, args ...any) *OperationError {
	return &OperationError{Kind: KindProtocol, Reason: fmt.Sprintf(format, args...)}
}

// Infrastructure wraps a store or transport failure.
func Infrastructure(op string, cause error) *OperationError {
	reason := op
	if cause != nil {
		reason = op + ": " + cause.Error()
	}
	return &OperationError{Kind: KindInfrastructure, Reason: reason, Timeout: errors.Is(cause, ErrTimeout)}
}

// Timeoutf reports an infrastructure failure caused by an exceeded deadline.
func Timeoutf(format string, args ...any) *OperationError {
	return &OperationError{Kind: KindInfrastructure, Reason: fmt.Sprintf(format, args...), Timeout: true}
}

// AsOperationError converts any error into an OperationError, classifying
// unknown errors as infrastructure failures.
func AsOperationError(err error) *OperationError {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &OperationError{Kind: KindNotFound, Reason: err.Error()}
	case errors.Is(err, ErrPrecondition), errors.Is(err, ErrConflict):
		return &OperationError{Kind: KindPrecondition, Reason: err.Error()}
	case errors.Is(err, ErrProtocol):
		return &OperationError{Kind: KindProtocol, Reason: err.Error()}
	}
	return Infrastructure("operation failed", err)
}
