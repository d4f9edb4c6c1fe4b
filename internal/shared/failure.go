package shared

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is wrapped by every input validation error returned to callers.
var ErrInvalidInput = errors.New("invalid input")

// FailureKind classifies an absorbed fault.
type FailureKind string

const (
	FailureTransient    FailureKind = "transient"
	FailureDenied       FailureKind = "denied"
	FailureBulk         FailureKind = "bulk-fault"
	FailureMalformed    FailureKind = "malformed"
	FailureInvalidInput FailureKind = "invalid-input"
	FailureLookup       FailureKind = "lookup"
	FailureCanceled     FailureKind = "canceled"
)

// Failure describes why an operation fell back to a safe default.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

// NewFailure builds a Failure from an error.
func NewFailure(kind FailureKind, err error) *Failure {
	if err == nil {
		return &Failure{Kind: kind}
	}
	return &Failure{Kind: kind, Reason: err.Error()}
}

// Invalid returns an input validation error wrapping ErrInvalidInput.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
