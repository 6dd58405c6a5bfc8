package agent

import (
	"errors"
	"fmt"
)

// ErrAgentNotFound is returned for ids that were never issued by the
// registry.
var ErrAgentNotFound = errors.New("agent not found")

// ErrAgentStopped is returned when a direct message targets an agent that
// is no longer running.
var ErrAgentStopped = errors.New("agent is stopped")

// ErrNativeNotRegistered is returned when a native inference agent is
// invoked before the host has registered its callback.
var ErrNativeNotRegistered = errors.New("native inference backend not registered")

// InitializationError reports structurally invalid agent configuration
// detected at creation time.
type InitializationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("invalid %s agent configuration: %s %s", e.Kind, e.Field, e.Reason)
}

// InferenceError reports a failed backend call, carrying the backend
// identity alongside the cause.
type InferenceError struct {
	Backend string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference backend %s: %v", e.Backend, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
