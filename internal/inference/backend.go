// Package inference provides the backend capabilities used by inference
// agents: an in-process rule engine, remote HTTP model servers, and the
// host-registered native callback. Every backend reduces to the same
// contract: given input text, produce output text, fallibly.
package inference

import "context"

// Backend is the uniform inference capability.
type Backend interface {
	// Name identifies the backend in errors and metrics.
	Name() string

	// Complete produces a response for the input text. Implementations
	// must honor ctx and must not block past their configured timeout.
	Complete(ctx context.Context, input string) (string, error)
}
