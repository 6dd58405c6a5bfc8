package inference

import (
	"context"
	"sync"
)

// Native wraps a host-registered callback as a Backend. The callback is
// registered once and invoked many times; invocations are serialized
// because the host function is not assumed to be thread-safe.
type Native struct {
	mu       sync.Mutex
	lookup   func() func(ctx context.Context, input string) (string, error)
	notReady error
}

// NewNative creates a native backend. lookup resolves the currently
// registered callback at call time, so registration after agent creation
// still takes effect; notReady is returned while no callback is
// registered.
func NewNative(lookup func() func(ctx context.Context, input string) (string, error), notReady error) *Native {
	return &Native{lookup: lookup, notReady: notReady}
}

func (n *Native) Name() string { return "native" }

func (n *Native) Complete(ctx context.Context, input string) (string, error) {
	fn := n.lookup()
	if fn == nil {
		return "", n.notReady
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return fn(ctx, input)
}
