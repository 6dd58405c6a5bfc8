package inference

import (
	"context"
	"sync"
)

// Mock is a scriptable backend for tests.
type Mock struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	calls    []string
	Delay    func(ctx context.Context) error // optional blocking hook
	nameOver string
}

// NewMock returns a backend that always replies with reply.
func NewMock(reply string) *Mock {
	return &Mock{Reply: reply}
}

func (m *Mock) Name() string {
	if m.nameOver != "" {
		return m.nameOver
	}
	return "mock"
}

func (m *Mock) Complete(ctx context.Context, input string) (string, error) {
	if m.Delay != nil {
		if err := m.Delay(ctx); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, input)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

// Calls returns the inputs seen so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// SetErr makes subsequent calls fail with err.
func (m *Mock) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}
