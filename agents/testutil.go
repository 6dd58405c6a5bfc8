package agents

import (
	"context"
	"sync"

	"github.com/therenansimoes/cortexOS/agent"
)

// recordingRuntime captures published events for assertions.
type recordingRuntime struct {
	mu     sync.Mutex
	events []agent.Event
	native agent.CompleteFunc
}

func (r *recordingRuntime) Publish(kind, payload, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, agent.NewEvent(kind, payload, source))
	return nil
}

func (r *recordingRuntime) NativeBackend() agent.CompleteFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.native
}

func (r *recordingRuntime) setNative(fn agent.CompleteFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.native = fn
}

func (r *recordingRuntime) published() []agent.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]agent.Event, len(r.events))
	copy(out, r.events)
	return out
}

var _ agent.Runtime = (*recordingRuntime)(nil)

// startAgent runs Start and fails the test on error.
func startAgent(t interface{ Fatalf(string, ...any) }, a agent.Agent) {
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start agent: %v", err)
	}
}
