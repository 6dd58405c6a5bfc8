// Package agents implements the agent variants: heartbeat emitters,
// loggers, and the inference family (local rules, remote HTTP, native
// callback). Each variant registers its factory with the agent package
// from init().
package agents

import (
	"context"
	"sync"

	"github.com/therenansimoes/cortexOS/agent"
)

// Base carries the lifecycle machinery shared by every variant: identity,
// the state machine, the conversation log, in-flight call tracking, and
// cancellation of background activity. Embed it and override what differs.
type Base struct {
	id  string
	def agent.Def

	mu    sync.Mutex
	state agent.State

	conv     *agent.Conversation
	inflight sync.WaitGroup

	// lifecycle is canceled when the agent leaves Running, propagating
	// cancellation into in-flight backend calls and timer loops.
	lifecycle context.Context
	cancel    context.CancelFunc
}

// NewBase creates a base in state Starting.
func NewBase(id string, def agent.Def) *Base {
	ctx, cancel := context.WithCancel(context.Background())
	return &Base{
		id:        id,
		def:       def,
		state:     agent.StateStarting,
		conv:      agent.NewConversation(),
		lifecycle: ctx,
		cancel:    cancel,
	}
}

func (b *Base) ID() string                   { return b.id }
func (b *Base) Name() string                 { return b.def.Name }
func (b *Base) Kind() agent.Kind             { return b.def.Kind }
func (b *Base) Def() agent.Def               { return b.def }
func (b *Base) Conversation() *agent.Conversation { return b.conv }

// Subscriptions returns only the extra kinds from the definition; variants
// with default subscriptions prepend their own.
func (b *Base) Subscriptions() []string { return b.def.Subscribe }

func (b *Base) State() agent.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition moves the state machine, rejecting illegal moves.
func (b *Base) transition(to agent.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := agent.CheckTransition(b.state, to); err != nil {
		return err
	}
	b.state = to
	return nil
}

// Start transitions Starting -> Running. Variants with background activity
// wrap this and arm their timers afterwards.
func (b *Base) Start(ctx context.Context) error {
	return b.transition(agent.StateRunning)
}

// Stop drains the agent: Running -> Stopping, cancel background activity
// and in-flight calls, wait for them up to the context deadline, then
// Stopped. Idempotent; a bounded wait that expires still collapses the
// agent to Stopped (prompt removal wins over graceful drain).
func (b *Base) Stop(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case agent.StateStopped:
		b.mu.Unlock()
		return nil
	case agent.StateStarting:
		b.state = agent.StateStopped
		b.mu.Unlock()
		b.cancel()
		return nil
	case agent.StateRunning:
		b.state = agent.StateStopping
	}
	b.mu.Unlock()

	b.cancel()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	b.mu.Lock()
	b.state = agent.StateStopped
	b.mu.Unlock()
	return nil
}

// begin registers an in-flight call, failing when the agent is not
// Running. Every successful begin must be paired with end.
func (b *Base) begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != agent.StateRunning {
		return agent.ErrAgentStopped
	}
	b.inflight.Add(1)
	return nil
}

func (b *Base) end() { b.inflight.Done() }

// callContext derives a context for one call that is canceled either by
// the caller or by the agent leaving Running. The returned stop func must
// be deferred.
func (b *Base) callContext(ctx context.Context) (context.Context, func()) {
	callCtx, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(b.lifecycle, cancel)
	return callCtx, func() {
		release()
		cancel()
	}
}

// appendOutbound records a response unless the agent has already been
// forcibly stopped, in which case the late result is discarded so the log
// is never extended after Stop returned.
func (b *Base) appendOutbound(content string) {
	b.mu.Lock()
	stopped := b.state == agent.StateStopped
	b.mu.Unlock()
	if !stopped {
		b.conv.Append(agent.Outbound, content)
	}
}
