// Package bus implements the publish/subscribe event bus: a subscription
// table mapping event kinds to agent ids, and one FIFO mailbox per
// attached agent.
//
// Delivery is fan-out and best-effort. Publish snapshots the subscriber
// set at the instant of call, enqueues the event on each selected mailbox,
// and returns; each mailbox is drained by a dedicated goroutine so
// delivery order is FIFO per agent while independent across agents. A
// failing handler never affects delivery to its siblings. A full mailbox
// drops the event for that agent and the drop is reported.
package bus

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/therenansimoes/cortexOS/agent"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// DefaultMailboxSize is the per-agent queue depth.
const DefaultMailboxSize = 100

// Handler consumes one event for one agent.
type Handler func(ctx context.Context, ev agent.Event) error

// Report describes the outcome of one publish.
type Report struct {
	Kind      string   `json:"kind"`
	Selected  int      `json:"selected"`  // subscribers at the instant of publish
	Delivered int      `json:"delivered"` // enqueued to a mailbox
	Dropped   []string `json:"dropped,omitempty"` // agent ids with a full mailbox
}

// Option configures a Bus.
type Option func(*Bus)

// WithMailboxSize overrides the per-agent queue depth.
func WithMailboxSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.boxSize = n
		}
	}
}

// WithFailureHook installs a callback invoked whenever an agent's handler
// returns an error. Used to wire metrics; failures are logged regardless.
func WithFailureHook(fn func(id string, ev agent.Event, err error)) Option {
	return func(b *Bus) { b.onFailure = fn }
}

// WithDropHook installs a callback invoked whenever a full mailbox forces
// an event to be dropped for one agent.
func WithDropHook(fn func(id string, ev agent.Event)) Option {
	return func(b *Bus) { b.onDrop = fn }
}

type mailbox struct {
	ch   chan agent.Event
	done chan struct{}
}

// Bus routes published events to subscribed agents.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string]map[string]struct{} // kind -> set of agent ids
	boxes     map[string]*mailbox
	boxSize   int
	closed    bool
	onFailure func(id string, ev agent.Event, err error)
	onDrop    func(id string, ev agent.Event)
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:    make(map[string]map[string]struct{}),
		boxes:   make(map[string]*mailbox),
		boxSize: DefaultMailboxSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach creates the agent's mailbox and starts its delivery goroutine.
// Must be called before Subscribe for that agent.
func (b *Bus) Attach(id string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.boxes[id]; exists {
		return nil
	}

	box := &mailbox{
		ch:   make(chan agent.Event, b.boxSize),
		done: make(chan struct{}),
	}
	b.boxes[id] = box

	go func() {
		defer close(box.done)
		for ev := range box.ch {
			if err := handler(context.Background(), ev); err != nil {
				log.Printf("[bus] agent %s failed handling %q event: %v", id, ev.Kind, err)
				if b.onFailure != nil {
					b.onFailure(id, ev, err)
				}
			}
		}
	}()
	return nil
}

// Subscribe adds the agent to the given kind. Idempotent; unknown agents
// (never attached) are rejected so the subscription table can never point
// at a non-live agent.
func (b *Bus) Subscribe(id, kind string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, attached := b.boxes[id]; !attached {
		return agent.ErrAgentNotFound
	}

	set, ok := b.subs[kind]
	if !ok {
		set = make(map[string]struct{})
		b.subs[kind] = set
	}
	set[id] = struct{}{}
	return nil
}

// Unsubscribe removes the agent from the given kind. Idempotent.
func (b *Bus) Unsubscribe(id, kind string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[kind]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(b.subs, kind)
		}
	}
}

// Subscriptions returns the kinds the agent is currently subscribed to.
func (b *Bus) Subscriptions(id string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var kinds []string
	for kind, set := range b.subs {
		if _, ok := set[id]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Publish delivers the event to every agent subscribed to ev.Kind or to
// the wildcard at the instant of call. It returns once every selected
// agent has the event enqueued on its FIFO mailbox.
func (b *Bus) Publish(ev agent.Event) (Report, error) {
	report := Report{Kind: ev.Kind}

	// Sends stay inside the read lock: Detach takes the write lock before
	// closing a mailbox channel, so a send can never race a close. The
	// sends are non-blocking, keeping the critical section short.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return report, ErrBusClosed
	}

	seen := make(map[string]struct{})
	for _, kind := range []string{ev.Kind, agent.KindWildcard} {
		for id := range b.subs[kind] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			box, ok := b.boxes[id]
			if !ok {
				continue
			}
			report.Selected++
			select {
			case box.ch <- ev:
				report.Delivered++
			default:
				report.Dropped = append(report.Dropped, id)
				log.Printf("[bus] mailbox full, dropping %q event for agent %s", ev.Kind, id)
				if b.onDrop != nil {
					b.onDrop(id, ev)
				}
			}
		}
	}
	return report, nil
}

// Detach atomically removes all the agent's subscriptions and its mailbox,
// then waits for already-enqueued events to drain. After Detach returns no
// publish can select the agent.
func (b *Bus) Detach(id string) {
	b.mu.Lock()
	box, ok := b.boxes[id]
	if ok {
		delete(b.boxes, id)
	}
	for kind, set := range b.subs {
		delete(set, id)
		if len(set) == 0 {
			delete(b.subs, kind)
		}
	}
	b.mu.Unlock()

	if ok {
		close(box.ch)
		<-box.done
	}
}

// Close detaches every agent and rejects further operations.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	boxes := b.boxes
	b.boxes = make(map[string]*mailbox)
	b.subs = make(map[string]map[string]struct{})
	b.mu.Unlock()

	for _, box := range boxes {
		close(box.ch)
		<-box.done
	}
}
