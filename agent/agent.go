package agent

import "context"

// Agent is the interface implemented by every agent variant.
//
// Agents receive broadcast events through HandleEvent and point-to-point
// request/response messages through HandleDirect. Variants with background
// activity (heartbeat timers) run it between Start and Stop; Stop must
// guarantee no further background work is scheduled before it returns.
type Agent interface {
	// ID returns the registry-assigned identifier for this agent instance.
	ID() string

	// Name returns the caller-chosen display name.
	Name() string

	// Kind returns the agent's variant kind (e.g. KindHeartbeat).
	Kind() Kind

	// State returns the agent's current lifecycle state.
	State() State

	// Subscriptions returns the event kinds this agent wants delivered,
	// read by the registry once at creation time. The wildcard kind "*"
	// matches every published kind.
	Subscriptions() []string

	// Start transitions the agent into Running and arms any background
	// activity. Called exactly once by the registry during creation.
	Start(ctx context.Context) error

	// Stop cancels background activity, waits for in-flight calls up to
	// the context deadline, and leaves the agent Stopped. Idempotent.
	Stop(ctx context.Context) error

	// HandleEvent processes one bus event. Errors are isolated by the
	// bus: they are recorded but never propagate to the publisher or to
	// sibling agents.
	HandleEvent(ctx context.Context, ev Event) error

	// HandleDirect processes a direct message and returns the response.
	// Errors propagate synchronously to the sender.
	HandleDirect(ctx context.Context, msg string) (string, error)

	// Conversation returns the agent's private conversation log.
	Conversation() *Conversation
}

// Runtime is the slice of the runtime facade that agents see. It lets a
// variant publish follow-up events and reach the externally registered
// inference capability without depending on the facade package.
type Runtime interface {
	// Publish broadcasts an event on the bus. source is the emitting
	// agent's id.
	Publish(kind, payload, source string) error

	// NativeBackend returns the registered external inference capability,
	// or nil if none has been registered yet.
	NativeBackend() CompleteFunc
}

// CompleteFunc is the uniform inference contract: given input text, produce
// output text, fallibly. Backends (local rules, remote HTTP, registered
// native callback) all reduce to this shape.
type CompleteFunc func(ctx context.Context, input string) (string, error)
