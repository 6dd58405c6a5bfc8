package agent

import "time"

// KindWildcard subscribes an agent to every published event kind.
const KindWildcard = "*"

// Reserved event kinds emitted by the runtime itself.
const (
	KindHeartbeatEvent = "heartbeat"
	KindAgentStarted   = "agent.started"
	KindAgentStopped   = "agent.stopped"
)

// Event is one unit of bus traffic.
type Event struct {
	Kind        string    `json:"kind"`
	Payload     string    `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source,omitempty"` // emitting agent id, empty for external publishes
}

// NewEvent stamps an event with the current time.
func NewEvent(kind, payload, source string) Event {
	return Event{
		Kind:        kind,
		Payload:     payload,
		PublishedAt: time.Now(),
		Source:      source,
	}
}
