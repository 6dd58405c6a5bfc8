package agents

import (
	"context"
	"fmt"
	"log"

	"github.com/therenansimoes/cortexOS/agent"
)

func init() {
	agent.RegisterFactory(agent.KindLogger, func(id string, def agent.Def, rt agent.Runtime) (agent.Agent, error) {
		return NewLogger(id, def), nil
	})
}

// Logger subscribes to the wildcard kind and records every event it
// receives in its conversation log. It never produces follow-up events.
type Logger struct {
	*Base
}

// NewLogger creates a logger agent.
func NewLogger(id string, def agent.Def) *Logger {
	return &Logger{Base: NewBase(id, def)}
}

// Subscriptions is the wildcard plus any extra kinds from the definition.
func (l *Logger) Subscriptions() []string {
	return append([]string{agent.KindWildcard}, l.Def().Subscribe...)
}

// HandleEvent appends the event to the conversation log as an inbound
// entry of the form "[kind] payload".
func (l *Logger) HandleEvent(ctx context.Context, ev agent.Event) error {
	if err := l.begin(); err != nil {
		return err
	}
	defer l.end()

	l.conv.Append(agent.Inbound, fmt.Sprintf("[%s] %s", ev.Kind, ev.Payload))
	log.Printf("[logger] %s | %s | %s", l.Name(), ev.Kind, ev.Payload)
	return nil
}

// HandleDirect records the message and returns an acknowledgment.
func (l *Logger) HandleDirect(ctx context.Context, msg string) (string, error) {
	if err := l.begin(); err != nil {
		return "", err
	}
	defer l.end()

	l.conv.Append(agent.Inbound, msg)
	ack := fmt.Sprintf("[%s] logged: %s", l.Name(), msg)
	l.appendOutbound(ack)
	return ack, nil
}
