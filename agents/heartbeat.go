package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/therenansimoes/cortexOS/agent"
)

func init() {
	agent.RegisterFactory(agent.KindHeartbeat, func(id string, def agent.Def, rt agent.Runtime) (agent.Agent, error) {
		return NewHeartbeat(id, def, rt), nil
	})
}

// Heartbeat periodically publishes a "heartbeat" event on the bus, either
// on a fixed interval or on a cron schedule. It does not consume bus
// traffic.
type Heartbeat struct {
	*Base
	rt    agent.Runtime
	ticks atomic.Uint64
	wg    sync.WaitGroup
	cron  *cron.Cron
}

// heartbeatPayload is the JSON body of each emitted event.
type heartbeatPayload struct {
	AgentID   string `json:"agent_id"`
	Name      string `json:"name"`
	TickCount uint64 `json:"tick_count"`
	Timestamp string `json:"timestamp"`
}

// NewHeartbeat creates a heartbeat agent. The definition has already been
// validated: exactly one of interval or schedule is set.
func NewHeartbeat(id string, def agent.Def, rt agent.Runtime) *Heartbeat {
	return &Heartbeat{Base: NewBase(id, def), rt: rt}
}

// Start arms the periodic trigger and transitions to Running.
func (h *Heartbeat) Start(ctx context.Context) error {
	if err := h.Base.Start(ctx); err != nil {
		return err
	}

	if h.Def().Schedule != "" {
		h.cron = cron.New()
		if _, err := h.cron.AddFunc(h.Def().Schedule, h.beat); err != nil {
			// Unreachable after Validate, but the state must not leak.
			_ = h.Base.Stop(ctx)
			return err
		}
		h.cron.Start()
		return nil
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		t := time.NewTicker(h.Def().Interval.Duration)
		defer t.Stop()
		for {
			select {
			case <-h.lifecycle.Done():
				return
			case <-t.C:
				h.beat()
			}
		}
	}()
	return nil
}

// beat publishes one heartbeat event.
func (h *Heartbeat) beat() {
	tick := h.ticks.Add(1)
	body, _ := json.Marshal(heartbeatPayload{
		AgentID:   h.ID(),
		Name:      h.Name(),
		TickCount: tick,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	if err := h.rt.Publish(agent.KindHeartbeatEvent, string(body), h.ID()); err != nil {
		log.Printf("[heartbeat] %s publish failed: %v", h.Name(), err)
	}
}

// Stop cancels the trigger before the state reaches Stopped: once Stop
// returns, no further heartbeat can be observed on the bus.
func (h *Heartbeat) Stop(ctx context.Context) error {
	if err := h.Base.Stop(ctx); err != nil {
		return err
	}
	if h.cron != nil {
		// cron.Stop returns a context that is done once in-flight jobs
		// have finished.
		select {
		case <-h.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	h.wg.Wait()
	return nil
}

// Ticks returns how many heartbeats have fired.
func (h *Heartbeat) Ticks() uint64 { return h.ticks.Load() }

// HandleEvent is a no-op: heartbeats emit, they do not consume.
func (h *Heartbeat) HandleEvent(ctx context.Context, ev agent.Event) error { return nil }

// HandleDirect reports the tick count; nothing is recorded in the
// conversation log because a heartbeat holds no conversation.
func (h *Heartbeat) HandleDirect(ctx context.Context, msg string) (string, error) {
	if err := h.begin(); err != nil {
		return "", err
	}
	defer h.end()
	return fmt.Sprintf(`{"agent_id":%q,"ticks":%d}`, h.ID(), h.Ticks()), nil
}
