// Package registry owns the agent table: id allocation, lifecycle
// control, and the atomic coupling between agent removal and event bus
// unsubscription.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/therenansimoes/cortexOS/agent"
	"github.com/therenansimoes/cortexOS/internal/bus"
)

// DefaultStopGrace bounds how long a stop waits for in-flight calls and
// timers to drain before collapsing the agent to Stopped.
const DefaultStopGrace = 5 * time.Second

// Summary is one row of a List snapshot.
type Summary struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Kind  agent.Kind  `json:"kind"`
	State agent.State `json:"state"`
}

// lifecyclePayload is the body of agent.started / agent.stopped events.
type lifecyclePayload struct {
	AgentID string     `json:"agent_id"`
	Name    string     `json:"name"`
	Kind    agent.Kind `json:"kind"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithStopGrace overrides the stop grace period.
func WithStopGrace(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.stopGrace = d
		}
	}
}

// Registry is the shared agent table. All structural mutation (insert,
// delete) is serialized under one mutex; reads take copied snapshots.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]agent.Agent
	order   []string            // creation order, for deterministic List
	issued  map[string]struct{} // every id ever allocated; never reused
	removed map[string]struct{} // tombstones, for idempotent Remove

	b         *bus.Bus
	rt        agent.Runtime
	stopGrace time.Duration
}

// New creates an empty registry. rt is handed to agent factories and used
// to publish lifecycle events.
func New(b *bus.Bus, rt agent.Runtime, opts ...Option) *Registry {
	r := &Registry{
		agents:    make(map[string]agent.Agent),
		issued:    make(map[string]struct{}),
		removed:   make(map[string]struct{}),
		b:         b,
		rt:        rt,
		stopGrace: DefaultStopGrace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// newID allocates a fresh 8-hex-character id, re-rolling on collision
// against every id ever issued so stale references can never resolve to a
// newer agent.
func (r *Registry) newID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := uuid.NewString()[:8]
		if _, taken := r.issued[id]; taken {
			continue
		}
		r.issued[id] = struct{}{}
		return id
	}
}

// Create validates the definition, constructs and starts the agent,
// attaches it to the bus with its subscriptions, and inserts it into the
// table. The returned agent is Running.
func (r *Registry) Create(ctx context.Context, def agent.Def) (agent.Agent, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	id := r.newID()
	a, err := agent.Create(id, def, r.rt)
	if err != nil {
		return nil, err
	}

	if err := a.Start(ctx); err != nil {
		return nil, fmt.Errorf("start agent %s: %w", def.Name, err)
	}

	// Attach and subscribe before the agent becomes visible in the
	// table, so every id the subscription table knows is live.
	if err := r.b.Attach(id, a.HandleEvent); err != nil {
		_ = a.Stop(ctx)
		return nil, err
	}
	for _, kind := range a.Subscriptions() {
		if err := r.b.Subscribe(id, kind); err != nil {
			r.b.Detach(id)
			_ = a.Stop(ctx)
			return nil, err
		}
	}

	r.mu.Lock()
	r.agents[id] = a
	r.order = append(r.order, id)
	r.mu.Unlock()

	log.Printf("[registry] created %s agent %q (%s)", def.Kind, def.Name, id)
	r.publishLifecycle(agent.KindAgentStarted, a)
	return a, nil
}

// Get returns the agent for id, or ErrAgentNotFound.
func (r *Registry) Get(id string) (agent.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, agent.ErrAgentNotFound
	}
	return a, nil
}

// Count returns the number of live (non-removed) agents, consistent with
// List.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// List returns a point-in-time snapshot in creation order.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.agents))
	for _, id := range r.order {
		a, ok := r.agents[id]
		if !ok {
			continue
		}
		out = append(out, Summary{ID: a.ID(), Name: a.Name(), Kind: a.Kind(), State: a.State()})
	}
	return out
}

// CountByState tallies live agents per lifecycle state.
func (r *Registry) CountByState() map[agent.State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[agent.State]int)
	for _, a := range r.agents {
		out[a.State()]++
	}
	return out
}

// Stop drains the agent within the grace period. Stopping an already
// stopped agent succeeds; an unknown or removed id fails with
// ErrAgentNotFound.
func (r *Registry) Stop(ctx context.Context, id string) error {
	a, err := r.Get(id)
	if err != nil {
		return err
	}

	wasStopped := a.State() == agent.StateStopped

	graceCtx, cancel := context.WithTimeout(ctx, r.stopGrace)
	defer cancel()
	if err := a.Stop(graceCtx); err != nil {
		return err
	}

	if !wasStopped {
		log.Printf("[registry] stopped agent %q (%s)", a.Name(), id)
		r.publishLifecycle(agent.KindAgentStopped, a)
	}
	return nil
}

// Remove stops the agent if needed, then deletes its record and all its
// bus subscriptions. From the caller's point of view the removal is
// atomic: after Remove returns the id resolves to nothing and no
// subscription mentions it. Removing an already removed id is idempotent
// success; an id that never existed fails with ErrAgentNotFound.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.RLock()
	a, live := r.agents[id]
	_, tombstoned := r.removed[id]
	r.mu.RUnlock()

	if !live {
		if tombstoned {
			return nil
		}
		return agent.ErrAgentNotFound
	}

	if err := r.Stop(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.agents, id)
	r.removed[id] = struct{}{}
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.b.Detach(id)
	log.Printf("[registry] removed agent %q (%s)", a.Name(), id)
	return nil
}

// StopAll stops every live agent, used at runtime shutdown.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	agents := make([]agent.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, a := range agents {
		wg.Add(1)
		go func(a agent.Agent) {
			defer wg.Done()
			graceCtx, cancel := context.WithTimeout(ctx, r.stopGrace)
			defer cancel()
			if err := a.Stop(graceCtx); err != nil {
				log.Printf("[registry] stop %s on shutdown: %v", a.ID(), err)
			}
		}(a)
	}
	wg.Wait()
}

func (r *Registry) publishLifecycle(kind string, a agent.Agent) {
	body, _ := json.Marshal(lifecyclePayload{AgentID: a.ID(), Name: a.Name(), Kind: a.Kind()})
	if err := r.rt.Publish(kind, string(body), a.ID()); err != nil {
		log.Printf("[registry] publish %s: %v", kind, err)
	}
}
