// Package cortexos is an embeddable agent runtime: a registry of long-lived
// agents (heartbeat emitters, loggers, inference workers), a publish/
// subscribe event bus with per-agent FIFO delivery, direct request/response
// messaging, LAN peer discovery over UDP, and conversation export for
// offline training.
//
// The Runtime facade is the single entry point. Construct one with New,
// Init it, create agents, and Close it when done:
//
//	rt := cortexos.New()
//	if err := rt.Init(); err != nil { ... }
//	defer rt.Close()
//
//	a, err := rt.CreateAgent(ctx, agent.Def{Name: "pulse", Kind: agent.KindHeartbeat, ...})
package cortexos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therenansimoes/cortexOS/agent"
	_ "github.com/therenansimoes/cortexOS/agents" // register agent variant factories
	"github.com/therenansimoes/cortexOS/internal/bus"
	"github.com/therenansimoes/cortexOS/internal/discovery"
	"github.com/therenansimoes/cortexOS/internal/eventlog"
	"github.com/therenansimoes/cortexOS/internal/observability"
	"github.com/therenansimoes/cortexOS/internal/registry"
	metrics "github.com/therenansimoes/cortexOS/pkg/observability"
)

// Stats is an aggregate snapshot of the runtime.
type Stats struct {
	NodeID              string         `json:"node_id"`
	Agents              int            `json:"agents"`
	ByState             map[string]int `json:"by_state"`
	EventsPublished     uint64         `json:"events_published"`
	DirectMessages      uint64         `json:"direct_messages"`
	DiscoveryBroadcasts uint64         `json:"discovery_broadcasts"`
	Peers               int            `json:"peers"`
	EventLogSize        int            `json:"event_log_size"`
	Uptime              string         `json:"uptime"`
}

// Option configures a Runtime before construction completes.
type Option func(*Runtime)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(r *Runtime) { r.cfg = cfg }
}

// WithNodeID fixes the node identity instead of generating one. Used by
// tests that need deterministic ids.
func WithNodeID(id string) Option {
	return func(r *Runtime) { r.nodeID = id }
}

// Runtime is the agent runtime facade. All methods are safe for concurrent
// use; the zero value is not usable, construct with New.
type Runtime struct {
	cfg       Config
	nodeID    string
	startedAt time.Time

	b      *bus.Bus
	reg    *registry.Registry
	events *eventlog.Log
	disc   *discovery.Service
	server *metrics.Server

	mu          sync.Mutex
	native      agent.CompleteFunc
	initialized bool
	closed      bool

	published atomic.Uint64
	directs   atomic.Uint64
}

// New builds a Runtime. The bus, registry, and event log are live
// immediately; Init starts the outward-facing surfaces (metrics server,
// discovery, tracing).
func New(opts ...Option) *Runtime {
	r := &Runtime{startedAt: time.Now()}
	for _, opt := range opts {
		opt(r)
	}
	if r.nodeID == "" {
		r.nodeID = uuid.NewString()[:8]
	}

	busOpts := []bus.Option{
		bus.WithFailureHook(func(id string, ev agent.Event, err error) {
			metrics.RecordHandlerFailure(r.agentKind(id))
		}),
	}
	if n := r.cfg.Runtime.MailboxSize; n > 0 {
		busOpts = append(busOpts, bus.WithMailboxSize(n))
	}
	r.b = bus.New(busOpts...)

	logSize := r.cfg.Runtime.EventLogSize
	if logSize <= 0 {
		logSize = eventlog.DefaultCapacity
	}
	r.events = eventlog.New(logSize)

	regOpts := []registry.Option{}
	if g := r.cfg.Runtime.StopGrace.Duration; g > 0 {
		regOpts = append(regOpts, registry.WithStopGrace(g))
	}
	r.reg = registry.New(r.b, r, regOpts...)

	discOpts := []discovery.Option{}
	if p := r.cfg.Discovery.Port; p > 0 {
		discOpts = append(discOpts, discovery.WithPort(p))
	}
	if d := r.cfg.Discovery.AnnounceInterval.Duration; d > 0 {
		discOpts = append(discOpts, discovery.WithAnnounceInterval(d))
	}
	r.disc = discovery.New(r.nodeID, r.reg.Count, discOpts...)

	return r
}

// Init starts tracing, the metrics/health server, and (when enabled)
// discovery. Idempotent: a second call is a no-op success.
func (r *Runtime) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return nil
	}

	tc := r.cfg.Observability.Tracing
	if err := observability.Init(observability.Config{
		ServiceName:  r.serviceName(),
		Enabled:      tc.Enabled,
		ExporterType: tc.Exporter,
		OTLPEndpoint: tc.Endpoint,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	metrics.InitMetrics()

	if port := r.cfg.Observability.MetricsPort; port > 0 {
		checker := metrics.NewHealthChecker()
		checker.Register(metrics.PingCheck())
		checker.Register(metrics.ComponentCheck("runtime", true, func(ctx context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.closed {
				return bus.ErrBusClosed
			}
			return nil
		}))
		r.server = metrics.NewServer(port, checker)
		if err := r.server.Start(); err != nil {
			return err
		}
		log.Printf("[runtime] observability server on %s", r.server.Addr())
	}

	if r.cfg.Discovery.Enabled {
		if err := r.disc.Start(); err != nil {
			log.Printf("[runtime] discovery unavailable: %v", err)
		}
	}

	r.initialized = true
	log.Printf("[runtime] node %s initialized", r.nodeID)
	return nil
}

// Close stops every agent, discovery, the metrics server, and the bus.
// Idempotent.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	server := r.server
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r.reg.StopAll(ctx)
	r.disc.Stop()
	if server != nil {
		_ = server.Shutdown(ctx)
	}
	r.b.Close()
	if err := observability.Shutdown(ctx); err != nil {
		log.Printf("[runtime] tracing shutdown: %v", err)
	}
	log.Printf("[runtime] node %s closed", r.nodeID)
	return nil
}

// NodeID returns this node's generated identity.
func (r *Runtime) NodeID() string { return r.nodeID }

// CreateAgent validates the definition, builds the variant, starts it, and
// wires its subscriptions. The returned agent is Running.
func (r *Runtime) CreateAgent(ctx context.Context, def agent.Def) (agent.Agent, error) {
	a, err := r.reg.Create(ctx, def)
	if err != nil {
		return nil, err
	}
	r.updateAgentGauges()
	return a, nil
}

// Agent returns a live agent by id.
func (r *Runtime) Agent(id string) (agent.Agent, error) { return r.reg.Get(id) }

// AgentCount returns the number of live agents.
func (r *Runtime) AgentCount() int { return r.reg.Count() }

// Agents returns summaries of all live agents in creation order.
func (r *Runtime) Agents() []registry.Summary { return r.reg.List() }

// StopAgent stops the agent, leaving it registered. Stopping a stopped
// agent is a no-op success; an unknown id is ErrAgentNotFound.
func (r *Runtime) StopAgent(ctx context.Context, id string) error {
	err := r.reg.Stop(ctx, id)
	r.updateAgentGauges()
	return err
}

// RemoveAgent stops the agent if needed and deletes it. Removing an
// already-removed id is a no-op success; a never-issued id is
// ErrAgentNotFound. Ids are never reused.
func (r *Runtime) RemoveAgent(ctx context.Context, id string) error {
	err := r.reg.Remove(ctx, id)
	r.updateAgentGauges()
	return err
}

// Subscribe adds the agent to an event kind. Idempotent.
func (r *Runtime) Subscribe(id, kind string) error { return r.b.Subscribe(id, kind) }

// Unsubscribe removes the agent from an event kind. Idempotent.
func (r *Runtime) Unsubscribe(id, kind string) { r.b.Unsubscribe(id, kind) }

// Publish broadcasts an event to every subscribed agent. The event is
// recorded in the bounded event log; delivery is asynchronous and per-agent
// FIFO. Publish never fails because a handler failed or a mailbox was full.
func (r *Runtime) Publish(kind, payload, source string) error {
	_, span := observability.StartSpan(context.Background(), "runtime.publish",
		attribute.String("event.kind", kind))

	ev := agent.NewEvent(kind, payload, source)
	report, err := r.b.Publish(ev)
	observability.EndSpan(span, err)
	if err != nil {
		return err
	}

	r.published.Add(1)
	r.events.Append(ev)
	metrics.RecordPublish(kind, report.Delivered, len(report.Dropped))
	return nil
}

// Send delivers a direct message to one agent and returns its response.
// Unlike Publish, errors (unknown id, stopped agent, backend failure)
// propagate to the caller.
func (r *Runtime) Send(ctx context.Context, id, message string) (string, error) {
	a, err := r.reg.Get(id)
	if err != nil {
		return "", err
	}

	ctx, span := observability.StartSpan(ctx, "runtime.send",
		attribute.String("agent.id", id),
		attribute.String("agent.kind", string(a.Kind())))

	start := time.Now()
	r.directs.Add(1)
	resp, err := a.HandleDirect(ctx, message)
	observability.EndSpan(span, err)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordDirectMessage(string(a.Kind()), status, time.Since(start))
	return resp, err
}

// ExportDataset writes the agent's conversation as newline-delimited JSON
// training records: each inbound entry and the outbound entry immediately
// following it form one {"messages":[user,assistant]} line; an inbound
// entry with no reply exports as a single-message line.
func (r *Runtime) ExportDataset(id string, w io.Writer) error {
	a, err := r.reg.Get(id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for _, ex := range a.Conversation().Exchanges() {
		messages := []datasetMessage{{Role: "user", Content: ex.Input}}
		if ex.HasReply {
			messages = append(messages, datasetMessage{Role: "assistant", Content: ex.Response})
		}
		if err := enc.Encode(datasetRecord{Messages: messages}); err != nil {
			return err
		}
	}
	return nil
}

type datasetRecord struct {
	Messages []datasetMessage `json:"messages"`
}

type datasetMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StartDiscovery launches the continuous announcer and listener loops.
// Idempotent.
func (r *Runtime) StartDiscovery() error { return r.disc.Start() }

// BroadcastDiscovery sends one announcement now and reports peers observed
// within the collection window. Lazily starts the listener.
func (r *Runtime) BroadcastDiscovery(ctx context.Context) (discovery.Report, error) {
	report, err := r.disc.Broadcast(ctx)
	if err != nil {
		return report, err
	}
	metrics.RecordDiscoveryBroadcast()
	metrics.SetPeers(r.disc.PeerCount())
	return report, nil
}

// Peers returns a snapshot of discovered peer nodes.
func (r *Runtime) Peers() []discovery.Peer { return r.disc.Peers() }

// PeerCount returns the number of discovered peers.
func (r *Runtime) PeerCount() int { return r.disc.PeerCount() }

// EventLog returns the most recent published events, oldest first.
func (r *Runtime) EventLog() []agent.Event { return r.events.Snapshot() }

// Stats returns an aggregate snapshot of the runtime.
func (r *Runtime) Stats() Stats {
	byState := make(map[string]int)
	for state, n := range r.reg.CountByState() {
		byState[string(state)] = n
	}
	metrics.SampleSystem()
	return Stats{
		NodeID:              r.nodeID,
		Agents:              r.reg.Count(),
		ByState:             byState,
		EventsPublished:     r.published.Load(),
		DirectMessages:      r.directs.Load(),
		DiscoveryBroadcasts: r.disc.Broadcasts(),
		Peers:               r.disc.PeerCount(),
		EventLogSize:        r.events.Len(),
		Uptime:              time.Since(r.startedAt).Round(time.Second).String(),
	}
}

// RegisterNativeBackend installs the external inference capability used by
// native-inference agents. May be called before or after such agents are
// created; calls made while no backend is registered fail with
// ErrNativeNotRegistered.
func (r *Runtime) RegisterNativeBackend(fn agent.CompleteFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.native = fn
}

// NativeBackend returns the registered capability, or nil.
func (r *Runtime) NativeBackend() agent.CompleteFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.native
}

func (r *Runtime) serviceName() string {
	if r.cfg.Node.Name != "" {
		return r.cfg.Node.Name
	}
	return observability.DefaultServiceName
}

func (r *Runtime) agentKind(id string) string {
	if a, err := r.reg.Get(id); err == nil {
		return string(a.Kind())
	}
	return "unknown"
}

func (r *Runtime) updateAgentGauges() {
	counts := r.reg.CountByState()
	for _, state := range []agent.State{
		agent.StateStarting, agent.StateRunning, agent.StateStopping, agent.StateStopped,
	} {
		metrics.SetAgents(string(state), counts[state])
	}
}
