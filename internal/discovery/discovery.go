// Package discovery implements best-effort LAN node discovery over UDP.
//
// Nodes announce themselves with a small JSON datagram sent to the local
// broadcast address and to a well-known multicast group, and listen on a
// shared port for announcements from other nodes. Discovery is advisory:
// send failures on individual targets are tolerated, and peers are only
// remembered, never authenticated.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/time/rate"
)

const (
	// DefaultPort is the shared announcement port.
	DefaultPort = 7077
	// FallbackPort is tried when DefaultPort is already bound,
	// so two nodes can coexist on one host.
	FallbackPort = 7078

	// DefaultAnnounceInterval is how often the announcer loop fires.
	DefaultAnnounceInterval = 30 * time.Second
	// DefaultCollectWindow bounds how long Broadcast waits for replies.
	DefaultCollectWindow = 200 * time.Millisecond

	multicastGroup = "239.255.70.77"
	maxDatagram    = 1024
)

// ErrUnavailable reports that discovery has no usable network: the listener
// could not bind, or an announcement reached none of its targets.
var ErrUnavailable = errors.New("discovery: network unavailable")

// Announcement is the discovery wire format.
type Announcement struct {
	Cortex bool   `json:"cortex"`
	NodeID string `json:"node_id"`
	Type   string `json:"type"`
	Agents int    `json:"agents"`
}

// Peer is one remembered remote node.
type Peer struct {
	NodeID   string    `json:"node_id"`
	Address  string    `json:"address"`
	Protocol string    `json:"protocol"`
	LastSeen time.Time `json:"last_seen"`
}

// Report summarizes a single manual broadcast.
type Report struct {
	NodeID     string `json:"node_id"`
	Broadcast  uint64 `json:"broadcast"`
	Agents     int    `json:"agents"`
	PeersFound int    `json:"peers_found"`
}

// Option configures a Service.
type Option func(*Service)

// WithPort overrides the listener port. Port 0 binds an ephemeral port,
// which loopback tests rely on.
func WithPort(port int) Option {
	return func(s *Service) { s.port = port }
}

// WithTargets replaces the announcement targets.
func WithTargets(targets ...string) Option {
	return func(s *Service) { s.targets = targets }
}

// WithAnnounceInterval overrides the announcer loop period.
func WithAnnounceInterval(d time.Duration) Option {
	return func(s *Service) { s.interval = d }
}

// WithCollectWindow overrides how long Broadcast waits for replies.
func WithCollectWindow(d time.Duration) Option {
	return func(s *Service) { s.collectWindow = d }
}

// Service announces this node and collects peer announcements.
type Service struct {
	nodeID        string
	agentCount    func() int
	port          int
	targets       []string
	interval      time.Duration
	collectWindow time.Duration
	limiter       *rate.Limiter

	broadcasts atomic.Uint64

	mu       sync.Mutex
	peers    map[string]Peer
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	listener net.PacketConn
}

// New builds a stopped Service. agentCount is sampled at announce time so
// announcements always carry the current agent count.
func New(nodeID string, agentCount func() int, opts ...Option) *Service {
	s := &Service{
		nodeID:        nodeID,
		agentCount:    agentCount,
		port:          DefaultPort,
		interval:      DefaultAnnounceInterval,
		collectWindow: DefaultCollectWindow,
		limiter:       rate.NewLimiter(rate.Every(time.Second), 4),
		peers:         make(map[string]Peer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.targets) == 0 {
		s.targets = []string{
			fmt.Sprintf("255.255.255.255:%d", s.port),
			fmt.Sprintf("%s:%d", multicastGroup, s.port),
		}
	}
	return s
}

// Start binds the listener and launches the announcer and listener loops.
// Calling Start on a running service is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	conn, err := s.bind()
	if err != nil {
		return fmt.Errorf("%w: bind listener: %v", ErrUnavailable, err)
	}
	s.listener = conn

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	pc := ipv4.NewPacketConn(conn)
	joinMulticast(pc)
	// Dst lets the listener distinguish multicast from broadcast receipt.
	_ = pc.SetControlMessage(ipv4.FlagDst, true)

	s.wg.Add(2)
	go s.listen(pc)
	go s.announceLoop(ctx)

	log.Printf("[discovery] listening on %s, announcing every %s", conn.LocalAddr(), s.interval)
	return nil
}

// Stop halts both loops and closes the listener socket.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	listener.Close()
	s.wg.Wait()
	log.Printf("[discovery] stopped")
}

// Port reports the bound listener port, or 0 when stopped. Useful when the
// service was started with an ephemeral port.
func (s *Service) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	return s.listener.LocalAddr().(*net.UDPAddr).Port
}

// Broadcast sends one announcement now and reports the peers observed within
// the collection window. The listener is started lazily so replies triggered
// by the announcement can be recorded.
func (s *Service) Broadcast(ctx context.Context) (Report, error) {
	if err := s.Start(); err != nil {
		return Report{}, err
	}
	if err := s.announce(ctx); err != nil {
		return Report{}, err
	}
	n := s.broadcasts.Add(1)

	select {
	case <-ctx.Done():
	case <-time.After(s.collectWindow):
	}

	return Report{
		NodeID:     s.nodeID,
		Broadcast:  n,
		Agents:     s.agentCount(),
		PeersFound: s.PeerCount(),
	}, nil
}

// Broadcasts reports how many manual broadcasts have been requested.
func (s *Service) Broadcasts() uint64 { return s.broadcasts.Load() }

// Peers returns a snapshot of the peer table ordered by node id.
func (s *Service) Peers() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// PeerCount reports the number of known peers.
func (s *Service) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Service) bind() (net.PacketConn, error) {
	lc := net.ListenConfig{Control: allowReuse}
	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", s.port))
	if err != nil && s.port == DefaultPort {
		conn, err = lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", FallbackPort))
	}
	return conn, err
}

func (s *Service) announceLoop(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		if err := s.announce(ctx); err != nil {
			log.Printf("[discovery] announce: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// announce sends one datagram to every target, succeeding if any target
// accepted it.
func (s *Service) announce(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(Announcement{
		Cortex: true,
		NodeID: s.nodeID,
		Type:   "discovery",
		Agents: s.agentCount(),
	})
	if err != nil {
		return err
	}

	conn, err := broadcastConn()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	sent := 0
	var lastErr error
	for _, target := range s.targets {
		addr, err := net.ResolveUDPAddr("udp4", target)
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := conn.WriteTo(payload, addr); err != nil {
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return nil
}

func (s *Service) listen(pc *ipv4.PacketConn) {
	defer s.wg.Done()
	buf := make([]byte, maxDatagram)
	for {
		n, cm, src, err := pc.ReadFrom(buf)
		if err != nil {
			// Closed by Stop, or a transient socket error.
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return
			}
			log.Printf("[discovery] read: %v", err)
			continue
		}

		var ann Announcement
		if err := json.Unmarshal(buf[:n], &ann); err != nil {
			continue
		}
		if !ann.Cortex || ann.Type != "discovery" || ann.NodeID == "" || ann.NodeID == s.nodeID {
			continue
		}

		protocol := "broadcast"
		if cm != nil && cm.Dst != nil && cm.Dst.IsMulticast() {
			protocol = "multicast"
		}
		s.recordPeer(ann.NodeID, src.String(), protocol)
	}
}

func (s *Service) recordPeer(nodeID, address, protocol string) {
	s.mu.Lock()
	_, known := s.peers[nodeID]
	s.peers[nodeID] = Peer{
		NodeID:   nodeID,
		Address:  address,
		Protocol: protocol,
		LastSeen: time.Now(),
	}
	s.mu.Unlock()
	if !known {
		log.Printf("[discovery] peer %s at %s via %s", nodeID, address, protocol)
	}
}

// joinMulticast joins the discovery group on every multicast-capable
// interface. Join failures are tolerated: broadcast reception still works.
func joinMulticast(pc *ipv4.PacketConn) {
	group := &net.UDPAddr{IP: net.ParseIP(multicastGroup)}
	ifaces, err := net.Interfaces()
	if err != nil {
		_ = pc.JoinGroup(nil, group)
		return
	}
	joined := false
	for i := range ifaces {
		ifc := &ifaces[i]
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := pc.JoinGroup(ifc, group); err == nil {
			joined = true
		}
	}
	if !joined {
		_ = pc.JoinGroup(nil, group)
	}
}

// broadcastConn returns an ephemeral socket with SO_BROADCAST set, so
// announcements to 255.255.255.255 are permitted.
func broadcastConn() (net.PacketConn, error) {
	lc := net.ListenConfig{Control: allowBroadcast}
	return lc.ListenPacket(context.Background(), "udp4", "0.0.0.0:0")
}
