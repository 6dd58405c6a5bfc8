package discovery

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func startService(t *testing.T, nodeID string, agents int, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithPort(0), WithCollectWindow(50 * time.Millisecond)}, opts...)
	s := New(nodeID, func() int { return agents }, opts...)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func TestBroadcastReachesListener(t *testing.T) {
	listener := startService(t, "node-a", 2)
	target := fmt.Sprintf("127.0.0.1:%d", listener.Port())

	sender := startService(t, "node-b", 3, WithTargets(target))
	report, err := sender.Broadcast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "node-b", report.NodeID)
	assert.Equal(t, uint64(1), report.Broadcast)
	assert.Equal(t, 3, report.Agents)

	waitFor(t, 2*time.Second, func() bool { return listener.PeerCount() == 1 })
	peers := listener.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, "node-b", peers[0].NodeID)
	assert.Equal(t, "broadcast", peers[0].Protocol)
	assert.NotEmpty(t, peers[0].Address)
	assert.WithinDuration(t, time.Now(), peers[0].LastSeen, 2*time.Second)
}

func TestListenerSkipsSelf(t *testing.T) {
	listener := startService(t, "node-solo", 1)
	target := fmt.Sprintf("127.0.0.1:%d", listener.Port())

	// Same node id: the announcement arrives but must never be recorded.
	sender := startService(t, "node-solo", 1, WithTargets(target))
	_, err := sender.Broadcast(context.Background())
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, listener.PeerCount())
}

func TestListenerIgnoresForeignDatagrams(t *testing.T) {
	listener := startService(t, "node-a", 0)
	target := fmt.Sprintf("127.0.0.1:%d", listener.Port())

	conn, err := broadcastConn()
	require.NoError(t, err)
	defer conn.Close()
	addr := mustResolve(t, target)

	for _, payload := range []string{
		"not json",
		`{"cortex":false,"node_id":"x","type":"discovery","agents":0}`,
		`{"cortex":true,"node_id":"x","type":"chat","agents":0}`,
		`{"cortex":true,"node_id":"","type":"discovery","agents":0}`,
	} {
		_, err := conn.WriteTo([]byte(payload), addr)
		require.NoError(t, err)
	}

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, listener.PeerCount())
}

func TestBroadcastUnavailable(t *testing.T) {
	s := New("node-x", func() int { return 0 },
		WithPort(0), WithTargets("%%%not-an-address"))
	t.Cleanup(s.Stop)

	_, err := s.Broadcast(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	// A failed announcement is not a broadcast.
	assert.Zero(t, s.Broadcasts())
}

func TestStartBindFailureUnavailable(t *testing.T) {
	s := New("node-x", func() int { return 0 }, WithPort(-1))
	assert.ErrorIs(t, s.Start(), ErrUnavailable)
}

func TestPeerTableUpdatesLastSeen(t *testing.T) {
	listener := startService(t, "node-a", 0)
	target := fmt.Sprintf("127.0.0.1:%d", listener.Port())
	sender := startService(t, "node-b", 0, WithTargets(target))

	_, err := sender.Broadcast(context.Background())
	require.NoError(t, err)
	waitFor(t, 2*time.Second, func() bool { return listener.PeerCount() == 1 })
	first := listener.Peers()[0].LastSeen

	time.Sleep(20 * time.Millisecond)
	_, err = sender.Broadcast(context.Background())
	require.NoError(t, err)
	waitFor(t, 2*time.Second, func() bool {
		return listener.PeerCount() == 1 && listener.Peers()[0].LastSeen.After(first)
	})
}

func TestStartStopIdempotent(t *testing.T) {
	s := New("node-a", func() int { return 0 }, WithPort(0))
	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")
	port := s.Port()
	assert.NotZero(t, port)

	s.Stop()
	s.Stop()
	assert.Zero(t, s.Port())
}

func TestBroadcastCountsRequests(t *testing.T) {
	listener := startService(t, "node-a", 0)
	target := fmt.Sprintf("127.0.0.1:%d", listener.Port())
	sender := startService(t, "node-b", 0, WithTargets(target))

	for i := uint64(1); i <= 3; i++ {
		report, err := sender.Broadcast(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, report.Broadcast)
	}
	assert.Equal(t, uint64(3), sender.Broadcasts())
}

func mustResolve(t *testing.T, target string) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp4", target)
	require.NoError(t, err)
	return addr
}
