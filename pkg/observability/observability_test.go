package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerAggregation(t *testing.T) {
	tests := []struct {
		name       string
		checks     []*HealthCheck
		wantStatus HealthStatus
	}{
		{
			name:       "no checks is healthy",
			wantStatus: HealthStatusHealthy,
		},
		{
			name:       "all passing",
			checks:     []*HealthCheck{PingCheck(), ComponentCheck("bus", true, pass)},
			wantStatus: HealthStatusHealthy,
		},
		{
			name:       "non-critical failure degrades",
			checks:     []*HealthCheck{PingCheck(), ComponentCheck("discovery", false, fail)},
			wantStatus: HealthStatusDegraded,
		},
		{
			name:       "critical failure is unhealthy",
			checks:     []*HealthCheck{ComponentCheck("bus", true, fail)},
			wantStatus: HealthStatusUnhealthy,
		},
		{
			name: "critical beats degraded",
			checks: []*HealthCheck{
				ComponentCheck("discovery", false, fail),
				ComponentCheck("bus", true, fail),
			},
			wantStatus: HealthStatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for _, c := range tt.checks {
				hc.Register(c)
			}
			resp := hc.Check(context.Background())
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
			assert.NotZero(t, resp.System.NumCPU)
		})
	}
}

func TestHealthCheckTimeout(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register(&HealthCheck{
		Name:    "stuck",
		Timeout: 20 * time.Millisecond,
		CheckFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	resp := hc.Check(context.Background())
	require.Contains(t, resp.Checks, "stuck")
	assert.Equal(t, HealthStatusDegraded, resp.Checks["stuck"].Status)
	assert.Contains(t, resp.Checks["stuck"].Message, "deadline")
}

func TestServerEndpoints(t *testing.T) {
	InitMetrics()
	SampleSystem()
	RecordPublish("heartbeat", 2, 0)
	RecordInference("local", "ok", 5*time.Millisecond)

	hc := NewHealthChecker()
	hc.Register(PingCheck())

	srv := NewServer(0, hc)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	base := "http://" + srv.Addr()

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(base + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var payload HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Equal(t, HealthStatusHealthy, payload.Status)
		assert.Contains(t, payload.Checks, "ping")
	})

	t.Run("liveness", func(t *testing.T) {
		resp, err := http.Get(base + "/health/live")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("readiness", func(t *testing.T) {
		resp, err := http.Get(base + "/health/ready")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(base + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "cortexos_events_published_total")
		assert.Contains(t, string(body), "cortexos_inference_requests_total")
	})
}

func TestReadinessRejectsDegraded(t *testing.T) {
	hc := NewHealthChecker()
	hc.Register(ComponentCheck("discovery", false, fail))

	srv := NewServer(0, hc)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get(fmt.Sprintf("http://%s/health/ready", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsRecordersDoNotPanic(t *testing.T) {
	InitMetrics()
	InitMetrics() // idempotent

	RecordPublish("agent.started", 0, 1)
	RecordHandlerFailure("logger")
	RecordDirectMessage("inference", "error", time.Millisecond)
	RecordDiscoveryBroadcast()
	SetAgents("running", 3)
	SetPeers(1)
	SampleSystem()
}

func pass(ctx context.Context) error { return nil }

func fail(ctx context.Context) error { return errors.New("unreachable") }
