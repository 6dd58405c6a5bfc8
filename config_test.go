package cortexos

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therenansimoes/cortexOS/agent"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cortexos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
node:
  name: edge-node
runtime:
  mailbox_size: 50
  stop_grace: 2s
  event_log_size: 200
discovery:
  enabled: true
  port: 7077
  announce_interval: 10s
observability:
  metrics_port: 9090
  tracing:
    enabled: true
    exporter: stdout
agents:
  - name: pulse
    kind: heartbeat
    interval: 5s
  - name: log
    kind: logger
  - name: bot
    kind: remote-inference
    endpoint: http://localhost:11434
    model: llama3
    subscribe: ["question"]
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "edge-node", config.Node.Name)
	assert.Equal(t, 50, config.Runtime.MailboxSize)
	assert.Equal(t, 2*time.Second, config.Runtime.StopGrace.Duration)
	assert.Equal(t, 200, config.Runtime.EventLogSize)
	assert.True(t, config.Discovery.Enabled)
	assert.Equal(t, 10*time.Second, config.Discovery.AnnounceInterval.Duration)
	assert.Equal(t, 9090, config.Observability.MetricsPort)
	assert.Equal(t, "stdout", config.Observability.Tracing.Exporter)

	require.Len(t, config.Agents, 3)
	assert.Equal(t, agent.KindHeartbeat, config.Agents[0].Kind)
	assert.Equal(t, 5*time.Second, config.Agents[0].Interval.Duration)
	assert.Equal(t, []string{"question"}, config.Agents[2].Subscribe)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
node:
  name: edge
runtme:
  mailbox_size: 50
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadConfigRejectsInvalidAgent(t *testing.T) {
	path := writeConfig(t, `
agents:
  - name: pulse
    kind: heartbeat
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	var initErr *agent.InitializationError
	assert.ErrorAs(t, err, &initErr)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, config.Agents)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
