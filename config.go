package cortexos

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/therenansimoes/cortexOS/agent"
)

// Config is the top-level runtime configuration.
type Config struct {
	Node          NodeConfig          `yaml:"node,omitempty"`
	Runtime       RuntimeConfig       `yaml:"runtime,omitempty"`
	Discovery     DiscoveryConfig     `yaml:"discovery,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
	Agents        []agent.Def         `yaml:"agents,omitempty"`
}

// NodeConfig names this runtime node.
type NodeConfig struct {
	// Name is a human label for logs; node identity itself is always a
	// generated id.
	Name string `yaml:"name,omitempty"`
}

// RuntimeConfig tunes the bus and registry.
type RuntimeConfig struct {
	// MailboxSize is the per-agent event queue depth (default 100).
	MailboxSize int `yaml:"mailbox_size,omitempty"`

	// StopGrace bounds how long stop waits for in-flight calls (default 5s).
	StopGrace agent.Duration `yaml:"stop_grace,omitempty"`

	// EventLogSize caps the published-event ring (default 100).
	EventLogSize int `yaml:"event_log_size,omitempty"`
}

// DiscoveryConfig controls LAN discovery.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Port is the shared announcement port (default 7077).
	Port int `yaml:"port,omitempty"`

	// AnnounceInterval is the announcer loop period (default 30s).
	AnnounceInterval agent.Duration `yaml:"announce_interval,omitempty"`
}

// ObservabilityConfig controls the metrics/health server and tracing.
type ObservabilityConfig struct {
	// MetricsPort serves /metrics and /health when non-zero.
	MetricsPort int `yaml:"metrics_port,omitempty"`

	Tracing TracingConfig `yaml:"tracing,omitempty"`
}

// TracingConfig mirrors the tracing exporter setup.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Exporter string `yaml:"exporter,omitempty"` // "otlp", "stdout", or "none"
	Endpoint string `yaml:"endpoint,omitempty"`
}

// LoadConfig reads and strictly parses a YAML config file: unknown keys
// are rejected so typos fail at boot instead of being silently ignored.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var config Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for i := range config.Agents {
		if err := config.Agents[i].Validate(); err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
	}
	return &config, nil
}
