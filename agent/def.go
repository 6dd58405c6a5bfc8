package agent

import (
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Kind identifies an agent variant. The set is closed: adding a variant
// means extending the factory table, not open-ended subtyping.
type Kind string

const (
	KindHeartbeat       Kind = "heartbeat"
	KindLogger          Kind = "logger"
	KindLocalInference  Kind = "inference"
	KindRemoteInference Kind = "remote-inference"
	KindNativeInference Kind = "native-inference"
)

// Kinds lists every registered variant kind, in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindHeartbeat,
		KindLogger,
		KindLocalInference,
		KindRemoteInference,
		KindNativeInference,
	}
}

// Def describes one agent to create. Only the fields relevant to the kind
// are consulted; the rest are ignored.
type Def struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`

	// Heartbeat: exactly one of Interval or Schedule.
	Interval Duration `yaml:"interval,omitempty"`
	Schedule string   `yaml:"schedule,omitempty"` // 5-field cron expression

	// Remote inference.
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model,omitempty"`
	Format   string `yaml:"format,omitempty"` // "ollama" (default) or "openai"

	// Extra event kinds to subscribe beyond the variant's defaults.
	Subscribe []string `yaml:"subscribe,omitempty"`
}

// Duration wraps time.Duration for human-readable YAML and JSON values
// ("30s", "5m").
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML exists because yaml.v3 does not consult TextUnmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// cronParser matches the standard 5-field cron format.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks the structural validity of a definition. Only structure is
// checked here: an unreachable endpoint is not an eager failure, an
// unparseable one is.
func (d Def) Validate() error {
	if d.Name == "" {
		return &InitializationError{Kind: d.Kind, Field: "name", Reason: "must not be empty"}
	}

	switch d.Kind {
	case KindHeartbeat:
		hasInterval := d.Interval.Duration > 0
		hasSchedule := d.Schedule != ""
		if d.Interval.Duration < 0 {
			return &InitializationError{Kind: d.Kind, Field: "interval", Reason: "must be positive"}
		}
		if hasInterval == hasSchedule {
			return &InitializationError{Kind: d.Kind, Field: "interval", Reason: "exactly one of interval or schedule must be set"}
		}
		if hasSchedule {
			if _, err := cronParser.Parse(d.Schedule); err != nil {
				return &InitializationError{Kind: d.Kind, Field: "schedule", Reason: err.Error()}
			}
		}
	case KindRemoteInference:
		if d.Model == "" {
			return &InitializationError{Kind: d.Kind, Field: "model", Reason: "must not be empty"}
		}
		u, err := url.Parse(d.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &InitializationError{Kind: d.Kind, Field: "endpoint", Reason: "must be an absolute URL"}
		}
		if d.Format != "" && d.Format != "ollama" && d.Format != "openai" {
			return &InitializationError{Kind: d.Kind, Field: "format", Reason: "must be \"ollama\" or \"openai\""}
		}
	case KindLogger, KindLocalInference, KindNativeInference:
		// Nothing beyond the name.
	default:
		return &InitializationError{Kind: d.Kind, Field: "kind", Reason: "unknown agent kind"}
	}

	return nil
}
