package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netwatch/netwatch/internal/alerts"
	"github.com/netwatch/netwatch/internal/scoring"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultProbeInterval = 5 * time.Second
	DefaultProbeTimeout  = 2 * time.Second
	DefaultRetries       = 2
	DefaultRetryBackoff  = 100 * time.Millisecond
	DefaultJitterPct     = 10
	DefaultMaxProbes     = 64
	DefaultGrace         = 3 * time.Second
	DefaultShortWindow   = 60
	DefaultLongWindow    = 720
	DefaultEWMAAlpha     = 0.2
	DefaultEvalInterval  = 5 * time.Second
	DefaultHTTPPort      = 8080
	DefaultStreamEvery   = 5 * time.Second
)

// Config is the top-level configuration for the netwatch binary.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
	Scoring ScoringConfig `yaml:"scoring"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Server  ServerConfig  `yaml:"server"`
}

// MonitorConfig holds probing, scheduling, and aggregation settings.
type MonitorConfig struct {
	// Endpoints is the path to the JSON endpoint list for this session.
	Endpoints string `yaml:"endpoints"`

	// ProbeInterval controls how often each endpoint is probed.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// ProbeTimeout bounds a single probe attempt, retries included
	// individually.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// Retries is how many times a transiently failing probe is retried
	// before the failure is recorded.
	Retries int `yaml:"retries"`

	// RetryBackoff is the base delay between retries; it doubles per
	// attempt.
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// JitterPct spreads probe ticks by ±N percent of ProbeInterval.
	JitterPct int `yaml:"jitter_pct"`

	// MaxProbes bounds probes in flight across all endpoints.
	MaxProbes int64 `yaml:"max_probes"`

	// Grace is how long in-flight probes may finish after shutdown.
	Grace time.Duration `yaml:"grace"`

	// ShortWindow and LongWindow are the sliding-window capacities in
	// samples.
	ShortWindow int `yaml:"short_window"`
	LongWindow  int `yaml:"long_window"`

	// EWMAAlpha is the jitter smoothing factor in (0, 1].
	EWMAAlpha float64 `yaml:"ewma_alpha"`

	// EvalInterval controls how often windows are snapshotted, scored,
	// and run through the alert rules.
	EvalInterval time.Duration `yaml:"eval_interval"`
}

// ScoringConfig holds the overall-score weight blend. An omitted or
// all-zero weights block selects the built-in defaults.
type ScoringConfig struct {
	Weights scoring.Weights `yaml:"weights"`
}

// AlertsConfig holds alert rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []alerts.Rule   `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the
	// webhook URL, so the URL itself stays out of the config file.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// ServerConfig holds the HTTP/WebSocket surface settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// StreamInterval controls how often the WebSocket hub pushes score
	// snapshots to connected clients.
	StreamInterval time.Duration `yaml:"stream_interval"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.normalize()

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Monitor: MonitorConfig{
			ProbeInterval: DefaultProbeInterval,
			ProbeTimeout:  DefaultProbeTimeout,
			Retries:       DefaultRetries,
			RetryBackoff:  DefaultRetryBackoff,
			JitterPct:     DefaultJitterPct,
			MaxProbes:     DefaultMaxProbes,
			Grace:         DefaultGrace,
			ShortWindow:   DefaultShortWindow,
			LongWindow:    DefaultLongWindow,
			EWMAAlpha:     DefaultEWMAAlpha,
			EvalInterval:  DefaultEvalInterval,
		},
		Server: ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			StreamInterval: DefaultStreamEvery,
		},
	}
}

// normalize fills derived defaults that depend on parsed values.
func (c *Config) normalize() {
	if c.Scoring.Weights == (scoring.Weights{}) {
		c.Scoring.Weights = scoring.DefaultWeights()
	}
	for i := range c.Alerts.Rules {
		c.Alerts.Rules[i].Normalize()
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	m := cfg.Monitor
	if m.Endpoints == "" {
		return fmt.Errorf("monitor.endpoints is required")
	}
	if m.ProbeInterval <= 0 {
		return fmt.Errorf("monitor.probe_interval must be positive")
	}
	if m.ProbeTimeout <= 0 {
		return fmt.Errorf("monitor.probe_timeout must be positive")
	}
	if m.Retries < 0 {
		return fmt.Errorf("monitor.retries must not be negative")
	}
	if m.RetryBackoff <= 0 {
		return fmt.Errorf("monitor.retry_backoff must be positive")
	}
	if m.JitterPct < 0 || m.JitterPct > 100 {
		return fmt.Errorf("monitor.jitter_pct must be within [0, 100]")
	}
	if m.MaxProbes <= 0 {
		return fmt.Errorf("monitor.max_probes must be positive")
	}
	if m.ShortWindow <= 0 {
		return fmt.Errorf("monitor.short_window must be positive")
	}
	if m.LongWindow <= 0 {
		return fmt.Errorf("monitor.long_window must be positive")
	}
	if m.EWMAAlpha <= 0 || m.EWMAAlpha > 1 {
		return fmt.Errorf("monitor.ewma_alpha must be within (0, 1]")
	}
	if m.EvalInterval <= 0 {
		return fmt.Errorf("monitor.eval_interval must be positive")
	}

	if err := cfg.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Alerts.Rules))
	for i, r := range cfg.Alerts.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("alerts.rules[%d]: %w", i, err)
		}
		if seen[r.ID] {
			return fmt.Errorf("alerts.rules[%d]: duplicate rule id %q", i, r.ID)
		}
		seen[r.ID] = true
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
		if w.URLEnv == "" {
			return fmt.Errorf("alerts.webhooks[%d]: url_env is required", i)
		}
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be within (0, 65535]")
	}
	if cfg.Server.StreamInterval <= 0 {
		return fmt.Errorf("server.stream_interval must be positive")
	}
	return nil
}
