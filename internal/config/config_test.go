package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/netwatch/netwatch/internal/alerts"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimal = `
monitor:
  endpoints: endpoints.json
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatal(err)
	}

	m := cfg.Monitor
	if m.ProbeInterval != DefaultProbeInterval {
		t.Errorf("ProbeInterval = %v, want %v", m.ProbeInterval, DefaultProbeInterval)
	}
	if m.ProbeTimeout != DefaultProbeTimeout {
		t.Errorf("ProbeTimeout = %v, want %v", m.ProbeTimeout, DefaultProbeTimeout)
	}
	if m.ShortWindow != 60 || m.LongWindow != 720 {
		t.Errorf("windows = %d/%d, want 60/720", m.ShortWindow, m.LongWindow)
	}
	if m.EWMAAlpha != 0.2 {
		t.Errorf("EWMAAlpha = %v, want 0.2", m.EWMAAlpha)
	}
	if m.MaxProbes != 64 {
		t.Errorf("MaxProbes = %d, want 64", m.MaxProbes)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("HTTPPort = %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}

	// Omitted weights select the built-in blend.
	w := cfg.Scoring.Weights
	if w.Latency != 0.40 || w.Jitter != 0.25 || w.PacketLoss != 0.20 ||
		w.Consistency != 0.10 || w.Availability != 0.05 {
		t.Errorf("default weights = %+v", w)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
monitor:
  endpoints: /etc/netwatch/endpoints.json
  probe_interval: 10s
  probe_timeout: 1500ms
  retries: 4
  retry_backoff: 250ms
  jitter_pct: 20
  max_probes: 16
  grace: 5s
  short_window: 30
  long_window: 360
  ewma_alpha: 0.3
  eval_interval: 15s
scoring:
  weights:
    latency: 0.2
    jitter: 0.2
    packet_loss: 0.2
    consistency: 0.2
    availability: 0.2
alerts:
  rules:
    - id: score-drop
      metric: overall_score
      op: "<"
      threshold: 70
      sustain: 3
      severity: warning
    - id: packet-loss
      metric: loss_pct
      op: ">"
      threshold: 5
  webhooks:
    - type: slack
      url_env: NETWATCH_SLACK_URL
server:
  http_port: 9090
  stream_interval: 2s
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Monitor.ProbeInterval != 10*time.Second {
		t.Errorf("ProbeInterval = %v, want 10s", cfg.Monitor.ProbeInterval)
	}
	if cfg.Monitor.ProbeTimeout != 1500*time.Millisecond {
		t.Errorf("ProbeTimeout = %v, want 1.5s", cfg.Monitor.ProbeTimeout)
	}
	if cfg.Scoring.Weights.Latency != 0.2 {
		t.Errorf("Weights.Latency = %v, want 0.2", cfg.Scoring.Weights.Latency)
	}
	if len(cfg.Alerts.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(cfg.Alerts.Rules))
	}

	// Second rule exercises the normalized defaults.
	r := cfg.Alerts.Rules[1]
	if r.Sustain != 3 || r.ClearAfter != 3 {
		t.Errorf("rule defaults Sustain/ClearAfter = %d/%d, want 3/3", r.Sustain, r.ClearAfter)
	}
	if r.Severity != alerts.SeverityWarning {
		t.Errorf("rule default Severity = %q, want warning", r.Severity)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.Server.HTTPPort)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing endpoints", `
monitor: {}
`},
		{"bad weights sum", `
monitor:
  endpoints: e.json
scoring:
  weights:
    latency: 0.9
    jitter: 0.9
    packet_loss: 0.1
    consistency: 0.05
    availability: 0.05
`},
		{"negative interval", `
monitor:
  endpoints: e.json
  probe_interval: -1s
`},
		{"zero window", `
monitor:
  endpoints: e.json
  short_window: -5
`},
		{"alpha out of range", `
monitor:
  endpoints: e.json
  ewma_alpha: 1.5
`},
		{"bad rule metric", `
monitor:
  endpoints: e.json
alerts:
  rules:
    - id: r
      metric: uptime
      op: "<"
      threshold: 1
`},
		{"duplicate rule id", `
monitor:
  endpoints: e.json
alerts:
  rules:
    - id: r
      metric: loss_pct
      op: ">"
      threshold: 1
    - id: r
      metric: loss_pct
      op: ">"
      threshold: 2
`},
		{"bad webhook type", `
monitor:
  endpoints: e.json
alerts:
  webhooks:
    - type: pigeon
      url_env: X
`},
		{"bad port", `
monitor:
  endpoints: e.json
server:
  http_port: 99999
`},
		{"not yaml", `{{{`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Error("Load succeeded, want error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load succeeded for a missing file")
	}
}

func TestWebhookURLFromEnv(t *testing.T) {
	w := WebhookConfig{Type: "slack", URLEnv: "NETWATCH_TEST_WEBHOOK"}
	t.Setenv("NETWATCH_TEST_WEBHOOK", "https://hooks.example.com/T/B")
	if got := w.URL(); got != "https://hooks.example.com/T/B" {
		t.Errorf("URL() = %q", got)
	}
	if got := (WebhookConfig{}).URL(); got != "" {
		t.Errorf("URL() with empty env = %q, want empty", got)
	}
}
