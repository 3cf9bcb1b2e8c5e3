package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/netwatch/netwatch/internal/api"
	"github.com/netwatch/netwatch/internal/config"
	"github.com/netwatch/netwatch/internal/monitor"
	"github.com/netwatch/netwatch/internal/registry"
	"github.com/netwatch/netwatch/internal/scoring"
)

func testPipeline(t *testing.T) *monitor.Pipeline {
	t.Helper()
	reg, err := registry.New([]registry.Endpoint{
		{ID: "cdn-edge", Host: "cdn.example.com", Port: 443, Protocol: registry.ProtocolHTTP, Enabled: true, Priority: 2},
		{ID: "dns-anycast", Host: "dns.example.com", Port: 53, Protocol: registry.ProtocolTCP, Enabled: true, Priority: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Monitor: config.MonitorConfig{
			Endpoints:     "unused.json",
			ProbeInterval: time.Second,
			ProbeTimeout:  time.Second,
			RetryBackoff:  time.Millisecond,
			MaxProbes:     4,
			ShortWindow:   60,
			LongWindow:    720,
			EWMAAlpha:     0.2,
			EvalInterval:  time.Second,
		},
		Scoring: config.ScoringConfig{Weights: scoring.DefaultWeights()},
	}
	p, err := monitor.New(cfg, reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(api.New(testPipeline(t)))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)
	resp, body := get(t, srv.URL+"/healthz")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var h api.HealthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" {
		t.Errorf("Status = %q, want ok", h.Status)
	}
	if h.Endpoints != 2 {
		t.Errorf("Endpoints = %d, want 2", h.Endpoints)
	}
	if h.Scored != 0 || h.Alerts != 0 {
		t.Errorf("Scored/Alerts = %d/%d, want 0/0", h.Scored, h.Alerts)
	}
}

func TestListEndpoints(t *testing.T) {
	srv := testServer(t)
	resp, body := get(t, srv.URL+"/api/v1/endpoints")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out []monitor.EndpointStatus
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("endpoints = %d, want 2", len(out))
	}
	// Registry orders by priority, highest first.
	if out[0].Endpoint.ID != "cdn-edge" {
		t.Errorf("first endpoint = %q, want cdn-edge", out[0].Endpoint.ID)
	}
	if out[0].Score.Scored {
		t.Error("unprobed endpoint reported as scored")
	}
}

func TestGetMetrics(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"short window default", "/api/v1/metrics/cdn-edge", http.StatusOK},
		{"explicit short", "/api/v1/metrics/cdn-edge?window=short", http.StatusOK},
		{"long window", "/api/v1/metrics/cdn-edge?window=long", http.StatusOK},
		{"unknown endpoint", "/api/v1/metrics/nope", http.StatusNotFound},
		{"bad window", "/api/v1/metrics/cdn-edge?window=medium", http.StatusBadRequest},
		{"missing id", "/api/v1/metrics/", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := get(t, srv.URL+tc.path)
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tc.status, body)
			}
			if tc.status != http.StatusOK {
				return
			}
			var m map[string]any
			if err := json.Unmarshal(body, &m); err != nil {
				t.Fatal(err)
			}
			if m["endpoint_id"] != "cdn-edge" {
				t.Errorf("endpoint_id = %v", m["endpoint_id"])
			}
		})
	}
}

func TestScoresAndAlertsEmpty(t *testing.T) {
	srv := testServer(t)

	resp, body := get(t, srv.URL+"/api/v1/scores")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scores status = %d", resp.StatusCode)
	}
	var scores []scoring.Components
	if err := json.Unmarshal(body, &scores); err != nil {
		t.Fatal(err)
	}
	if len(scores) != 0 {
		t.Errorf("scores = %d, want 0 before any probes", len(scores))
	}

	resp, body = get(t, srv.URL+"/api/v1/alerts")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("alerts status = %d", resp.StatusCode)
	}
	var alertsOut []any
	if err := json.Unmarshal(body, &alertsOut); err != nil {
		t.Fatal(err)
	}
	if len(alertsOut) != 0 {
		t.Errorf("alerts = %d, want 0", len(alertsOut))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{"/healthz", "/api/v1/endpoints", "/api/v1/scores", "/api/v1/alerts"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("POST %s status = %d, want 405", path, resp.StatusCode)
		}
	}
}
