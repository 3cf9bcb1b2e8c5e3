package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/netwatch/netwatch/internal/alerts"
	"github.com/netwatch/netwatch/internal/metrics"
	"github.com/netwatch/netwatch/internal/monitor"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads live state from the monitoring pipeline and returns JSON.
type Handler struct {
	pipeline *monitor.Pipeline
	mux      *http.ServeMux
}

// New creates a Handler wired to the given pipeline and registers all routes.
func New(p *monitor.Pipeline) http.Handler {
	h := &Handler{pipeline: p, mux: http.NewServeMux()}

	h.mux.HandleFunc("/healthz", h.healthz)
	h.mux.HandleFunc("/api/v1/endpoints", h.listEndpoints)
	h.mux.HandleFunc("/api/v1/metrics/", h.getMetrics) // subtree — extracts {id}
	h.mux.HandleFunc("/api/v1/scores", h.scores)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// healthz returns GET /healthz — process liveness plus a monitoring summary.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	overview := h.pipeline.Overview()
	resp := HealthResponse{
		Status:    "ok",
		Endpoints: len(overview),
		Alerts:    len(h.pipeline.ActiveAlerts()),
	}
	for _, st := range overview {
		if st.Score.Scored {
			resp.Scored++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listEndpoints returns GET /api/v1/endpoints — the session's endpoint
// inventory with current status.
func (h *Handler) listEndpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.pipeline.Overview())
}

// getMetrics returns GET /api/v1/metrics/{id}?window=short|long — one
// endpoint's aggregated window.
func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/metrics/")
	if id == "" {
		jsonErr(w, http.StatusBadRequest, "endpoint id is required")
		return
	}

	kind := metrics.WindowShort
	switch r.URL.Query().Get("window") {
	case "", "short":
	case "long":
		kind = metrics.WindowLong
	default:
		jsonErr(w, http.StatusBadRequest, "window must be short or long")
		return
	}

	m, ok := h.pipeline.Metrics(id, kind)
	if !ok {
		jsonErr(w, http.StatusNotFound, "endpoint not found")
		return
	}
	jsonResp(w, http.StatusOK, m)
}

// scores returns GET /api/v1/scores — the current score of every
// endpoint with samples.
func (h *Handler) scores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.pipeline.Scores())
}

// alerts returns GET /api/v1/alerts — all currently open alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	active := h.pipeline.ActiveAlerts()
	if active == nil {
		active = []alerts.ActiveAlert{}
	}
	jsonResp(w, http.StatusOK, active)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
