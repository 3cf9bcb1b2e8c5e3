package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Protocol selects the probe method used for an endpoint.
type Protocol string

const (
	ProtocolTCP      Protocol = "tcp"
	ProtocolHTTP     Protocol = "http"
	ProtocolICMP     Protocol = "icmp"
	ProtocolExporter Protocol = "exporter"
)

// Endpoint describes one monitored network target.
// Endpoints are value types; the registry hands out copies.
type Endpoint struct {
	// ID is a unique, stable identifier for this endpoint.
	ID string `json:"id"`

	// Host is a hostname or IP address.
	Host string `json:"host"`

	// Port is the TCP/HTTP port. Ignored for ICMP endpoints.
	Port int `json:"port"`

	// Protocol is one of: tcp | http | icmp | exporter.
	Protocol Protocol `json:"protocol"`

	// Enabled controls whether the scheduler probes this endpoint.
	Enabled bool `json:"enabled"`

	// Priority is an informational rank used by display consumers.
	Priority int `json:"priority"`

	// Metadata holds free-form key/value labels (provider, region, ...).
	// The exporter probe reads "path" to override the default /metrics;
	// HTTP and exporter probes read "scheme" (http|https) to override the
	// port-based scheme inference.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Address returns the dial target for the endpoint. ICMP endpoints are
// addressed by host only.
func (e Endpoint) Address() string {
	if e.Protocol == ProtocolICMP {
		return e.Host
	}
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Validate checks that the endpoint is well-formed.
func (e Endpoint) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Host == "" {
		return fmt.Errorf("host is required")
	}
	if strings.ContainsAny(e.Host, " /") {
		return fmt.Errorf("host %q is not a valid hostname or IP", e.Host)
	}
	switch e.Protocol {
	case ProtocolTCP, ProtocolHTTP, ProtocolExporter:
		if e.Port < 1 || e.Port > 65535 {
			return fmt.Errorf("port %d out of range", e.Port)
		}
	case ProtocolICMP:
		// No port.
	default:
		return fmt.Errorf("unknown protocol %q", e.Protocol)
	}
	return nil
}

// Registry is the immutable endpoint set for one monitoring session.
type Registry struct {
	endpoints []Endpoint
	byID      map[string]Endpoint
}

// file is the on-disk JSON shape.
type file struct {
	Endpoints []Endpoint `json:"endpoints"`
}

// Load reads the endpoint list from the JSON file at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read file: %w", err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("registry: parse json: %w", err)
	}
	return New(f.Endpoints)
}

// New builds a Registry from the given endpoints, validating each entry and
// rejecting duplicate IDs.
func New(endpoints []Endpoint) (*Registry, error) {
	r := &Registry{byID: make(map[string]Endpoint, len(endpoints))}
	for i, ep := range endpoints {
		if err := ep.Validate(); err != nil {
			return nil, fmt.Errorf("registry: endpoint[%d] %q: %w", i, ep.ID, err)
		}
		if _, dup := r.byID[ep.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate endpoint id %q", ep.ID)
		}
		r.byID[ep.ID] = ep
		r.endpoints = append(r.endpoints, ep)
	}
	return r, nil
}

// All returns a copy of every endpoint, sorted by descending priority then ID.
func (r *Registry) All() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Enabled returns the enabled endpoints, in the same order as All.
func (r *Registry) Enabled() []Endpoint {
	all := r.All()
	out := all[:0:0]
	for _, ep := range all {
		if ep.Enabled {
			out = append(out, ep)
		}
	}
	return out
}

// Get returns the endpoint with the given ID.
func (r *Registry) Get(id string) (Endpoint, bool) {
	ep, ok := r.byID[id]
	return ep, ok
}

// Len returns the total number of endpoints, enabled or not.
func (r *Registry) Len() int {
	return len(r.endpoints)
}
