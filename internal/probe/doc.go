// Package probe executes single probes against endpoints.
//
// A probe is one logical measurement: the prober dials (or pings) the target,
// records a timing breakdown where the protocol supports one, and retries
// transient failures with capped exponential backoff. Failures are values —
// Probe always returns a Record, never an error.
//
// Protocols: TCP connect, HTTP HEAD (with full httptrace breakdown), ICMP
// echo (falling back to a TCP connect when raw/datagram ICMP sockets are
// unavailable), and exporter — an HTTP GET that additionally requires the
// body to parse as a Prometheus text exposition.
package probe
