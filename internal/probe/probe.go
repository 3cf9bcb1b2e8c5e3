package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/netwatch/netwatch/internal/registry"
)

// Default probe parameters.
const (
	DefaultTimeout      = 2 * time.Second
	DefaultRetries      = 2
	DefaultRetryBackoff = 100 * time.Millisecond

	// backoffCap bounds the exponential retry delay.
	backoffCap = 5 * time.Second
)

// Config holds probe timing and retry policy.
type Config struct {
	// Timeout bounds one probe attempt end to end.
	Timeout time.Duration

	// Retries is the number of additional attempts after the first, taken
	// only for transient failures.
	Retries int

	// RetryBackoff is the delay before the first retry; it doubles per
	// attempt, capped at 5s.
	RetryBackoff time.Duration

	// UserAgent is sent on HTTP and exporter probes.
	UserAgent string

	// InsecureTLS disables certificate verification on HTTPS probes.
	InsecureTLS bool
}

// Timing is the per-phase breakdown of a successful probe. Phases the
// protocol does not expose are left zero (ICMP reports round-trip only).
type Timing struct {
	DNS      time.Duration `json:"dns"`
	Connect  time.Duration `json:"connect"`
	TLS      time.Duration `json:"tls"`
	Transfer time.Duration `json:"transfer"`
}

// Record is the outcome of one logical probe (including internal retries).
type Record struct {
	EndpointID string
	Timestamp  time.Time
	RTT        time.Duration
	Timing     Timing
	OK         bool
	Err        ErrorKind
	Attempts   int
}

// attempt is the outcome of a single protocol exchange.
type attempt struct {
	ok     bool
	rtt    time.Duration
	timing Timing
	kind   ErrorKind
}

// Prober performs probes. It is safe for concurrent use; all state beyond
// the shared HTTP client is per call.
type Prober struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
	seq    atomic.Uint32
}

// New builds a Prober, applying defaults for zero-valued config fields.
func New(cfg Config) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}

	// Keep-alives are disabled so every probe measures a fresh connection,
	// not a reused one.
	transport := &http.Transport{
		DisableKeepAlives: true,
		TLSClientConfig:   &tls.Config{InsecureSkipVerify: cfg.InsecureTLS}, //nolint:gosec // user-configured
	}
	return &Prober{
		cfg:    cfg,
		client: &http.Client{Transport: transport},
		now:    time.Now,
	}
}

// Probe performs one logical probe against ep: one attempt, retried with
// exponential backoff while the failure is transient and attempts remain.
// The returned Record's Timestamp is the start of the first attempt.
func (p *Prober) Probe(ctx context.Context, ep registry.Endpoint) Record {
	started := p.now()

	var res attempt
	attempts := 0
	delay := p.cfg.RetryBackoff
	for {
		res = p.attempt(ctx, ep)
		attempts++

		if res.ok || !res.kind.Transient() || attempts > p.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return record(ep.ID, started, attempts, res)
		case <-time.After(delay):
		}
		delay *= 2
		if delay > backoffCap {
			delay = backoffCap
		}
	}
	return record(ep.ID, started, attempts, res)
}

func record(id string, ts time.Time, attempts int, res attempt) Record {
	return Record{
		EndpointID: id,
		Timestamp:  ts,
		RTT:        res.rtt,
		Timing:     res.timing,
		OK:         res.ok,
		Err:        res.kind,
		Attempts:   attempts,
	}
}

func (p *Prober) attempt(ctx context.Context, ep registry.Endpoint) attempt {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	switch ep.Protocol {
	case registry.ProtocolTCP:
		return p.probeTCP(ctx, ep.Host, ep.Port)
	case registry.ProtocolHTTP:
		return p.probeHTTP(ctx, ep)
	case registry.ProtocolICMP:
		return p.probeICMP(ctx, ep.Host)
	case registry.ProtocolExporter:
		return p.probeExporter(ctx, ep)
	default:
		return attempt{kind: ErrMalformed}
	}
}

// probeTCP resolves the host, opens a TCP connection, and closes it.
// RTT covers resolution plus connect.
func (p *Prober) probeTCP(ctx context.Context, host string, port int) attempt {
	start := p.now()

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		if err == nil {
			err = &net.DNSError{Err: "no addresses", Name: host}
		}
		return attempt{kind: classify(err)}
	}
	dnsDone := p.now()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(addrs[0], strconv.Itoa(port)))
	if err != nil {
		return attempt{kind: classify(err), timing: Timing{DNS: dnsDone.Sub(start)}}
	}
	conn.Close()

	done := p.now()
	return attempt{
		ok:  true,
		rtt: done.Sub(start),
		timing: Timing{
			DNS:     dnsDone.Sub(start),
			Connect: done.Sub(dnsDone),
		},
	}
}

// schemeFor picks http or https for an endpoint. The well-known TLS ports
// imply https; a "scheme" metadata entry overrides the port inference for
// endpoints serving TLS on non-standard ports (or plain HTTP on 443).
func schemeFor(ep registry.Endpoint) string {
	scheme := "http"
	if ep.Port == 443 || ep.Port == 8443 {
		scheme = "https"
	}
	if s := ep.Metadata["scheme"]; s == "http" || s == "https" {
		scheme = s
	}
	return scheme
}

// probeHTTP issues a HEAD request with a cache-buster query so intermediate
// caches cannot answer for the origin. httptrace supplies the breakdown.
func (p *Prober) probeHTTP(ctx context.Context, ep registry.Endpoint) attempt {
	url := fmt.Sprintf("%s://%s/?cache_buster=%d", schemeFor(ep), ep.Address(), p.now().UnixNano())

	var tm Timing
	var dnsStart, connStart, tlsStart, reqDone time.Time
	trace := &httptrace.ClientTrace{
		DNSStart:          func(httptrace.DNSStartInfo) { dnsStart = p.now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { tm.DNS = p.now().Sub(dnsStart) },
		ConnectStart:      func(_, _ string) { connStart = p.now() },
		ConnectDone:       func(_, _ string, _ error) { tm.Connect = p.now().Sub(connStart) },
		TLSHandshakeStart: func() { tlsStart = p.now() },
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			tm.TLS = p.now().Sub(tlsStart)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) { reqDone = p.now() },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodHead, url, nil)
	if err != nil {
		return attempt{kind: ErrMalformed}
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	start := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		return attempt{kind: classify(err), timing: tm}
	}
	resp.Body.Close()

	done := p.now()
	if !reqDone.IsZero() {
		tm.Transfer = done.Sub(reqDone)
	}

	// 2xx and 3xx count as reachable; 4xx/5xx are recorded failures and are
	// not retried — the endpoint answered.
	if resp.StatusCode >= 400 {
		return attempt{kind: ErrStatus, timing: tm}
	}
	return attempt{ok: true, rtt: done.Sub(start), timing: tm}
}
