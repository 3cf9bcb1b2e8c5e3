package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/netwatch/netwatch/internal/registry"
)

// defaultExporterPath is appended to exporter endpoints unless the endpoint's
// metadata overrides it with a "path" entry.
const defaultExporterPath = "/metrics"

// probeExporter fetches the target's metrics page and requires it to parse
// as a Prometheus text exposition carrying at least one sample. A reachable
// exporter serving garbage is a failed probe, not a slow one.
func (p *Prober) probeExporter(ctx context.Context, ep registry.Endpoint) attempt {
	path := ep.Metadata["path"]
	if path == "" {
		path = defaultExporterPath
	}
	url := fmt.Sprintf("%s://%s%s", schemeFor(ep), ep.Address(), path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return attempt{kind: ErrMalformed}
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	start := p.now()
	resp, err := p.client.Do(req)
	if err != nil {
		return attempt{kind: classify(err)}
	}
	defer resp.Body.Close()

	fetched := p.now()
	if resp.StatusCode != http.StatusOK {
		return attempt{kind: ErrStatus}
	}

	mfs, err := parseExposition(resp.Body)
	if err != nil || countSamples(mfs) == 0 {
		return attempt{kind: ErrExposition}
	}

	done := p.now()
	return attempt{
		ok:  true,
		rtt: done.Sub(start),
		timing: Timing{
			Connect:  fetched.Sub(start),
			Transfer: done.Sub(fetched),
		},
	}
}

// parseExposition decodes a Prometheus text exposition. A partial result
// with a trailing parse warning is still returned successfully.
func parseExposition(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse exposition: %w", err)
	}
	return mfs, nil
}

// countSamples totals the counter, gauge, and untyped samples across all
// metric families.
func countSamples(mfs map[string]*dto.MetricFamily) int {
	var n int
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.Counter != nil || m.Gauge != nil || m.Untyped != nil {
				n++
			}
		}
	}
	return n
}
