package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/netwatch/netwatch/internal/alerts"
	"github.com/netwatch/netwatch/internal/config"
)

const deliveryTimeout = 10 * time.Second

// Notifier posts alert events to the configured webhook targets.
type Notifier struct {
	targets []config.WebhookConfig
	client  *http.Client
	log     *slog.Logger
}

func New(targets []config.WebhookConfig, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		targets: targets,
		client:  &http.Client{Timeout: deliveryTimeout},
		log:     log,
	}
}

// Run consumes events until the channel closes or ctx is cancelled.
// Intended to be handed a broadcaster subscription.
func (n *Notifier) Run(ctx context.Context, events <-chan alerts.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			n.deliver(ctx, ev)
		}
	}
}

// deliver sends ev to all configured targets. Errors are logged but
// never propagate; a dead webhook must not stop the consumer loop.
func (n *Notifier) deliver(ctx context.Context, ev alerts.Event) {
	for _, wh := range n.targets {
		url := wh.URL()
		if url == "" {
			n.log.Warn("notify: webhook url env unset — skipping",
				"type", wh.Type, "url_env", wh.URLEnv)
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(ctx, url, ev)
		case "teams":
			err = n.sendTeams(ctx, url, ev)
		case "http":
			err = n.sendHTTP(ctx, url, ev)
		default:
			n.log.Warn("notify: unknown webhook type — skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			n.log.Error("notify: webhook delivery failed",
				"type", wh.Type,
				"rule", ev.RuleID,
				"endpoint", ev.EndpointID,
				"err", err,
			)
		} else {
			n.log.Debug("notify: webhook delivered",
				"type", wh.Type,
				"rule", ev.RuleID,
				"resolved", ev.Resolved(),
			)
		}
	}
}

func (n *Notifier) sendSlack(ctx context.Context, url string, ev alerts.Event) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s: %s", severityLabel(ev.Severity), ev.EndpointID, ev.Message),
	})
	return n.post(ctx, url, body)
}

func (n *Notifier) sendTeams(ctx context.Context, url string, ev alerts.Event) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(ev.Severity),
		"summary":    ev.RuleID,
		"title":      fmt.Sprintf("netwatch: %s on %s", ev.RuleID, ev.EndpointID),
		"text":       ev.Message,
	}
	body, _ := json.Marshal(payload)
	return n.post(ctx, url, body)
}

func (n *Notifier) sendHTTP(ctx context.Context, url string, ev alerts.Event) error {
	body, _ := json.Marshal(map[string]interface{}{"event": ev})
	return n.post(ctx, url, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return "[CRITICAL]"
	case alerts.SeverityWarning:
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return "FF4F6A"
	case alerts.SeverityWarning:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
