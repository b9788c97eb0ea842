package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	// URL receives fired events as a JSON POST.
	URL string

	// Timeout bounds the delivery attempt. Default: 10 seconds.
	Timeout time.Duration

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Notifier delivers alert events to a webhook. Delivery is best effort:
// the monitor run never fails because an alert could not be posted.
type Notifier struct {
	config WebhookConfig
	client *http.Client
}

// NewNotifier creates a webhook notifier.
func NewNotifier(config WebhookConfig) *Notifier {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Notifier{config: config, client: client}
}

// Notify posts the events as a single JSON document.
func (n *Notifier) Notify(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"source": "vigil",
		"alerts": events,
	})
	if err != nil {
		return fmt.Errorf("encode alerts: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alerts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("deliver alerts: webhook returned %s", resp.Status)
	}
	return nil
}
