package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookDeliverer posts each directive to the chat transport's webhook.
type WebhookDeliverer struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookDeliverer builds a deliverer. An empty url yields a deliverer
// that drops directives with a warning, which keeps local runs working
// without a transport.
func NewWebhookDeliverer(url string, timeout time.Duration, logger *zap.Logger) *WebhookDeliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDeliverer{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Deliver implements Deliverer.
func (w *WebhookDeliverer) Deliver(ctx context.Context, d Directive) error {
	if w.url == "" {
		w.logger.Warn("no webhook configured, directive dropped",
			zap.String("directive_id", d.ID),
			zap.String("kind", string(d.Kind)))
		return nil
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
