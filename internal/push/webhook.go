package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stride-fit/stride/internal/db"
)

// WebhookTransport posts notices to self-hosted relay URLs. Users who do
// not want their reminders routed through SNS register a relay endpoint
// instead.
type WebhookTransport struct {
	client *http.Client
	logger *zap.Logger
}

type WebhookConfig struct {
	Timeout time.Duration
}

// NewWebhookTransport creates the HTTP-relay push transport
func NewWebhookTransport(logger *zap.Logger, cfg WebhookConfig) *WebhookTransport {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &WebhookTransport{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Deliver POSTs the notice to the subscription's relay URL.
// 404 and 410 mean the relay no longer serves this target: ErrTargetGone.
func (t *WebhookTransport) Deliver(ctx context.Context, sub *db.PushSubscription, n Notice) error {
	if sub.Transport != db.TransportWebhook {
		return fmt.Errorf("webhook transport got %q subscription", sub.Transport)
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create relay request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Stride/1.0")
	req.Header.Set("X-Stride-Reminder-ID", n.ReminderID.String())
	req.Header.Set("X-Stride-Tag", n.Tag)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("%w: relay returned %d", ErrTargetGone, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("relay returned non-2xx status: %d, body: %s", resp.StatusCode, string(preview))
	}

	t.logger.Info("push delivered via relay",
		zap.String("reminder_id", n.ReminderID.String()),
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("status_code", resp.StatusCode),
	)

	return nil
}

// Kind returns the subscription kind this transport serves
func (t *WebhookTransport) Kind() string {
	return db.TransportWebhook
}
