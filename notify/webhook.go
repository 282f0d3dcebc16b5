package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Webhook POSTs messages as a JSON envelope. Transport errors, 429 and 5xx
// responses are retried with exponential backoff; other statuses are final.
type Webhook struct {
	url     string
	client  *resty.Client
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets how many times a failed delivery is retried. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.retries = n }
}

// WithWebhookBackoff sets the first retry delay. Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookLogger sets the logger for retry events.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{url: url, retries: 3, backoff: time.Second, logger: slog.Default()}
	for _, o := range opts {
		o(w)
	}
	w.client = resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(w.retries).
		SetRetryWaitTime(w.backoff).
		SetRetryMaxWaitTime(30*w.backoff).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			status := 0
			if r != nil {
				status = r.StatusCode()
			}
			w.logger.Debug("notify: webhook retry", "url", w.url, "status", status, "error", err)
		})
	return w
}

type webhookEnvelope struct {
	Type string    `json:"type"`
	Sent time.Time `json:"sent"`
	Data Message   `json:"data"`
}

func (w *Webhook) Notify(ctx context.Context, m Message) error {
	res, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookEnvelope{Type: "notification", Sent: time.Now().UTC(), Data: m}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("notify: webhook: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("notify: webhook: status %d after %d attempt(s)", res.StatusCode(), res.Request.Attempt)
	}
	return nil
}
