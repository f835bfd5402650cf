package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier posts trade events to an operator-supplied HTTP endpoint
// (dashboard collector, pager bridge). A transient failure gets one retry so
// a network blip does not swallow a stop alert; a 4xx rejection does not.
type WebhookNotifier struct {
	url        string
	client     *http.Client
	retryDelay time.Duration
}

// NewWebhookNotifier creates a webhook notifier.
// url: The HTTP endpoint to POST trade events to.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryDelay: 500 * time.Millisecond,
	}
}

type webhookEvent struct {
	Source   string `json:"source"`
	Severity string `json:"severity"`
	Event    string `json:"event"`
	Detail   string `json:"detail"`
	SentAt   string `json:"sent_at"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookEvent{
		Source:   "trident",
		Severity: string(alert.Level),
		Event:    alert.Title,
		Detail:   alert.Message,
		SentAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	retryable, err := w.post(ctx, body)
	if err != nil && retryable {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retryDelay):
		}
		_, err = w.post(ctx, body)
	}
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}

	log.Printf("[webhook] delivered %s event: %s", alert.Level, alert.Title)
	return nil
}

// post performs one delivery attempt. The bool reports whether a failure is
// worth retrying: transport errors and 5xx are, a 4xx rejection is not.
func (w *WebhookNotifier) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("rejected with status %d", resp.StatusCode)
	}
}
