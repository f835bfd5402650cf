// Package notification provides alert delivery to external channels
// (Telegram, generic webhooks) for trading events.
package notification

import (
	"context"
	"fmt"
	"log"

	"trident/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans one alert out to several backends. Delivery failures are logged
// but do not stop the remaining backends.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	var lastErr error
	for _, n := range m.backends {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend delivery failed: %v", err)
			lastErr = err
		}
	}
	return lastErr
}

// FillAlert formats a broker fill as an alert.
func FillAlert(fill model.Fill) Alert {
	title := fmt.Sprintf("%s %s %s", fill.Symbol, fill.Side, fill.Offset)
	msg := fmt.Sprintf("qty %.5f @ %.2f (%s)", fill.Qty, fill.Price, fill.Reason)
	return Alert{Level: AlertInfo, Title: title, Message: msg}
}

// StopAlert formats a trailing-stop exit as a higher-severity alert.
func StopAlert(fill model.Fill) Alert {
	a := FillAlert(fill)
	a.Level = AlertWarning
	return a
}
