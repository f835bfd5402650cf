package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"time"
)

// TelegramNotifier delivers trade alerts through the Telegram Bot API.
// Routine fill confirmations are sent silently; stop hits and critical
// alerts ring through.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier.
// botToken: Bot API token from @BotFather
// chatID: Target chat/group/channel ID
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  "https://api.telegram.org",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	tag := "TRADE"
	switch alert.Level {
	case AlertWarning:
		tag = "STOP"
	case AlertCritical:
		tag = "ALERT"
	}

	text := fmt.Sprintf("<b>[%s] %s</b>\n%s",
		tag, html.EscapeString(alert.Title), html.EscapeString(alert.Message))

	body, _ := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
		// Fills are routine; only stops and worse should buzz the phone
		"disable_notification": alert.Level == AlertInfo,
	})

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	var tgResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	json.NewDecoder(resp.Body).Decode(&tgResp)
	if resp.StatusCode != http.StatusOK || !tgResp.OK {
		return fmt.Errorf("telegram: rejected: status=%d %s", resp.StatusCode, tgResp.Description)
	}

	log.Printf("[telegram] delivered %s alert: %s", alert.Level, alert.Title)
	return nil
}
