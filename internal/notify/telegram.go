// Package notify delivers fire-and-forget run notifications. Delivery
// failures are logged and swallowed, never propagated into the run.
package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/xzer/workbackup/internal/config"
	"github.com/xzer/workbackup/internal/logging"
)

// Notifier is the outbound notification sink.
type Notifier interface {
	Notify(message string)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(string) {}

// Telegram sends messages through the Bot API. Missing credentials turn
// every Notify into a debug-logged no-op.
type Telegram struct {
	token  string
	chatID string
	client *http.Client
	log    logging.Logger

	// baseURL is overridable in tests.
	baseURL string
}

func NewTelegram(cfg config.TelegramConfig, log logging.Logger) *Telegram {
	return &Telegram{
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
		baseURL: "https://api.telegram.org",
	}
}

func (t *Telegram) Notify(message string) {
	if t.token == "" || t.chatID == "" {
		t.log.Debug("telegram not configured (missing botToken or chatId), skipping notification")
		return
	}

	params := url.Values{}
	params.Set("chat_id", t.chatID)
	params.Set("text", message)
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage?%s", t.baseURL, t.token, params.Encode())

	resp, err := t.client.Get(endpoint)
	if err != nil {
		t.log.Warn("failed to send telegram notification: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.log.Warn("telegram notification rejected: %s", resp.Status)
		return
	}
	t.log.Debug("telegram notification sent")
}
