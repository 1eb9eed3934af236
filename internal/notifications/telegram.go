package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TelegramConfig configures the bot channel.
type TelegramConfig struct {
	APIBase    string
	BotToken   string
	ChatID     string
	HTTPClient *http.Client
}

// TelegramNotifier posts operator alerts to a Telegram chat via the bot API.
type TelegramNotifier struct {
	apiBase    string
	botToken   string
	chatID     string
	httpClient *http.Client
}

// NewTelegramNotifier constructs the channel.
func NewTelegramNotifier(cfg TelegramConfig) (*TelegramNotifier, error) {
	if strings.TrimSpace(cfg.BotToken) == "" || strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram: bot token and chat id are required")
	}
	n := &TelegramNotifier{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		botToken:   cfg.BotToken,
		chatID:     cfg.ChatID,
		httpClient: cfg.HTTPClient,
	}
	if n.apiBase == "" {
		n.apiBase = "https://api.telegram.org"
	}
	if n.httpClient == nil {
		n.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return n, nil
}

// SendMessage delivers an HTML-formatted message to the configured chat.
func (n *TelegramNotifier) SendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    n.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("telegram: encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram: send message failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
