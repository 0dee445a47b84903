// Package notify holds the thin, single-attempt notification senders.
// Delivery failure is returned to the trigger; retry policy belongs to the
// external scheduler or caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const telegramAPI = "https://api.telegram.org"

// TelegramClient sends messages through the Telegram Bot API.
type TelegramClient struct {
	botToken   string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

type TelegramOption func(*TelegramClient)

func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramClient) {
		t.httpClient = c
	}
}

// WithTelegramBaseURL overrides the API host, for tests.
func WithTelegramBaseURL(url string) TelegramOption {
	return func(t *TelegramClient) {
		t.baseURL = url
	}
}

func NewTelegramClient(botToken, chatID string, opts ...TelegramOption) *TelegramClient {
	t := &TelegramClient{
		botToken:   botToken,
		chatID:     chatID,
		baseURL:    telegramAPI,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Configured returns true if the bot token and chat id are set.
func (t *TelegramClient) Configured() bool {
	return t.botToken != "" && t.chatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Send delivers one message to the household chat. One attempt, no retry.
func (t *TelegramClient) Send(ctx context.Context, text string) error {
	if !t.Configured() {
		return fmt.Errorf("telegram client not configured: missing bot token or chat id")
	}

	payload := telegramMessage{ChatID: t.chatID, Text: text}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("telegram API error: status %d", resp.StatusCode)
	}
	return nil
}
