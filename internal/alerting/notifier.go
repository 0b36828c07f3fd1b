package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"palmbudget/internal/sweep"
)

// Notifier delivers sweep-executed notifications.
type Notifier interface {
	Notify(ctx context.Context, rec sweep.Record) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the sweep summary via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, rec sweep.Record) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(rec),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("user", rec.User).
		Str("destination", rec.Destination.String()).
		Msg("sweep notification sent")
	return nil
}

func renderMessage(rec sweep.Record) string {
	builder := strings.Builder{}
	builder.WriteString("[PalmBudget Sweep]\n")
	builder.WriteString(fmt.Sprintf("User: %s\n", rec.User))
	builder.WriteString(fmt.Sprintf("Moved: %s %s -> %s\n", rec.Amount.String(), rec.Source, rec.Destination))
	builder.WriteString(fmt.Sprintf("Destination yield: %d bps\n", rec.YieldBps))
	builder.WriteString(fmt.Sprintf("At: %s UTC\n", rec.Timestamp.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
