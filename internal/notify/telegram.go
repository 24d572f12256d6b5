package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"calflow/internal/config"
	"calflow/internal/telemetry"
)

// Telegram sends chat messages through a bot. The bot is created on the
// first Send so a missing token only matters once chat delivery is used.
type Telegram struct {
	token       string
	defaultChat string
	endpoint    string
	http        *http.Client
	metrics     *telemetry.CallMetrics

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func NewTelegram(cfg config.NotifyConfig, timeout time.Duration) *Telegram {
	return &Telegram{
		token:       cfg.TelegramToken,
		defaultChat: cfg.TelegramChatID,
		endpoint:    tgbotapi.APIEndpoint,
		http:        &http.Client{Timeout: timeout},
		metrics:     telemetry.NewCallMetrics("calflow/notify"),
	}
}

func (t *Telegram) client() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		return t.bot, nil
	}
	if t.token == "" {
		return nil, config.Missing("TELEGRAM_BOT_TOKEN")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, t.http)
	if err != nil {
		return nil, fmt.Errorf("failed to start telegram bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}

// Send posts text to chatID, or to the configured chat when chatID is empty.
func (t *Telegram) Send(ctx context.Context, chatID, text string) (err error) {
	start := time.Now()
	defer func() { t.metrics.Observe(ctx, "telegram", "send", start, err) }()

	if chatID == "" {
		chatID = t.defaultChat
	}
	if chatID == "" {
		return failed("chat", config.Missing("TELEGRAM_CHAT_ID"))
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return failed("chat", fmt.Errorf("invalid chat id '%s': %w", chatID, err))
	}

	bot, err := t.client()
	if err != nil {
		return failed("chat", err)
	}
	if _, err = bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return failed("chat", err)
	}
	return nil
}
