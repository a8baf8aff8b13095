// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	}
}

// Send delivers an HTML-formatted message with linear-backoff retry.
// It satisfies the alert pipeline's Notifier interface.
func (c *Client) Send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a cycle-failure notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ <b>Scan cycle error</b>\n<code>%s</code>", escapeHTML(cycleErr.Error()))
	return c.Send(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ <b>Scanning recovered</b> after %d consecutive failure(s)", failureCount)
	return c.Send(text)
}

// StartupInfo summarizes the active configuration for the boot notice.
type StartupInfo struct {
	PollInterval          time.Duration
	MinConfidence         string
	AllowedActions        string
	MaxPerDay             int
	Cooldown              time.Duration
	OddsShiftThreshold    float64
	VolumeSpikeMultiplier float64
	ClosingSoonHours      float64
	NewMarketHours        float64
	MispriceSumDeviation  float64
	TopicKeywords         string
}

// SendStartup announces the bot and its active filters.
func (c *Client) SendStartup(info StartupInfo) error {
	capText := "No daily cap (unlimited)"
	if info.MaxPerDay > 0 {
		capText = fmt.Sprintf("<b>%d alerts/day max</b> (resets at UTC midnight)", info.MaxPerDay)
	}
	topics := "all markets"
	if info.TopicKeywords != "" {
		topics = info.TopicKeywords
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>🤖 Polymarket Alert Bot — Online</b>\n\n")
	fmt.Fprintf(&b, "Polling every <b>%s</b>\n\n", info.PollInterval)
	fmt.Fprintf(&b, "<b>🔍 Active filters:</b>\n")
	fmt.Fprintf(&b, "  • Minimum confidence: <b>%s</b>\n", escapeHTML(info.MinConfidence))
	fmt.Fprintf(&b, "  • Allowed actions: <b>%s</b>\n", escapeHTML(info.AllowedActions))
	fmt.Fprintf(&b, "  • Daily alert cap: %s\n\n", capText)
	fmt.Fprintf(&b, "<b>Detection thresholds:</b>\n")
	fmt.Fprintf(&b, "  • Odds shift: %.0fpp in 24h\n", info.OddsShiftThreshold*100)
	fmt.Fprintf(&b, "  • Volume spike: %.1fx daily avg\n", info.VolumeSpikeMultiplier)
	fmt.Fprintf(&b, "  • Closing soon: within %.0fh\n", info.ClosingSoonHours)
	fmt.Fprintf(&b, "  • New markets: created within %.0fh\n", info.NewMarketHours)
	fmt.Fprintf(&b, "  • Mispricing: ≥%.0fpp deviation\n\n", info.MispriceSumDeviation*100)
	fmt.Fprintf(&b, "Topic filter: <i>%s</i>\n", escapeHTML(topics))
	fmt.Fprintf(&b, "Alert cooldown: %s per market\n\n", info.Cooldown)
	fmt.Fprintf(&b, "<i>Alerts are ranked by edge strength; you'll only receive the best opportunities of the day.</i>")
	return c.Send(b.String())
}

// escapeHTML escapes the characters Telegram's HTML parse mode treats specially.
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	return strings.ReplaceAll(text, ">", "&gt;")
}
