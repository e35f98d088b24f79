package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/hrygo/nova/plugin/ai/errlog"
	"github.com/hrygo/nova/plugin/ai/stream"
)

// Channel delivers a notification somewhere.
type Channel interface {
	Deliver(ctx context.Context, n Notification) error
	Name() string
}

// Dispatcher fans new notifications out to registered channels.
type Dispatcher struct {
	channels []Channel
	reporter errlog.Reporter
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewDispatcher creates a dispatcher with no channels.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		reporter: errlog.NopReporter{},
		logger:   slog.Default().With("component", "notify.dispatcher"),
	}
}

// WithReporter sets where delivery failures are reported.
func (d *Dispatcher) WithReporter(r errlog.Reporter) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reporter = errlog.OrNop(r)
	return d
}

// Register adds a channel.
func (d *Dispatcher) Register(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, ch)
	d.logger.Info("registered notification channel", "channel", ch.Name())
}

// Channels returns the registered channel names.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Broadcast delivers n through every channel. Failures are reported, not returned to the engine.
func (d *Dispatcher) Broadcast(ctx context.Context, n Notification) []error {
	d.mu.RLock()
	channels := append([]Channel(nil), d.channels...)
	reporter := d.reporter
	d.mu.RUnlock()

	var errs []error
	for _, ch := range channels {
		if err := ch.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
			d.logger.Warn("failed to deliver notification", "channel", ch.Name(), "id", n.ID, "error", err)
			reporter.HandleError(ctx, errlog.TypeNotification, err.Error(), map[string]any{
				"channel":        ch.Name(),
				"notificationId": n.ID,
			}, true)
		}
	}
	return errs
}

// StreamChannel publishes notifications on the internal stream.
type StreamChannel struct {
	pub stream.Publisher
}

// NewStreamChannel creates a stream channel.
func NewStreamChannel(pub stream.Publisher) *StreamChannel {
	return &StreamChannel{pub: stream.OrNop(pub)}
}

// Deliver publishes n on notification.created.
func (c *StreamChannel) Deliver(ctx context.Context, n Notification) error {
	return c.pub.Publish(ctx, stream.TopicNotificationCreated, n)
}

// Name returns the channel name.
func (c *StreamChannel) Name() string {
	return "stream"
}

// BotSender is the part of the Telegram bot API used for delivery.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel sends notifications to one chat.
type TelegramChannel struct {
	bot            BotSender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewTelegramChannel connects to the bot API.
func NewTelegramChannel(botToken, chatID string) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Telegram bot")
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid chat ID")
	}

	return NewTelegramChannelWithBot(bot, chatIDInt), nil
}

// NewTelegramChannelWithBot creates a channel over an existing bot.
func NewTelegramChannelWithBot(bot BotSender, chatID int64) *TelegramChannel {
	return &TelegramChannel{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     3,
		retryDelayBase: time.Second,
	}
}

// WithRetry sets the attempt count and linear backoff base.
func (c *TelegramChannel) WithRetry(maxRetries int, delayBase time.Duration) *TelegramChannel {
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	if delayBase >= 0 {
		c.retryDelayBase = delayBase
	}
	return c
}

// Deliver sends n, retrying with linear backoff.
func (c *TelegramChannel) Deliver(ctx context.Context, n Notification) error {
	msg := tgbotapi.NewMessage(c.chatID, FormatTelegram(n))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// Name returns the channel name.
func (c *TelegramChannel) Name() string {
	return "telegram"
}

var priorityEmoji = map[Priority]string{
	PriorityUrgent: "🚨",
	PriorityHigh:   "🔥",
	PriorityMedium: "✨",
	PriorityLow:    "💡",
}

// FormatTelegram renders n as a MarkdownV2 message.
func FormatTelegram(n Notification) string {
	var b strings.Builder
	b.WriteString(priorityEmoji[n.Priority])
	b.WriteString(" *")
	b.WriteString(tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, n.Title))
	b.WriteString("*\n\n")
	b.WriteString(tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, n.Message))
	if n.ActionLabel != "" {
		b.WriteString("\n\n👉 _")
		b.WriteString(tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, n.ActionLabel))
		b.WriteString("_")
	}
	return b.String()
}

var (
	_ Channel = (*StreamChannel)(nil)
	_ Channel = (*TelegramChannel)(nil)
)
