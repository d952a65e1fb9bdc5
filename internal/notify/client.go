// Package notify sends analysis summaries to a Telegram chat.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/ratescan/internal/analysis"
	"github.com/rewired-gh/ratescan/internal/models"
)

// maxFlaggedListed caps the flagged events spelled out in a charge summary.
const maxFlaggedListed = 10

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError reports a failed analysis run.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ *Analysis failed*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRate sends the parameters of a rate scan fit.
func (c *Client) SendRate(r analysis.RateReport) error {
	return c.sendMarkdownV2(formatRate(r))
}

// SendCharges sends a charge distribution summary with the flagged events.
func (c *Client) SendCharges(r analysis.ChargeReport) error {
	return c.sendMarkdownV2(formatCharges(r))
}

// SendIntervals sends the decay constant of an inter-event time fit.
func (c *Client) SendIntervals(r analysis.IntervalReport) error {
	return c.sendMarkdownV2(formatIntervals(r))
}

func formatRate(r analysis.RateReport) string {
	var b strings.Builder
	b.WriteString("📈 *Rate scan fit*\n")
	if r.Dataset != "" {
		fmt.Fprintf(&b, "Dataset: %s\n", escapeMarkdownV2(r.Dataset))
	}
	fmt.Fprintf(&b, "Points: %d", r.Fit.Points)
	if len(r.Dropped) > 0 {
		fmt.Fprintf(&b, " \\(%d zero\\-count excluded\\)", len(r.Dropped))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "a \\= %s\n", escapeMarkdownV2(fmt.Sprintf("%.4g ± %.2g", r.Fit.Slope, r.Fit.SlopeError())))
	fmt.Fprintf(&b, "b \\= %s\n", escapeMarkdownV2(fmt.Sprintf("%.4g ± %.2g", r.Fit.Intercept, r.Fit.InterceptError())))
	fmt.Fprintf(&b, "χ²/ndf \\= %s\n", escapeMarkdownV2(fmt.Sprintf("%.3g/%d", r.Fit.Chi2, r.Fit.NDF)))
	fmt.Fprintf(&b, "_%s covariance_", escapeMarkdownV2(r.Covariance))
	return b.String()
}

func formatCharges(r analysis.ChargeReport) string {
	var b strings.Builder
	emoji := "✅"
	if len(r.Flagged) > 0 {
		emoji = "🚨"
	}
	fmt.Fprintf(&b, "%s *Charge check, channel %s*\n", emoji, escapeMarkdownV2(r.Channel))
	fmt.Fprintf(&b, "Events: %d, mean %s\n", r.Summary.Count,
		escapeMarkdownV2(fmt.Sprintf("%.4g ± %.3g", r.Summary.Mean, r.Summary.StdDev)))
	fmt.Fprintf(&b, "Window: %s\n", escapeMarkdownV2(fmt.Sprintf("[%g, %g]", r.Thresholds.Min, r.Thresholds.Max)))
	fmt.Fprintf(&b, "Flagged: %d\n", len(r.Flagged))

	for i, f := range r.Flagged {
		if i == maxFlaggedListed {
			fmt.Fprintf(&b, "   … and %d more\n", len(r.Flagged)-maxFlaggedListed)
			break
		}
		arrow := "⬆️"
		if f.Verdict == models.BelowMin {
			arrow = "⬇️"
		}
		fmt.Fprintf(&b, "   %s event %d: %s\n", arrow, f.EventIndex, escapeMarkdownV2(fmt.Sprintf("%.6g", f.Charge)))
	}
	return b.String()
}

func formatIntervals(r analysis.IntervalReport) string {
	var b strings.Builder
	b.WriteString("⏱ *Inter\\-event times*\n")
	fmt.Fprintf(&b, "Events: %d\n", r.Events)
	fmt.Fprintf(&b, "Global rate: %s\n", escapeMarkdownV2(fmt.Sprintf("%.4g ± %.2g /s", r.GlobalRate.Rate, r.GlobalRate.RateUncertainty)))
	fmt.Fprintf(&b, "λ \\= %s", escapeMarkdownV2(fmt.Sprintf("%.4g ± %.2g /s", r.Lambda, r.LambdaError)))
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
