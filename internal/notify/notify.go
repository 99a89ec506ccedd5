package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
)

// Notifier tells the operator about events worth a look.
type Notifier interface {
	ListingSaved(userID, listingID, title string, price *float64)
	CheckoutCreated(userID, kind, priceKey string)
	ProcessingFailed(userID, operation, message string)
}

// BotAPI is the subset of the Telegram bot API used for notifications.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

func formatText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

// Telegram sends notifications to an admin chat.
type Telegram struct {
	bot     BotAPI
	adminID int64
}

// NewTelegram logs in with token and sends to adminID.
func NewTelegram(token string, adminID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Info().Str("username", bot.Self.UserName).Msg("telegram notifier authorized")
	return NewTelegramWithBot(bot, adminID), nil
}

func NewTelegramWithBot(bot BotAPI, adminID int64) *Telegram {
	return &Telegram{bot: bot, adminID: adminID}
}

// send never fails the caller; notification errors are only logged.
func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.adminID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		log.Warn().Err(err).Msg("failed to send admin notification")
	}
}

func (t *Telegram) ListingSaved(userID, listingID, title string, price *float64) {
	priceText := "no price"
	if price != nil {
		priceText = fmt.Sprintf("£%.2f", *price)
	}
	t.send(formatText(`
		Listing saved
		User: %s
		Listing: %s
		%s (%s)`, userID, listingID, title, priceText))
}

func (t *Telegram) CheckoutCreated(userID, kind, priceKey string) {
	t.send(formatText(`
		Checkout started
		User: %s
		%s: %s`, userID, kind, priceKey))
}

func (t *Telegram) ProcessingFailed(userID, operation, message string) {
	t.send(formatText(`
		Image processing failed
		User: %s
		Operation: %s
		%s`, userID, operation, message))
}

// Noop discards every notification.
type Noop struct{}

func (Noop) ListingSaved(string, string, string, *float64) {}
func (Noop) CheckoutCreated(string, string, string)         {}
func (Noop) ProcessingFailed(string, string, string)        {}
