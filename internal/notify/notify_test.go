package notify

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, msg)
	}
	return tgbotapi.Message{}, b.err
}

func TestTelegram_Messages(t *testing.T) {
	bot := &fakeBot{}
	n := NewTelegramWithBot(bot, 42)

	price := 18.0
	n.ListingSaved("u1", "l1", "Nike Hoodie", &price)
	n.ListingSaved("u1", "l2", "Zara Dress", nil)
	n.CheckoutCreated("u1", "subscription", "pro_monthly")
	n.ProcessingFailed("u1", "ai_model", "AI did not return an image")

	require.Len(t, bot.sent, 4)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, "Listing saved\nUser: u1\nListing: l1\nNike Hoodie (£18.00)", bot.sent[0].Text)
	assert.Contains(t, bot.sent[1].Text, "(no price)")
	assert.Contains(t, bot.sent[2].Text, "subscription: pro_monthly")
	assert.Contains(t, bot.sent[3].Text, "Operation: ai_model")
}

func TestTelegram_SendErrorIsSwallowed(t *testing.T) {
	n := NewTelegramWithBot(&fakeBot{err: errors.New("network down")}, 1)
	assert.NotPanics(t, func() { n.CheckoutCreated("u", "credit_pack", "pack_10") })
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	n.ListingSaved("u", "l", "t", nil)
}
