package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g")
	t.Setenv("VINTIFI_SECRET_KEY", "")
	t.Setenv("PUBLIC_BASE_URL", "https://vintifi.example/")
	t.Setenv("STRIPE_PRICE_PRO_MONTHLY", "price_123")
	t.Setenv("STRIPE_PRICE_PACK_10", " ")
	t.Setenv("ADMIN_TELEGRAM_ID", "not-a-number")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")

	cfg := Load("pro_monthly", "pack_10")

	assert.Equal(t, "https://vintifi.example", cfg.PublicBaseURL)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, map[string]string{"pro_monthly": "price_123"}, cfg.StripePrices)
	assert.Equal(t, []string{"VINTIFI_SECRET_KEY"}, cfg.Missing())
	assert.Zero(t, cfg.AdminTelegramID)
	assert.False(t, cfg.NotificationsEnabled())
}

func TestStripePriceEnv(t *testing.T) {
	assert.Equal(t, "STRIPE_PRICE_BUSINESS_ANNUAL", StripePriceEnv("business_annual"))
}
