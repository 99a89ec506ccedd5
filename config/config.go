package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	AppName     = "vintifi"
	EnvFileName = "config.env"
)

// LoadEnvFile loads environment variables from the config file in the user's
// config directory, then from .env in the working directory. Variables
// already set win. Errors are ignored since the files may not exist.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load(".env")
}

// Config is the server configuration read from the environment.
type Config struct {
	ListenAddr    string
	DBPath        string
	SecretKey     string
	BlobDir       string
	PublicBaseURL string
	CORSOrigin    string

	GeminiAPIKey     string
	GeminiBaseURL    string
	FirecrawlAPIKey  string
	PerplexityAPIKey string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeBaseURL       string
	// StripePrices maps price keys (pro_monthly, pack_10, ...) to Stripe
	// price ids.
	StripePrices map[string]string

	AuthURL    string
	AuthAPIKey string
	// StaticTokens is "token:userID:email" entries separated by commas,
	// for local development.
	StaticTokens string

	// BackendURL is where the CLI tools send requests.
	BackendURL string

	TelegramBotToken string
	AdminTelegramID  int64
}

// StripePriceEnv returns the environment variable holding a price id,
// e.g. STRIPE_PRICE_PRO_MONTHLY.
func StripePriceEnv(priceKey string) string {
	return "STRIPE_PRICE_" + strings.ToUpper(priceKey)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Load reads the configuration. priceKeys are the Stripe price keys to look
// up.
func Load(priceKeys ...string) Config {
	cfg := Config{
		ListenAddr:    getenv("LISTEN_ADDR", ":8080"),
		DBPath:        getenv("VINTIFI_DB_PATH", "vintifi.db"),
		SecretKey:     getenv("VINTIFI_SECRET_KEY", ""),
		BlobDir:       getenv("VINTIFI_BLOB_DIR", "blobs"),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		CORSOrigin:    getenv("CORS_ORIGIN", "*"),

		GeminiAPIKey:     getenv("GEMINI_API_KEY", ""),
		GeminiBaseURL:    getenv("GEMINI_BASE_URL", ""),
		FirecrawlAPIKey:  getenv("FIRECRAWL_API_KEY", ""),
		PerplexityAPIKey: getenv("PERPLEXITY_API_KEY", ""),

		StripeSecretKey:     getenv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),
		StripeBaseURL:       getenv("STRIPE_BASE_URL", ""),
		StripePrices:        map[string]string{},

		AuthURL:      strings.TrimRight(getenv("AUTH_URL", ""), "/"),
		AuthAPIKey:   getenv("AUTH_API_KEY", ""),
		StaticTokens: getenv("AUTH_STATIC_TOKENS", ""),

		BackendURL: strings.TrimRight(getenv("BACKEND_URL", "http://localhost:8080"), "/"),

		TelegramBotToken: getenv("TELEGRAM_BOT_TOKEN", ""),
	}
	for _, key := range priceKeys {
		if id := getenv(StripePriceEnv(key), ""); id != "" {
			cfg.StripePrices[key] = id
		}
	}
	if id, err := strconv.ParseInt(getenv("ADMIN_TELEGRAM_ID", ""), 10, 64); err == nil {
		cfg.AdminTelegramID = id
	}
	return cfg
}

// Missing returns the names of required variables that are not set.
func (c Config) Missing() []string {
	var missing []string
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.SecretKey == "" {
		missing = append(missing, "VINTIFI_SECRET_KEY")
	}
	return missing
}

// NotificationsEnabled reports whether admin Telegram messages can be sent.
func (c Config) NotificationsEnabled() bool {
	return c.TelegramBotToken != "" && c.AdminTelegramID != 0
}
