package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/vintifi/config"
	"github.com/raine/vintifi/internal/api"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/billing"
	"github.com/raine/vintifi/internal/blob"
	"github.com/raine/vintifi/internal/firecrawl"
	"github.com/raine/vintifi/internal/importer"
	"github.com/raine/vintifi/internal/llm"
	"github.com/raine/vintifi/internal/maintenance"
	"github.com/raine/vintifi/internal/metrics"
	"github.com/raine/vintifi/internal/notify"
	"github.com/raine/vintifi/internal/optimise"
	"github.com/raine/vintifi/internal/pricing"
	"github.com/raine/vintifi/internal/storage"
	"github.com/raine/vintifi/internal/vintography"
)

const logFileName = "vintifi.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()
	cfg := config.Load(billing.PriceKeys...)

	if missing := cfg.Missing(); len(missing) > 0 {
		if config.IsInteractiveTerminal() {
			if !config.RunSetupWizard() {
				config.WaitOnWindows()
				os.Exit(1)
			}
			cfg = config.Load(billing.PriceKeys...)
		} else {
			config.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	// JOURNAL_STREAM is set by systemd when running as a service; journald
	// keeps the logs there.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			config.FatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	encryptionKey, err := storage.DeriveKey(cfg.SecretKey)
	if err != nil {
		config.FatalWithWait("failed to derive encryption key: %v", err)
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		config.FatalWithWait("failed to initialize store: %v", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("store initialized")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gemini, err := llm.NewGemini(ctx, llm.GeminiOpts{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL})
	if err != nil {
		config.FatalWithWait("failed to initialize gemini: %v", err)
	}
	log.Info().Msg("gemini client initialized")

	blobs, err := blob.NewStore(cfg.BlobDir, cfg.PublicBaseURL+"/blobs")
	if err != nil {
		config.FatalWithWait("failed to initialize blob store: %v", err)
	}
	fetcher := blob.NewFetcher(blobs)
	m := metrics.New()

	var notifier notify.Notifier = notify.Noop{}
	if cfg.NotificationsEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.AdminTelegramID)
		if err != nil {
			log.Warn().Err(err).Msg("telegram notifications disabled")
		} else {
			notifier = tg
			log.Info().Int64("adminId", cfg.AdminTelegramID).Msg("telegram notifications enabled")
		}
	}

	authenticator, err := buildAuth(cfg)
	if err != nil {
		config.FatalWithWait("invalid auth config: %v", err)
	}

	scraper := firecrawl.NewClient("", cfg.FirecrawlAPIKey)
	if !scraper.Configured() {
		log.Warn().Msg("FIRECRAWL_API_KEY not set, price research uses Perplexity only and imports fetch pages directly")
	}
	researcher := pricing.NewPerplexity("", cfg.PerplexityAPIKey)

	deps := api.Deps{
		Store: store,
		Auth:  authenticator,
		Images: vintography.NewService(vintography.ServiceOpts{
			Store:    store,
			Editor:   gemini,
			Fetcher:  fetcher,
			Blobs:    blobs,
			Metrics:  m,
			Notifier: notifier,
		}),
		Optimiser: optimise.NewService(store, llm.NewCachedWriter(gemini, store), fetcher, m),
		Pricing: pricing.NewService(pricing.ServiceOpts{
			Store:      store,
			Analyst:    gemini,
			Scraper:    scraper,
			Researcher: researcher,
			Metrics:    m,
		}),
		Importer: importer.NewService(importer.ServiceOpts{
			API:       importer.NewVintedClient(""),
			Pages:     importer.NewPageReader(scraper),
			Extractor: gemini,
			Metrics:   m,
		}),
		Blobs:      blobs,
		Metrics:    m,
		Notifier:   notifier,
		CORSOrigin: cfg.CORSOrigin,
	}
	if cfg.StripeSecretKey != "" {
		deps.Billing = billing.NewService(billing.ServiceOpts{
			Stripe:        billing.NewStripe(cfg.StripeBaseURL, cfg.StripeSecretKey),
			Store:         store,
			Prices:        cfg.StripePrices,
			WebhookSecret: cfg.StripeWebhookSecret,
			Notifier:      notifier,
		})
		log.Info().Int("prices", len(cfg.StripePrices)).Msg("stripe billing enabled")
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, checkout disabled")
	}

	srv := api.New(deps)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("stopping http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		srv.Shutdown()
		return err
	})

	g.Go(func() error {
		return maintenance.NewService(store).WithSessions(srv).Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// buildAuth chains the dev tokens and the auth provider, in that order.
func buildAuth(cfg config.Config) (auth.Authenticator, error) {
	var chain auth.Chain
	if cfg.StaticTokens != "" {
		static, err := auth.ParseStatic(cfg.StaticTokens)
		if err != nil {
			return nil, err
		}
		log.Warn().Int("tokens", len(static)).Msg("static dev tokens enabled")
		chain = append(chain, static)
	}
	if cfg.AuthURL != "" {
		chain = append(chain, auth.NewProviderClient(cfg.AuthURL, cfg.AuthAPIKey))
	}
	if len(chain) == 0 {
		log.Warn().Msg("no auth configured, every request will be rejected")
	}
	return chain, nil
}
