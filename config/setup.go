package config

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Endpoints used to check credentials during setup.
var (
	geminiModelsURL = "https://generativelanguage.googleapis.com/v1beta/models"
	telegramAPIURL  = "https://api.telegram.org"
)

// Dir returns the application's config directory, creating it if needed.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	dir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// IsInteractiveTerminal returns true if both stdin and stdout are TTYs.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunSetupWizard asks for the required keys, generates the secret key and
// writes config.env. Returns true if the server should continue starting.
func RunSetupWizard() bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	fmt.Println()
	fmt.Println(titleStyle.Render("Vintifi - first-time setup"))
	fmt.Println()

	var geminiKey, firecrawlKey, botToken, adminID string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gemini API Key").
				Description("Get yours at https://aistudio.google.com/apikey").
				Value(&geminiKey).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("API key is required")
					}
					return ValidateGeminiKey(s)
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Firecrawl API Key (optional)").
				Description("Used for price research and listing import. Leave empty to skip.").
				Value(&firecrawlKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token (optional)").
				Description("For admin notifications. Leave empty to skip.").
				Value(&botToken).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					return ValidateTelegramToken(s)
				}),
			huh.NewInput().
				Title("Your Telegram User ID").
				Description("Only needed with a bot token. Message @userinfobot to get it.").
				Value(&adminID).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					if _, err := strconv.ParseInt(s, 10, 64); err != nil {
						return errors.New("must be a number")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeBase16())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	values := map[string]string{
		"GEMINI_API_KEY":     geminiKey,
		"VINTIFI_SECRET_KEY": GenerateSecretKey(),
	}
	if firecrawlKey != "" {
		values["FIRECRAWL_API_KEY"] = firecrawlKey
	}
	if botToken != "" && adminID != "" {
		values["TELEGRAM_BOT_TOKEN"] = botToken
		values["ADMIN_TELEGRAM_ID"] = adminID
	}

	dir, err := Dir()
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		WaitOnWindows()
		return false
	}
	configPath, err := WriteEnvFile(dir, values)
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		WaitOnWindows()
		return false
	}
	for k, v := range values {
		os.Setenv(k, v)
	}

	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	pathStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	fmt.Println("Starting server...")
	fmt.Println()
	return true
}

// GenerateSecretKey returns a random passphrase for VINTIFI_SECRET_KEY.
func GenerateSecretKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("vintifi-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

func checkClient() *resty.Client {
	return resty.New().SetTimeout(10 * time.Second)
}

// ValidateGeminiKey lists models with key to check it is accepted.
func ValidateGeminiKey(key string) error {
	var result struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	resp, err := checkClient().R().
		SetContext(context.Background()).
		SetQueryParam("key", key).
		SetError(&result).
		Get(geminiModelsURL)
	if err != nil {
		return errors.New("connection failed - check your internet")
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		if result.Error.Message != "" {
			return errors.New(result.Error.Message)
		}
		return fmt.Errorf("API key rejected (HTTP %d)", resp.StatusCode())
	}
	return fmt.Errorf("unexpected response (HTTP %d)", resp.StatusCode())
}

// ValidateTelegramToken calls getMe with token.
func ValidateTelegramToken(token string) error {
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description,omitempty"`
	}
	_, err := checkClient().R().
		SetResult(&result).
		SetError(&result).
		Get(fmt.Sprintf("%s/bot%s/getMe", telegramAPIURL, token))
	if err != nil {
		return errors.New("connection failed - check your internet")
	}
	if !result.OK {
		if result.Description != "" {
			return errors.New(result.Description)
		}
		return errors.New("token rejected by Telegram")
	}
	return nil
}

// envOrder is the order keys are written in.
var envOrder = []string{
	"GEMINI_API_KEY", "VINTIFI_SECRET_KEY", "FIRECRAWL_API_KEY",
	"TELEGRAM_BOT_TOKEN", "ADMIN_TELEGRAM_ID",
}

// WriteEnvFile writes values to dir/config.env with 0600 permissions since
// it holds secrets. Returns the path written.
func WriteEnvFile(dir string, values map[string]string) (string, error) {
	configPath := filepath.Join(dir, EnvFileName)
	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	for _, key := range envOrder {
		if val, ok := values[key]; ok {
			if _, err := fmt.Fprintf(f, "%s=%q\n", key, val); err != nil {
				return "", fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
	}
	return configPath, nil
}

// WaitOnWindows pauses so users can read errors before the console closes.
func WaitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// FatalWithWait logs a fatal error and waits on Windows before exiting.
func FatalWithWait(format string, args ...any) {
	log.Error().Msgf(format, args...)
	WaitOnWindows()
	os.Exit(1)
}
