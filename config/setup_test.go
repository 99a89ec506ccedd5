package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEnvFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteEnvFile(dir, map[string]string{
		"GEMINI_API_KEY":     `key "with" quotes`,
		"VINTIFI_SECRET_KEY": "s3cret",
		"IGNORED":            "x",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, EnvFileName), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"GEMINI_API_KEY":     `key "with" quotes`,
		"VINTIFI_SECRET_KEY": "s3cret",
	}, values)
}

func TestGenerateSecretKey(t *testing.T) {
	a, b := GenerateSecretKey(), GenerateSecretKey()
	assert.Len(t, a, 44)
	assert.NotEqual(t, a, b)
}

func TestValidateGeminiKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("key") == "good" {
			w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	old := geminiModelsURL
	geminiModelsURL = srv.URL
	defer func() { geminiModelsURL = old }()

	assert.NoError(t, ValidateGeminiKey("good"))
	assert.EqualError(t, ValidateGeminiKey("bad"), "API key not valid")
}

func TestValidateTelegramToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/botgood/getMe" {
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	old := telegramAPIURL
	telegramAPIURL = srv.URL
	defer func() { telegramAPIURL = old }()

	assert.NoError(t, ValidateTelegramToken("good"))
	assert.EqualError(t, ValidateTelegramToken("bad"), "Unauthorized")
}
