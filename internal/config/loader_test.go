package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db", "pestid.db")
	path := writeConfig(t, `
jwt:
  secret_key: secret
admin:
  password: pw
database:
  path: `+dbPath+`
`)

	cfg, err := loadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 18080, cfg.Server.Port)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, 15*time.Second, cfg.Providers.Ollama.GetRouteTimeout())
	assert.Equal(t, 10*time.Second, cfg.Providers.Ollama.GetServiceTimeout())
	assert.Equal(t, 20, cfg.Providers.Gemini.MaxDetections)
	assert.Equal(t, 100, cfg.History.Capacity)
	assert.Equal(t, "https://api.gbif.org/v1", cfg.GBIF.BaseURL)
	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestLoadConfigReadsLegacyEnvironmentVariables(t *testing.T) {
	t.Setenv("GOOGLE_GENERATIVE_AI_API_KEY", "gemini-key")
	t.Setenv("OPENROUTER_API_KEY", "router-key")
	t.Setenv("NEXT_PUBLIC_APP_URL", "https://pest.example.org")

	path := writeConfig(t, `
jwt:
  secret_key: secret
admin:
  password: pw
database:
  path: `+filepath.Join(t.TempDir(), "pestid.db")+`
providers:
  gemini:
    api_key: from-file
`)

	cfg, err := loadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-key", cfg.Providers.Gemini.APIKey)
	assert.Equal(t, "router-key", cfg.Providers.OpenRouter.APIKey)
	assert.Equal(t, "https://pest.example.org", cfg.Frontend.URL)
}

func TestLoadConfigRejectsMissingSecret(t *testing.T) {
	path := writeConfig(t, `
admin:
  password: pw
`)

	_, err := loadConfigFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT密钥不能为空")
}
