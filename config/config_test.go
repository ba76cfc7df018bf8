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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBackendURL, cfg.Backend.BaseURL)
	assert.Equal(t, ":3000", cfg.HTTPAddress())
	assert.Equal(t, 13*time.Second, cfg.PollInterval())
	assert.Equal(t, 2*time.Second, cfg.FinalizeDwell())
	assert.Equal(t, PaymentModeRedirect, cfg.Payment.Mode)
	assert.False(t, cfg.OperatorEnabled())
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
http:
  port: "8081"
backend:
  baseUrl: https://backend.example.com
  timeoutSeconds: 5
session:
  pollIntervalSeconds: 7
ledger:
  driver: none
`)
	t.Setenv("BACKEND_API_URL", "https://override.example.com")
	t.Setenv("SESSION_FINALIZE_DWELL_MILLIS", "500")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddress())
	assert.Equal(t, "https://override.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout())
	assert.Equal(t, 7*time.Second, cfg.PollInterval())
	assert.Equal(t, 500*time.Millisecond, cfg.FinalizeDwell())
	assert.Equal(t, LedgerDriverNone, cfg.Ledger.Driver)
}

func TestLoadRejectsUnparsableEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SESSION_POLL_INTERVAL_SECONDS", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_POLL_INTERVAL_SECONDS")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = "ftp://nope"
	cfg.Payment.Mode = PaymentModeElements
	cfg.Session.PollIntervalSeconds = 0
	cfg.Ledger.Driver = LedgerDriverPostgres
	cfg.Operator.PasswordHash = "$2a$10$abc"
	cfg.Operator.JWTSecret = "short"

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "backend.baseUrl")
	assert.Contains(t, msg, "stripe.secretKey")
	assert.Contains(t, msg, "stripe.publicKey")
	assert.Contains(t, msg, "session.pollIntervalSeconds")
	assert.Contains(t, msg, "ledger.dsn")
	assert.Contains(t, msg, "operator.jwtSecret")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := Default()
	cfg.Payment.Mode = "terminal"
	assert.ErrorContains(t, cfg.Validate(), "payment.mode")
}

func TestHTTPAddressKeepsColon(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Port = ":9000"
	assert.Equal(t, ":9000", cfg.HTTPAddress())
}
