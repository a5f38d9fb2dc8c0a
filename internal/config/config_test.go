package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
service:
  env: staging
storage:
  driver: memory
payment:
  provider: fake
  mode: hosted
  provider_timeout: 3s
delivery:
  options:
    - id: express
      type: delivery
      text: Same day
      price: 500000
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadLayersFileAndEnvironment(t *testing.T) {
	t.Setenv("WINESTORE_AUTH_JWT_SECRET", "jwt")
	t.Setenv("WINESTORE_PAYMENT_WEBHOOK_SECRET", "hook")
	t.Setenv("WINESTORE_PAYMENT_CURRENCY", "USD")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "winestore", cfg.Service.Name)
	assert.Equal(t, "staging", cfg.Service.Env)
	assert.Equal(t, ModeHosted, cfg.Payment.Mode)
	assert.Equal(t, "USD", cfg.Payment.Currency)
	assert.Equal(t, 3*time.Second, cfg.Payment.ProviderTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Payment.ReverifyInterval)
	assert.Equal(t, "jwt", cfg.Auth.JWTSecret)

	fee, ok := cfg.Delivery.DeliveryFee("express")
	require.True(t, ok)
	assert.Equal(t, int64(500000), fee)
	_, ok = cfg.Delivery.DeliveryFee("standard")
	assert.False(t, ok)
}

func TestLoadDefaultsNeedSecrets(t *testing.T) {
	t.Setenv("WINESTORE_AUTH_JWT_SECRET", "")
	t.Setenv("WINESTORE_PAYMENT_WEBHOOK_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret is required")
	assert.Contains(t, err.Error(), "payment.webhook_secret is required")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		HTTP:    HTTPConfig{ShutdownTimeout: time.Second},
		Storage: StorageConfig{Driver: StorageMemory},
		Auth:    AuthConfig{JWTSecret: "jwt"},
		Payment: PaymentConfig{
			Provider:             ProviderFake,
			Mode:                 ModeCard,
			ProviderTimeout:      time.Second,
			ReverifyInterval:     time.Minute,
			ReverifyPollInterval: time.Second,
			SessionTTL:           time.Minute,
			WebhookSecret:        "hook",
		},
		Delivery: DeliveryConfig{Options: []DeliveryOption{{ID: "pickup"}}},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, func() error { c := validConfig(); return c.Validate() }())

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"storage":       {func(c *Config) { c.Storage.Driver = "sqlite" }, `storage.driver "sqlite"`},
		"provider":      {func(c *Config) { c.Payment.Provider = "paypal" }, `payment.provider "paypal"`},
		"mode":          {func(c *Config) { c.Payment.Mode = "ussd" }, `payment.mode "ussd"`},
		"flutterwave":   {func(c *Config) { c.Payment.Provider = ProviderFlutterwave }, "flutterwave.secret_key is required"},
		"intervals":     {func(c *Config) { c.Payment.ReverifyInterval = 0 }, "must be positive"},
		"session":       {func(c *Config) { c.Payment.SessionTTL = 0 }, "payment.session_ttl"},
		"shutdown":      {func(c *Config) { c.HTTP.ShutdownTimeout = 0 }, "http.shutdown_timeout"},
		"negative fee":  {func(c *Config) { c.Delivery.Options[0].Price = -1 }, `delivery option "pickup" is invalid`},
		"duplicate fee": {func(c *Config) { c.Delivery.Options = append(c.Delivery.Options, DeliveryOption{ID: "pickup"}) }, "duplicated"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c := validConfig()
			tc.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
