package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad(t *testing.T) {
	t.Run("loads valid TOML config", func(t *testing.T) {
		configPath := writeConfig(t, `
log_level = "debug"
holdings_file = "/var/lib/wallet/holdings.yaml"
interval = "5m"
locale = "fr"

[[networks]]
name = "Osmosis"
priority = 100

[[networks]]
name = "Ethereum"
priority = 50

[price_feed]
min_delay = "10ms"
max_delay = "20ms"
max_retries = 5

[[price_feed.prices]]
symbol = "ETH"
price = "3850"
`)

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "/var/lib/wallet/holdings.yaml", cfg.HoldingsFile)
		assert.Equal(t, "5m", cfg.Interval)
		assert.Equal(t, "fr", cfg.Locale)
		require.Len(t, cfg.Networks, 2)
		assert.Equal(t, "Osmosis", cfg.Networks[0].Name, "network case is preserved")
		assert.Equal(t, 5, cfg.PriceFeed.MaxRetries)
		require.Len(t, cfg.PriceFeed.Prices, 1)
		assert.Equal(t, "ETH", cfg.PriceFeed.Prices[0].Symbol)
	})

	t.Run("empty config file uses defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, ""))
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "", cfg.Interval)
		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.True(t, cfg.RunImmediately)
		assert.Equal(t, "UTC", cfg.Timezone)
		assert.Equal(t, "holdings.yaml", cfg.HoldingsFile)
		assert.Equal(t, "en", cfg.Locale)
		assert.Empty(t, cfg.Networks)

		minDelay, maxDelay := cfg.PriceFeed.Delays()
		assert.Equal(t, 800*time.Millisecond, minDelay)
		assert.Equal(t, 2*time.Second, maxDelay)
		assert.Equal(t, 5*time.Minute, cfg.PriceFeed.TTL())
		assert.Equal(t, 3, cfg.PriceFeed.MaxRetries)
		assert.Nil(t, cfg.PriceFeed.Limiter(), "lookups are unlimited by default")
		assert.Equal(t, 1, cfg.PriceFeed.Replicas)
		assert.Equal(t, time.Minute, cfg.PriceFeed.CooldownPeriod())
	})

	t.Run("environment variables override config file", func(t *testing.T) {
		configPath := writeConfig(t, `log_level = "info"`)
		t.Setenv("WALLET_VALUATOR_LOG_LEVEL", "debug")
		t.Setenv("WALLET_VALUATOR_PRICE_FEED_CACHE_TTL", "30s")

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 30*time.Second, cfg.PriceFeed.TTL())
	})

	t.Run("rate limit from env", func(t *testing.T) {
		t.Setenv("WALLET_VALUATOR_PRICE_FEED_RATE_LIMIT", "2.5")
		t.Setenv("WALLET_VALUATOR_PRICE_FEED_BURST", "3")

		cfg, err := Load(writeConfig(t, ""))
		require.NoError(t, err)

		assert.Equal(t, 2.5, cfg.PriceFeed.RateLimit)
		assert.Equal(t, 3, cfg.PriceFeed.Burst)
		assert.NotNil(t, cfg.PriceFeed.Limiter())
	})

	t.Run("comma-separated networks from env", func(t *testing.T) {
		configPath := writeConfig(t, `
[[networks]]
name = "Neo"
priority = 1
`)
		t.Setenv("WALLET_VALUATOR_NETWORKS", "Osmosis=100, Solana = 40")

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, []NetworkConfig{
			{Name: "Osmosis", Priority: 100},
			{Name: "Solana", Priority: 40},
		}, cfg.Networks)
	})

	t.Run("malformed networks env fails", func(t *testing.T) {
		t.Setenv("WALLET_VALUATOR_NETWORKS", "Osmosis")

		_, err := Load(writeConfig(t, ""))
		assert.Error(t, err)
	})

	t.Run("validation fails for invalid config", func(t *testing.T) {
		configPath := writeConfig(t, `
interval = "7m"
`)
		_, err := Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})

	t.Run("normalization errors are reported", func(t *testing.T) {
		configPath := writeConfig(t, `
[price_feed]
min_delay = "3s"
max_delay = "1s"
`)
		_, err := Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "normalization")
	})

	t.Run("unreadable config file", func(t *testing.T) {
		configPath := writeConfig(t, "this is = = not toml")
		_, err := Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config")
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestParseNetworks(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []NetworkConfig
		wantErr bool
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "Neo=20", want: []NetworkConfig{{Name: "Neo", Priority: 20}}},
		{name: "trailing comma", raw: "Neo=20,", want: []NetworkConfig{{Name: "Neo", Priority: 20}}},
		{name: "negative priority", raw: "Neo=-5", want: []NetworkConfig{{Name: "Neo", Priority: -5}}},
		{name: "missing priority", raw: "Neo", wantErr: true},
		{name: "non-numeric priority", raw: "Neo=high", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNetworks(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
