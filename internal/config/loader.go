package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads
const EnvPrefix = "WALLET_VALUATOR"

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("interval", "") // one-shot
	v.SetDefault("http_port", 8080)
	v.SetDefault("run_immediately", true)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("holdings_file", "holdings.yaml")
	v.SetDefault("locale", "en")
	v.SetDefault("price_feed.min_delay", "800ms")
	v.SetDefault("price_feed.max_delay", "2s")
	v.SetDefault("price_feed.cache_ttl", "5m")
	v.SetDefault("price_feed.retry_delay", "200ms")
	v.SetDefault("price_feed.max_retries", 3)
	v.SetDefault("price_feed.failure_rate", 0.0)
	v.SetDefault("price_feed.rate_limit", 0.0) // unlimited
	v.SetDefault("price_feed.burst", 1)
	v.SetDefault("price_feed.replicas", 1)
	v.SetDefault("price_feed.cooldown", "1m")

	// 2. Configure config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	// WALLET_VALUATOR_PRICE_FEED_CACHE_TTL -> price_feed.cache_ttl
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("networks")

	// 4. Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 5. Unmarshal into struct
	var cfg Config
	hooks := mapstructure.ComposeDecodeHookFunc(
		networksFromString,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Normalize
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("config normalization failed: %w", err)
	}

	// 7. Validate with validator
	validate := NewValidator()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// networksFromString lets WALLET_VALUATOR_NETWORKS="Osmosis=100,Ethereum=50"
// stand in for the [[networks]] tables of the config file.
func networksFromString(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]NetworkConfig{}) {
		return data, nil
	}
	return parseNetworks(data.(string))
}

// parseNetworks reads a comma-separated list of name=priority pairs
func parseNetworks(raw string) ([]NetworkConfig, error) {
	var networks []NetworkConfig
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected name=priority, got %q", pair)
		}
		priority, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("priority of %q: %w", name, err)
		}
		networks = append(networks, NetworkConfig{Name: strings.TrimSpace(name), Priority: priority})
	}
	return networks, nil
}
