package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/matrixise/wallet-valuator/internal/network"
	"github.com/matrixise/wallet-valuator/internal/scheduler"
)

// Config represents the application configuration
type Config struct {
	LogLevel       string          `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Interval       string          `mapstructure:"interval" validate:"omitempty,schedule"`
	Timezone       string          `mapstructure:"timezone" validate:"omitempty,timezone"`
	RunImmediately bool            `mapstructure:"run_immediately"`
	HTTPPort       int             `mapstructure:"http_port" validate:"omitempty,min=1024,max=65535"`
	HoldingsFile   string          `mapstructure:"holdings_file"`
	Locale         string          `mapstructure:"locale" validate:"omitempty,locale"`
	Networks       []NetworkConfig `mapstructure:"networks" validate:"omitempty,dive"`
	PriceFeed      PriceFeedConfig `mapstructure:"price_feed"`
}

// NetworkConfig assigns a display priority to a network. Names are matched
// case-sensitively against balance networks.
type NetworkConfig struct {
	Name     string `mapstructure:"name" validate:"required,min=1,max=100"`
	Priority int    `mapstructure:"priority" validate:"ne=-99"`
}

// PriceFeedConfig configures the simulated price feed and its resolver
type PriceFeedConfig struct {
	MinDelay    string        `mapstructure:"min_delay" validate:"omitempty,duration"`
	MaxDelay    string        `mapstructure:"max_delay" validate:"omitempty,duration"`
	CacheTTL    string        `mapstructure:"cache_ttl" validate:"omitempty,duration"`
	RetryDelay  string        `mapstructure:"retry_delay" validate:"omitempty,duration"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	FailureRate float64       `mapstructure:"failure_rate" validate:"min=0,max=1"`
	RateLimit   float64       `mapstructure:"rate_limit" validate:"min=0"`
	Burst       int           `mapstructure:"burst" validate:"min=0,max=100"`
	Replicas    int           `mapstructure:"replicas" validate:"min=0,max=16"`
	Cooldown    string        `mapstructure:"cooldown" validate:"omitempty,duration"`
	Prices      []PriceConfig `mapstructure:"prices" validate:"omitempty,dive"`
}

// PriceConfig is one entry of the feed's price table
type PriceConfig struct {
	Symbol string `mapstructure:"symbol" validate:"required,min=1,max=32"`
	Price  string `mapstructure:"price" validate:"required,decimal"`
}

// Normalize trims names, rejects duplicates and checks cross-field
// constraints that struct tags cannot express.
func (c *Config) Normalize() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))

	seen := make(map[string]bool, len(c.Networks))
	for i := range c.Networks {
		name := strings.TrimSpace(c.Networks[i].Name)
		if seen[name] {
			return fmt.Errorf("duplicate network %q", name)
		}
		seen[name] = true
		c.Networks[i].Name = name
	}

	symbols := make(map[string]bool, len(c.PriceFeed.Prices))
	for i := range c.PriceFeed.Prices {
		symbol := strings.TrimSpace(c.PriceFeed.Prices[i].Symbol)
		if symbols[symbol] {
			return fmt.Errorf("duplicate price for symbol %q", symbol)
		}
		symbols[symbol] = true
		c.PriceFeed.Prices[i].Symbol = symbol
	}

	minDelay, maxDelay := c.PriceFeed.Delays()
	if maxDelay < minDelay {
		return errors.New("price_feed.max_delay must not be lower than price_feed.min_delay")
	}
	return nil
}

// PriorityTable builds the network ranking. Without configured networks the
// built-in table is used.
func (c *Config) PriorityTable() *network.Table {
	if len(c.Networks) == 0 {
		return network.Default()
	}
	priorities := make(map[string]int, len(c.Networks))
	for _, n := range c.Networks {
		priorities[n.Name] = n.Priority
	}
	return network.NewTable(priorities)
}

// Location returns the scheduler timezone, UTC when unset
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LocaleTag returns the collation locale, English when unset
func (c *Config) LocaleTag() language.Tag {
	if c.Locale == "" {
		return language.English
	}
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// Delays returns the simulated latency range
func (c PriceFeedConfig) Delays() (time.Duration, time.Duration) {
	return parseDuration(c.MinDelay), parseDuration(c.MaxDelay)
}

// TTL returns the resolver cache TTL
func (c PriceFeedConfig) TTL() time.Duration {
	return parseDuration(c.CacheTTL)
}

// Backoff returns the initial retry interval
func (c PriceFeedConfig) Backoff() time.Duration {
	return parseDuration(c.RetryDelay)
}

// CooldownPeriod returns how long a failing replica is skipped
func (c PriceFeedConfig) CooldownPeriod() time.Duration {
	return parseDuration(c.Cooldown)
}

// Limiter returns the feed lookup limiter, or nil when lookups are unlimited
func (c PriceFeedConfig) Limiter() *rate.Limiter {
	if c.RateLimit <= 0 {
		return nil
	}
	burst := c.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RateLimit), burst)
}

// PriceTable returns the configured prices, or nil when none are set so the
// feed falls back to its defaults.
func (c PriceFeedConfig) PriceTable() map[string]decimal.Decimal {
	if len(c.Prices) == 0 {
		return nil
	}
	prices := make(map[string]decimal.Decimal, len(c.Prices))
	for _, p := range c.Prices {
		// Already checked by the decimal validator
		d, err := decimal.NewFromString(p.Price)
		if err != nil {
			continue
		}
		prices[p.Symbol] = d
	}
	return prices
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// durationValidator validates duration strings
func durationValidator(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// scheduleValidator accepts clock-aligned durations and cron expressions
func scheduleValidator(fl validator.FieldLevel) bool {
	return scheduler.ValidateScheduleInterval(fl.Field().String()) == nil
}

// timezoneValidator validates IANA timezone names
func timezoneValidator(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	_, err := time.LoadLocation(fl.Field().String())
	return err == nil
}

// decimalValidator accepts strictly positive decimal numbers
func decimalValidator(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

// localeValidator accepts BCP 47 language tags
func localeValidator(fl validator.FieldLevel) bool {
	_, err := language.Parse(fl.Field().String())
	return err == nil
}

// NewValidator creates a validator with custom validation rules
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("duration", durationValidator)
	validate.RegisterValidation("schedule", scheduleValidator)
	validate.RegisterValidation("timezone", timezoneValidator)
	validate.RegisterValidation("decimal", decimalValidator)
	validate.RegisterValidation("locale", localeValidator)
	return validate
}
