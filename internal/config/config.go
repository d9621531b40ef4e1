package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Fees     FeesConfig     `mapstructure:"fees"`
}

type ServerConfig struct {
	Port      string `mapstructure:"port"`
	AuthToken string `mapstructure:"auth_token"`
}

// DatabaseConfig holds Postgres settings. An empty URL selects the
// in-memory store (development mode).
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// WebhookConfig holds the shared signing secret and the replay tolerance.
// An empty secret is allowed here: the verifier fails closed on it.
type WebhookConfig struct {
	Secret           string `mapstructure:"secret"`
	ToleranceSeconds int    `mapstructure:"tolerance_seconds"`
}

// FeesConfig selects and parameterizes the platform fee policy. Tiers are
// only read for the tiered policy and only from the config file.
type FeesConfig struct {
	Policy           string       `mapstructure:"policy"`
	PercentRate      string       `mapstructure:"percent_rate"`
	FlatAmount       string       `mapstructure:"flat_amount"`
	CurrencyExponent int          `mapstructure:"currency_exponent"`
	Tiers            []TierConfig `mapstructure:"tiers"`
}

type TierConfig struct {
	UpTo string `mapstructure:"up_to"`
	Rate string `mapstructure:"rate"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// TEAMPAY_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.auth_token", "")
	v.SetDefault("database.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.tolerance_seconds", 300)
	v.SetDefault("fees.policy", "percent")
	v.SetDefault("fees.percent_rate", "0.05")
	v.SetDefault("fees.flat_amount", "5.00")
	v.SetDefault("fees.currency_exponent", 2)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("TEAMPAY_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "teampay"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("TEAMPAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(c.Server.AuthToken) == "" {
		return Config{}, errors.New("TEAMPAY_SERVER_AUTH_TOKEN is required")
	}
	switch c.Fees.Policy {
	case "percent", "flat", "tiered":
	default:
		return Config{}, fmt.Errorf("unknown fee policy %q", c.Fees.Policy)
	}
	return c, nil
}
