// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is everything the service needs to start.
type Config struct {
	Port        string
	Environment string
	DatabaseURL string

	StripeSecretKey     string
	StripeWebhookSecret string

	WalletBaseURL       string
	WalletClientID      string
	WalletClientSecret  string
	WalletWebhookSecret string
}

// Load reads configuration from the environment. A .env file is honored
// when present; real environment variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		WalletBaseURL:       getEnv("WALLET_BASE_URL", "https://api.sandbox.paypal.com"),
		WalletClientID:      os.Getenv("WALLET_CLIENT_ID"),
		WalletClientSecret:  os.Getenv("WALLET_CLIENT_SECRET"),
		WalletWebhookSecret: os.Getenv("WALLET_WEBHOOK_SECRET"),
	}

	var missing []string
	for name, value := range map[string]string{
		"DATABASE_URL":          cfg.DatabaseURL,
		"STRIPE_SECRET_KEY":     cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": cfg.StripeWebhookSecret,
		"WALLET_CLIENT_ID":      cfg.WalletClientID,
		"WALLET_CLIENT_SECRET":  cfg.WalletClientSecret,
		"WALLET_WEBHOOK_SECRET": cfg.WalletWebhookSecret,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production logging.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
