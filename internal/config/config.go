package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL      string
	TokenFile   string
	HTTPTimeout time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (useful for local dev)
	_ = godotenv.Load()

	apiURL := os.Getenv("MARKET_API_URL")
	if apiURL == "" {
		return nil, fmt.Errorf("MARKET_API_URL must be set")
	}

	tokenFile := os.Getenv("MARKET_TOKEN_FILE")
	if tokenFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("MARKET_TOKEN_FILE not set and no user config dir: %w", err)
		}
		tokenFile = filepath.Join(dir, "storefront", "token")
	}

	timeout := 10 * time.Second
	if raw := os.Getenv("MARKET_HTTP_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid MARKET_HTTP_TIMEOUT %q: %w", raw, err)
		}
		timeout = parsed
	}

	return &Config{
		APIURL:      apiURL,
		TokenFile:   tokenFile,
		HTTPTimeout: timeout,
	}, nil
}
