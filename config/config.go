// Package config provides environment-based configuration for authflow.
//
// Configuration is loaded from environment variables using Viper, with sensible
// defaults for development. This package handles the identity backend selection,
// database settings for the embedded backend, logging levels, server ports, and
// OAuth provider configurations.
//
// # Environment Variables
//
//   - BACKEND: Identity backend kind (local, rest). Default: local
//   - API_KEY: Identity Toolkit API key (rest backend only)
//   - ENDPOINT: Identity Toolkit endpoint override, e.g. an emulator address
//   - DB_TYPE: Database type for the local backend (sqlite, postgres, mysql). Default: sqlite
//   - DSN: Database connection string. Default: authflow.db
//   - TOKEN_SECRET: HMAC secret for tokens minted by the local backend
//   - REDIS_ADDR: Redis address for the distributed lockout store (optional)
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - PORT: HTTP server port. Default: 8080
//
// # OAuth Provider Configuration
//
// Social providers are configured via the PROVIDERS map:
//
//	PROVIDERS_GOOGLE_CLIENT_ID=your-client-id
//	PROVIDERS_APPLE_CLIENT_ID=com.example.app
//	PROVIDERS_FACEBOOK_CLIENT_ID=app-id
//	PROVIDERS_FACEBOOK_CLIENT_SECRET=app-secret
//
// # Example Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Starting on port %d with %s backend\n", cfg.Port, cfg.Backend)
package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Backend     string                   `mapstructure:"BACKEND"` // local, rest
	APIKey      string                   `mapstructure:"API_KEY"`
	Endpoint    string                   `mapstructure:"ENDPOINT"`
	DBType      string                   `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN         string                   `mapstructure:"DSN"`
	TokenSecret string                   `mapstructure:"TOKEN_SECRET"`
	RedisAddr   string                   `mapstructure:"REDIS_ADDR"`
	LogLevel    string                   `mapstructure:"LOG_LEVEL"`
	Port        int                      `mapstructure:"PORT"`
	Providers   map[string]OAuthProvider `mapstructure:"PROVIDERS"`
}

type OAuthProvider struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("BACKEND", "local")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "authflow.db")
	viper.SetDefault("TOKEN_SECRET", "dev-secret-change-me")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
