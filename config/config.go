// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// MaxDashboardLimit is the most rows a dashboard bucket may hold
const MaxDashboardLimit = 5

// Config holds every setting of the service
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	Database DatabaseConfig
	Auth     AuthConfig
	TMDB     TMDBConfig
	AniList  AniListConfig
	MAL      MALConfig
	Provider ProviderConfig
	Log      LogConfig

	EnrichConcurrency int `envconfig:"ENRICH_CONCURRENCY" default:"5"`
	DashboardLimit    int `envconfig:"DASHBOARD_LIMIT" default:"5"`
}

// DatabaseConfig selects the storage driver
type DatabaseConfig struct {
	Driver string `envconfig:"DATABASE_DRIVER" default:"sqlite3"`
	URL    string `envconfig:"DATABASE_URL" default:"letswatch.db"`
}

// AuthConfig holds the bearer token secret
type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

// TMDBConfig configures the movie and TV catalog
type TMDBConfig struct {
	APIKey  string `envconfig:"TMDB_API_KEY" required:"true"`
	BaseURL string `envconfig:"TMDB_BASE_URL" default:"https://api.themoviedb.org/3"`
}

// AniListConfig configures the anime catalog
type AniListConfig struct {
	URL string `envconfig:"ANILIST_URL" default:"https://graphql.anilist.co"`
}

// MALConfig configures MyAnimeList. The endpoints are disabled without a token.
type MALConfig struct {
	BaseURL     string `envconfig:"MAL_BASE_URL" default:"https://api.myanimelist.net/v2"`
	AccessToken string `envconfig:"MAL_ACCESS_TOKEN"`
}

// ProviderConfig applies to every outbound catalog call
type ProviderConfig struct {
	Timeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"5s"`
	Retries uint64        `envconfig:"PROVIDER_RETRIES" default:"1"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
	File   string `envconfig:"LOG_FILE"`
}

// Load reads an optional .env file and decodes the environment
func Load() (*Config, error) {
	// A missing .env file is normal outside development
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.TMDB.APIKey == "" {
		return fmt.Errorf("TMDB_API_KEY must not be empty")
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.EnrichConcurrency < 1 {
		return fmt.Errorf("ENRICH_CONCURRENCY must be at least 1")
	}
	if c.DashboardLimit < 1 || c.DashboardLimit > MaxDashboardLimit {
		return fmt.Errorf("DASHBOARD_LIMIT must be between 1 and %d", MaxDashboardLimit)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// LoadStorage reads only the database and log settings, for commands that
// never talk to a catalog or verify tokens.
func LoadStorage() (*DatabaseConfig, *LogConfig, error) {
	_ = godotenv.Load()

	var db DatabaseConfig
	if err := envconfig.Process("", &db); err != nil {
		return nil, nil, fmt.Errorf("failed to load database config: %w", err)
	}
	var log LogConfig
	if err := envconfig.Process("", &log); err != nil {
		return nil, nil, fmt.Errorf("failed to load log config: %w", err)
	}
	return &db, &log, nil
}
