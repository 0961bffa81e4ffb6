package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TMDB_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "letswatch.db", cfg.Database.URL)
	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDB.BaseURL)
	assert.Equal(t, "https://graphql.anilist.co", cfg.AniList.URL)
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, uint64(1), cfg.Provider.Retries)
	assert.Equal(t, 5, cfg.EnrichConcurrency)
	assert.Equal(t, 5, cfg.DashboardLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.MAL.AccessToken)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TMDB_API_KEY", "key")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/letswatch")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("ENRICH_CONCURRENCY", "8")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 8, cfg.EnrichConcurrency)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TMDB_API_KEY", "key")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TMDB_API_KEY", "key")
	t.Setenv("DATABASE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DRIVER")
}

func TestValidate_DashboardLimitBounds(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TMDB_API_KEY", "key")

	for _, limit := range []string{"0", "6", "50"} {
		t.Setenv("DASHBOARD_LIMIT", limit)
		_, err := Load()
		require.Error(t, err, "limit %s", limit)
		assert.Contains(t, err.Error(), "DASHBOARD_LIMIT")
	}

	t.Setenv("DASHBOARD_LIMIT", "3")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DashboardLimit)
}

func TestLoadStorage_NoSecretsNeeded(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "/tmp/letswatch.db")

	db, log, err := LoadStorage()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", db.Driver)
	assert.Equal(t, "/tmp/letswatch.db", db.URL)
	assert.Equal(t, "text", log.Format)
}
