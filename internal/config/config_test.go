package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gridiron-picks/internal/service"
)

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no stray .env

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data/picks.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.ESPNTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ESPNScoreboardTTL)
	assert.Equal(t, time.Hour, cfg.ESPNCurrentWeekTTL)
	assert.Equal(t, 2, cfg.CurrentSeasonType)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.Exempt())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_FromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("ADMIN_AUTH_TOKEN", "admin-secret")
	t.Setenv("CURRENT_SEASON", "2024")
	t.Setenv("CURRENT_SEASON_TYPE", "3")
	t.Setenv("EXEMPT_PAIRINGS", "GB:DET")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "admin-secret", cfg.AdminAuthToken)
	assert.Equal(t, 2024, cfg.CurrentSeason)
	assert.Equal(t, 3, cfg.CurrentSeasonType)
	assert.Equal(t, service.ExemptPairings{{A: "GB", B: "DET"}}, cfg.Exempt())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:              8080,
			DBPath:            "x.db",
			CurrentSeason:     2025,
			CurrentSeasonType: 2,
			ESPNTimeout:       time.Second,
			LogLevel:          "info",
			SyncCron:          "*/15 * * * *",
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"no db path", func(c *Config) { c.DBPath = " " }},
		{"bad season type", func(c *Config) { c.CurrentSeasonType = 4 }},
		{"bad season", func(c *Config) { c.CurrentSeason = 25 }},
		{"zero timeout", func(c *Config) { c.ESPNTimeout = 0 }},
		{"bad pairing", func(c *Config) { c.ExemptPairings = "GB" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"no cron", func(c *Config) { c.SyncCron = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
