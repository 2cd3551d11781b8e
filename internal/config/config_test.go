package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rallyhub")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.AutoApprovalWindow)
	assert.Equal(t, time.Minute, cfg.AutoApprovalSweepInterval)
	assert.Equal(t, 4, cfg.AutoApprovalWorkers)
	assert.Equal(t, 90*time.Minute, cfg.DefaultMatchDuration)
	assert.Equal(t, time.UTC, cfg.LeagueTimezone)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/rallyhub")
	t.Setenv("AUTO_APPROVAL_WINDOW", "12h")
	t.Setenv("AUTO_APPROVAL_WORKERS", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , https://b.example,")
	t.Setenv("LEAGUE_TIMEZONE", "Asia/Kuala_Lumpur")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12*time.Hour, cfg.AutoApprovalWindow)
	assert.Equal(t, 4, cfg.AutoApprovalWorkers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "Asia/Kuala_Lumpur", cfg.LeagueTimezone.String())
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/rallyhub")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("LEAGUE_TIMEZONE", "Mars/Olympus")
	t.Setenv("ENV", "development")
	_, err = Load()
	assert.Error(t, err)
}
