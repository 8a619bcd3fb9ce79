package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, time.Hour, cfg.Calendar.RefreshInterval)
	assert.Equal(t, "UTC", cfg.Calendar.Timezone)
	assert.Equal(t, time.Hour, cfg.Feeds.CacheTTL)
	assert.Equal(t, 30, cfg.Feeds.LookbackDays)
	assert.Equal(t, 365, cfg.Feeds.HorizonDays)
	assert.True(t, cfg.Feeds.CacheEnabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Exports.Retention)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CALENDAR_TIMEZONE", "Asia/Jakarta")
	v.Set("FEED_CACHE_TTL", "not-a-duration")
	v.Set("FEED_HORIZON_DAYS", -3)
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	v.Set("PUBLIC_BASE_URL", "https://feeds.example.com/")

	cfg := fromViper(v)

	assert.Equal(t, "Asia/Jakarta", cfg.Calendar.Timezone)
	assert.Equal(t, time.Hour, cfg.Feeds.CacheTTL)
	assert.Equal(t, 365, cfg.Feeds.HorizonDays)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "https://feeds.example.com", cfg.PublicBaseURL)
}

func TestValidateRequiresSecretsInProduction(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	require.NoError(t, fromViper(v).validate())

	v.Set("ENV", EnvProduction)
	err := fromViper(v).validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	v.Set("JWT_SECRET", "prod-jwt")
	err = fromViper(v).validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEED_TOKEN_SECRET")

	v.Set("FEED_TOKEN_SECRET", "")
	require.Error(t, fromViper(v).validate())

	v.Set("FEED_TOKEN_SECRET", "prod-feed")
	assert.NoError(t, fromViper(v).validate())
}
