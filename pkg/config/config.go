package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret       = "dev_secret"
	devFeedTokenSecret = "dev_feed_secret"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Calendar CalendarConfig
	Feeds    FeedsConfig
	Exports  ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig is injected into the document builder.
type CalendarConfig struct {
	ProductID       string
	Timezone        string
	RefreshInterval time.Duration
	UIDDomain       string
}

// FeedsConfig governs feed windows, caching, access tokens and warm-up.
type FeedsConfig struct {
	LookbackDays int
	HorizonDays  int
	CacheEnabled bool
	CacheTTL     time.Duration
	SkipInvalid  bool
	TokenSecret  string
	TokenTTL     time.Duration
	WarmSchedule string
	WarmWorkers  int
}

// ExportsConfig configures file exports written to local storage.
type ExportsConfig struct {
	StorageDir string
	Workers    int
	Retries    int
	Retention  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate refuses to run production with missing or development signing secrets.
func (c *Config) validate() error {
	if c.Env != EnvProduction {
		return nil
	}
	if c.JWT.Secret == "" || c.JWT.Secret == devJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.Feeds.TokenSecret == "" || c.Feeds.TokenSecret == devFeedTokenSecret {
		return errors.New("FEED_TOKEN_SECRET must be set in production")
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		ProductID:       v.GetString("CALENDAR_PRODUCT_ID"),
		Timezone:        v.GetString("CALENDAR_TIMEZONE"),
		RefreshInterval: parseDuration(v.GetString("CALENDAR_REFRESH_INTERVAL"), time.Hour),
		UIDDomain:       v.GetString("CALENDAR_UID_DOMAIN"),
	}

	cfg.Feeds = FeedsConfig{
		LookbackDays: positiveInt(v.GetInt("FEED_LOOKBACK_DAYS"), 30),
		HorizonDays:  positiveInt(v.GetInt("FEED_HORIZON_DAYS"), 365),
		CacheEnabled: v.GetBool("ENABLE_FEED_CACHE"),
		CacheTTL:     parseDuration(v.GetString("FEED_CACHE_TTL"), time.Hour),
		SkipInvalid:  v.GetBool("FEED_SKIP_INVALID"),
		TokenSecret:  v.GetString("FEED_TOKEN_SECRET"),
		TokenTTL:     parseDuration(v.GetString("FEED_TOKEN_TTL"), 365*24*time.Hour),
		WarmSchedule: strings.TrimSpace(v.GetString("FEED_WARM_SCHEDULE")),
		WarmWorkers:  positiveInt(v.GetInt("FEED_WARM_WORKERS"), 2),
	}

	cfg.Exports = ExportsConfig{
		StorageDir: v.GetString("EXPORTS_STORAGE_DIR"),
		Workers:    positiveInt(v.GetInt("EXPORTS_WORKERS"), 4),
		Retries:    positiveInt(v.GetInt("EXPORTS_RETRIES"), 2),
		Retention:  parseDuration(v.GetString("EXPORTS_RETENTION"), 7*24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "coliving")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_PRODUCT_ID", "-//Coliving//Apartment Availability//EN")
	v.SetDefault("CALENDAR_TIMEZONE", "UTC")
	v.SetDefault("CALENDAR_REFRESH_INTERVAL", "1h")
	v.SetDefault("CALENDAR_UID_DOMAIN", "")

	v.SetDefault("FEED_LOOKBACK_DAYS", 30)
	v.SetDefault("FEED_HORIZON_DAYS", 365)
	v.SetDefault("ENABLE_FEED_CACHE", true)
	v.SetDefault("FEED_CACHE_TTL", "1h")
	v.SetDefault("FEED_SKIP_INVALID", false)
	v.SetDefault("FEED_TOKEN_SECRET", devFeedTokenSecret)
	v.SetDefault("FEED_TOKEN_TTL", "8760h")
	v.SetDefault("FEED_WARM_SCHEDULE", "")
	v.SetDefault("FEED_WARM_WORKERS", 2)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_WORKERS", 4)
	v.SetDefault("EXPORTS_RETRIES", 2)
	v.SetDefault("EXPORTS_RETENTION", "168h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
