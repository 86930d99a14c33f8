package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Storage    StorageConfig
	Migrations MigrationsConfig
	Orders     OrdersConfig
	Catalog    CatalogConfig
	Analyzer   AnalyzerConfig
	NATS       NATSConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string
}

// MigrationsConfig controls goose migrations on boot.
type MigrationsConfig struct {
	AutoMigrate bool
}

// OrdersConfig tunes the order lifecycle and teacher admission control.
type OrdersConfig struct {
	MaxActivePerTeacher int
	StandardTurnaround  time.Duration
	GracePeriod         time.Duration
	SweepInterval       time.Duration
	CapacityHintTTL     time.Duration
}

// CatalogConfig governs caching of reference data listings.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// AnalyzerConfig configures asynchronous essay analysis.
type AnalyzerConfig struct {
	Enabled    bool
	OpenAIKey  string
	Model      string
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// NATSConfig configures order event publishing.
type NATSConfig struct {
	URL     string
	Subject string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{Driver: strings.ToLower(v.GetString("STORAGE_DRIVER"))}
	cfg.Migrations = MigrationsConfig{AutoMigrate: v.GetBool("DB_AUTO_MIGRATE")}

	maxActive := v.GetInt("ORDERS_MAX_ACTIVE_PER_TEACHER")
	if maxActive <= 0 {
		maxActive = 5
	}
	cfg.Orders = OrdersConfig{
		MaxActivePerTeacher: maxActive,
		StandardTurnaround:  parseDuration(v.GetString("ORDERS_STANDARD_TURNAROUND"), 72*time.Hour),
		GracePeriod:         parseDuration(v.GetString("ORDERS_GRACE_PERIOD"), 30*time.Minute),
		SweepInterval:       parseDuration(v.GetString("ORDERS_SWEEP_INTERVAL"), time.Minute),
		CapacityHintTTL:     parseDuration(v.GetString("ORDERS_CAPACITY_HINT_TTL"), 5*time.Second),
	}

	cfg.Catalog = CatalogConfig{
		CacheTTL: parseDuration(v.GetString("CATALOG_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Analyzer = AnalyzerConfig{
		Enabled:    v.GetBool("ENABLE_ANALYZER"),
		OpenAIKey:  v.GetString("OPENAI_API_KEY"),
		Model:      v.GetString("ANALYZER_MODEL"),
		Workers:    v.GetInt("ANALYZER_WORKERS"),
		Retries:    v.GetInt("ANALYZER_RETRIES"),
		RetryDelay: parseDuration(v.GetString("ANALYZER_RETRY_DELAY"), 5*time.Second),
	}

	cfg.NATS = NATSConfig{
		URL:     v.GetString("NATS_URL"),
		Subject: v.GetString("NATS_ORDER_SUBJECT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "essay_review")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "essay-review-api")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StoragePostgres)

	v.SetDefault("ORDERS_MAX_ACTIVE_PER_TEACHER", 5)
	v.SetDefault("ORDERS_STANDARD_TURNAROUND", "72h")
	v.SetDefault("ORDERS_GRACE_PERIOD", "30m")
	v.SetDefault("ORDERS_SWEEP_INTERVAL", "1m")
	v.SetDefault("ORDERS_CAPACITY_HINT_TTL", "5s")

	v.SetDefault("CATALOG_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_ANALYZER", false)
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("ANALYZER_MODEL", "gpt-4o-mini")
	v.SetDefault("ANALYZER_WORKERS", 2)
	v.SetDefault("ANALYZER_RETRIES", 3)
	v.SetDefault("ANALYZER_RETRY_DELAY", "5s")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_ORDER_SUBJECT", "essay.orders.status")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
