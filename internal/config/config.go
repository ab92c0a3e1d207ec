// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBHost                        string `mapstructure:"DB_HOST"`
	DBPort                        string `mapstructure:"DB_PORT"`
	DBUser                        string `mapstructure:"DB_USER"`
	DBPassword                    string `mapstructure:"DB_PASSWORD"`
	DBName                        string `mapstructure:"DB_NAME"`
	DBSSLMode                     string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	// RealtimeBroker selects cross-instance fan-out: redis, nats or local.
	RealtimeBroker string `mapstructure:"REALTIME_BROKER"`
	NATSURL        string `mapstructure:"NATS_URL"`
	EventsEnabled  bool   `mapstructure:"EVENTS_ENABLED"`

	TrendingSweepIntervalMinutes int `mapstructure:"TRENDING_SWEEP_INTERVAL_MINUTES"`
	TrendingSweepBatch           int `mapstructure:"TRENDING_SWEEP_BATCH"`

	FeedAffinityTags        int `mapstructure:"FEED_AFFINITY_TAGS"`
	FeedTrendingTags        int `mapstructure:"FEED_TRENDING_TAGS"`
	PopularTagsCacheSeconds int `mapstructure:"POPULAR_TAGS_CACHE_SECONDS"`

	DispatchBreakerFailures       int `mapstructure:"DISPATCH_BREAKER_FAILURES"`
	DispatchBreakerTimeoutSeconds int `mapstructure:"DISPATCH_BREAKER_TIMEOUT_SECONDS"`

	// FeatureFlags is a key=value list such as "personalized_feed=25%".
	FeatureFlags string `mapstructure:"FEATURE_FLAGS"`

	DevBootstrapRoot bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootUsername  string `mapstructure:"DEV_ROOT_USERNAME"`
	DevRootEmail     string `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword  string `mapstructure:"DEV_ROOT_PASSWORD"`
	SeedBuiltInTags  bool   `mapstructure:"SEED_BUILTIN_TAGS"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	OTLPEndpoint       string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	setDefaults(v)

	// The base file is optional; env vars and defaults are enough to boot.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env != "development" && env != "" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config.%s.yml: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"PORT":                             "8375",
		"APP_ENV":                          "development",
		"JWT_SECRET":                       defaultJWTSecret,
		"ALLOWED_ORIGINS":                  "http://localhost:5173,http://localhost:3000",
		"DB_HOST":                          "localhost",
		"DB_PORT":                          "5432",
		"DB_USER":                          "user",
		"DB_PASSWORD":                      "password",
		"DB_NAME":                          "inkwell",
		"DB_SSLMODE":                       "disable",
		"DB_MAX_OPEN_CONNS":                25,
		"DB_MAX_IDLE_CONNS":                5,
		"DB_CONN_MAX_LIFETIME_MINUTES":     5,
		"DB_SCHEMA_MODE":                   "hybrid",
		"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE": false,
		"REDIS_URL":                        "localhost:6379",
		"REALTIME_BROKER":                  "redis",
		"NATS_URL":                         "nats://localhost:4222",
		"EVENTS_ENABLED":                   false,
		"TRENDING_SWEEP_INTERVAL_MINUTES":  15,
		"TRENDING_SWEEP_BATCH":             200,
		"FEED_AFFINITY_TAGS":               5,
		"FEED_TRENDING_TAGS":               5,
		"POPULAR_TAGS_CACHE_SECONDS":       120,
		"DISPATCH_BREAKER_FAILURES":        5,
		"DISPATCH_BREAKER_TIMEOUT_SECONDS": 30,
		"FEATURE_FLAGS":                    "personalized_feed=on",
		"DEV_BOOTSTRAP_ROOT":               false,
		"DEV_ROOT_USERNAME":                "inkwell_root",
		"DEV_ROOT_EMAIL":                   "root@inkwell.local",
		"DEV_ROOT_PASSWORD":                "",
		"SEED_BUILTIN_TAGS":                true,
		"TRACING_ENABLED":                  false,
		"OTEL_EXPORTER_OTLP_ENDPOINT":      "",
		"TRACING_SAMPLE_RATIO":             1.0,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.RealtimeBroker = strings.ToLower(strings.TrimSpace(c.RealtimeBroker))
}

// IsProduction reports whether the config targets a production-like environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// TrendingSweepInterval is zero when the periodic sweep is disabled.
func (c *Config) TrendingSweepInterval() time.Duration {
	return time.Duration(c.TrendingSweepIntervalMinutes) * time.Minute
}

// PopularTagsTTL returns how long popular tag listings stay cached.
func (c *Config) PopularTagsTTL() time.Duration {
	return time.Duration(c.PopularTagsCacheSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBMaxOpenConns < 1 || c.DBMaxIdleConns < 1 {
		return errors.New("DB_MAX_OPEN_CONNS and DB_MAX_IDLE_CONNS must be at least 1")
	}
	if c.DBConnMaxLifetimeMinutes < 1 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be at least 1")
	}
	switch c.RealtimeBroker {
	case "", "redis", "nats", "local":
	default:
		return fmt.Errorf("unsupported REALTIME_BROKER %q", c.RealtimeBroker)
	}
	if c.RealtimeBroker == "nats" && c.NATSURL == "" {
		return errors.New("NATS_URL is required when REALTIME_BROKER=nats")
	}
	if c.TrendingSweepIntervalMinutes < 0 {
		return errors.New("TRENDING_SWEEP_INTERVAL_MINUTES must not be negative")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return errors.New("TRACING_SAMPLE_RATIO must be between 0 and 1")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
