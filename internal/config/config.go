package config

import (
	"fmt"
	"time"

	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string        `mapstructure:"PORT"`
	Env           string        `mapstructure:"ENV"`
	TimeZone      string        `mapstructure:"TIMEZONE"`
	StoreBackend  string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL   string        `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL      string        `mapstructure:"REDIS_URL"`
	IngestSecret  string        `mapstructure:"INGEST_JWT_SECRET"`
	TimerInterval time.Duration `mapstructure:"TIMER_INTERVAL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("TIMEZONE", "America/New_York")
	v.SetDefault("STORE_BACKEND", "postgres")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TIMER_INTERVAL", "15m")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("TIMEZONE")
	v.BindEnv("STORE_BACKEND")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("INGEST_JWT_SECRET")
	v.BindEnv("TIMER_INTERVAL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. The per-encounter
// lock is in-process, so exactly one harm-server instance may own a store;
// nothing here can check that, but the backend selection and secrets can be.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is \"postgres\"")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND is \"redis\"")
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for clinical fact access even with STORE_BACKEND \"redis\"")
		}
	case "memory":
		if !c.IsDev() {
			return fmt.Errorf("STORE_BACKEND \"memory\" is only valid with ENV=development")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be \"postgres\", \"redis\", or \"memory\", got %q", c.StoreBackend)
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIMEZONE %q is not a valid tz database name: %w", c.TimeZone, err)
	}

	if c.TimerInterval < time.Minute {
		return fmt.Errorf("TIMER_INTERVAL must be at least 1m, got %s", c.TimerInterval)
	}

	if c.IsProduction() && c.IngestSecret == "" {
		return fmt.Errorf("INGEST_JWT_SECRET is required in production")
	}

	return nil
}
