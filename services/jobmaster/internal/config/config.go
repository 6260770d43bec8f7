package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	base "github.com/luzhania/E1-arquitectura-de-software/libs/config"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MongoConfig struct {
	URI      string
	Database string
}

type Config struct {
	App         base.AppConfig
	Redis       RedisConfig
	Mongo       MongoConfig
	StoreDriver string
	QueueKey    string
	ResultTTL   time.Duration
	// Drift is the assumed fractional price movement used when
	// estimating the gain of a pending purchase.
	Drift   float64
	Workers int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("jobmaster")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("STOCKS")
	v.AutomaticEnv()

	v.SetDefault("app.service_name", "jobmaster")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.metrics_path", "/metrics")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.read_timeout", 10*time.Second)
	v.SetDefault("app.http.write_timeout", 10*time.Second)
	v.SetDefault("app.http.idle_timeout", 60*time.Second)
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("jobs.queue_key", "jobs:estimation")
	v.SetDefault("jobs.result_ttl", 24*time.Hour)
	v.SetDefault("jobs.drift", 0.05)
	v.SetDefault("jobs.workers", 1)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		App: base.AppConfig{
			ServiceName: v.GetString("app.service_name"),
			Env:         envString("APP_ENV", v.GetString("app.env")),
			LogLevel:    envString("LOG_LEVEL", v.GetString("app.log_level")),
			MetricsPath: v.GetString("app.metrics_path"),
			HTTP: base.HTTPConfig{
				Host:         v.GetString("app.http.host"),
				Port:         envInt("HTTP_PORT", v.GetInt("app.http.port")),
				ReadTimeout:  v.GetDuration("app.http.read_timeout"),
				WriteTimeout: v.GetDuration("app.http.write_timeout"),
				IdleTimeout:  v.GetDuration("app.http.idle_timeout"),
			},
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", v.GetString("redis.addr")),
			Password: envString("REDIS_PASSWORD", v.GetString("redis.password")),
			DB:       v.GetInt("redis.db"),
		},
		Mongo: MongoConfig{
			URI:      envString("MONGO_URI", v.GetString("mongo.uri")),
			Database: envString("MONGO_DB", valueOr(v.GetString("mongo.database"), "stocks_db")),
		},
		StoreDriver: envString("STORE_DRIVER", v.GetString("store.driver")),
		QueueKey:    v.GetString("jobs.queue_key"),
		ResultTTL:   v.GetDuration("jobs.result_ttl"),
		Drift:       v.GetFloat64("jobs.drift"),
		Workers:     v.GetInt("jobs.workers"),
	}

	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.StoreDriver != "mongo" && cfg.StoreDriver != "memory" {
		return nil, fmt.Errorf("store driver must be mongo or memory, got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "mongo" && cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("mongo uri is required when store driver is mongo")
	}
	if cfg.Drift <= 0 {
		return nil, fmt.Errorf("drift must be positive, got %v", cfg.Drift)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func valueOr(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}
