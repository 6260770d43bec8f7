package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	base "github.com/luzhania/E1-arquitectura-de-software/libs/config"
	"github.com/spf13/viper"
)

type MQTTConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	ClientID      string
	QoS           int
	RetryInterval time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type Config struct {
	App           base.AppConfig
	MQTT          MQTTConfig
	Mongo         MongoConfig
	StoreDriver   string
	GroupID       string
	RequestsTopic string
	JWTSecret     string
	JobmasterURL  string
	CacheTTL      time.Duration
}

func Load() (*Config, error) {
	appCfg, err := base.Load(os.Getenv("STOCKS_CONFIG"))
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("STOCKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := os.Getenv("STOCKS_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetDefault("mqtt.port", 9000)
	v.SetDefault("mqtt.client_id", "stocks-api")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retry_interval", "5s")
	v.SetDefault("mongo.database", "stocks_db")
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("group.local_id", "27")
	v.SetDefault("topics.requests", "stocks/requests")
	v.SetDefault("api.cache_ttl", "30s")

	cfg := &Config{
		App: *appCfg,
		MQTT: MQTTConfig{
			Host:          envString("MQTT_BROKER", v.GetString("mqtt.host")),
			Port:          envInt("MQTT_PORT", v.GetInt("mqtt.port")),
			Username:      envString("MQTT_USER", v.GetString("mqtt.username")),
			Password:      envString("MQTT_PASSWORD", v.GetString("mqtt.password")),
			ClientID:      envString("MQTT_CLIENT_ID", v.GetString("mqtt.client_id")),
			QoS:           v.GetInt("mqtt.qos"),
			RetryInterval: v.GetDuration("mqtt.retry_interval"),
		},
		Mongo: MongoConfig{
			URI:      envString("MONGO_URI", v.GetString("mongo.uri")),
			Database: envString("MONGO_DB", v.GetString("mongo.database")),
		},
		StoreDriver:   envString("STORE_DRIVER", v.GetString("store.driver")),
		GroupID:       envString("GROUP_ID", v.GetString("group.local_id")),
		RequestsTopic: v.GetString("topics.requests"),
		JWTSecret:     envString("JWT_SECRET", v.GetString("jwt.secret")),
		JobmasterURL:  envString("JOBMASTER_URL", v.GetString("jobmaster.url")),
		CacheTTL:      v.GetDuration("api.cache_ttl"),
	}

	if cfg.StoreDriver != "mongo" && cfg.StoreDriver != "memory" {
		return nil, fmt.Errorf("store driver must be mongo or memory, got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "mongo" && cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("MONGO_URI required with the mongo store driver")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET required")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
