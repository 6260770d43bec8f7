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

type StoreConfig struct {
	Driver string // mongo | memory
}

type GroupConfig struct {
	LocalID string
}

type TopicsConfig struct {
	Requests   string
	Validation string
	Auctions   string
	Updates    string
}

type Config struct {
	App    base.AppConfig
	MQTT   MQTTConfig
	Mongo  MongoConfig
	Store  StoreConfig
	Group  GroupConfig
	Topics TopicsConfig
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
	v.SetDefault("mqtt.client_id", "stocks-broker")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retry_interval", "5s")
	v.SetDefault("mongo.database", "stocks_db")
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("group.local_id", "27")
	v.SetDefault("topics.requests", "stocks/requests")
	v.SetDefault("topics.validation", "stocks/validation")
	v.SetDefault("topics.auctions", "stocks/auctions")
	v.SetDefault("topics.updates", "stocks/updates")

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
		Store: StoreConfig{
			Driver: envString("STORE_DRIVER", v.GetString("store.driver")),
		},
		Group: GroupConfig{
			LocalID: envString("GROUP_ID", v.GetString("group.local_id")),
		},
		Topics: TopicsConfig{
			Requests:   v.GetString("topics.requests"),
			Validation: v.GetString("topics.validation"),
			Auctions:   v.GetString("topics.auctions"),
			Updates:    v.GetString("topics.updates"),
		},
	}

	if cfg.Store.Driver != "mongo" && cfg.Store.Driver != "memory" {
		return nil, fmt.Errorf("store driver must be mongo or memory, got %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "mongo" && cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("MONGO_URI required with the mongo store driver")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	if cfg.Group.LocalID == "" {
		return nil, fmt.Errorf("local group id required")
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
