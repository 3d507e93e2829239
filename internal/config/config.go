// Package config loads the daemon configuration from an optional YAML file
// with CONCIERGE_-prefixed environment overrides.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Hotel     HotelConfig     `mapstructure:"hotel"`
	API       APIConfig       `mapstructure:"api"`
	Transport TransportConfig `mapstructure:"transport"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Guest     GuestConfig     `mapstructure:"guest"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	UIToken string `mapstructure:"ui_token"`
}

type HotelConfig struct {
	ID string `mapstructure:"id"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

type TransportConfig struct {
	// Kind selects the push transport: redis, nats or memory.
	Kind  string      `mapstructure:"kind"`
	Redis RedisConfig `mapstructure:"redis"`
	NATS  NATSConfig  `mapstructure:"nats"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type GuestConfig struct {
	StateDir string `mapstructure:"state_dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from path (optional; a missing file means
// defaults plus environment only) and the CONCIERGE_ environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CONCIERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			// A missing file means env-and-defaults only.
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Hotel.ID == "" {
		return nil, errors.New("hotel.id is required")
	}
	if cfg.API.BaseURL == "" {
		return nil, errors.New("api.base_url is required")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8090")
	// Keys without a file value must be registered for AutomaticEnv to
	// surface them through Unmarshal.
	v.SetDefault("server.ui_token", "")
	v.SetDefault("hotel.id", "")
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.token", "")
	v.SetDefault("transport.kind", "redis")
	v.SetDefault("transport.redis.url", "redis://localhost:6379")
	v.SetDefault("transport.nats.url", "nats://localhost:4222")
	v.SetDefault("transport.nats.max_reconnects", 10)
	v.SetDefault("transport.nats.reconnect_wait", 2*time.Second)
	v.SetDefault("reconcile.interval", 60*time.Second)
	v.SetDefault("guest.state_dir", ".concierge")
	v.SetDefault("log.level", "info")
}
