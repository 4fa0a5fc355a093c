// ABOUTME: Configuration loading and management for the rbus gateway
// ABOUTME: Supports YAML files with defaults matching the wire contract

package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/harper/rbus-gateway/internal/logger"
	"github.com/harper/rbus-gateway/internal/subscription"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 8080
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Subscriptions SubscriptionsConfig `mapstructure:"subscriptions"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	SSLEnabled bool   `mapstructure:"ssl_enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
}

type SubscriptionsConfig struct {
	Limit int `mapstructure:"limit"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// Default returns the built-in configuration used when no file is found.
func Default() *Config {
	return &Config{
		Server:        ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Subscriptions: SubscriptionsConfig{Limit: subscription.DefaultLimit},
	}
}

// Load reads the YAML config at path. A missing or unreadable file is a
// warning, not an error: the gateway falls back to defaults, matching the
// original deployment behavior. An out-of-range port likewise falls back.
func Load(path string) *Config {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("subscriptions.limit", subscription.DefaultLimit)

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("failed to load config file %s: %v, using defaults", path, err)
		return Default()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Warn("failed to parse config file %s: %v, using defaults", path, err)
		return Default()
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		logger.Warn("invalid port %d in config, using default %d", cfg.Server.Port, DefaultPort)
		cfg.Server.Port = DefaultPort
	}
	if cfg.Subscriptions.Limit <= 0 {
		cfg.Subscriptions.Limit = subscription.DefaultLimit
	}

	return &cfg
}

// Validate checks constraints that cannot fall back to defaults.
func (c *Config) Validate() error {
	if c.Server.SSLEnabled && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("ssl_enabled requires cert_file and key_file")
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
