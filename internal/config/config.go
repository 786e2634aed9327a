// Package config loads the key service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Discord  DiscordConfig  `yaml:"discord"`
	Auth     AuthConfig     `yaml:"auth"`
	Keys     KeysConfig     `yaml:"keys"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds the persistence DSN (sqlite path or postgres URL).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds optional Redis settings for the shared cooldown store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DiscordConfig holds the audit webhook settings.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// AuthConfig holds staff authentication settings.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

// KeysConfig tunes key generation and the ownership cache.
type KeysConfig struct {
	Prefix          string `yaml:"prefix"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	CacheCapacity   int    `yaml:"cache_capacity"`
	CooldownSeconds int    `yaml:"cooldown_seconds"`
}

// Load reads the configuration file at path, applies defaults, and overlays
// environment variables. A missing file yields a default configuration so
// the service can run entirely from env.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, errRead := os.ReadFile(path)
		if errRead != nil {
			if !os.IsNotExist(errRead) {
				return nil, fmt.Errorf("config: read %s: %w", path, errRead)
			}
		} else if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	}

	applyEnv(cfg)

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, fmt.Errorf("config: auth.jwt_secret is required")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{DSN: "data/keyserver.db"},
		Log:      LogConfig{Level: "info"},
		Auth:     AuthConfig{TokenTTLHours: 24},
		Keys: KeysConfig{
			Prefix:          "VORAHUB",
			CacheTTLSeconds: 300,
			CacheCapacity:   2000,
			CooldownSeconds: 3,
		},
	}
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Server.Addr, "KEYSERVER_ADDR")
	setFromEnv(&cfg.Database.DSN, "KEYSERVER_DSN")
	setFromEnv(&cfg.Redis.Addr, "KEYSERVER_REDIS_ADDR")
	setFromEnv(&cfg.Redis.Password, "KEYSERVER_REDIS_PASSWORD")
	setFromEnv(&cfg.Log.Level, "KEYSERVER_LOG_LEVEL")
	setFromEnv(&cfg.Log.File, "KEYSERVER_LOG_FILE")
	setFromEnv(&cfg.Discord.WebhookURL, "KEYSERVER_WEBHOOK")
	setFromEnv(&cfg.Auth.JWTSecret, "KEYSERVER_JWT_SECRET")
	setFromEnv(&cfg.Keys.Prefix, "KEYSERVER_KEY_PREFIX")
}

func setFromEnv(target *string, name string) {
	if value, ok := os.LookupEnv(name); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			*target = trimmed
		}
	}
}
