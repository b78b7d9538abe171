// Package config loads process configuration from an optional config file
// and USERS_-prefixed environment variables.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "USERS"

// Config carries everything the process needs. It is loaded once in main and
// passed down by value; nothing mutates it after startup.
type Config struct {
	Env             string
	Port            int
	DatabasePath    string
	SessionSecret   string
	SessionLifetime time.Duration
	LogLevel        string
}

// Load reads configuration from config.yaml (if present) and the
// environment. The session secret has no default: a process without one
// must not start.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("env", "dev")
	v.SetDefault("server.port", 3000)
	v.SetDefault("database.path", "users.sqlite")
	v.SetDefault("auth.session_lifetime", 24*time.Hour)
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "[config Load] read config file")
		}
	}

	cfg := Config{
		Env:             v.GetString("env"),
		Port:            v.GetInt("server.port"),
		DatabasePath:    v.GetString("database.path"),
		SessionSecret:   v.GetString("auth.secret"),
		SessionLifetime: v.GetDuration("auth.session_lifetime"),
		LogLevel:        v.GetString("log.level"),
	}

	if cfg.SessionSecret == "" {
		return Config{}, errors.New("[config Load] auth.secret (USERS_AUTH_SECRET) is required")
	}
	return cfg, nil
}

// IsProd reports whether the process runs with production settings.
func (c Config) IsProd() bool {
	env := strings.ToLower(c.Env)
	return env == "prod" || env == "production"
}
