// Package config loads the client configuration from the environment and an
// optional .env file using Viper. Every key is read with the RIDER_ prefix.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when reading the environment.
const EnvPrefix = "RIDER"

// Config holds the client configuration.
type Config struct {
	// APIURL is the backend base URL (e.g. http://localhost:3105).
	APIURL string `mapstructure:"API_URL"`
	// WSURL is the notification channel endpoint. Derived from APIURL when unset.
	WSURL string `mapstructure:"WS_URL"`
	// Home holds the credential file, device key and log. Default ~/.rider.
	Home string `mapstructure:"HOME"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// HTTPTimeout bounds one gateway request.
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`
	// ReconnectMin and ReconnectMax bound the channel's reconnect backoff.
	ReconnectMin time.Duration `mapstructure:"RECONNECT_MIN"`
	ReconnectMax time.Duration `mapstructure:"RECONNECT_MAX"`
	// PushToken is the device push token reported after sign-in, if any.
	PushToken string `mapstructure:"PUSH_TOKEN"`
	// SignupURL is the web sign-up page. Defaults to <API_URL>/signup.
	SignupURL string `mapstructure:"SIGNUP_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("API_URL", "http://localhost:3105")
	v.SetDefault("WS_URL", "")
	v.SetDefault("HOME", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("RECONNECT_MIN", "1s")
	v.SetDefault("RECONNECT_MAX", "30s")
	v.SetDefault("PUSH_TOKEN", "")
	v.SetDefault("SIGNUP_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.APIURL == "" {
		return nil, errors.New("config: API_URL must be set")
	}
	if cfg.WSURL == "" {
		ws, err := DeriveWSURL(cfg.APIURL)
		if err != nil {
			return nil, err
		}
		cfg.WSURL = ws
	}
	if cfg.SignupURL == "" {
		cfg.SignupURL = cfg.APIURL + "/signup"
	}
	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: get home dir: %w", err)
		}
		cfg.Home = filepath.Join(home, ".rider")
	}

	if cfg.HTTPTimeout <= 0 {
		return nil, errors.New("config: HTTP_TIMEOUT must be positive")
	}
	if cfg.ReconnectMin <= 0 || cfg.ReconnectMax < cfg.ReconnectMin {
		return nil, errors.New("config: RECONNECT_MIN must be positive and not above RECONNECT_MAX")
	}

	return &cfg, nil
}

// DeriveWSURL maps an http(s) API URL to the ws(s) channel endpoint at /ws.
func DeriveWSURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("config: parse API_URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("config: API_URL scheme %q must be http or https", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}
